package node

import (
	"context"
	"fmt"
	"io"
	"time"
)

// DefaultLifetime is how long the stub stays up.
const DefaultLifetime = 10 * time.Second

const (
	startLine    = "Start Node"
	shutdownLine = "Shutdown Node"
)

// RunStub prints the start line, waits for lifetime (or ctx), prints the
// shutdown line. Cancellation is not an error.
func RunStub(ctx context.Context, out io.Writer, lifetime time.Duration) error {
	if _, err := fmt.Fprintln(out, startLine); err != nil {
		return fmt.Errorf("write start line: %w", err)
	}

	timer := time.NewTimer(lifetime)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	if _, err := fmt.Fprintln(out, shutdownLine); err != nil {
		return fmt.Errorf("write shutdown line: %w", err)
	}
	return nil
}
