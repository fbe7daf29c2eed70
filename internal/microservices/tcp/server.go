package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultMaxWorkers   = 256
	DefaultWriteTimeout = 5 * time.Second
	DefaultLinger       = 250 * time.Millisecond
)

// ErrBind marks a failure to open the listening socket.
var ErrBind = errors.New("could not bind to socket")

// ErrServerClosed is returned by Serve after Stop.
var ErrServerClosed = errors.New("tcp server closed")

// Options tune the server; zero values take the package defaults.
type Options struct {
	MaxWorkers   int
	AcceptRate   float64 // accepted connections per second, 0 = unlimited
	WriteTimeout time.Duration
	Linger       time.Duration
	Logger       *slog.Logger
}

// TCPServer answers every connection with Response.
type TCPServer struct {
	Addr    string
	Manager *ConnectionManager

	pool     *WorkerPool
	limiter  *rate.Limiter
	opts     Options
	logger   *slog.Logger
	quitChan chan struct{} // closed by Stop
	stopOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
}

// constructor for Server
func NewServer(addr string, opts Options) *TCPServer {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Linger <= 0 {
		opts.Linger = DefaultLinger
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limit := rate.Inf
	burst := 0
	if opts.AcceptRate > 0 {
		limit = rate.Limit(opts.AcceptRate)
		burst = int(math.Max(1, math.Ceil(opts.AcceptRate)))
	}

	return &TCPServer{
		Addr:     addr,
		Manager:  NewConnectionManager(opts.Logger),
		pool:     NewWorkerPool(opts.MaxWorkers, opts.Logger),
		limiter:  rate.NewLimiter(limit, burst),
		opts:     opts,
		logger:   opts.Logger,
		quitChan: make(chan struct{}),
	}
}

// Listen binds the socket. It fails if the address is already in use.
func (s *TCPServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("%w: %s: already listening", ErrBind, s.Addr)
	}
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, s.Addr, err)
	}
	s.listener = listener
	s.logger.Info("tcp_server_listening", "addr", listener.Addr().String())
	return nil
}

// ListenAddr reports the bound address, or nil before Listen.
func (s *TCPServer) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds and serves until Stop or ctx cancellation.
func (s *TCPServer) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections on the bound listener. An accept failure that is
// not caused by Stop or ctx is returned and should be treated as fatal.
func (s *TCPServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("serve called before listen")
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-waitCtx.Done():
		case <-s.quitChan:
		}
		cancel()
		listener.Close()
	}()

	s.pool.Start()

	for {
		if err := s.limiter.Wait(waitCtx); err != nil {
			return s.acceptStopped(ctx, err)
		}

		conn, err := listener.Accept()
		if err != nil {
			return s.acceptStopped(ctx, err)
		}

		client := NewClientConnection(conn, s.opts.WriteTimeout, s.opts.Linger)
		s.Manager.AddConnection(client)
		s.logger.Debug("client_connected",
			"client_id", client.ID,
			"remote_addr", client.RemoteAddr(),
		)

		err = s.pool.Submit(func(context.Context) error {
			defer s.Manager.RemoveConnection(client)
			if err := client.Respond(); err != nil {
				return fmt.Errorf("client %s: %w", client.ID, err)
			}
			return nil
		})
		if err != nil {
			client.Close()
			s.Manager.RemoveConnection(client)
			return s.acceptStopped(ctx, err)
		}
	}
}

// acceptStopped maps loop errors after shutdown to ErrServerClosed/nil
func (s *TCPServer) acceptStopped(ctx context.Context, err error) error {
	select {
	case <-s.quitChan:
		return ErrServerClosed
	default:
	}
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("could not connect to client: %w", err)
}

// Stop closes the listener and waits for in-flight connections until ctx ends,
// then force-closes the rest.
func (s *TCPServer) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.quitChan)

		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()

		if err = s.pool.WaitContext(ctx); err != nil {
			s.logger.Warn("tcp_server_forced_shutdown",
				"open_connections", s.Manager.Count(),
				"error", err.Error(),
			)
			s.Manager.CloseAllConnections()
			s.pool.Shutdown()
		}
		s.logger.Info("tcp_server_stopped")
	})
	return err
}
