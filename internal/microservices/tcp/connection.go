package tcp

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
)

// Response is written verbatim to every accepted connection.
// The request is never read or parsed.
const Response = "HTTP/1.1 200 OK\r\n" +
	"Connection: close\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Hello world!"

// maxLingerBytes bounds how much unread client input is discarded before close.
const maxLingerBytes = 64 * 1024

// halfCloser is implemented by *net.TCPConn and *net.UnixConn
type halfCloser interface {
	CloseWrite() error
	CloseRead() error
}

type ClientConnection struct {
	ID           string // unique identifier = key in manager map
	conn         net.Conn
	writeTimeout time.Duration
	linger       time.Duration
}

// constructor for ClientConnection
func NewClientConnection(conn net.Conn, writeTimeout, linger time.Duration) *ClientConnection {
	return &ClientConnection{
		ID:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
		linger:       linger,
	}
}

// RemoteAddr returns the peer address as a string
func (c *ClientConnection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Respond writes the fixed response, then shuts the stream down in both directions.
// The connection is always closed on return.
func (c *ClientConnection) Respond() error {
	defer c.conn.Close()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("could not set write deadline: %w", err)
	}
	if _, err := io.WriteString(c.conn, Response); err != nil {
		return fmt.Errorf("could not write response: %w", err)
	}

	hc, ok := c.conn.(halfCloser)
	if !ok {
		return nil
	}
	if err := hc.CloseWrite(); err != nil {
		return fmt.Errorf("could not shut down stream: %w", err)
	}

	// Drain whatever the client sent so the close below is a FIN, not a RST
	// that could discard the response before the client reads it.
	if err := c.conn.SetReadDeadline(time.Now().Add(c.linger)); err == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(c.conn, maxLingerBytes))
	}

	if err := hc.CloseRead(); err != nil {
		return fmt.Errorf("could not shut down stream: %w", err)
	}
	return nil
}

// method to close the connection
func (c *ClientConnection) Close() {
	c.conn.Close()
}
