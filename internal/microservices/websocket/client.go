package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Individual UI client connection

const ( // ping pong (2-way heartbeat) keeps idle connections alive
	WriteWait      = 10 * time.Second    // max time to write a message to the peer
	PongWait       = 60 * time.Second    // no pong within this window = connection is gone
	PingPeriod     = (PongWait * 9) / 10 // 90% of pong wait leaves room for network jitter
	MaxMessageSize = 512                 // client messages are small msgpack maps
	SendBufferSize = 32
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)

type Client struct {
	ID          string          // unique client ID
	Conn        *websocket.Conn // WebSocket connection
	SendChannel chan []byte     // outbound msgpack frames
	Hub         *Hub

	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Client{
		ID:          id,
		Conn:        conn,
		SendChannel: make(chan []byte, SendBufferSize),
		Hub:         hub,
		logger:      logger.With("client_id", id),
		done:        make(chan struct{}),
	}
}

// ReadPump reads frames until the connection fails or is closed, handing each
// one to onMessage. It unregisters the client before returning.
// A failing onMessage is logged; the connection stays open.
func (c *Client) ReadPump(onMessage func(data []byte) error) {
	defer func() {
		c.Hub.Unregister(c)
		c.Close()
	}()

	c.Conn.SetReadLimit(MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket_read_error", "error", err.Error())
			}
			return
		}
		if err := onMessage(data); err != nil {
			c.logger.Warn("client_message_rejected", "error", err.Error())
		}
	}
}

// WritePump drains SendChannel to the connection and sends pings.
// It is the only goroutine writing to Conn.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.SendChannel:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				c.logger.Warn("websocket_write_error", "error", err.Error())
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(WriteWait))
			return
		}
	}
}

// SendMessage queues a frame without blocking
func (c *Client) SendMessage(message []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.SendChannel <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close signals both pumps to stop. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		// give WritePump a moment to send the close frame before the socket goes
		time.AfterFunc(WriteWait/10, func() { c.Conn.Close() })
	})
	return nil
}
