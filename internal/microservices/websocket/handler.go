package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"raftlab/internal/auth"
	"raftlab/internal/rpc"
)

// HTTP upgrade handler for UI client connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the UI is served from a different origin than the nodes
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Session is the cluster node a UI client attaches to
type Session interface {
	ID() rpc.NodeID
	ClusterID() string
	ClientConnected(clientID string) ([]byte, error)
	ClientDisconnected(clientID string)
	HandleClientMessage(clientID string, msg rpc.ClientMessage) error
}

type HandlerConfig struct {
	Hub          *Hub
	Session      Session
	Cookies      *auth.CookieSigner
	CookieDomain string
	Development  bool
	Logger       *slog.Logger
}

// WSHandler serves GET /ws/:nodeId. The client must address this node and,
// when it presents a cluster cookie, the cookie must be ours.
func WSHandler(cfg HandlerConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		nodeID, err := rpc.ParseNodeID(c.Param("nodeId"))
		if err != nil {
			c.String(http.StatusBadRequest, "Bad Request: Unrecognized nodeId")
			return
		}
		if nodeID != cfg.Session.ID() {
			c.String(http.StatusMisdirectedRequest, "Misdirected Request: this is node %s", cfg.Session.ID())
			return
		}

		if cookie := c.GetHeader("Cookie"); cookie != "" {
			clusterID, err := cfg.Cookies.Verify(cookie)
			if err != nil {
				c.String(http.StatusForbidden, "%s", err.Error())
				return
			}
			if clusterID != cfg.Session.ClusterID() {
				c.String(http.StatusForbidden, "cluster cookie belongs to another cluster")
				return
			}
		}

		header := http.Header{}
		header.Set("Set-Cookie", cfg.Cookies.SetCookieHeader(cfg.Session.ClusterID(), cfg.CookieDomain, cfg.Development))

		// Upgrade writes its own error response on failure
		conn, err := upgrader.Upgrade(c.Writer, c.Request, header)
		if err != nil {
			logger.Warn("websocket_upgrade_failed", "error", err.Error())
			return
		}

		client := NewClient(conn, cfg.Hub, logger)
		cfg.Hub.Register(client)

		welcome, err := cfg.Session.ClientConnected(client.ID)
		if err != nil {
			logger.Error("welcome_encode_failed", "client_id", client.ID, "error", err.Error())
		} else if err := client.SendMessage(welcome); err != nil {
			logger.Warn("welcome_send_failed", "client_id", client.ID, "error", err.Error())
		}

		go client.WritePump()
		go func() {
			client.ReadPump(func(data []byte) error {
				msg, err := rpc.DecodeClient(data)
				if err != nil {
					return err
				}
				return cfg.Session.HandleClientMessage(client.ID, msg)
			})
			cfg.Session.ClientDisconnected(client.ID)
		}()
	}
}
