package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"raftlab/internal/microservices/http-api/middleware"
	"raftlab/internal/node"
	"raftlab/internal/rpc"
)

const maxGossipBody = 64 * 1024

// NodeService is the part of a cluster node exposed over HTTP
type NodeService interface {
	Gossip(ctx context.Context, msg rpc.NodeMessage) (rpc.NodeMessage, error)
	Snapshot() node.Snapshot
}

type NodeHandler struct {
	svc    NodeService
	logger *slog.Logger
}

func NewNodeHandler(svc NodeService, logger *slog.Logger) *NodeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeHandler{svc: svc, logger: logger}
}

func (h *NodeHandler) RegisterRoutes(r gin.IRouter, tokens middleware.TokenValidator) {
	r.GET("/healthz", h.Health)
	r.PUT(node.GossipPath, middleware.NodeAuthMiddleware(tokens), h.Gossip)
}

func (h *NodeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

// Gossip answers a peer message with the node's msgpack reply
func (h *NodeHandler) Gossip(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxGossipBody))
	if err != nil {
		c.String(http.StatusBadRequest, "could not read body")
		return
	}

	msg, err := rpc.DecodeNode(body)
	if err != nil {
		c.String(http.StatusBadRequest, "%s", err.Error())
		return
	}

	reply, err := h.svc.Gossip(c.Request.Context(), msg)
	if err != nil {
		status := gossipStatus(err)
		if status == http.StatusInternalServerError {
			peerID, _ := c.Get(middleware.PeerIDKey)
			h.logger.Error("gossip_failed", "peer_id", peerID, "error", err.Error())
		}
		c.String(status, "%s", err.Error())
		return
	}

	data, err := rpc.Encode(reply)
	if err != nil {
		h.logger.Error("gossip_reply_encode_failed", "error", err.Error())
		c.String(http.StatusInternalServerError, "could not encode reply")
		return
	}
	c.Data(http.StatusOK, rpc.ContentType, data)
}

func gossipStatus(err error) int {
	switch {
	case errors.Is(err, node.ErrOffline):
		return http.StatusServiceUnavailable
	case errors.Is(err, node.ErrStaleTerm), errors.Is(err, node.ErrInvalidAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
