package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"raftlab/database"
	"raftlab/internal/auth"
	"raftlab/internal/config"
	"raftlab/internal/microservices/http-api/handler"
	"raftlab/internal/microservices/http-api/middleware"
	"raftlab/internal/microservices/websocket"
	"raftlab/internal/node"
	"raftlab/internal/rpc"
	"raftlab/internal/store"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a cluster member",
		Long: `Run one member of the us1/eu1/ap1 cluster. The member gossips with its
peers over PUT /gossip, elects a leader, and pushes status changes to UI
clients connected on /ws/<nodeId>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateNode(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg, a.logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	nodeID, err := rpc.ParseNodeID(cfg.NodeID)
	if err != nil {
		return fmt.Errorf("NODE_ID: %w", err)
	}
	peers, err := node.ParsePeers(cfg.NodePeers)
	if err != nil {
		return fmt.Errorf("NODE_PEERS: %w", err)
	}
	clusterID := cfg.ClusterID
	if clusterID == "" {
		clusterID = uuid.NewString()
	}

	stateStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stateStore.Close()

	tokens := auth.NewNodeTokens(cfg.NodeSecret, 0)
	transport := node.NewHTTPTransport(nodeID, peers, tokens, &http.Client{
		Timeout: node.DefaultTiming.RPCTimeout,
	})
	for _, id := range rpc.NodeIDs {
		if _, ok := peers[id]; !ok && id != nodeID {
			logger.Warn("peer_address_missing", "peer_id", string(id))
		}
	}

	hub := websocket.NewHub(logger)
	member, err := node.New(ctx, node.Config{
		ID:        nodeID,
		ClusterID: clusterID,
		Transport: transport,
		Store:     stateStore,
		Notifier:  hub,
		Timing:    node.DefaultTiming,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer member.Close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger))
	handler.NewNodeHandler(member, logger).RegisterRoutes(router, tokens)
	router.GET("/ws/:nodeId", websocket.WSHandler(websocket.HandlerConfig{
		Hub:          hub,
		Session:      member,
		Cookies:      auth.NewCookieSigner(cfg.CookieSecret),
		CookieDomain: cfg.CookieDomain,
		Development:  cfg.IsDevelopment(),
		Logger:       logger,
	}))

	srv := &http.Server{
		Addr:              cfg.NodeAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("node_server_listening",
			"addr", cfg.NodeAddr,
			"node_id", string(nodeID),
			"cluster_id", clusterID,
			"state_backend", cfg.StateBackend,
		)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("node server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("received_shutdown_signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("node_server_shutdown_incomplete", "error", err.Error())
	}
	logger.Info("node_server_stopped_gracefully")
	return nil
}

// openStore picks the state backend named by STATE_BACKEND
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.StateStore, error) {
	switch cfg.StateBackend {
	case "redis":
		s, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("state_store_ready", "backend", "redis")
		return s, nil
	case "postgres":
		db, err := database.Connect(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		s, err := store.NewPostgresStore(db)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return nil, err
		}
		logger.Info("state_store_ready", "backend", "postgres")
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}
