package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"raftlab/internal/rpc"
)

// stateTTL lets abandoned clusters expire
const stateTTL = 7 * 24 * time.Hour

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL (redis:// or rediss://) and pings it
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Load(ctx context.Context, clusterID string, nodeID rpc.NodeID) (*State, error) {
	fields, err := r.client.HGetAll(ctx, stateKey(clusterID, nodeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load node state: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	state := &State{
		ClusterID: clusterID,
		NodeID:    nodeID,
		VotedFor:  rpc.NodeID(fields["voted_for"]),
		Status:    rpc.Status(fields["status"]),
	}
	if term, ok := fields["term"]; ok {
		state.Term, err = strconv.ParseUint(term, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid term in redis for %s: %w", stateKey(clusterID, nodeID), err)
		}
	}
	if ts, ok := fields["updated_at"]; ok {
		state.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return state, nil
}

func (r *RedisStore) Save(ctx context.Context, state *State) error {
	key := stateKey(state.ClusterID, state.NodeID)
	fields := map[string]any{
		"term":       state.Term,
		"voted_for":  string(state.VotedFor),
		"status":     string(state.Status),
		"updated_at": time.Now().Format(time.RFC3339Nano),
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, stateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save node state: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
