package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"raftlab/database"
	"raftlab/internal/logging"
	"raftlab/internal/rpc"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_CopiesState(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	state := &State{ClusterID: "c", NodeID: rpc.US1, Term: 1, Status: rpc.StatusFollower}
	require.NoError(t, s.Save(ctx, state))
	state.Term = 99

	loaded, err := s.Load(ctx, "c", rpc.US1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), loaded.Term)
}

// runStoreContract is shared by every backend
func runStoreContract(t *testing.T, s StateStore) {
	t.Helper()
	ctx := context.Background()
	clusterID := "contract-" + time.Now().Format("150405.000000000")

	_, err := s.Load(ctx, clusterID, rpc.EU1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, &State{
		ClusterID: clusterID,
		NodeID:    rpc.EU1,
		Term:      3,
		VotedFor:  rpc.AP1,
		Status:    rpc.StatusCandidate,
	}))
	require.NoError(t, s.Save(ctx, &State{
		ClusterID: clusterID,
		NodeID:    rpc.EU1,
		Term:      4,
		Status:    rpc.StatusLeader,
	}))

	loaded, err := s.Load(ctx, clusterID, rpc.EU1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), loaded.Term)
	assert.Equal(t, rpc.NodeID(""), loaded.VotedFor)
	assert.Equal(t, rpc.StatusLeader, loaded.Status)
	assert.False(t, loaded.UpdatedAt.IsZero())

	_, err = s.Load(ctx, clusterID, rpc.US1)
	assert.ErrorIs(t, err, ErrNotFound)
}

// RedisStoreTestSuite runs against a live Redis, skipped when none is reachable
type RedisStoreTestSuite struct {
	suite.Suite
	client *redis.Client
}

func (s *RedisStoreTestSuite) SetupSuite() {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	s.client = redis.NewClient(&redis.Options{Addr: addr, DB: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.T().Skip("Redis not available, skipping integration tests")
	}
}

func (s *RedisStoreTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.FlushDB(context.Background())
	}
}

func (s *RedisStoreTestSuite) TestContract() {
	runStoreContract(s.T(), NewRedisStoreFromClient(s.client))
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration tests")
	}

	db, err := database.Connect(dsn, logging.New(os.Stderr, "text", "warn"))
	require.NoError(t, err)

	s, err := NewPostgresStore(db)
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
}
