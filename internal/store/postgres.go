package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"raftlab/internal/rpc"
)

// NodeStateRecord is the node_states row
type NodeStateRecord struct {
	ClusterID string    `gorm:"type:text;primaryKey" json:"cluster_id"`
	NodeID    string    `gorm:"type:text;primaryKey" json:"node_id"`
	Term      uint64    `gorm:"not null;default:0" json:"term"`
	VotedFor  string    `gorm:"type:text" json:"voted_for"`
	Status    string    `gorm:"type:text;not null" json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name used by NodeStateRecord to `node_states`
func (NodeStateRecord) TableName() string {
	return "node_states"
}

type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore migrates the node_states table and returns the store
func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&NodeStateRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate node_states: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Load(ctx context.Context, clusterID string, nodeID rpc.NodeID) (*State, error) {
	var record NodeStateRecord
	err := p.db.WithContext(ctx).
		Where("cluster_id = ? AND node_id = ?", clusterID, string(nodeID)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load node state: %w", err)
	}

	return &State{
		ClusterID: record.ClusterID,
		NodeID:    rpc.NodeID(record.NodeID),
		Term:      record.Term,
		VotedFor:  rpc.NodeID(record.VotedFor),
		Status:    rpc.Status(record.Status),
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// Save upserts on (cluster_id, node_id)
func (p *PostgresStore) Save(ctx context.Context, state *State) error {
	record := NodeStateRecord{
		ClusterID: state.ClusterID,
		NodeID:    string(state.NodeID),
		Term:      state.Term,
		VotedFor:  string(state.VotedFor),
		Status:    string(state.Status),
		UpdatedAt: time.Now(),
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cluster_id"}, {Name: "node_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"term", "voted_for", "status", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("save node state: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
