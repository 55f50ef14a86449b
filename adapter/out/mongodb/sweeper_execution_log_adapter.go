package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sweeper_server/core/domain"
)

// =============================================================================
// MongoDB Execution Log Adapter
// =============================================================================

const (
	collectionExecutionLogs = "execution_logs"

	// Retention for execution history
	executionLogRetention = 180 * 24 * time.Hour
)

// ExecutionLogAdapter implements domain.ExecutionLogRepository using MongoDB.
// The collection is append-only; entries age out through a TTL index.
type ExecutionLogAdapter struct {
	collection *mongo.Collection
}

// NewExecutionLogAdapter creates a new MongoDB execution log adapter.
func NewExecutionLogAdapter(db *mongo.Database) *ExecutionLogAdapter {
	return &ExecutionLogAdapter{
		collection: db.Collection(collectionExecutionLogs),
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *ExecutionLogAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "rule_id", Value: 1},
				{Key: "executed_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "executed_at", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

// executionLogDocument represents the MongoDB document structure.
type executionLogDocument struct {
	ID             string    `bson:"id"`
	RuleID         int64     `bson:"rule_id"`
	OwnerID        string    `bson:"owner_id"`
	ExecutedAt     time.Time `bson:"executed_at"`
	ItemsProcessed int       `bson:"items_processed"`
	ActionTaken    string    `bson:"action_taken"`
	Status         string    `bson:"status"`
	ErrorMessage   string    `bson:"error_message,omitempty"`
	DurationMs     int64     `bson:"duration_ms"`
	ExpiresAt      time.Time `bson:"expires_at"`
}

func (a *ExecutionLogAdapter) toDocument(entry *domain.ExecutionLogEntry) *executionLogDocument {
	return &executionLogDocument{
		ID:             entry.ID,
		RuleID:         entry.RuleID,
		OwnerID:        entry.OwnerID.String(),
		ExecutedAt:     entry.ExecutedAt,
		ItemsProcessed: entry.ItemsProcessed,
		ActionTaken:    string(entry.ActionTaken),
		Status:         string(entry.Status),
		ErrorMessage:   entry.ErrorMessage,
		DurationMs:     entry.DurationMs,
		ExpiresAt:      entry.ExecutedAt.Add(executionLogRetention),
	}
}

func (d *executionLogDocument) toEntity() (*domain.ExecutionLogEntry, error) {
	ownerID, err := uuid.Parse(d.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id in execution log %s: %w", d.ID, err)
	}

	return &domain.ExecutionLogEntry{
		ID:             d.ID,
		RuleID:         d.RuleID,
		OwnerID:        ownerID,
		ExecutedAt:     d.ExecutedAt,
		ItemsProcessed: d.ItemsProcessed,
		ActionTaken:    domain.SweepAction(d.ActionTaken),
		Status:         domain.ExecutionStatus(d.Status),
		ErrorMessage:   d.ErrorMessage,
		DurationMs:     d.DurationMs,
	}, nil
}

// =============================================================================
// Operations
// =============================================================================

// Append writes one execution log entry. Entries are never updated.
func (a *ExecutionLogAdapter) Append(ctx context.Context, entry *domain.ExecutionLogEntry) error {
	_, err := a.collection.InsertOne(ctx, a.toDocument(entry))
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}
	return nil
}

// ListByRule retrieves recent entries for a rule, newest first.
func (a *ExecutionLogAdapter) ListByRule(ctx context.Context, ruleID int64, limit int) ([]*domain.ExecutionLogEntry, error) {
	return a.list(ctx, bson.M{"rule_id": ruleID}, limit)
}

// ListByOwner retrieves recent entries across all the owner's rules.
func (a *ExecutionLogAdapter) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.ExecutionLogEntry, error) {
	return a.list(ctx, bson.M{"owner_id": ownerID.String()}, limit)
}

func (a *ExecutionLogAdapter) list(ctx context.Context, filter bson.M, limit int) ([]*domain.ExecutionLogEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "executed_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*domain.ExecutionLogEntry
	for cursor.Next(ctx) {
		var doc executionLogDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode execution log: %w", err)
		}
		entry, err := doc.toEntity()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution logs: %w", err)
	}

	return entries, nil
}

// CountByRule returns how many entries exist for a rule.
func (a *ExecutionLogAdapter) CountByRule(ctx context.Context, ruleID int64) (int64, error) {
	count, err := a.collection.CountDocuments(ctx, bson.M{"rule_id": ruleID})
	if err != nil {
		return 0, fmt.Errorf("failed to count execution logs: %w", err)
	}
	return count, nil
}

var _ domain.ExecutionLogRepository = (*ExecutionLogAdapter)(nil)
