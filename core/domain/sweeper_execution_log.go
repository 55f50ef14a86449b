package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the outcome of one sweep attempt for one rule.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionPartial ExecutionStatus = "partial"
)

// ExecutionLogEntry is the append-only audit record of one sweep attempt.
// Entries are immutable once written; the count of entries per rule equals
// the rule's TotalRuns.
type ExecutionLogEntry struct {
	ID             string          `json:"id"`
	RuleID         int64           `json:"rule_id"`
	OwnerID        uuid.UUID       `json:"owner_id"`
	ExecutedAt     time.Time       `json:"executed_at"`
	ItemsProcessed int             `json:"items_processed"`
	ActionTaken    SweepAction     `json:"action_taken"`
	Status         ExecutionStatus `json:"status"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
}

// ExecutionLogRepository is write-only from this core; the read methods
// serve the external reporting UI.
type ExecutionLogRepository interface {
	Append(ctx context.Context, entry *ExecutionLogEntry) error
	ListByRule(ctx context.Context, ruleID int64, limit int) ([]*ExecutionLogEntry, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*ExecutionLogEntry, error)
	CountByRule(ctx context.Context, ruleID int64) (int64, error)
}
