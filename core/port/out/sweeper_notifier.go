package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sweeper_server/core/domain"
)

// SweepReport is the outcome payload delivered to the owner after every
// sweep attempt, successful or not. Zero-item runs are reported too, so the
// user can tell "ran but found nothing" from "silently stopped".
type SweepReport struct {
	RuleID         int64                  `json:"rule_id"`
	ItemsProcessed int                    `json:"items_processed"`
	Action         domain.SweepAction     `json:"action"`
	DurationMs     int64                  `json:"duration_ms"`
	NextRunAt      time.Time              `json:"next_run_at"`
	Status         domain.ExecutionStatus `json:"status"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
}

// Notifier is the abstract capability for reporting sweep outcomes to the
// owning user. Failures are caught by the sweeper, logged, and never block
// the schedule's state transition.
type Notifier interface {
	Notify(ctx context.Context, ownerID uuid.UUID, report *SweepReport) error
}
