package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"sweeper_server/core/domain"
)

// ScheduleAdapter implements domain.ScheduleRepository using PostgreSQL.
type ScheduleAdapter struct {
	db *sqlx.DB
}

// NewScheduleAdapter creates a new ScheduleAdapter.
func NewScheduleAdapter(db *sqlx.DB) *ScheduleAdapter {
	return &ScheduleAdapter{db: db}
}

// scheduleRow represents the database row for schedule rules. The recurrence
// variant is stored as a JSONB column; everything the sweeper queries on has
// its own column.
type scheduleRow struct {
	ID                  int64          `db:"id"`
	OwnerID             uuid.UUID      `db:"owner_id"`
	Recurrence          []byte         `db:"recurrence"`
	ConfidenceThreshold string         `db:"confidence_threshold"`
	TargetAction        string         `db:"target_action"`
	CategoryFilter      pq.StringArray `db:"category_filter"`
	IsActive            bool           `db:"is_active"`
	LastRunAt           sql.NullTime   `db:"last_run_at"`
	NextRunAt           time.Time      `db:"next_run_at"`
	TotalRuns           int            `db:"total_runs"`
	TotalItemsProcessed int            `db:"total_items_processed"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r *scheduleRow) toEntity() (*domain.ScheduleRule, error) {
	rule := &domain.ScheduleRule{
		ID:                  r.ID,
		OwnerID:             r.OwnerID,
		ConfidenceThreshold: domain.ConfidenceThreshold(r.ConfidenceThreshold),
		TargetAction:        domain.SweepAction(r.TargetAction),
		CategoryFilter:      []string(r.CategoryFilter),
		IsActive:            r.IsActive,
		NextRunAt:           r.NextRunAt,
		TotalRuns:           r.TotalRuns,
		TotalItemsProcessed: r.TotalItemsProcessed,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}

	if err := json.Unmarshal(r.Recurrence, &rule.Recurrence); err != nil {
		return nil, fmt.Errorf("failed to decode recurrence for rule %d: %w", r.ID, err)
	}
	if r.LastRunAt.Valid {
		rule.LastRunAt = &r.LastRunAt.Time
	}

	return rule, nil
}

// GetByID retrieves a schedule rule by its ID.
func (a *ScheduleAdapter) GetByID(ctx context.Context, id int64) (*domain.ScheduleRule, error) {
	var row scheduleRow
	query := `SELECT * FROM schedule_rules WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: schedule rule %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get schedule rule: %w", err)
	}

	return row.toEntity()
}

// ListDue retrieves all active rules whose next run is at or before now.
func (a *ScheduleAdapter) ListDue(ctx context.Context, now time.Time) ([]*domain.ScheduleRule, error) {
	var rows []scheduleRow
	query := `SELECT * FROM schedule_rules WHERE is_active = TRUE AND next_run_at <= $1 ORDER BY next_run_at ASC`

	if err := a.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due schedule rules: %w", err)
	}

	return rowsToRules(rows)
}

// ListByOwner retrieves all schedule rules for an owner.
func (a *ScheduleAdapter) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.ScheduleRule, error) {
	var rows []scheduleRow
	query := `SELECT * FROM schedule_rules WHERE owner_id = $1 ORDER BY created_at ASC`

	if err := a.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list schedule rules: %w", err)
	}

	return rowsToRules(rows)
}

func rowsToRules(rows []scheduleRow) ([]*domain.ScheduleRule, error) {
	rules := make([]*domain.ScheduleRule, len(rows))
	for i, row := range rows {
		rule, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		rules[i] = rule
	}
	return rules, nil
}

// Create creates a new schedule rule.
func (a *ScheduleAdapter) Create(ctx context.Context, rule *domain.ScheduleRule) error {
	recurrence, err := json.Marshal(rule.Recurrence)
	if err != nil {
		return fmt.Errorf("failed to encode recurrence: %w", err)
	}

	query := `
		INSERT INTO schedule_rules (
			owner_id, recurrence, confidence_threshold, target_action,
			category_filter, is_active, next_run_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err = a.db.QueryRowContext(
		ctx,
		query,
		rule.OwnerID,
		recurrence,
		string(rule.ConfidenceThreshold),
		string(rule.TargetAction),
		pq.StringArray(rule.CategoryFilter),
		rule.IsActive,
		rule.NextRunAt,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create schedule rule: %w", err)
	}

	return nil
}

// Update updates a schedule rule's definition fields.
func (a *ScheduleAdapter) Update(ctx context.Context, rule *domain.ScheduleRule) error {
	recurrence, err := json.Marshal(rule.Recurrence)
	if err != nil {
		return fmt.Errorf("failed to encode recurrence: %w", err)
	}

	query := `
		UPDATE schedule_rules
		SET recurrence = $2, confidence_threshold = $3, target_action = $4,
		    category_filter = $5, is_active = $6, next_run_at = $7,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := a.db.ExecContext(
		ctx,
		query,
		rule.ID,
		recurrence,
		string(rule.ConfidenceThreshold),
		string(rule.TargetAction),
		pq.StringArray(rule.CategoryFilter),
		rule.IsActive,
		rule.NextRunAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule rule: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: schedule rule %d", ErrNotFound, rule.ID)
	}

	return nil
}

// RecordRun persists the post-run bookkeeping fields only. The rule
// definition columns are untouched so a concurrent user edit survives.
func (a *ScheduleAdapter) RecordRun(ctx context.Context, ruleID int64, lastRunAt, nextRunAt time.Time, itemsProcessed int) error {
	query := `
		UPDATE schedule_rules
		SET last_run_at = $2, next_run_at = $3,
		    total_runs = total_runs + 1,
		    total_items_processed = total_items_processed + $4,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := a.db.ExecContext(ctx, query, ruleID, lastRunAt, nextRunAt, itemsProcessed)
	if err != nil {
		return fmt.Errorf("failed to record schedule run: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: schedule rule %d", ErrNotFound, ruleID)
	}

	return nil
}

var _ domain.ScheduleRepository = (*ScheduleAdapter)(nil)
