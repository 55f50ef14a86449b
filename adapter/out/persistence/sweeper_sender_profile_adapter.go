// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"sweeper_server/core/domain"
)

// SenderProfileAdapter implements domain.SenderProfileRepository using PostgreSQL.
type SenderProfileAdapter struct {
	db *sqlx.DB
}

// NewSenderProfileAdapter creates a new SenderProfileAdapter.
func NewSenderProfileAdapter(db *sqlx.DB) *SenderProfileAdapter {
	return &SenderProfileAdapter{db: db}
}

// senderProfileRow represents the database row for sender profiles.
type senderProfileRow struct {
	ID                int64        `db:"id"`
	OwnerID           uuid.UUID    `db:"owner_id"`
	Email             string       `db:"email"`
	Domain            string       `db:"domain"`
	Category          string       `db:"category"`
	IsProtected       bool         `db:"is_protected"`
	TotalSeen         int          `db:"total_seen"`
	OpenedCount       int          `db:"opened_count"`
	RepliedCount      int          `db:"replied_count"`
	ArchivedCount     int          `db:"archived_count"`
	DeletedCount      int          `db:"deleted_count"`
	SpamMarkedCount   int          `db:"spam_marked_count"`
	OpenRate          float64      `db:"open_rate"`
	ReplyRate         float64      `db:"reply_rate"`
	SpamScore         float64      `db:"spam_score"`
	ImportanceScore   float64      `db:"importance_score"`
	LastInteractionAt sql.NullTime `db:"last_interaction_at"`
	FirstSeenAt       time.Time    `db:"first_seen_at"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

func (r *senderProfileRow) toEntity() *domain.SenderProfile {
	profile := &domain.SenderProfile{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Email:           r.Email,
		Domain:          r.Domain,
		Category:        domain.SenderCategory(r.Category),
		IsProtected:     r.IsProtected,
		TotalSeen:       r.TotalSeen,
		OpenedCount:     r.OpenedCount,
		RepliedCount:    r.RepliedCount,
		ArchivedCount:   r.ArchivedCount,
		DeletedCount:    r.DeletedCount,
		SpamMarkedCount: r.SpamMarkedCount,
		OpenRate:        r.OpenRate,
		ReplyRate:       r.ReplyRate,
		SpamScore:       r.SpamScore,
		ImportanceScore: r.ImportanceScore,
		FirstSeenAt:     r.FirstSeenAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}

	if r.LastInteractionAt.Valid {
		profile.LastInteractionAt = &r.LastInteractionAt.Time
	}

	return profile
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// GetByEmail retrieves a sender profile by owner ID and email.
func (a *SenderProfileAdapter) GetByEmail(ctx context.Context, ownerID uuid.UUID, email string) (*domain.SenderProfile, error) {
	var row senderProfileRow
	query := `SELECT * FROM sender_profiles WHERE owner_id = $1 AND email = $2`

	if err := a.db.GetContext(ctx, &row, query, ownerID, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sender profile: %w", err)
	}

	return row.toEntity(), nil
}

// ListByOwner retrieves sender profiles for an owner, most seen first.
func (a *SenderProfileAdapter) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*domain.SenderProfile, error) {
	var rows []senderProfileRow
	query := `SELECT * FROM sender_profiles WHERE owner_id = $1 ORDER BY total_seen DESC LIMIT $2 OFFSET $3`

	if err := a.db.SelectContext(ctx, &rows, query, ownerID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list sender profiles: %w", err)
	}

	profiles := make([]*domain.SenderProfile, len(rows))
	for i, row := range rows {
		profiles[i] = row.toEntity()
	}

	return profiles, nil
}

// Create creates a new sender profile.
func (a *SenderProfileAdapter) Create(ctx context.Context, profile *domain.SenderProfile) error {
	query := `
		INSERT INTO sender_profiles (
			owner_id, email, domain, category, is_protected,
			total_seen, opened_count, replied_count, archived_count,
			deleted_count, spam_marked_count,
			open_rate, reply_rate, spam_score, importance_score,
			last_interaction_at, first_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`

	err := a.db.QueryRowContext(
		ctx,
		query,
		profile.OwnerID,
		profile.Email,
		profile.Domain,
		string(profile.Category),
		profile.IsProtected,
		profile.TotalSeen,
		profile.OpenedCount,
		profile.RepliedCount,
		profile.ArchivedCount,
		profile.DeletedCount,
		profile.SpamMarkedCount,
		profile.OpenRate,
		profile.ReplyRate,
		profile.SpamScore,
		profile.ImportanceScore,
		nullTime(profile.LastInteractionAt),
		profile.FirstSeenAt,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create sender profile: %w", err)
	}

	return nil
}

// Update updates a sender profile.
func (a *SenderProfileAdapter) Update(ctx context.Context, profile *domain.SenderProfile) error {
	query := `
		UPDATE sender_profiles
		SET category = $2, is_protected = $3,
		    total_seen = $4, opened_count = $5, replied_count = $6,
		    archived_count = $7, deleted_count = $8, spam_marked_count = $9,
		    open_rate = $10, reply_rate = $11, spam_score = $12,
		    importance_score = $13, last_interaction_at = $14,
		    updated_at = NOW()
		WHERE id = $1`

	result, err := a.db.ExecContext(
		ctx,
		query,
		profile.ID,
		string(profile.Category),
		profile.IsProtected,
		profile.TotalSeen,
		profile.OpenedCount,
		profile.RepliedCount,
		profile.ArchivedCount,
		profile.DeletedCount,
		profile.SpamMarkedCount,
		profile.OpenRate,
		profile.ReplyRate,
		profile.SpamScore,
		profile.ImportanceScore,
		nullTime(profile.LastInteractionAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update sender profile: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: sender profile %d", ErrNotFound, profile.ID)
	}

	return nil
}

// Upsert inserts or updates the profile keyed by (owner_id, email). The
// classifier calls this once per observed sender per pass, so it has to be
// a single round trip.
func (a *SenderProfileAdapter) Upsert(ctx context.Context, profile *domain.SenderProfile) error {
	query := `
		INSERT INTO sender_profiles (
			owner_id, email, domain, category, is_protected,
			total_seen, opened_count, replied_count, archived_count,
			deleted_count, spam_marked_count,
			open_rate, reply_rate, spam_score, importance_score,
			last_interaction_at, first_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (owner_id, email) DO UPDATE
		SET category = EXCLUDED.category,
		    is_protected = EXCLUDED.is_protected,
		    total_seen = EXCLUDED.total_seen,
		    opened_count = EXCLUDED.opened_count,
		    replied_count = EXCLUDED.replied_count,
		    archived_count = EXCLUDED.archived_count,
		    deleted_count = EXCLUDED.deleted_count,
		    spam_marked_count = EXCLUDED.spam_marked_count,
		    open_rate = EXCLUDED.open_rate,
		    reply_rate = EXCLUDED.reply_rate,
		    spam_score = EXCLUDED.spam_score,
		    importance_score = EXCLUDED.importance_score,
		    last_interaction_at = EXCLUDED.last_interaction_at,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := a.db.QueryRowContext(
		ctx,
		query,
		profile.OwnerID,
		profile.Email,
		profile.Domain,
		string(profile.Category),
		profile.IsProtected,
		profile.TotalSeen,
		profile.OpenedCount,
		profile.RepliedCount,
		profile.ArchivedCount,
		profile.DeletedCount,
		profile.SpamMarkedCount,
		profile.OpenRate,
		profile.ReplyRate,
		profile.SpamScore,
		profile.ImportanceScore,
		nullTime(profile.LastInteractionAt),
		profile.FirstSeenAt,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert sender profile: %w", err)
	}

	return nil
}

var _ domain.SenderProfileRepository = (*SenderProfileAdapter)(nil)
