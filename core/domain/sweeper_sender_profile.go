package domain

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SenderCategory classifies a sender based on engagement history.
type SenderCategory string

const (
	SenderCategoryVIP        SenderCategory = "vip"
	SenderCategoryWork       SenderCategory = "work"
	SenderCategoryPersonal   SenderCategory = "personal"
	SenderCategoryNewsletter SenderCategory = "newsletter"
	SenderCategoryPromotion  SenderCategory = "promotion"
	SenderCategorySpam       SenderCategory = "spam"
	SenderCategoryUnknown    SenderCategory = "unknown"
)

// SenderProfile represents learned engagement history for one sender,
// keyed per (owner, sender address).
type SenderProfile struct {
	ID      int64     `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Email   string    `json:"email"`
	Domain  string    `json:"domain"`

	Category    SenderCategory `json:"category"`
	IsProtected bool           `json:"is_protected"` // manual override, forces VIP

	// Engagement counters
	TotalSeen       int `json:"total_seen"`
	OpenedCount     int `json:"opened_count"`
	RepliedCount    int `json:"replied_count"`
	ArchivedCount   int `json:"archived_count"`
	DeletedCount    int `json:"deleted_count"`
	SpamMarkedCount int `json:"spam_marked_count"`

	// Derived rates (0.0 - 1.0), recomputed from the counters
	OpenRate  float64 `json:"open_rate"`
	ReplyRate float64 `json:"reply_rate"`
	SpamScore float64 `json:"spam_score"`

	// Cached importance score (0.0 - 1.0); always derived, never set directly
	ImportanceScore float64 `json:"importance_score"`

	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
	FirstSeenAt       time.Time  `json:"first_seen_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewSenderProfile creates a profile lazily on first sighting of a sender.
func NewSenderProfile(ownerID uuid.UUID, email string, firstSeen time.Time) *SenderProfile {
	return &SenderProfile{
		OwnerID:     ownerID,
		Email:       strings.ToLower(email),
		Domain:      DomainOf(email),
		Category:    SenderCategoryUnknown,
		FirstSeenAt: firstSeen,
	}
}

// DomainOf extracts the domain part of an email address.
func DomainOf(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// SenderFeedback is an explicit user action on a message from this sender.
type SenderFeedback string

const (
	FeedbackOpened     SenderFeedback = "opened"
	FeedbackReplied    SenderFeedback = "replied"
	FeedbackArchived   SenderFeedback = "archived"
	FeedbackDeleted    SenderFeedback = "deleted"
	FeedbackSpamMarked SenderFeedback = "spam_marked"
)

// RecordFeedback applies explicit user feedback and recomputes derived fields.
func (p *SenderProfile) RecordFeedback(fb SenderFeedback, at time.Time) {
	switch fb {
	case FeedbackOpened:
		p.OpenedCount++
	case FeedbackReplied:
		p.RepliedCount++
	case FeedbackArchived:
		p.ArchivedCount++
	case FeedbackDeleted:
		p.DeletedCount++
	case FeedbackSpamMarked:
		p.SpamMarkedCount++
	}
	t := at
	p.LastInteractionAt = &t
	p.RecomputeImportance()
}

// RecordSighting registers one observed message from this sender.
func (p *SenderProfile) RecordSighting(replied bool, at time.Time) {
	p.TotalSeen++
	if replied {
		p.RepliedCount++
		t := at
		p.LastInteractionAt = &t
	}
	p.RecomputeImportance()
}

// MarkProtected applies the manual protected-sender override.
// Protection forces category VIP and pushes the importance score upward.
func (p *SenderProfile) MarkProtected() {
	p.IsProtected = true
	p.Category = SenderCategoryVIP
	p.RecomputeImportance()
}

// RecomputeImportance recalculates the derived rates and the importance
// score from the engagement counters.
//
// Weighting follows priority-inbox research: reply rate is the strongest
// signal, then open rate, then interaction recency. Spam markings pull the
// score down hard. A protected sender gets a fixed near-max score.
func (p *SenderProfile) RecomputeImportance() {
	if p.TotalSeen > 0 {
		p.OpenRate = float64(p.OpenedCount) / float64(p.TotalSeen)
		p.ReplyRate = float64(p.RepliedCount) / float64(p.TotalSeen)
		p.SpamScore = float64(p.SpamMarkedCount) / float64(p.TotalSeen)
	}

	if p.IsProtected {
		p.ImportanceScore = 0.98
		return
	}

	score := 0.0

	// Engagement (reply rate dominates)
	score += p.ReplyRate * 0.35
	score += p.OpenRate * 0.15

	// Category prior
	switch p.Category {
	case SenderCategoryVIP:
		score += 0.30
	case SenderCategoryPersonal, SenderCategoryWork:
		score += 0.15
	case SenderCategoryNewsletter, SenderCategoryPromotion:
		score -= 0.10
	case SenderCategorySpam:
		score -= 0.30
	}

	// Recency of interaction
	if p.LastInteractionAt != nil && !p.LastInteractionAt.IsZero() {
		days := time.Since(*p.LastInteractionAt).Hours() / 24
		switch {
		case days < 7:
			score += 0.20
		case days < 30:
			score += 0.10
		case days < 90:
			score += 0.05
		}
	}

	// Spam markings dominate downward
	score -= p.SpamScore * 0.40

	p.ImportanceScore = math.Min(math.Max(score, 0), 0.95)
}

// AppearsHuman reports whether the engagement history suggests a real
// person rather than an automated sender.
func (p *SenderProfile) AppearsHuman() bool {
	if p.Category == SenderCategoryPersonal || p.Category == SenderCategoryVIP {
		return true
	}
	return p.ReplyRate > 0
}

// SenderProfileRepository defines persistence for sender profiles.
type SenderProfileRepository interface {
	GetByEmail(ctx context.Context, ownerID uuid.UUID, email string) (*SenderProfile, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*SenderProfile, error)
	Create(ctx context.Context, profile *SenderProfile) error
	Update(ctx context.Context, profile *SenderProfile) error
	Upsert(ctx context.Context, profile *SenderProfile) error
}
