package classification

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"sweeper_server/core/domain"
	"sweeper_server/pkg/logger"
)

// Engine scores individual messages and forms safety-gated suggestion
// groups. Classification also feeds the sender analytics: every observed
// message updates the sender's profile whether or not any action is taken.
type Engine struct {
	profiles domain.SenderProfileRepository
	now      func() time.Time
}

// NewEngine creates a classification engine backed by the given sender
// profile store.
func NewEngine(profiles domain.SenderProfileRepository) *Engine {
	return &Engine{
		profiles: profiles,
		now:      time.Now,
	}
}

// SetClock overrides the engine clock (for testing).
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// messageContext carries the per-message features the factor predicates and
// the safety gate evaluate.
type messageContext struct {
	msg      *domain.MessageMetadata
	profile  *domain.SenderProfile
	category domain.SenderCategory
	ageDays  int

	hasUnsubscribeText   bool
	hasPromoKeyword      bool
	hasImportanceKeyword bool
	humanSender          bool
}

// Classify produces one Recommendation per message. Sender profiles are
// updated as a byproduct of observation; a profile store failure is logged
// and never fails the classification pass.
func (e *Engine) Classify(ctx context.Context, ownerID uuid.UUID, messages []domain.MessageMetadata) ([]domain.Recommendation, error) {
	now := e.now()
	recs := make([]domain.Recommendation, 0, len(messages))

	for i := range messages {
		msg := &messages[i]
		mc, err := e.buildContext(ctx, ownerID, msg, now)
		if err != nil {
			return nil, fmt.Errorf("build context for message %s: %w", msg.ID, err)
		}

		safety := evaluateSafety(mc)
		score, hits := scoreMessage(mc)

		action := domain.ActionKeep
		if safety.IsSafe {
			action = actionForScore(score)
		}

		recs = append(recs, domain.Recommendation{
			ItemID:       msg.ID,
			Sender:       msg.Sender,
			SenderDomain: msg.SenderDomain(),
			Subject:      msg.Subject,
			AgeDays:      mc.ageDays,
			Category:     mc.category,
			Unread:       msg.Unread,
			Score:        score,
			Confidence:   domain.ScoreToBucket(score),
			Action:       action,
			Factors:      hits,
			Safety:       safety,
		})

		e.observeSender(ctx, mc, now)
	}

	return recs, nil
}

// buildContext loads the sender profile (creating none yet; creation
// happens in observeSender) and precomputes the message features.
func (e *Engine) buildContext(ctx context.Context, ownerID uuid.UUID, msg *domain.MessageMetadata, now time.Time) (*messageContext, error) {
	var profile *domain.SenderProfile
	if e.profiles != nil {
		p, err := e.profiles.GetByEmail(ctx, ownerID, msg.Sender)
		if err != nil {
			return nil, fmt.Errorf("load sender profile: %w", err)
		}
		profile = p
	}
	if profile == nil {
		profile = domain.NewSenderProfile(ownerID, msg.Sender, msg.Date)
	}

	mc := &messageContext{
		msg:                  msg,
		profile:              profile,
		ageDays:              msg.AgeDays(now),
		hasUnsubscribeText:   ContainsUnsubscribeText(msg.Subject, msg.Snippet),
		hasPromoKeyword:      ContainsPromoKeyword(msg.Subject, msg.Snippet),
		hasImportanceKeyword: ContainsImportanceKeyword(msg.Subject, msg.Snippet),
	}

	mc.category = profile.Category
	if mc.category == domain.SenderCategoryUnknown {
		mc.category = e.inferCategory(mc)
	}

	// A sender counts as human when the address is not machine-shaped and
	// the mail carries no list boilerplate, or when history says the owner
	// actually engages with them.
	automated := LooksAutomated(msg.Sender) || mc.hasUnsubscribeText
	mc.humanSender = !automated || profile.AppearsHuman()

	return mc, nil
}

// inferCategory guesses a category for a sender with no learned one yet.
func (e *Engine) inferCategory(mc *messageContext) domain.SenderCategory {
	switch {
	case mc.hasPromoKeyword:
		return domain.SenderCategoryPromotion
	case mc.hasUnsubscribeText:
		return domain.SenderCategoryNewsletter
	default:
		return domain.SenderCategoryUnknown
	}
}

// observeSender records the sighting in the sender profile and persists the
// learned category for senders seen the first time.
func (e *Engine) observeSender(ctx context.Context, mc *messageContext, now time.Time) {
	if e.profiles == nil {
		return
	}

	profile := mc.profile
	if profile.Category == domain.SenderCategoryUnknown && mc.category != domain.SenderCategoryUnknown {
		profile.Category = mc.category
	}
	profile.RecordSighting(mc.msg.Replied, now)

	if err := e.profiles.Upsert(ctx, profile); err != nil {
		logger.Warn("[ClassificationEngine] Failed to update sender profile for %s: %v", profile.Email, err)
	}
}

// =============================================================================
// Grouping
// =============================================================================

// BuildGroups buckets recommendations by (senderDomain, category) and
// derives each group's collective confidence and suggested actions. Groups
// are sorted VERY_HIGH first, then by average score.
func (e *Engine) BuildGroups(recs []domain.Recommendation) []domain.SuggestionGroup {
	buckets := make(map[domain.GroupKey][]domain.Recommendation)
	var order []domain.GroupKey
	for _, rec := range recs {
		key := domain.GroupKey{SenderDomain: rec.SenderDomain, Category: rec.Category}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], rec)
	}

	groups := make([]domain.SuggestionGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, buildGroup(key, buckets[key]))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Confidence != groups[j].Confidence {
			return groups[i].Confidence.AtLeast(groups[j].Confidence)
		}
		return groups[i].AverageScore > groups[j].AverageScore
	})

	return groups
}

func buildGroup(key domain.GroupKey, members []domain.Recommendation) domain.SuggestionGroup {
	var sum float64
	unsafeCount := 0
	allVeryOld := true
	allUnread := true
	allUnsubscribable := true

	for _, m := range members {
		sum += m.Score
		if !m.Safety.IsSafe {
			unsafeCount++
		}
		if m.AgeDays < veryOldAgeDays {
			allVeryOld = false
		}
		if !m.Unread {
			allUnread = false
		}
		if !hasFactor(m.Factors, domain.FactorUnsubscribeText) {
			allUnsubscribable = false
		}
	}
	avg := sum / float64(len(members))

	confidence := domain.ScoreToBucket(avg)
	// VERY_HIGH is reserved for groups that are both uniformly very old and
	// unopened on top of the numeric cutoff. It never applies when any
	// member is unsafe.
	if confidence == domain.ConfidenceVeryHigh {
		if unsafeCount > 0 || !allVeryOld || !allUnread {
			confidence = domain.ConfidenceHigh
		}
	}

	group := domain.SuggestionGroup{
		Key:          key,
		Members:      members,
		AverageScore: avg,
		Confidence:   confidence,
		Safety:       domain.GroupSafety{IsSafe: unsafeCount == 0, UnsafeCount: unsafeCount},
	}

	// A single unsafe member invalidates the whole group's action; the
	// group stays visible with its unsafe count.
	if len(members) < domain.MinGroupSize || unsafeCount > 0 {
		group.SuggestedActions = []domain.RecommendedAction{}
		return group
	}

	var actions []domain.RecommendedAction
	if avg >= domain.CutoffMedium {
		actions = append(actions, domain.ActionArchive)
	}
	if confidence == domain.ConfidenceVeryHigh {
		actions = append(actions, domain.ActionDelete)
	}
	if allUnsubscribable && avg >= domain.CutoffMedium {
		actions = append(actions, domain.ActionUnsubscribe)
	}
	if actions == nil {
		actions = []domain.RecommendedAction{}
	}
	group.SuggestedActions = actions

	return group
}

func hasFactor(hits []domain.FactorHit, factor domain.ScoringFactor) bool {
	for _, h := range hits {
		if h.Factor == factor {
			return true
		}
	}
	return false
}
