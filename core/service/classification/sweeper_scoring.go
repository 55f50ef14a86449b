package classification

import (
	"sweeper_server/core/domain"
)

// Age thresholds in days.
const (
	minSafeAgeDays = 7  // younger than this always fails the safety gate
	oldAgeDays     = 30 // correlates with low importance
	veryOldAgeDays = 90 // delete-eligible territory for promotional mail
)

// neutralScore is the starting point before any factor fires. Scores run
// 0-100; higher means more disposable.
const neutralScore = 50.0

// scoringFactor is one named weighted predicate over message features.
// Positive weights push toward disposal, negative weights toward keeping.
type scoringFactor struct {
	factor  domain.ScoringFactor
	weight  float64
	applies func(*messageContext) bool
}

// scoringFactors is evaluated in order; every matching factor contributes
// its signed weight to the total.
var scoringFactors = []scoringFactor{
	{
		factor: domain.FactorUnsubscribeText,
		weight: +15,
		applies: func(mc *messageContext) bool {
			return mc.hasUnsubscribeText
		},
	},
	{
		factor: domain.FactorPromoKeyword,
		weight: +10,
		applies: func(mc *messageContext) bool {
			return mc.hasPromoKeyword
		},
	},
	{
		factor: domain.FactorSenderCategory,
		weight: +10,
		applies: func(mc *messageContext) bool {
			return mc.category == domain.SenderCategoryNewsletter ||
				mc.category == domain.SenderCategoryPromotion
		},
	},
	{
		factor: domain.FactorOldAge,
		weight: +15,
		applies: func(mc *messageContext) bool {
			return mc.ageDays >= oldAgeDays
		},
	},
	{
		factor: domain.FactorVeryOldAge,
		weight: +10,
		applies: func(mc *messageContext) bool {
			return mc.ageDays >= veryOldAgeDays
		},
	},
	{
		factor: domain.FactorUnread,
		weight: +5,
		applies: func(mc *messageContext) bool {
			return mc.msg.Unread
		},
	},
	{
		factor: domain.FactorImportantKeyword,
		weight: -40,
		applies: func(mc *messageContext) bool {
			return mc.hasImportanceKeyword
		},
	},
	{
		factor: domain.FactorHumanSender,
		weight: -25,
		applies: func(mc *messageContext) bool {
			return mc.humanSender
		},
	},
	{
		factor: domain.FactorRecent,
		weight: -20,
		applies: func(mc *messageContext) bool {
			return mc.ageDays < minSafeAgeDays
		},
	},
	{
		factor: domain.FactorReplied,
		weight: -30,
		applies: func(mc *messageContext) bool {
			return mc.msg.Replied
		},
	},
	{
		factor: domain.FactorVIPSender,
		weight: -50,
		applies: func(mc *messageContext) bool {
			if mc.profile == nil {
				return false
			}
			return mc.profile.IsProtected || mc.category == domain.SenderCategoryVIP
		},
	},
}

// scoreMessage runs the ordered factor list and returns the clamped total
// with the hits that produced it.
func scoreMessage(mc *messageContext) (float64, []domain.FactorHit) {
	score := neutralScore
	var hits []domain.FactorHit

	for _, f := range scoringFactors {
		if f.applies(mc) {
			score += f.weight
			hits = append(hits, domain.FactorHit{Factor: f.factor, Weight: f.weight})
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, hits
}

// actionForScore maps a score to the proposed action using the shared
// confidence cutoffs. The safety gate overrides this to keep.
func actionForScore(score float64) domain.RecommendedAction {
	switch {
	case score >= domain.CutoffVeryHigh:
		return domain.ActionDelete
	case score >= domain.CutoffMedium:
		return domain.ActionArchive
	default:
		return domain.ActionKeep
	}
}
