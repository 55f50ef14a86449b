package domain

import "fmt"

// =============================================================================
// Confidence
// =============================================================================

// ConfidenceBucket is derived from a numeric score via fixed cutoffs.
// One mapping is shared by the interactive grouping view and the unattended
// automation path.
type ConfidenceBucket string

const (
	ConfidenceLow      ConfidenceBucket = "LOW"
	ConfidenceMedium   ConfidenceBucket = "MEDIUM"
	ConfidenceHigh     ConfidenceBucket = "HIGH"
	ConfidenceVeryHigh ConfidenceBucket = "VERY_HIGH"
)

// Score cutoffs. Scores run 0-100; higher means more disposable.
const (
	CutoffMedium   = 60.0
	CutoffHigh     = 80.0
	CutoffVeryHigh = 95.0
)

// ScoreToBucket maps a disposability score to its confidence bucket.
func ScoreToBucket(score float64) ConfidenceBucket {
	switch {
	case score >= CutoffVeryHigh:
		return ConfidenceVeryHigh
	case score >= CutoffHigh:
		return ConfidenceHigh
	case score >= CutoffMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// AtLeast reports whether b is at or above min.
func (b ConfidenceBucket) AtLeast(min ConfidenceBucket) bool {
	return b.rank() >= min.rank()
}

func (b ConfidenceBucket) rank() int {
	switch b {
	case ConfidenceVeryHigh:
		return 3
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// =============================================================================
// Safety
// =============================================================================

// SafetyCheckTag identifies which never-block predicate a message failed.
// Human-readable text is generated from the tag, never stored as free text.
type SafetyCheckTag string

const (
	SafetyReplied           SafetyCheckTag = "replied"
	SafetyHumanSender       SafetyCheckTag = "human_sender"
	SafetyImportanceKeyword SafetyCheckTag = "importance_keyword"
	SafetyTooRecent         SafetyCheckTag = "too_recent"
	SafetyProtectedSender   SafetyCheckTag = "protected_sender"
)

// Describe renders the tag as user-facing text.
func (t SafetyCheckTag) Describe() string {
	switch t {
	case SafetyReplied:
		return "you replied to this message"
	case SafetyHumanSender:
		return "the sender looks like a real person"
	case SafetyImportanceKeyword:
		return "the message mentions something important"
	case SafetyTooRecent:
		return "the message arrived less than a week ago"
	case SafetyProtectedSender:
		return "the sender is on your protected list"
	default:
		return string(t)
	}
}

// SafetyResult is the outcome of the safety gate for one message.
type SafetyResult struct {
	IsSafe      bool           `json:"is_safe"`
	FailedCheck SafetyCheckTag `json:"failed_check,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// Unsafe builds a failed result for the given check.
func Unsafe(tag SafetyCheckTag) SafetyResult {
	return SafetyResult{IsSafe: false, FailedCheck: tag, Reason: tag.Describe()}
}

// Safe is the passing result.
func Safe() SafetyResult {
	return SafetyResult{IsSafe: true}
}

// =============================================================================
// Scoring factors
// =============================================================================

// ScoringFactor identifies one weighted predicate that contributed to a
// message's score.
type ScoringFactor string

const (
	FactorUnsubscribeText  ScoringFactor = "unsubscribe_text"
	FactorPromoKeyword     ScoringFactor = "promo_keyword"
	FactorSenderCategory   ScoringFactor = "sender_category"
	FactorOldAge           ScoringFactor = "old_age"
	FactorVeryOldAge       ScoringFactor = "very_old_age"
	FactorUnread           ScoringFactor = "unread"
	FactorImportantKeyword ScoringFactor = "important_keyword"
	FactorHumanSender      ScoringFactor = "human_sender"
	FactorRecent           ScoringFactor = "recent"
	FactorReplied          ScoringFactor = "replied"
	FactorVIPSender        ScoringFactor = "vip_sender"
)

// FactorHit records one factor firing with its signed weight.
type FactorHit struct {
	Factor ScoringFactor `json:"factor"`
	Weight float64       `json:"weight"`
}

// =============================================================================
// Recommendation
// =============================================================================

// RecommendedAction is what the classifier proposes for a single message.
type RecommendedAction string

const (
	ActionKeep        RecommendedAction = "keep"
	ActionArchive     RecommendedAction = "archive"
	ActionDelete      RecommendedAction = "delete"
	ActionMarkSpam    RecommendedAction = "mark_spam"
	ActionUnsubscribe RecommendedAction = "unsubscribe"
)

// Recommendation is the ephemeral per-message classification result. It is
// never persisted unless acted on, in which case the acted count lands in
// the execution log.
type Recommendation struct {
	ItemID       string            `json:"item_id"`
	Sender       string            `json:"sender"`
	SenderDomain string            `json:"sender_domain"`
	Subject      string            `json:"subject"`
	AgeDays      int               `json:"age_days"`
	Category     SenderCategory    `json:"category"`
	Unread       bool              `json:"unread"`
	Score        float64           `json:"score"`
	Confidence   ConfidenceBucket  `json:"confidence"`
	Action       RecommendedAction `json:"action"`
	Factors      []FactorHit       `json:"factors,omitempty"`
	Safety       SafetyResult      `json:"safety"`
}

// =============================================================================
// Suggestion Group
// =============================================================================

// GroupKey buckets recommendations by (sender domain, category).
type GroupKey struct {
	SenderDomain string         `json:"sender_domain"`
	Category     SenderCategory `json:"category"`
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s", k.SenderDomain, k.Category)
}

// GroupSafety summarizes the safety gate across a group's members.
type GroupSafety struct {
	IsSafe      bool `json:"is_safe"`
	UnsafeCount int  `json:"unsafe_count"`
}

// SuggestionGroup is a batch of messages from the same sender domain and
// category proposed for one collective action. A group carries actions only
// if it has at least MinGroupSize members and every member passed the
// safety gate; a single unsafe member empties SuggestedActions while the
// group stays visible with its unsafe count.
type SuggestionGroup struct {
	Key              GroupKey            `json:"key"`
	Members          []Recommendation    `json:"members"`
	AverageScore     float64             `json:"average_score"`
	Confidence       ConfidenceBucket    `json:"confidence"`
	SuggestedActions []RecommendedAction `json:"suggested_actions"`
	Safety           GroupSafety         `json:"safety"`
}

// MinGroupSize is the minimum member count for a group to be actionable.
const MinGroupSize = 3
