package classification

import (
	"sweeper_server/core/domain"
)

// The safety gate is a logical AND of never-block predicates, evaluated
// unconditionally before any score is consulted. A failed check forces the
// message out of every proposed action; no score can compensate.

// safetyCheck is one never-block predicate with its tag.
type safetyCheck struct {
	tag     domain.SafetyCheckTag
	blocked func(*messageContext) bool
}

// safetyChecks is the full gate. Order is presentation only; the gate's
// result does not depend on it.
var safetyChecks = []safetyCheck{
	{
		tag: domain.SafetyReplied,
		blocked: func(mc *messageContext) bool {
			return mc.msg.Replied
		},
	},
	{
		tag: domain.SafetyProtectedSender,
		blocked: func(mc *messageContext) bool {
			return mc.profile != nil && mc.profile.IsProtected
		},
	},
	{
		tag: domain.SafetyHumanSender,
		blocked: func(mc *messageContext) bool {
			return mc.humanSender
		},
	},
	{
		tag: domain.SafetyImportanceKeyword,
		blocked: func(mc *messageContext) bool {
			return mc.hasImportanceKeyword
		},
	},
	{
		tag: domain.SafetyTooRecent,
		blocked: func(mc *messageContext) bool {
			return mc.ageDays < minSafeAgeDays
		},
	},
}

// evaluateSafety runs the full gate and returns the first failed check.
func evaluateSafety(mc *messageContext) domain.SafetyResult {
	for _, check := range safetyChecks {
		if check.blocked(mc) {
			return domain.Unsafe(check.tag)
		}
	}
	return domain.Safe()
}
