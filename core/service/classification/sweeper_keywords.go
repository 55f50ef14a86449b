// Package classification implements the rule-based message classification
// engine: per-message scoring, the safety gate, and suggestion grouping.
package classification

import "strings"

// importanceKeywords are subject/snippet tokens that correlate with
// messages a user must never lose. Any hit fails the safety gate.
var importanceKeywords = []string{
	"invoice",
	"payment",
	"urgent",
	"asap",
	"legal",
	"lawsuit",
	"contract",
	"security",
	"password",
	"verify",
	"verification",
	"meeting",
	"interview",
	"deadline",
	"tax",
	"salary",
	"refund",
	"appointment",
}

// promoKeywords are tokens that correlate with marketing mail.
var promoKeywords = []string{
	"sale",
	"discount",
	"% off",
	"deal",
	"coupon",
	"promo",
	"limited time",
	"buy now",
	"free shipping",
	"clearance",
	"exclusive offer",
	"last chance",
	"new arrivals",
	"shop now",
	"save today",
}

// unsubscribePhrases mark bulk mail carrying list-management boilerplate.
var unsubscribePhrases = []string{
	"unsubscribe",
	"opt out",
	"opt-out",
	"manage preferences",
	"email preferences",
	"stop receiving",
}

// automatedLocalParts are sender local-part fragments that identify
// machine senders: no-reply variants, ESP mailers, and bulk aliases.
var automatedLocalParts = []string{
	"noreply",
	"no-reply",
	"no_reply",
	"donotreply",
	"do-not-reply",
	"mailer-daemon",
	"notification",
	"notifications",
	"newsletter",
	"news",
	"updates",
	"update",
	"promo",
	"promotions",
	"offers",
	"deals",
	"marketing",
	"digest",
	"alert",
	"alerts",
	"info",
	"hello",
	"support",
	"sales",
	"mailer",
	"automated",
	"bot",
}

// ContainsImportanceKeyword reports whether subject or snippet mentions an
// importance keyword.
func ContainsImportanceKeyword(subject, snippet string) bool {
	return containsAny(strings.ToLower(subject), importanceKeywords) ||
		containsAny(strings.ToLower(snippet), importanceKeywords)
}

// ContainsPromoKeyword reports whether subject or snippet reads like
// marketing copy.
func ContainsPromoKeyword(subject, snippet string) bool {
	return containsAny(strings.ToLower(subject), promoKeywords) ||
		containsAny(strings.ToLower(snippet), promoKeywords)
}

// ContainsUnsubscribeText reports whether the snippet carries list
// boilerplate.
func ContainsUnsubscribeText(subject, snippet string) bool {
	return containsAny(strings.ToLower(snippet), unsubscribePhrases) ||
		containsAny(strings.ToLower(subject), unsubscribePhrases)
}

// LooksAutomated reports whether a sender address looks like a machine
// rather than a person, judged by its local part.
func LooksAutomated(sender string) bool {
	addr := strings.ToLower(sender)
	local := addr
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		local = addr[:at]
	}
	for _, frag := range automatedLocalParts {
		if strings.Contains(local, frag) {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
