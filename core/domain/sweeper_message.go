package domain

import "time"

// MessageMetadata is the slice of a mailbox message this core consumes
// from the mail gateway. Bodies are never fetched; the snippet is enough
// for heuristic classification.
type MessageMetadata struct {
	ID      string    `json:"id"`
	Sender  string    `json:"sender"`
	Subject string    `json:"subject"`
	Snippet string    `json:"snippet"`
	Date    time.Time `json:"date"`
	Labels  []string  `json:"labels"`
	Replied bool      `json:"replied"`
	Unread  bool      `json:"unread"`
}

// SenderDomain returns the domain of the sender address.
func (m *MessageMetadata) SenderDomain() string {
	return DomainOf(m.Sender)
}

// AgeDays returns the message age in whole days relative to now.
func (m *MessageMetadata) AgeDays(now time.Time) int {
	if m.Date.IsZero() || m.Date.After(now) {
		return 0
	}
	return int(now.Sub(m.Date).Hours() / 24)
}
