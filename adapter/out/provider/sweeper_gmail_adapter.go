// Package provider implements mail gateway adapters.
package provider

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"sweeper_server/core/domain"
	"sweeper_server/core/port/out"
	"sweeper_server/pkg/logger"
)

// gmailMetadataHeaders are the only headers requested per message. Metadata
// format keeps the response small; the classifier never needs the body.
var gmailMetadataHeaders = []string{
	"From", "Subject", "Date",
	"List-Unsubscribe", // RFC 2369
	"List-Id",          // RFC 2919
	"Precedence",
	"Auto-Submitted", // RFC 3834
}

// =============================================================================
// Gmail Adapter
// =============================================================================

// GmailAdapter implements out.MailGateway against the Gmail API.
type GmailAdapter struct {
	config *oauth2.Config
	cb     *gobreaker.CircuitBreaker
}

// GmailConfig holds Gmail OAuth client configuration.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewGmailAdapter creates a new Gmail adapter.
func NewGmailAdapter(cfg *GmailConfig) *GmailAdapter {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			gmail.GmailReadonlyScope,
			gmail.GmailModifyScope,
		},
		Endpoint: google.Endpoint,
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &GmailAdapter{
		config: config,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// =============================================================================
// MailGateway
// =============================================================================

// RefreshCredential exchanges the refresh token for a new access token when
// the stored one has expired. A refresh failure means the grant itself is
// revoked or expired, which only re-authentication can repair.
func (a *GmailAdapter) RefreshCredential(ctx context.Context, cred *oauth2.Token) (*oauth2.Token, bool, error) {
	if cred.Valid() {
		return cred, false, nil
	}

	fresh, err := a.config.TokenSource(ctx, cred).Token()
	if err != nil {
		return nil, false, out.NewGatewayError("gmail", out.GatewayErrAuthExpired, "token refresh failed", err, false)
	}
	// Google omits the refresh token from refresh responses; carry the
	// original forward so the stored chain stays complete.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}
	return fresh, fresh.AccessToken != cred.AccessToken, nil
}

// ListRecent returns metadata for up to maxCount recent inbox messages. A
// message counts as replied when the user has a sent message in its thread.
func (a *GmailAdapter) ListRecent(ctx context.Context, cred *oauth2.Token, maxCount int) ([]domain.MessageMetadata, error) {
	svc, err := a.getService(ctx, cred)
	if err != nil {
		return nil, a.wrapError(err, "failed to create gmail service")
	}

	var resp *gmail.ListMessagesResponse
	cbErr := a.executeWithCircuitBreaker(func() error {
		var listErr error
		resp, listErr = svc.Users.Messages.List("me").
			LabelIds("INBOX").
			MaxResults(int64(maxCount)).
			Context(ctx).Do()
		return listErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to list inbox messages")
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}

	repliedThreads, err := a.listRepliedThreads(ctx, svc)
	if err != nil {
		// Reply detection is safety input: it only ever prevents action,
		// so a lookup failure must not silently weaken the gate.
		return nil, err
	}

	messages := a.fetchMetadataParallel(ctx, svc, resp.Messages, repliedThreads)
	return messages, nil
}

// Mutate applies one mutation to all message IDs. Label changes use the
// batch endpoint; trash has no batch variant and is applied per message.
func (a *GmailAdapter) Mutate(ctx context.Context, cred *oauth2.Token, messageIDs []string, mutation out.Mutation) error {
	if len(messageIDs) == 0 {
		return nil
	}

	svc, err := a.getService(ctx, cred)
	if err != nil {
		return a.wrapError(err, "failed to create gmail service")
	}

	if mutation.Trash {
		for _, id := range messageIDs {
			cbErr := a.executeWithCircuitBreaker(func() error {
				_, trashErr := svc.Users.Messages.Trash("me", id).Context(ctx).Do()
				return trashErr
			})
			if cbErr != nil {
				return a.wrapError(cbErr, "failed to trash message "+id)
			}
		}
		return nil
	}

	batchReq := &gmail.BatchModifyMessagesRequest{
		Ids:            messageIDs,
		AddLabelIds:    mutation.AddLabels,
		RemoveLabelIds: mutation.RemoveLabels,
	}
	cbErr := a.executeWithCircuitBreaker(func() error {
		return svc.Users.Messages.BatchModify("me", batchReq).Context(ctx).Do()
	})
	if cbErr != nil {
		return a.wrapError(cbErr, "failed to batch modify messages")
	}
	return nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// listRepliedThreads returns the thread IDs of the user's recent sent mail.
func (a *GmailAdapter) listRepliedThreads(ctx context.Context, svc *gmail.Service) (map[string]bool, error) {
	var resp *gmail.ListMessagesResponse
	cbErr := a.executeWithCircuitBreaker(func() error {
		var listErr error
		resp, listErr = svc.Users.Messages.List("me").
			LabelIds("SENT").
			MaxResults(500).
			Context(ctx).Do()
		return listErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to list sent messages")
	}

	threads := make(map[string]bool, len(resp.Messages))
	for _, msg := range resp.Messages {
		threads[msg.ThreadId] = true
	}
	return threads, nil
}

// fetchMetadataParallel fetches per-message metadata with a concurrency
// limit to stay under the Gmail API rate limit.
func (a *GmailAdapter) fetchMetadataParallel(ctx context.Context, svc *gmail.Service, msgRefs []*gmail.Message, repliedThreads map[string]bool) []domain.MessageMetadata {
	const maxConcurrency = 10
	const perMessageTimeout = 15 * time.Second

	type result struct {
		index int
		msg   domain.MessageMetadata
		err   error
	}

	results := make(chan result, len(msgRefs))
	sem := make(chan struct{}, maxConcurrency)

	for i, msgRef := range msgRefs {
		go func(idx int, id string) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- result{index: idx, err: ctx.Err()}
				return
			}

			msgCtx, cancel := context.WithTimeout(ctx, perMessageTimeout)
			defer cancel()

			metaMsg, err := svc.Users.Messages.Get("me", id).
				Format("metadata").
				MetadataHeaders(gmailMetadataHeaders...).
				Context(msgCtx).Do()
			if err != nil {
				results <- result{index: idx, err: err}
				return
			}
			results <- result{index: idx, msg: a.convertMessage(metaMsg, repliedThreads)}
		}(i, msgRef.Id)
	}

	messages := make([]domain.MessageMetadata, len(msgRefs))
	fetched := make([]bool, len(msgRefs))
	for collected := 0; collected < len(msgRefs); collected++ {
		r := <-results
		if r.err != nil {
			logger.Warn("[Gmail] Failed to fetch message metadata: %v", r.err)
			continue
		}
		messages[r.index] = r.msg
		fetched[r.index] = true
	}

	filtered := make([]domain.MessageMetadata, 0, len(msgRefs))
	for i, ok := range fetched {
		if ok {
			filtered = append(filtered, messages[i])
		}
	}
	return filtered
}

// convertMessage maps a Gmail metadata response to the domain shape.
func (a *GmailAdapter) convertMessage(msg *gmail.Message, repliedThreads map[string]bool) domain.MessageMetadata {
	meta := domain.MessageMetadata{
		ID:      msg.Id,
		Snippet: msg.Snippet,
		Labels:  msg.LabelIds,
		Date:    time.UnixMilli(msg.InternalDate),
		Replied: repliedThreads[msg.ThreadId],
	}
	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			meta.Unread = true
		}
	}
	if msg.Payload == nil {
		return meta
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			meta.Sender = extractAddress(h.Value)
		case "Subject":
			meta.Subject = h.Value
		}
	}
	return meta
}

// extractAddress pulls the bare address out of a From header value.
func extractAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(from))
	}
	return strings.ToLower(addr.Address)
}

func (a *GmailAdapter) getService(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return gmail.NewService(ctx, option.WithTokenSource(
		a.config.TokenSource(ctx, token),
	))
}

// executeWithCircuitBreaker wraps an API call with circuit breaker
// protection. Client errors (auth, not found) must not trip the breaker.
func (a *GmailAdapter) executeWithCircuitBreaker(fn func() error) error {
	var clientErr error
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 429, 500, 502, 503:
					return nil, err
				default:
					clientErr = err
					return nil, nil
				}
			}
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	return clientErr
}

func (a *GmailAdapter) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return out.NewGatewayError("gmail", out.GatewayErrServer, "circuit breaker open", err, true)
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 401:
			return out.NewGatewayError("gmail", out.GatewayErrAuthExpired, "token expired", err, false)
		case 403:
			if strings.Contains(apiErr.Message, "Rate Limit") {
				return out.NewGatewayError("gmail", out.GatewayErrRateLimited, "rate limit exceeded", err, true)
			}
			return out.NewGatewayError("gmail", out.GatewayErrAuthExpired, "access denied", err, false)
		case 429:
			return out.NewGatewayError("gmail", out.GatewayErrRateLimited, "too many requests", err, true)
		case 500, 502, 503:
			return out.NewGatewayError("gmail", out.GatewayErrServer, "server error", err, true)
		}
	}

	return out.NewGatewayError("gmail", out.GatewayErrNetwork, defaultMsg, err, true)
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.MailGateway = (*GmailAdapter)(nil)
