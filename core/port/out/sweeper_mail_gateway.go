// Package out defines the outbound ports this core consumes.
package out

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"sweeper_server/core/domain"
)

// Mutation describes a label change applied to a set of messages.
// Archive removes the inbox label; delete moves to trash. The gateway is
// expected to apply mutations idempotently (at-least-once delivery).
type Mutation struct {
	AddLabels    []string `json:"add_labels,omitempty"`
	RemoveLabels []string `json:"remove_labels,omitempty"`
	Trash        bool     `json:"trash,omitempty"`
}

// MailGateway is the abstract external mail capability: list recent inbox
// items and batch-mutate them. Implementations surface failures as
// *GatewayError so the sweeper can distinguish expired credentials from
// transient faults.
//
// RefreshCredential returns a usable token for the given credential,
// exchanging the refresh token when the access token has expired. The
// second result reports whether a new token was issued, so the caller can
// persist it.
type MailGateway interface {
	RefreshCredential(ctx context.Context, cred *oauth2.Token) (*oauth2.Token, bool, error)
	ListRecent(ctx context.Context, cred *oauth2.Token, maxCount int) ([]domain.MessageMetadata, error)
	Mutate(ctx context.Context, cred *oauth2.Token, messageIDs []string, mutation Mutation) error
}

// =============================================================================
// Gateway Error
// =============================================================================

// GatewayErrorCode classifies gateway failures.
type GatewayErrorCode string

const (
	GatewayErrAuthExpired GatewayErrorCode = "auth_expired"
	GatewayErrRateLimited GatewayErrorCode = "rate_limited"
	GatewayErrServer      GatewayErrorCode = "server_error"
	GatewayErrNetwork     GatewayErrorCode = "network_error"
	GatewayErrUnknown     GatewayErrorCode = "unknown"
)

// GatewayError represents a mail gateway failure.
type GatewayError struct {
	Gateway   string
	Code      GatewayErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError creates a new gateway error.
func NewGatewayError(gateway string, code GatewayErrorCode, message string, err error, retryable bool) *GatewayError {
	return &GatewayError{
		Gateway:   gateway,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}

// IsAuthExpired reports whether err is a gateway auth failure.
func IsAuthExpired(err error) bool {
	ge, ok := AsGatewayError(err)
	return ok && ge.Code == GatewayErrAuthExpired
}

// AsGatewayError unwraps err to a *GatewayError if possible.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
