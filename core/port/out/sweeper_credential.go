package out

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// CredentialRepository resolves an owner to a stored mail credential. The
// management API writes tokens during OAuth onboarding; the sweeper reads
// them and writes back tokens the gateway refreshed mid-sweep, keeping the
// stored refresh chain valid. A missing or unusable token surfaces to the
// sweeper as an auth-expired gateway error.
type CredentialRepository interface {
	GetToken(ctx context.Context, ownerID uuid.UUID) (*oauth2.Token, error)
	SaveToken(ctx context.Context, ownerID uuid.UUID, token *oauth2.Token) error
}
