package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"

	"sweeper_server/core/port/out"
	"sweeper_server/pkg/crypto"
	"sweeper_server/pkg/logger"
)

// CredentialAdapter implements out.CredentialRepository using PostgreSQL.
// Tokens are encrypted at rest when an encryption key is configured.
type CredentialAdapter struct {
	db                *sqlx.DB
	encryptionEnabled bool
}

// NewCredentialAdapter creates a new CredentialAdapter.
func NewCredentialAdapter(db *sqlx.DB) *CredentialAdapter {
	err := crypto.Init()
	encryptionEnabled := err == nil
	if !encryptionEnabled {
		logger.Warn("Token encryption disabled: %v", err)
	}

	return &CredentialAdapter{
		db:                db,
		encryptionEnabled: encryptionEnabled,
	}
}

type credentialRow struct {
	OwnerID      uuid.UUID    `db:"owner_id"`
	AccessToken  string       `db:"access_token"`
	RefreshToken string       `db:"refresh_token"`
	TokenType    string       `db:"token_type"`
	ExpiresAt    sql.NullTime `db:"expires_at"`
}

// GetToken returns the stored OAuth token for the owner's mailbox.
func (a *CredentialAdapter) GetToken(ctx context.Context, ownerID uuid.UUID) (*oauth2.Token, error) {
	var row credentialRow
	query := `
		SELECT owner_id, access_token, refresh_token, token_type, expires_at
		FROM mail_credentials
		WHERE owner_id = $1 AND is_connected = TRUE`

	if err := a.db.GetContext(ctx, &row, query, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: mail credential for owner %s", ErrNotFound, ownerID)
		}
		return nil, fmt.Errorf("failed to get mail credential: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  a.decryptToken(row.AccessToken),
		RefreshToken: a.decryptToken(row.RefreshToken),
		TokenType:    row.TokenType,
	}
	if row.ExpiresAt.Valid {
		token.Expiry = row.ExpiresAt.Time
	}

	return token, nil
}

// SaveToken stores a refreshed token back. The oauth2 token source refreshes
// transparently during sweeps; persisting keeps the stored refresh chain valid.
func (a *CredentialAdapter) SaveToken(ctx context.Context, ownerID uuid.UUID, token *oauth2.Token) error {
	query := `
		UPDATE mail_credentials
		SET access_token = $2, refresh_token = $3, token_type = $4,
		    expires_at = $5, updated_at = NOW()
		WHERE owner_id = $1`

	var expiresAt sql.NullTime
	if !token.Expiry.IsZero() {
		expiresAt = sql.NullTime{Time: token.Expiry, Valid: true}
	}

	result, err := a.db.ExecContext(
		ctx,
		query,
		ownerID,
		a.encryptToken(token.AccessToken),
		a.encryptToken(token.RefreshToken),
		token.TokenType,
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save mail credential: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: mail credential for owner %s", ErrNotFound, ownerID)
	}

	return nil
}

func (a *CredentialAdapter) encryptToken(token string) string {
	if !a.encryptionEnabled || token == "" {
		return token
	}
	encrypted, err := crypto.EncryptToken(token)
	if err != nil {
		logger.Warn("Failed to encrypt token: %v", err)
		return token
	}
	return encrypted
}

func (a *CredentialAdapter) decryptToken(token string) string {
	if token == "" || !crypto.IsEncrypted(token) {
		return token
	}
	decrypted, err := crypto.DecryptToken(token)
	if err != nil {
		// legacy plaintext token
		return token
	}
	return decrypted
}

var _ out.CredentialRepository = (*CredentialAdapter)(nil)
