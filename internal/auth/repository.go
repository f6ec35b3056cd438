// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByID(ctx context.Context, id string) (*RefreshToken, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteMatching(ctx context.Context, id, tokenHash string) (bool, error)
	Rotate(ctx context.Context, oldID, oldHash string, next *RefreshToken) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, expires_at, user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &token.CreatedAt, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
		token.UserAgent,
		token.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindByID(
	ctx context.Context,
	id string,
) (*RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at,
		       user_agent, ip_address
		FROM refresh_tokens
		WHERE id = $1`

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

func (r *repository) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM refresh_tokens WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	return nil
}

func (r *repository) DeleteMatching(
	ctx context.Context,
	id, tokenHash string,
) (bool, error) {
	query := `DELETE FROM refresh_tokens WHERE id = $1 AND token_hash = $2`

	result, err := r.db.ExecContext(ctx, query, id, tokenHash)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	return rows > 0, nil
}

// Rotate consumes the old record and stores next in one statement. When the
// old record is already gone, nothing is inserted and ErrTokenInvalid is
// returned, so concurrent replays of one token cannot both succeed.
func (r *repository) Rotate(
	ctx context.Context,
	oldID, oldHash string,
	next *RefreshToken,
) error {
	query := `
		WITH consumed AS (
			DELETE FROM refresh_tokens
			WHERE id = $1 AND token_hash = $2 AND expires_at > NOW()
			RETURNING user_id
		)
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, expires_at, user_agent, ip_address
		)
		SELECT $3, user_id, $4, $5, $6, $7 FROM consumed
		RETURNING user_id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		oldID,
		oldHash,
		next.ID,
		next.TokenHash,
		next.ExpiresAt,
		next.UserAgent,
		next.IPAddress,
	).Scan(&next.UserID, &next.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("rotate refresh token: %w", core.ErrTokenInvalid)
	}
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	return nil
}

func (r *repository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return rows, nil
}
