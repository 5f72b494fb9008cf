package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
	"github.com/Dokus-Tech/dokus-auth/internal/repository"
)

const refreshTokensTable = "auth.refresh_tokens"

// TokenRepository implements port.TokenRepository using PostgreSQL tables.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a refresh token row keyed by its hash.
func (r *TokenRepository) Create(ctx context.Context, token domain.RefreshToken) error {
	metadata, err := marshalMetadata(token.Metadata)
	if err != nil {
		return fmt.Errorf("prepare refresh token metadata: %w", err)
	}

	stmt, args, err := r.builder.Insert(refreshTokensTable).
		Columns(
			"id",
			"user_id",
			"token_hash",
			"client_id",
			"ip",
			"user_agent",
			"created_at",
			"expires_at",
			"revoked_at",
			"metadata",
		).
		Values(
			token.ID,
			token.UserID,
			token.TokenHash,
			optionalString(token.ClientID),
			optionalString(token.IP),
			optionalString(token.UserAgent),
			token.CreatedAt,
			token.ExpiresAt,
			optionalTime(token.RevokedAt),
			metadata,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByHash retrieves a refresh token record by its hashed value.
func (r *TokenRepository) GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(
		"id",
		"user_id",
		"token_hash",
		"client_id",
		"ip",
		"user_agent",
		"created_at",
		"expires_at",
		"revoked_at",
		"metadata",
	).
		From(refreshTokensTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	token, err := scanRefreshToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return token, nil
}

// RevokeByHash marks a token revoked if, and only if, it is still active.
// A token that is absent or already revoked surfaces as ErrNotFound, which
// lets a caller racing over the same hash know it lost.
func (r *TokenRepository) RevokeByHash(ctx context.Context, hash string, at time.Time) error {
	stmt, args, err := r.builder.Update(refreshTokensTable).
		Set("revoked_at", at.UTC()).
		Where(squirrel.Eq{"token_hash": hash}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke refresh token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RevokeAllForUser revokes every active refresh token the user holds and
// returns how many rows transitioned. Zero is a valid outcome.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string, reason string) (int, error) {
	reason = strings.TrimSpace(reason)

	stmt := `
		WITH updated AS (
			UPDATE auth.refresh_tokens
			   SET revoked_at = now(),
			       metadata = CASE
			           WHEN $2::text IS NULL THEN metadata
			           ELSE jsonb_set(
			                   COALESCE(metadata, '{}'::jsonb),
			                   '{revoked_reason}',
			                   to_jsonb($2::text),
			                   true
			               )
			       END
			 WHERE user_id = $1
			   AND revoked_at IS NULL
			 RETURNING 1
		)
		SELECT count(*) FROM updated;
	`

	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, userID, reasonArg).Scan(&count); err != nil {
		return 0, fmt.Errorf("revoke refresh tokens for user: %w", err)
	}

	return count, nil
}

// DeleteExpiredOrRevoked drops rows that can no longer be presented: expired
// before the cutoff, or revoked. Returns the number of rows removed.
func (r *TokenRepository) DeleteExpiredOrRevoked(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(refreshTokensTable).
		Where(squirrel.Or{
			squirrel.Lt{"expires_at": before.UTC()},
			squirrel.Expr("revoked_at IS NOT NULL"),
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete refresh tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

// ListActiveForUser returns the user's unrevoked, unexpired tokens ordered by
// creation time, newest first.
func (r *TokenRepository) ListActiveForUser(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(
		"id",
		"user_id",
		"token_hash",
		"client_id",
		"ip",
		"user_agent",
		"created_at",
		"expires_at",
		"revoked_at",
		"metadata",
	).
		From(refreshTokensTable).
		Where(squirrel.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		Where("expires_at > now()").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list refresh tokens sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		token, err := scanRefreshToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		tokens = append(tokens, *token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh tokens: %w", err)
	}

	return tokens, nil
}

func scanRefreshToken(row pgx.Row) (*domain.RefreshToken, error) {
	var (
		token     domain.RefreshToken
		clientID  sql.NullString
		ip        sql.NullString
		userAgent sql.NullString
		revokedAt sql.NullTime
		metadata  []byte
	)

	if err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&clientID,
		&ip,
		&userAgent,
		&token.CreatedAt,
		&token.ExpiresAt,
		&revokedAt,
		&metadata,
	); err != nil {
		return nil, err
	}

	token.ClientID = nullableStringPtr(clientID)
	token.IP = nullableStringPtr(ip)
	token.UserAgent = nullableStringPtr(userAgent)
	token.RevokedAt = nullableTimePtr(revokedAt)
	if len(metadata) > 0 {
		meta, err := unmarshalMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("unmarshal refresh metadata: %w", err)
		}
		token.Metadata = meta
	}

	return &token, nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
