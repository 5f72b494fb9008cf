package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/security"
	"github.com/Dokus-Tech/dokus-auth/internal/repository"
)

const accountsTable = "auth.accounts"

// AccountRepository implements port.CredentialStore backed by PostgreSQL.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// VerifyCredentials loads the account by normalized email and checks the
// argon2 hash. The two failure modes stay distinct internally so callers can
// log them apart, even though the transport collapses both to one message.
func (r *AccountRepository) VerifyCredentials(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := r.getBy(ctx, squirrel.Eq{"email": domain.NormalizeIdentity(email)})
	if err != nil {
		return nil, err
	}

	ok, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, repository.ErrPasswordMismatch
	}

	return account, nil
}

// GetByID fetches an account by its identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// SetActive flips the active flag. Deactivation stamps deactivated_at and the
// audit note; reactivation clears both.
func (r *AccountRepository) SetActive(ctx context.Context, userID string, active bool, reason string) error {
	update := r.builder.Update(accountsTable).
		Set("is_active", active).
		Where(squirrel.Eq{"id": userID})

	if active {
		update = update.
			Set("deactivated_at", nil).
			Set("deactivate_note", nil)
	} else {
		var note any
		if reason != "" {
			note = reason
		}
		update = update.
			Set("deactivated_at", time.Now().UTC()).
			Set("deactivate_note", note)
	}

	stmt, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update account active sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update account active: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLogin stamps the last successful login time.
func (r *AccountRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("last_login", at.UTC()).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) getBy(ctx context.Context, pred squirrel.Eq) (*domain.Account, error) {
	stmt, args, err := r.builder.Select(
		"id",
		"tenant_id",
		"email",
		"password_hash",
		"roles",
		"is_active",
		"created_at",
		"deactivated_at",
		"deactivate_note",
		"last_login",
	).
		From(accountsTable).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		account        domain.Account
		deactivatedAt  sql.NullTime
		deactivateNote sql.NullString
		lastLogin      sql.NullTime
	)

	if err := row.Scan(
		&account.ID,
		&account.TenantID,
		&account.Email,
		&account.PasswordHash,
		&account.Roles,
		&account.IsActive,
		&account.CreatedAt,
		&deactivatedAt,
		&deactivateNote,
		&lastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.DeactivatedAt = nullableTimePtr(deactivatedAt)
	account.DeactivateNote = nullableStringPtr(deactivateNote)
	account.LastLogin = nullableTimePtr(lastLogin)

	return &account, nil
}

var _ port.CredentialStore = (*AccountRepository)(nil)
