package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

const accountsTable = "accounts"

var accountColumns = []string{
	"id",
	"name",
	"username",
	"email",
	"password_hash",
	"password_history",
	"role",
	"disabled",
	"failed_logins",
	"lock_until",
	"password_epoch",
	"state_version",
	"created_at",
	"updated_at",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		builder: newBuilder(),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new account row. A duplicate email or username yields repository.ErrConflict.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	history, err := encodeHistory(account.PasswordHistory)
	if err != nil {
		return err
	}

	var username any
	if account.Username != nil && *account.Username != "" {
		username = *account.Username
	}

	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Name,
			username,
			domain.NormalizeEmail(account.Email),
			account.PasswordHash,
			history,
			string(account.Role),
			account.Disabled,
			account.FailedLogins,
			account.LockUntil,
			account.PasswordEpoch,
			account.StateVersion,
			account.CreatedAt,
			account.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.selectOne(ctx, r.builder.Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"id": id}))
}

// GetByEmail retrieves an account by its normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.selectOne(ctx, r.builder.Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"email": domain.NormalizeEmail(email)}))
}

// FindByIdentifier resolves an email (anything containing '@') or a handle.
// Handles match username first and fall back to the display name.
func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	if domain.IsEmailIdentifier(identifier) {
		return r.GetByEmail(ctx, identifier)
	}

	return r.selectOne(ctx, r.builder.Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Or{
			squirrel.Eq{"username": identifier},
			squirrel.Eq{"name": identifier},
		}).
		OrderByClause("CASE WHEN username = ? THEN 0 ELSE 1 END", identifier).
		OrderBy("created_at ASC").
		Limit(1))
}

// ChangePassword prepends the current hash to the history (capped at
// domain.PasswordHistoryLimit), stores newHash and bumps the password epoch
// and the state version.
func (r *AccountRepository) ChangePassword(ctx context.Context, id string, newHash string, changedAt time.Time) (*domain.Account, error) {
	historyExpr := squirrel.Expr(
		`(SELECT COALESCE(jsonb_agg(h.entry ORDER BY h.ord), '[]'::jsonb) FROM (
			SELECT entry, ord FROM jsonb_array_elements(
				jsonb_build_array(jsonb_build_object('hash', password_hash, 'changed_at', ?::timestamptz)) || COALESCE(password_history, '[]'::jsonb)
			) WITH ORDINALITY AS e(entry, ord)
			ORDER BY ord
			LIMIT ?
		) h)`,
		changedAt, domain.PasswordHistoryLimit,
	)

	return r.updateOne(ctx, r.builder.Update(accountsTable).
		Set("password_history", historyExpr).
		Set("password_hash", newHash).
		Set("password_epoch", squirrel.Expr("password_epoch + 1")).
		Set("state_version", squirrel.Expr("state_version + 1")).
		Set("updated_at", changedAt).
		Where(squirrel.Eq{"id": id}))
}

// RecordLoginFailure increments failed_logins in a single statement. When the
// increment reaches threshold the counter resets to zero and lock_until is set.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id string, threshold int, lockUntil time.Time, now time.Time) (port.LoginFailure, error) {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("failed_logins", squirrel.Expr("CASE WHEN failed_logins + 1 >= ? THEN 0 ELSE failed_logins + 1 END", threshold)).
		Set("lock_until", squirrel.Expr(
			"CASE WHEN failed_logins + 1 >= ? THEN ?::timestamptz WHEN lock_until > ? THEN lock_until ELSE NULL END",
			threshold, lockUntil, now,
		)).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING failed_logins, lock_until").
		ToSql()
	if err != nil {
		return port.LoginFailure{}, fmt.Errorf("build record login failure sql: %w", err)
	}

	var (
		failure      port.LoginFailure
		lockUntilCol sql.NullTime
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&failure.FailedLogins, &lockUntilCol); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return port.LoginFailure{}, repository.ErrNotFound
		}
		return port.LoginFailure{}, fmt.Errorf("record login failure: %w", err)
	}
	failure.LockUntil = nullTimePtr(lockUntilCol)

	return failure, nil
}

// ResetLoginFailures clears the failed counter and any lock after a successful login.
func (r *AccountRepository) ResetLoginFailures(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update(accountsTable).
		Set("failed_logins", 0).
		Set("lock_until", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset login failures sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetDisabled updates the disabled flag and returns the stored account.
func (r *AccountRepository) SetDisabled(ctx context.Context, id string, disabled bool) (*domain.Account, error) {
	return r.updateOne(ctx, r.builder.Update(accountsTable).
		Set("disabled", disabled).
		Set("state_version", squirrel.Expr("state_version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}))
}

// SetRole updates the role tag and returns the stored account.
func (r *AccountRepository) SetRole(ctx context.Context, id string, role domain.Role) (*domain.Account, error) {
	return r.updateOne(ctx, r.builder.Update(accountsTable).
		Set("role", string(role)).
		Set("state_version", squirrel.Expr("state_version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}))
}

func (r *AccountRepository) selectOne(ctx context.Context, query squirrel.SelectBuilder) (*domain.Account, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}
	return scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

func (r *AccountRepository) updateOne(ctx context.Context, query squirrel.UpdateBuilder) (*domain.Account, error) {
	stmt, args, err := query.Suffix("RETURNING " + strings.Join(accountColumns, ", ")).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update account sql: %w", err)
	}
	return scanAccount(r.exec.QueryRow(ctx, stmt, args...))
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account   domain.Account
		username  sql.NullString
		history   []byte
		role      string
		lockUntil sql.NullTime
	)

	if err := row.Scan(
		&account.ID,
		&account.Name,
		&username,
		&account.Email,
		&account.PasswordHash,
		&history,
		&role,
		&account.Disabled,
		&account.FailedLogins,
		&lockUntil,
		&account.PasswordEpoch,
		&account.StateVersion,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	if username.Valid && username.String != "" {
		handle := username.String
		account.Username = &handle
	}
	account.Role = domain.Role(role)
	account.LockUntil = nullTimePtr(lockUntil)

	entries, err := decodeHistory(history)
	if err != nil {
		return nil, err
	}
	account.PasswordHistory = entries

	return &account, nil
}

func encodeHistory(entries []domain.PasswordHistoryEntry) ([]byte, error) {
	if len(entries) > domain.PasswordHistoryLimit {
		entries = entries[:domain.PasswordHistoryLimit]
	}
	if entries == nil {
		entries = []domain.PasswordHistoryEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode password history: %w", err)
	}
	return payload, nil
}

func decodeHistory(raw []byte) ([]domain.PasswordHistoryEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []domain.PasswordHistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode password history: %w", err)
	}
	return entries, nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
