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
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

// ledgerTable describes where entries of one purpose live.
type ledgerTable struct {
	name          string
	subjectColumn string
	signupFields  bool
}

var ledgerTables = map[domain.LedgerPurpose]ledgerTable{
	domain.PurposeSignup:   {name: "signup_otps", subjectColumn: "email", signupFields: true},
	domain.PurposeRecovery: {name: "recovery_otps", subjectColumn: "account_id"},
}

func (t ledgerTable) columns() []string {
	cols := []string{"id", t.subjectColumn}
	if t.signupFields {
		cols = append(cols, "name", "password_hash")
	}
	return append(cols,
		"code_hash",
		"expires_at",
		"attempt_count",
		"locked_until",
		"origin_ip",
		"used",
		"created_at",
	)
}

// LedgerRepository implements port.LedgerRepository using PostgreSQL.
type LedgerRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLedgerRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewLedgerRepository(exec pgExecutor) *LedgerRepository {
	repo := &LedgerRepository{
		exec:    exec,
		builder: newBuilder(),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *LedgerRepository) WithTx(tx pgx.Tx) *LedgerRepository {
	if tx == nil {
		return r
	}
	return &LedgerRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

func tableFor(purpose domain.LedgerPurpose) (ledgerTable, error) {
	table, ok := ledgerTables[purpose]
	if !ok {
		return ledgerTable{}, fmt.Errorf("unknown ledger purpose %q", purpose)
	}
	return table, nil
}

// Create inserts a freshly issued entry.
func (r *LedgerRepository) Create(ctx context.Context, entry domain.LedgerEntry) error {
	table, err := tableFor(entry.Purpose)
	if err != nil {
		return err
	}

	values := []any{entry.ID, entry.Subject}
	if table.signupFields {
		values = append(values, entry.Name, entry.PasswordHash)
	}
	values = append(values,
		entry.CodeHash,
		entry.ExpiresAt,
		entry.AttemptCount,
		entry.LockedUntil,
		entry.OriginIP,
		entry.Used,
		entry.CreatedAt,
	)

	stmt, args, err := r.builder.Insert(table.name).
		Columns(table.columns()...).
		Values(values...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert %s sql: %w", table.name, err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert %s: %w", table.name, err)
	}
	return nil
}

// LatestUsable returns the newest unused, unexpired entry for subject.
func (r *LedgerRepository) LatestUsable(ctx context.Context, purpose domain.LedgerPurpose, subject string, now time.Time) (*domain.LedgerEntry, error) {
	table, err := tableFor(purpose)
	if err != nil {
		return nil, err
	}

	stmt, args, err := r.builder.Select(table.columns()...).
		From(table.name).
		Where(squirrel.Eq{table.subjectColumn: subject, "used": false}).
		Where(squirrel.GtOrEq{"expires_at": now}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s sql: %w", table.name, err)
	}

	return scanLedgerEntry(r.exec.QueryRow(ctx, stmt, args...), purpose, table)
}

// RegisterFailure increments attempt_count on an unused entry and sets
// locked_until once the new count reaches maxAttempts.
func (r *LedgerRepository) RegisterFailure(ctx context.Context, purpose domain.LedgerPurpose, id string, maxAttempts int, lockUntil time.Time) (*domain.LedgerEntry, error) {
	table, err := tableFor(purpose)
	if err != nil {
		return nil, err
	}

	columns := table.columns()
	stmt, args, err := r.builder.Update(table.name).
		Set("attempt_count", squirrel.Expr("attempt_count + 1")).
		Set("locked_until", squirrel.Expr(
			"CASE WHEN attempt_count + 1 >= ? THEN ?::timestamptz ELSE locked_until END",
			maxAttempts, lockUntil,
		)).
		Where(squirrel.Eq{"id": id, "used": false}).
		Suffix("RETURNING "+strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update %s sql: %w", table.name, err)
	}

	return scanLedgerEntry(r.exec.QueryRow(ctx, stmt, args...), purpose, table)
}

// MarkUsed consumes an entry. The lock and expiry are re-checked in the same
// statement, so a lock set by concurrent wrong guesses after the entry was
// read still wins. Zero affected rows yield repository.ErrNotFound.
func (r *LedgerRepository) MarkUsed(ctx context.Context, purpose domain.LedgerPurpose, id string, now time.Time) error {
	table, err := tableFor(purpose)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Update(table.name).
		Set("used", true).
		Where(squirrel.Eq{"id": id, "used": false}).
		Where(squirrel.Or{
			squirrel.Eq{"locked_until": nil},
			squirrel.LtOrEq{"locked_until": now},
		}).
		Where(squirrel.GtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume %s sql: %w", table.name, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume %s: %w", table.name, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountBySubjectSince counts entries issued to subject at or after since.
func (r *LedgerRepository) CountBySubjectSince(ctx context.Context, purpose domain.LedgerPurpose, subject string, since time.Time) (port.WindowStats, error) {
	table, err := tableFor(purpose)
	if err != nil {
		return port.WindowStats{}, err
	}
	return r.windowStats(ctx, table, squirrel.Eq{table.subjectColumn: subject}, since)
}

// CountByOriginSince counts entries requested from origin at or after since.
func (r *LedgerRepository) CountByOriginSince(ctx context.Context, purpose domain.LedgerPurpose, origin string, since time.Time) (port.WindowStats, error) {
	table, err := tableFor(purpose)
	if err != nil {
		return port.WindowStats{}, err
	}
	return r.windowStats(ctx, table, squirrel.Eq{"origin_ip": origin}, since)
}

func (r *LedgerRepository) windowStats(ctx context.Context, table ledgerTable, filter squirrel.Eq, since time.Time) (port.WindowStats, error) {
	stmt, args, err := r.builder.Select("COUNT(*)", "MIN(created_at)").
		From(table.name).
		Where(filter).
		Where(squirrel.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return port.WindowStats{}, fmt.Errorf("build count %s sql: %w", table.name, err)
	}

	var (
		stats  port.WindowStats
		oldest sql.NullTime
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&stats.Count, &oldest); err != nil {
		return port.WindowStats{}, fmt.Errorf("count %s: %w", table.name, err)
	}
	stats.Oldest = nullTimePtr(oldest)
	return stats, nil
}

// PurgeExpired deletes entries whose expiry lies before the cutoff.
func (r *LedgerRepository) PurgeExpired(ctx context.Context, purpose domain.LedgerPurpose, before time.Time) (int64, error) {
	table, err := tableFor(purpose)
	if err != nil {
		return 0, err
	}

	stmt, args, err := r.builder.Delete(table.name).
		Where(squirrel.Lt{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge %s sql: %w", table.name, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", table.name, err)
	}
	return tag.RowsAffected(), nil
}

func scanLedgerEntry(row pgx.Row, purpose domain.LedgerPurpose, table ledgerTable) (*domain.LedgerEntry, error) {
	var (
		entry       = domain.LedgerEntry{Purpose: purpose}
		lockedUntil sql.NullTime
	)

	dest := []any{&entry.ID, &entry.Subject}
	if table.signupFields {
		dest = append(dest, &entry.Name, &entry.PasswordHash)
	}
	dest = append(dest,
		&entry.CodeHash,
		&entry.ExpiresAt,
		&entry.AttemptCount,
		&lockedUntil,
		&entry.OriginIP,
		&entry.Used,
		&entry.CreatedAt,
	)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan %s: %w", table.name, err)
	}
	entry.LockedUntil = nullTimePtr(lockedUntil)
	return &entry, nil
}

var _ port.LedgerRepository = (*LedgerRepository)(nil)
