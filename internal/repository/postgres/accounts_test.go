package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

var accountRowColumns = []string{
	"id", "name", "username", "email", "password_hash", "password_history", "role",
	"disabled", "failed_logins", "lock_until", "password_epoch", "state_version", "created_at", "updated_at",
}

func newAccountMock(t *testing.T) (pgxmock.PgxPoolIface, *AccountRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	return mock, NewAccountRepository(mock)
}

func TestAccountRepository_Create(t *testing.T) {
	mock, repo := newAccountMock(t)

	now := time.Now().UTC()
	account := domain.Account{
		ID:           "acc-1",
		Name:         "Jane",
		Email:        " Jane@Example.com ",
		PasswordHash: "hash",
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs(
			"acc-1",
			"Jane",
			nil,
			"jane@example.com",
			"hash",
			pgxmock.AnyArg(),
			"CUSTOMER",
			false,
			0,
			pgxmock.AnyArg(),
			int64(0),
			int64(0),
			now,
			now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_CreateDuplicateEmail(t *testing.T) {
	mock, repo := newAccountMock(t)

	mock.ExpectExec(`INSERT INTO accounts`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	err := repo.Create(context.Background(), domain.Account{ID: "acc-1", Email: "jane@example.com"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByIdentifierEmail(t *testing.T) {
	mock, repo := newAccountMock(t)

	now := time.Now().UTC()
	history := []byte(`[{"hash":"old-1","changed_at":"2025-01-01T00:00:00Z"}]`)
	rows := pgxmock.NewRows(accountRowColumns).AddRow(
		"acc-1", "Jane", nil, "jane@example.com", "hash", history, "ADMIN",
		false, 2, nil, int64(3), int64(4), now, now,
	)

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE email = \$1`).
		WithArgs("jane@example.com").
		WillReturnRows(rows)

	account, err := repo.FindByIdentifier(context.Background(), "JANE@example.com")
	if err != nil {
		t.Fatalf("FindByIdentifier returned error: %v", err)
	}
	if account.Role != domain.RoleAdmin || account.PasswordEpoch != 3 || account.FailedLogins != 2 {
		t.Fatalf("unexpected account: %+v", account)
	}
	if len(account.PasswordHistory) != 1 || account.PasswordHistory[0].Hash != "old-1" {
		t.Fatalf("expected decoded history, got %+v", account.PasswordHistory)
	}
	if account.Username != nil || account.LockUntil != nil {
		t.Fatalf("expected nullable fields to stay nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_FindByIdentifierHandle(t *testing.T) {
	mock, repo := newAccountMock(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(accountRowColumns).AddRow(
		"acc-2", "jane", "jane", "jane@example.com", "hash", []byte(`[]`), "CUSTOMER",
		false, 0, nil, int64(0), int64(0), now, now,
	)

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE \(username = \$1 OR name = \$2\) ORDER BY CASE WHEN username = \$3 THEN 0 ELSE 1 END, created_at ASC LIMIT 1`).
		WithArgs("jane", "jane", "jane").
		WillReturnRows(rows)

	account, err := repo.FindByIdentifier(context.Background(), "jane")
	if err != nil {
		t.Fatalf("FindByIdentifier returned error: %v", err)
	}
	if account.Username == nil || *account.Username != "jane" {
		t.Fatalf("expected username populated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_GetByIDNotFound(t *testing.T) {
	mock, repo := newAccountMock(t)

	mock.ExpectQuery(`SELECT .* FROM accounts WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_RecordLoginFailureIsSingleStatement(t *testing.T) {
	mock, repo := newAccountMock(t)

	now := time.Now().UTC()
	lockUntil := now.Add(15 * time.Minute)

	mock.ExpectQuery(`UPDATE accounts SET failed_logins = CASE WHEN failed_logins \+ 1 >= \$1 THEN 0 ELSE failed_logins \+ 1 END, lock_until = CASE WHEN failed_logins \+ 1 >= \$2 THEN \$3::timestamptz WHEN lock_until > \$4 THEN lock_until ELSE NULL END, updated_at = \$5 WHERE id = \$6 RETURNING failed_logins, lock_until`).
		WithArgs(5, 5, lockUntil, now, now, "acc-1").
		WillReturnRows(pgxmock.NewRows([]string{"failed_logins", "lock_until"}).AddRow(0, lockUntil))

	failure, err := repo.RecordLoginFailure(context.Background(), "acc-1", 5, lockUntil, now)
	if err != nil {
		t.Fatalf("RecordLoginFailure returned error: %v", err)
	}
	if failure.FailedLogins != 0 || !failure.Locked(now) {
		t.Fatalf("expected lock with reset counter, got %+v", failure)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_ResetLoginFailures(t *testing.T) {
	mock, repo := newAccountMock(t)

	mock.ExpectExec(`UPDATE accounts SET failed_logins = \$1, lock_until = \$2 WHERE id = \$3`).
		WithArgs(0, nil, "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.ResetLoginFailures(context.Background(), "acc-1"); err != nil {
		t.Fatalf("ResetLoginFailures returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_ChangePasswordRotatesHistory(t *testing.T) {
	mock, repo := newAccountMock(t)

	changedAt := time.Now().UTC()
	history := []byte(`[{"hash":"hash-0","changed_at":"2025-03-01T00:00:00Z"},{"hash":"hash-1","changed_at":"2025-02-01T00:00:00Z"}]`)
	rows := pgxmock.NewRows(accountRowColumns).AddRow(
		"acc-1", "Jane", nil, "jane@example.com", "hash-new", history, "CUSTOMER",
		false, 0, nil, int64(2), int64(5), changedAt, changedAt,
	)

	mock.ExpectQuery(`(?s)UPDATE accounts SET password_history = \(SELECT COALESCE\(jsonb_agg.*LIMIT \$2.*, password_hash = \$3, password_epoch = password_epoch \+ 1, state_version = state_version \+ 1, updated_at = \$4 WHERE id = \$5 RETURNING`).
		WithArgs(changedAt, domain.PasswordHistoryLimit, "hash-new", changedAt, "acc-1").
		WillReturnRows(rows)

	account, err := repo.ChangePassword(context.Background(), "acc-1", "hash-new", changedAt)
	if err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}
	if account.PasswordHash != "hash-new" || account.PasswordEpoch != 2 || account.StateVersion != 5 {
		t.Fatalf("unexpected account after change: %+v", account)
	}
	if len(account.PasswordHistory) != 2 || account.PasswordHistory[0].Hash != "hash-0" {
		t.Fatalf("unexpected history: %+v", account.PasswordHistory)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAccountRepository_SetDisabled(t *testing.T) {
	mock, repo := newAccountMock(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(accountRowColumns).AddRow(
		"acc-1", "Jane", nil, "jane@example.com", "hash", []byte(`[]`), "CUSTOMER",
		true, 0, nil, int64(0), int64(0), now, now,
	)

	mock.ExpectQuery(`UPDATE accounts SET disabled = \$1, state_version = state_version \+ 1, updated_at = NOW\(\) WHERE id = \$2 RETURNING`).
		WithArgs(true, "acc-1").
		WillReturnRows(rows)

	account, err := repo.SetDisabled(context.Background(), "acc-1", true)
	if err != nil {
		t.Fatalf("SetDisabled returned error: %v", err)
	}
	if !account.Disabled {
		t.Fatalf("expected account disabled")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
