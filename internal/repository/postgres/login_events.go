package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
)

// LoginEventRepository appends login audit rows.
type LoginEventRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLoginEventRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewLoginEventRepository(exec pgExecutor) *LoginEventRepository {
	repo := &LoginEventRepository{
		exec:    exec,
		builder: newBuilder(),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Record inserts a login event.
func (r *LoginEventRepository) Record(ctx context.Context, event domain.LoginEvent) error {
	var accountID any
	if event.AccountID != nil && *event.AccountID != "" {
		accountID = *event.AccountID
	}

	stmt, args, err := r.builder.Insert("login_events").
		Columns("id", "account_id", "identifier", "origin_ip", "user_agent", "success", "reason", "created_at").
		Values(
			event.ID,
			accountID,
			event.Identifier,
			event.OriginIP,
			event.UserAgent,
			event.Success,
			string(event.Reason),
			event.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login event sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert login event: %w", err)
	}
	return nil
}

var _ port.LoginEventRepository = (*LoginEventRepository)(nil)
