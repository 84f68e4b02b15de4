package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

// AccountService serves the authenticated profile and the super admin controls
// over the disabled flag and role of other accounts.
type AccountService struct {
	accounts port.AccountRepository
	tokens   *TokenService
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccountService constructs an AccountService.
func NewAccountService(accounts port.AccountRepository, tokens *TokenService, events port.EventPublisher, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{accounts: accounts, tokens: tokens, events: events, logger: logger, now: time.Now}
}

// WithClock overrides the service clock for deterministic tests.
func (s *AccountService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Profile returns the account of an authenticated caller.
func (s *AccountService) Profile(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.load(ctx, accountID)
}

// ToggleDisabled flips the disabled flag of target. Super admins cannot be disabled.
func (s *AccountService) ToggleDisabled(ctx context.Context, actorID, targetID string) (*domain.Account, error) {
	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == domain.RoleSuperAdmin {
		return nil, ErrSuperAdminProtected
	}

	updated, err := s.accounts.SetDisabled(ctx, target.ID, !target.Disabled)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("update disabled flag: %w", err)
	}

	s.tokens.Refresh(ctx, updated.State())

	logger.WithContext(ctx, s.logger).Info("account status changed",
		zap.String("account_id", updated.ID),
		zap.String("actor_id", actorID),
		zap.Bool("disabled", updated.Disabled),
	)

	publishEvent(ctx, s.logger, s.events, "account.status.changed", func(p port.EventPublisher) error {
		return p.PublishAccountStatusChanged(ctx, domain.AccountStatusChangedEvent{
			AccountID: updated.ID,
			Disabled:  updated.Disabled,
			ChangedBy: actorID,
			ChangedAt: s.now().UTC(),
		})
	})

	return updated, nil
}

// ChangeRole assigns ADMIN or CUSTOMER to target. The super admin role is immutable.
func (s *AccountService) ChangeRole(ctx context.Context, actorID, targetID string, role domain.Role) (*domain.Account, error) {
	role = domain.Role(strings.ToUpper(strings.TrimSpace(string(role))))
	if role != domain.RoleAdmin && role != domain.RoleCustomer {
		return nil, newValidationError("role", "role must be ADMIN or CUSTOMER")
	}

	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == domain.RoleSuperAdmin {
		return nil, ErrSuperAdminProtected
	}

	updated, err := s.accounts.SetRole(ctx, target.ID, role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("update role: %w", err)
	}

	s.tokens.Refresh(ctx, updated.State())

	logger.WithContext(ctx, s.logger).Info("account role changed",
		zap.String("account_id", updated.ID),
		zap.String("actor_id", actorID),
		zap.String("previous_role", string(target.Role)),
		zap.String("role", string(updated.Role)),
	)

	publishEvent(ctx, s.logger, s.events, "account.role.changed", func(p port.EventPublisher) error {
		return p.PublishAccountRoleChanged(ctx, domain.AccountRoleChangedEvent{
			AccountID:    updated.ID,
			PreviousRole: target.Role,
			Role:         updated.Role,
			ChangedBy:    actorID,
			ChangedAt:    s.now().UTC(),
		})
	})

	return updated, nil
}

func (s *AccountService) load(ctx context.Context, accountID string) (*domain.Account, error) {
	id, err := uuid.Parse(strings.TrimSpace(accountID))
	if err != nil {
		return nil, ErrAccountNotFound
	}
	accountID = id.String()

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return account, nil
}
