package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/logger"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/security"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

const defaultAccountStateTTL = 5 * time.Minute

// IssuedToken is a signed access token and its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// VerifiedToken is the identity resolved from an accepted bearer token.
type VerifiedToken struct {
	AccountID     string
	PasswordEpoch int64
	Role          domain.Role
	TokenID       string
	ExpiresAt     time.Time
}

// TokenService mints access tokens and verifies them against the current
// password epoch and disabled flag of the account.
type TokenService struct {
	jwt      *security.JWTManager
	accounts port.AccountRepository
	cache    port.AccountStateCache
	cacheTTL time.Duration
	ttl      time.Duration
	metrics  CredentialMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewTokenService constructs a TokenService. cache may be nil, in which case
// every verification reads the account from the repository.
func NewTokenService(jwtManager *security.JWTManager, accounts port.AccountRepository, cache port.AccountStateCache, jwtCfg config.JWTSettings, redisCfg config.RedisSettings, logger *zap.Logger) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &TokenService{
		jwt:      jwtManager,
		accounts: accounts,
		cache:    cache,
		cacheTTL: redisCfg.AccountStateTTL,
		ttl:      jwtCfg.AccessTokenTTL,
		metrics:  noopMetrics{},
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = defaultAccountStateTTL
	}
	if s.ttl <= 0 {
		s.ttl = security.DefaultAccessTokenTTL
	}
	return s
}

// WithClock overrides the service clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics wires cache hit/miss observers.
func (s *TokenService) WithMetrics(metrics CredentialMetrics) {
	if metrics != nil {
		s.metrics = metrics
	}
}

// Issue mints a token for the account at its current password epoch.
func (s *TokenService) Issue(_ context.Context, account domain.Account) (*IssuedToken, error) {
	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		UserID:        account.ID,
		PasswordEpoch: account.PasswordEpoch,
		Issuer:        s.jwt.Issuer(),
		TTL:           s.ttl,
		IssuedAt:      s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("build access token claims: %w", err)
	}

	signed, err := s.jwt.SignAccessToken(claims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify accepts a bearer token only when its signature and expiry are valid,
// the account exists and is enabled, and the embedded epoch is current.
// Rejections wrap ErrUnauthorized; a disabled account additionally wraps ErrAccountDisabled.
func (s *TokenService) Verify(ctx context.Context, raw string) (*VerifiedToken, error) {
	claims, err := s.jwt.ParseAccessToken(strings.TrimSpace(raw), s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	state, err := s.accountState(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	if state.Disabled {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrAccountDisabled)
	}
	if state.PasswordEpoch != claims.PasswordEpoch {
		return nil, fmt.Errorf("%w: password epoch mismatch", ErrUnauthorized)
	}

	verified := &VerifiedToken{
		AccountID:     claims.UserID,
		PasswordEpoch: claims.PasswordEpoch,
		Role:          state.Role,
		TokenID:       claims.ID,
	}
	if claims.ExpiresAt != nil {
		verified.ExpiresAt = claims.ExpiresAt.Time
	}
	return verified, nil
}

// Refresh writes the state returned by a password, disabled or role change
// into the cache. The cache keeps the highest version, so a verification that
// read the account before the change cannot put the old state back. When the
// write fails the entry is dropped instead.
func (s *TokenService) Refresh(ctx context.Context, state domain.AccountState) {
	if s.cache == nil {
		return
	}

	log := logger.WithContext(ctx, s.logger).With(zap.String("account_id", state.AccountID))

	err := s.cache.SetAccountState(ctx, state, s.cacheTTL)
	if err == nil {
		return
	}
	log.Warn("account state refresh failed", zap.Error(err))

	if err := s.cache.DeleteAccountState(ctx, state.AccountID); err != nil {
		log.Error("account state eviction failed, cached state may be stale until it expires",
			zap.Int64("version", state.Version),
			zap.Duration("ttl", s.cacheTTL),
			zap.Error(err),
		)
	}
}

func (s *TokenService) accountState(ctx context.Context, accountID string) (*domain.AccountState, error) {
	if s.cache != nil {
		state, err := s.cache.GetAccountState(ctx, accountID)
		switch {
		case err == nil:
			s.metrics.IncAccountStateLookup(true)
			return state, nil
		case errors.Is(err, repository.ErrNotFound):
			s.metrics.IncAccountStateLookup(false)
		default:
			s.metrics.IncAccountStateLookup(false)
			logger.WithContext(ctx, s.logger).Warn("account state cache read failed", zap.Error(err))
		}
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: account not found", ErrUnauthorized)
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	state := account.State()
	if s.cache != nil {
		if err := s.cache.SetAccountState(ctx, state, s.cacheTTL); err != nil {
			logger.WithContext(ctx, s.logger).Warn("account state cache write failed", zap.Error(err))
		}
	}
	return &state, nil
}
