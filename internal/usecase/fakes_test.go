package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/config"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/infra/security"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeHasher stores secrets reversibly so tests stay fast; it counts Verify calls.
type fakeHasher struct {
	mu          sync.Mutex
	verifyCalls int
	// onVerify, when set, runs before the comparison result is returned.
	onVerify func(secret string)
}

func (h *fakeHasher) Hash(_ context.Context, secret string) (string, error) {
	return "hashed:" + secret, nil
}

func (h *fakeHasher) Verify(_ context.Context, secret, encoded string) (bool, error) {
	h.mu.Lock()
	h.verifyCalls++
	hook := h.onVerify
	h.mu.Unlock()
	if hook != nil {
		hook(secret)
	}
	return encoded == "hashed:"+secret, nil
}

func (h *fakeHasher) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifyCalls
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	getErr   error
}

func newFakeAccountRepo(accounts ...domain.Account) *fakeAccountRepo {
	repo := &fakeAccountRepo{accounts: make(map[string]domain.Account)}
	for _, account := range accounts {
		repo.accounts[account.ID] = account
	}
	return repo
}

func (r *fakeAccountRepo) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return repository.ErrConflict
		}
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &account, nil
}

func (r *fakeAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Email == email {
			a := account
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRepo) FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if domain.IsEmailIdentifier(identifier) {
		return r.GetByEmail(ctx, domain.NormalizeEmail(identifier))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var byName *domain.Account
	for _, account := range r.accounts {
		a := account
		if a.HandleValue() == identifier {
			return &a, nil
		}
		if a.Name == identifier && byName == nil {
			byName = &a
		}
	}
	if byName != nil {
		return byName, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRepo) ChangePassword(_ context.Context, id, newHash string, changedAt time.Time) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	history := append([]domain.PasswordHistoryEntry{{Hash: account.PasswordHash, ChangedAt: changedAt}}, account.PasswordHistory...)
	if len(history) > domain.PasswordHistoryLimit {
		history = history[:domain.PasswordHistoryLimit]
	}
	account.PasswordHistory = history
	account.PasswordHash = newHash
	account.PasswordEpoch++
	account.StateVersion++
	account.UpdatedAt = changedAt
	r.accounts[id] = account
	return &account, nil
}

func (r *fakeAccountRepo) RecordLoginFailure(_ context.Context, id string, threshold int, lockUntil, _ time.Time) (port.LoginFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return port.LoginFailure{}, repository.ErrNotFound
	}
	account.FailedLogins++
	if account.FailedLogins >= threshold {
		lock := lockUntil
		account.LockUntil = &lock
		account.FailedLogins = 0
	}
	r.accounts[id] = account
	return port.LoginFailure{FailedLogins: account.FailedLogins, LockUntil: account.LockUntil}, nil
}

func (r *fakeAccountRepo) ResetLoginFailures(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.FailedLogins = 0
	account.LockUntil = nil
	r.accounts[id] = account
	return nil
}

func (r *fakeAccountRepo) SetDisabled(_ context.Context, id string, disabled bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	account.Disabled = disabled
	account.StateVersion++
	r.accounts[id] = account
	return &account, nil
}

func (r *fakeAccountRepo) SetRole(_ context.Context, id string, role domain.Role) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	account.Role = role
	account.StateVersion++
	r.accounts[id] = account
	return &account, nil
}

func (r *fakeAccountRepo) get(t *testing.T, id string) domain.Account {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		t.Fatalf("account %s not found", id)
	}
	return account
}

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

func (r *fakeLedgerRepo) Create(_ context.Context, entry domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeLedgerRepo) LatestUsable(_ context.Context, purpose domain.LedgerPurpose, subject string, now time.Time) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.LedgerEntry
	for i := range r.entries {
		e := r.entries[i]
		if e.Purpose != purpose || e.Subject != subject || !e.IsUsable(now) {
			continue
		}
		if latest == nil || !e.CreatedAt.Before(latest.CreatedAt) {
			latest = &e
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *fakeLedgerRepo) RegisterFailure(_ context.Context, purpose domain.LedgerPurpose, id string, maxAttempts int, lockUntil time.Time) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		e := &r.entries[i]
		if e.ID != id || e.Purpose != purpose || e.Used {
			continue
		}
		e.AttemptCount++
		if e.AttemptCount >= maxAttempts {
			lock := lockUntil
			e.LockedUntil = &lock
		}
		copied := *e
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeLedgerRepo) MarkUsed(_ context.Context, purpose domain.LedgerPurpose, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		e := &r.entries[i]
		if e.ID == id && e.Purpose == purpose && e.IsUsable(now) && !e.IsLocked(now) {
			e.Used = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeLedgerRepo) CountBySubjectSince(_ context.Context, purpose domain.LedgerPurpose, subject string, since time.Time) (port.WindowStats, error) {
	return r.window(func(e domain.LedgerEntry) bool { return e.Purpose == purpose && e.Subject == subject }, since), nil
}

func (r *fakeLedgerRepo) CountByOriginSince(_ context.Context, purpose domain.LedgerPurpose, origin string, since time.Time) (port.WindowStats, error) {
	return r.window(func(e domain.LedgerEntry) bool { return e.Purpose == purpose && e.OriginIP == origin }, since), nil
}

func (r *fakeLedgerRepo) window(match func(domain.LedgerEntry) bool, since time.Time) port.WindowStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats port.WindowStats
	for _, e := range r.entries {
		if !match(e) || e.CreatedAt.Before(since) {
			continue
		}
		stats.Count++
		if stats.Oldest == nil || e.CreatedAt.Before(*stats.Oldest) {
			created := e.CreatedAt
			stats.Oldest = &created
		}
	}
	return stats
}

func (r *fakeLedgerRepo) PurgeExpired(_ context.Context, purpose domain.LedgerPurpose, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	var removed int64
	for _, e := range r.entries {
		if e.Purpose == purpose && e.ExpiresAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

func (r *fakeLedgerRepo) byID(t *testing.T, id string) domain.LedgerEntry {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("ledger entry %s not found", id)
	return domain.LedgerEntry{}
}

type fakeLoginEvents struct {
	mu     sync.Mutex
	events []domain.LoginEvent
	err    error
}

func (r *fakeLoginEvents) Record(_ context.Context, event domain.LoginEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *fakeLoginEvents) reasons() []domain.LoginReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LoginReason, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Reason)
	}
	return out
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []port.Message
	err      error
}

func (n *fakeNotifier) Send(_ context.Context, msg port.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return n.err
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// lastCode extracts the code from the most recent message.
func (n *fakeNotifier) lastCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		t.Fatal("no message was sent")
	}
	match := codePattern.FindStringSubmatch(n.messages[len(n.messages)-1].Body)
	if match == nil {
		t.Fatalf("no code in message body %q", n.messages[len(n.messages)-1].Body)
	}
	return match[1]
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fakePublisher struct {
	mu     sync.Mutex
	types  []string
	locked []domain.AccountLockedEvent
	err    error
}

func (p *fakePublisher) add(eventType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return p.err
}

func (p *fakePublisher) PublishAccountRegistered(context.Context, domain.AccountRegisteredEvent) error {
	return p.add("account.registered")
}

func (p *fakePublisher) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	return p.add("account.password.changed")
}

func (p *fakePublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.mu.Lock()
	p.locked = append(p.locked, event)
	p.mu.Unlock()
	return p.add("account.locked")
}

func (p *fakePublisher) PublishAccountStatusChanged(context.Context, domain.AccountStatusChangedEvent) error {
	return p.add("account.status.changed")
}

func (p *fakePublisher) PublishAccountRoleChanged(context.Context, domain.AccountRoleChangedEvent) error {
	return p.add("account.role.changed")
}

func (p *fakePublisher) PublishRecoveryRequested(context.Context, domain.RecoveryRequestedEvent) error {
	return p.add("recovery.requested")
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]string(nil), p.types...)
	sort.Strings(out)
	return out
}

type fakeStateCache struct {
	mu      sync.Mutex
	states  map[string]domain.AccountState
	writes  int
	deletes int
	getErr  error
	setErr  error
	delErr  error
}

func newFakeStateCache() *fakeStateCache {
	return &fakeStateCache{states: make(map[string]domain.AccountState)}
}

func (c *fakeStateCache) GetAccountState(_ context.Context, accountID string) (*domain.AccountState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	state, ok := c.states[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &state, nil
}

// SetAccountState keeps the higher version, like the Redis cache.
func (c *fakeStateCache) SetAccountState(_ context.Context, state domain.AccountState, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.writes++
	if current, ok := c.states[state.AccountID]; ok && current.Version > state.Version {
		return nil
	}
	c.states[state.AccountID] = state
	return nil
}

func (c *fakeStateCache) DeleteAccountState(_ context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	if c.delErr != nil {
		return c.delErr
	}
	delete(c.states, accountID)
	return nil
}

func (c *fakeStateCache) cached(accountID string) (domain.AccountState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[accountID]
	return state, ok
}

type fakeMetrics struct {
	mu       sync.Mutex
	issued   map[string]int
	verified map[string]int
	logins   map[string]int
	hits     int
	misses   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{issued: map[string]int{}, verified: map[string]int{}, logins: map[string]int{}}
}

func (m *fakeMetrics) IncOTPIssued(purpose string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued[purpose]++
}

func (m *fakeMetrics) IncOTPVerify(purpose, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verified[purpose+":"+outcome]++
}

func (m *fakeMetrics) IncLogin(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[reason]++
}

func (m *fakeMetrics) IncAccountStateLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
	testKeyErr  error
)

func newTestJWTManager(t *testing.T) *security.JWTManager {
	t.Helper()
	testKeyOnce.Do(func() {
		testKey, testKeyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if testKeyErr != nil {
		t.Fatalf("generate rsa key: %v", testKeyErr)
	}
	provider, err := security.NewStaticKeyProvider("test-key", testKey)
	if err != nil {
		t.Fatalf("static key provider: %v", err)
	}
	return security.NewJWTManager(provider, "trendkart")
}

// credentialFixture wires every service over shared in-memory fakes.
type credentialFixture struct {
	clock     *testClock
	accounts  *fakeAccountRepo
	ledger    *fakeLedgerRepo
	logins    *fakeLoginEvents
	hasher    *fakeHasher
	notifier  *fakeNotifier
	publisher *fakePublisher
	cache     *fakeStateCache
	metrics   *fakeMetrics

	otp      *OTPManager
	tokens   *TokenService
	signup   *SignupService
	recovery *RecoveryService
	auth     *AuthService
	admin    *AccountService
}

func newCredentialFixture(t *testing.T, accounts ...domain.Account) *credentialFixture {
	t.Helper()

	f := &credentialFixture{
		clock:     newTestClock(),
		accounts:  newFakeAccountRepo(accounts...),
		ledger:    &fakeLedgerRepo{},
		logins:    &fakeLoginEvents{},
		hasher:    &fakeHasher{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		cache:     newFakeStateCache(),
		metrics:   newFakeMetrics(),
	}
	log := zaptest.NewLogger(t)

	otpCfg := config.OTPSettings{
		Length:         6,
		TTL:            5 * time.Minute,
		MaxAttempts:    5,
		LockDuration:   10 * time.Minute,
		IdentityWindow: 15 * time.Minute,
		IdentityLimit:  3,
		OriginWindow:   time.Hour,
		OriginLimit:    5,
	}

	f.otp = NewOTPManager(f.ledger, NewRateGovernor(f.ledger, otpCfg), f.hasher, f.notifier, otpCfg, log)
	f.otp.WithClock(f.clock.Now)
	f.otp.WithMetrics(f.metrics)

	f.tokens = NewTokenService(newTestJWTManager(t), f.accounts, f.cache,
		config.JWTSettings{AccessTokenTTL: 7 * 24 * time.Hour},
		config.RedisSettings{AccountStateTTL: time.Minute}, log)
	f.tokens.WithClock(f.clock.Now)
	f.tokens.WithMetrics(f.metrics)

	f.signup = NewSignupService(f.accounts, f.otp, f.hasher, f.tokens, f.publisher, log)
	f.signup.WithClock(f.clock.Now)

	f.recovery = NewRecoveryService(f.accounts, f.otp, f.hasher, security.NewPasswordPolicy(8, 0), f.tokens, f.publisher, log)
	f.recovery.WithClock(f.clock.Now)

	governor := NewLoginGovernor(f.accounts, config.LockoutSettings{MaxFailures: 5, LockDuration: 15 * time.Minute})
	f.auth = NewAuthService(f.accounts, f.logins, governor, f.hasher, f.tokens, f.publisher, log)
	f.auth.WithClock(f.clock.Now)
	f.auth.WithMetrics(f.metrics)

	f.admin = NewAccountService(f.accounts, f.tokens, f.publisher, log)
	f.admin.WithClock(f.clock.Now)

	return f
}

func existingAccount(id, name, email, password string) domain.Account {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Account{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: "hashed:" + password,
		Role:         domain.RoleCustomer,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func requireRateLimit(t *testing.T, err error, scope string, target error) *RateLimitExceededError {
	t.Helper()
	var rateErr *RateLimitExceededError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
	if rateErr.Scope != scope {
		t.Fatalf("expected scope %s, got %s", scope, rateErr.Scope)
	}
	if !errors.Is(err, target) {
		t.Fatalf("expected %v to wrap %v", err, target)
	}
	return rateErr
}
