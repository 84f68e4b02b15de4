package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/repository"
)

const defaultAccountStatePrefix = "credentials:account_state"

// storeNewerState writes ARGV[2] unless the cached payload carries a higher
// version than ARGV[1]. It returns 1 when the value was written.
var storeNewerState = red.NewScript(`
local current = redis.call("GET", KEYS[1])
if current then
	local version = tonumber(string.match(current, "^(%-?%d+)|"))
	if version and version > tonumber(ARGV[1]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// AccountStateCache caches the state version, password epoch, disabled flag
// and role of an account as "<version>|<epoch>|<0|1>|<role>".
type AccountStateCache struct {
	client *red.Client
	prefix string
}

// NewAccountStateCache constructs the account state cache helper.
func NewAccountStateCache(client *red.Client, keyPrefix string) *AccountStateCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultAccountStatePrefix
	}

	return &AccountStateCache{client: client, prefix: prefix}
}

// GetAccountState returns the cached state or repository.ErrNotFound on a miss.
func (c *AccountStateCache) GetAccountState(ctx context.Context, accountID string) (*domain.AccountState, error) {
	key := c.key(accountID)
	if key == "" {
		return nil, fmt.Errorf("account id is required")
	}

	result, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis get account state: %w", err)
	}

	parts := strings.SplitN(result, "|", 4)
	if len(parts) != 4 {
		return nil, fmt.Errorf("malformed cached account state %q", result)
	}

	version, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse cached state version: %w", err)
	}
	epoch, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse cached password epoch: %w", err)
	}

	role := domain.Role(parts[3])
	if !role.Valid() {
		return nil, fmt.Errorf("cached account role %q is unknown", parts[3])
	}

	return &domain.AccountState{
		AccountID:     strings.TrimSpace(accountID),
		Version:       version,
		PasswordEpoch: epoch,
		Disabled:      parts[2] == "1",
		Role:          role,
	}, nil
}

// SetAccountState stores the state with TTL. A cached state with a higher
// version is kept, so a fill read before a change cannot replace the state
// written after it.
func (c *AccountStateCache) SetAccountState(ctx context.Context, state domain.AccountState, ttl time.Duration) error {
	key := c.key(state.AccountID)
	if key == "" {
		return fmt.Errorf("account id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	disabled := "0"
	if state.Disabled {
		disabled = "1"
	}
	payload := strings.Join([]string{
		strconv.FormatInt(state.Version, 10),
		strconv.FormatInt(state.PasswordEpoch, 10),
		disabled,
		string(state.Role),
	}, "|")

	err := storeNewerState.Run(ctx, c.client, []string{key},
		state.Version, payload, ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis set account state: %w", err)
	}

	return nil
}

// DeleteAccountState removes the cached entry.
func (c *AccountStateCache) DeleteAccountState(ctx context.Context, accountID string) error {
	key := c.key(accountID)
	if key == "" {
		return fmt.Errorf("account id is required")
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete account state: %w", err)
	}

	return nil
}

func (c *AccountStateCache) key(accountID string) string {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, accountID)
}

var _ port.AccountStateCache = (*AccountStateCache)(nil)
