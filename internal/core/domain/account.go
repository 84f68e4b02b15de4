package domain

import (
	"strings"
	"time"
)

// Role enumerates the account role tags known to the marketplace.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleCustomer   Role = "CUSTOMER"
	RoleHelper     Role = "HELPER"
)

// Valid reports whether the role is one of the known tags.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleCustomer, RoleHelper:
		return true
	default:
		return false
	}
}

// PasswordHistoryLimit caps the number of prior hashes kept on an account.
const PasswordHistoryLimit = 3

// PasswordHistoryEntry records a retired password hash.
type PasswordHistoryEntry struct {
	Hash      string    `json:"hash"`
	ChangedAt time.Time `json:"changed_at"`
}

// Account is the durable identity record of a marketplace user.
type Account struct {
	ID              string
	Name            string
	Username        *string
	Email           string
	PasswordHash    string
	PasswordHistory []PasswordHistoryEntry
	Role            Role
	Disabled        bool
	FailedLogins    int
	LockUntil       *time.Time
	PasswordEpoch   int64
	StateVersion    int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsLocked reports whether the login lock is still in force at the given instant.
func (a Account) IsLocked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// HandleValue returns the username or an empty string.
func (a Account) HandleValue() string {
	if a.Username == nil {
		return ""
	}
	return *a.Username
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsEmailIdentifier reports whether an identifier should be matched against email.
func IsEmailIdentifier(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// AccountState is the subset of account fields needed to validate a token.
// Version increases with every password, disabled or role change, so a cache
// can tell a stale copy from a newer one.
type AccountState struct {
	AccountID     string
	Version       int64
	PasswordEpoch int64
	Disabled      bool
	Role          Role
}

// State projects the token-relevant fields of the account.
func (a Account) State() AccountState {
	return AccountState{
		AccountID:     a.ID,
		Version:       a.StateVersion,
		PasswordEpoch: a.PasswordEpoch,
		Disabled:      a.Disabled,
		Role:          a.Role,
	}
}
