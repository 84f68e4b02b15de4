package domain

import "time"

// LedgerPurpose distinguishes the two one-time code flows.
type LedgerPurpose string

const (
	PurposeSignup   LedgerPurpose = "signup"
	PurposeRecovery LedgerPurpose = "recovery"
)

// LedgerEntry is one issued one-time code and its verification state.
//
// Subject is the normalized email for signup entries and the account id for
// recovery entries. Name and PasswordHash are only populated for signup.
type LedgerEntry struct {
	ID           string
	Purpose      LedgerPurpose
	Subject      string
	Name         string
	PasswordHash string
	CodeHash     string
	ExpiresAt    time.Time
	AttemptCount int
	LockedUntil  *time.Time
	OriginIP     string
	Used         bool
	CreatedAt    time.Time
}

// IsLocked reports whether the entry refuses verification at the given instant.
func (e LedgerEntry) IsLocked(now time.Time) bool {
	return e.LockedUntil != nil && e.LockedUntil.After(now)
}

// IsUsable reports whether the entry can still be verified.
func (e LedgerEntry) IsUsable(now time.Time) bool {
	return !e.Used && !e.ExpiresAt.Before(now)
}

// LoginReason is the audit reason code of a login attempt.
type LoginReason string

const (
	LoginReasonNotFound      LoginReason = "not_found"
	LoginReasonLocked        LoginReason = "locked"
	LoginReasonDisabled      LoginReason = "disabled"
	LoginReasonWrongPassword LoginReason = "wrong_password"
	LoginReasonSuccess       LoginReason = "success"
)

// LoginEvent is an immutable audit record of a single login attempt.
type LoginEvent struct {
	ID         string
	AccountID  *string
	Identifier string
	OriginIP   string
	UserAgent  string
	Success    bool
	Reason     LoginReason
	CreatedAt  time.Time
}
