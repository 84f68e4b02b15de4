package domain

import "time"

// AccountRegisteredEvent represents the payload for account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Name         string
	Email        string
	Role         Role
	RegisteredAt time.Time
	OriginIP     string
	Metadata     map[string]any
}

// PasswordChangedEvent represents the payload for account.password.changed messages.
type PasswordChangedEvent struct {
	EventID       string
	AccountID     string
	PasswordEpoch int64
	ChangedAt     time.Time
	Method        string
	OriginIP      string
	Metadata      map[string]any
}

// AccountLockedEvent represents the payload for account.locked messages.
type AccountLockedEvent struct {
	EventID     string
	AccountID   string
	LockedAt    time.Time
	LockedUntil time.Time
	OriginIP    string
	Metadata    map[string]any
}

// AccountStatusChangedEvent represents the payload for account.status.changed messages.
type AccountStatusChangedEvent struct {
	EventID   string
	AccountID string
	Disabled  bool
	ChangedBy string
	ChangedAt time.Time
	Metadata  map[string]any
}

// AccountRoleChangedEvent represents the payload for account.role.changed messages.
type AccountRoleChangedEvent struct {
	EventID      string
	AccountID    string
	PreviousRole Role
	Role         Role
	ChangedBy    string
	ChangedAt    time.Time
	Metadata     map[string]any
}

// RecoveryRequestedEvent represents the payload for recovery.requested messages.
type RecoveryRequestedEvent struct {
	EventID     string
	AccountID   string
	EntryID     string
	MaskedEmail string
	OriginIP    string
	RequestedAt time.Time
	ExpiresAt   time.Time
	Metadata    map[string]any
}
