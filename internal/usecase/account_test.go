package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
)

const (
	rootID  = "6f1c2d3e-0000-4000-8000-000000000001"
	janeID  = "6f1c2d3e-0000-4000-8000-000000000002"
	ghostID = "6f1c2d3e-0000-4000-8000-0000000000ff"
)

func newAdminFixture(t *testing.T) *credentialFixture {
	t.Helper()
	root := existingAccount(rootID, "Root", "root@example.com", "Root-pass1!")
	root.Role = domain.RoleSuperAdmin
	return newCredentialFixture(t, root, existingAccount(janeID, "Jane", "jane@example.com", "Pass-word1!"))
}

func TestAccountServiceToggleDisabled(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	issued, err := f.tokens.Issue(ctx, f.accounts.get(t, janeID))
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := f.tokens.Verify(ctx, issued.Token); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	updated, err := f.admin.ToggleDisabled(ctx, rootID, janeID)
	if err != nil {
		t.Fatalf("ToggleDisabled returned error: %v", err)
	}
	if !updated.Disabled {
		t.Fatal("expected account to be disabled")
	}

	if _, err := f.tokens.Verify(ctx, issued.Token); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected tokens of a disabled account to be refused, got %v", err)
	}

	updated, err = f.admin.ToggleDisabled(ctx, rootID, janeID)
	if err != nil {
		t.Fatalf("ToggleDisabled returned error: %v", err)
	}
	if updated.Disabled {
		t.Fatal("expected account to be enabled again")
	}
	if _, err := f.tokens.Verify(ctx, issued.Token); err != nil {
		t.Fatalf("expected token to be accepted after re-enabling, got %v", err)
	}

	if got := f.publisher.published(); len(got) != 2 || got[0] != "account.status.changed" {
		t.Fatalf("expected two status events, got %v", got)
	}
}

func TestAccountServiceChangeRole(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	updated, err := f.admin.ChangeRole(ctx, rootID, janeID, domain.Role("admin"))
	if err != nil {
		t.Fatalf("ChangeRole returned error: %v", err)
	}
	if updated.Role != domain.RoleAdmin {
		t.Fatalf("expected ADMIN, got %s", updated.Role)
	}

	issued, err := f.tokens.Issue(ctx, *updated)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	verified, err := f.tokens.Verify(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if verified.Role != domain.RoleAdmin {
		t.Fatalf("expected verified role ADMIN, got %s", verified.Role)
	}

	if _, err := f.admin.ChangeRole(ctx, rootID, janeID, domain.RoleCustomer); err != nil {
		t.Fatalf("ChangeRole returned error: %v", err)
	}
	verified, err = f.tokens.Verify(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if verified.Role != domain.RoleCustomer {
		t.Fatalf("expected role change to reach verification, got %s", verified.Role)
	}
}

func TestAccountServiceRejections(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	if _, err := f.admin.ToggleDisabled(ctx, rootID, rootID); !errors.Is(err, ErrSuperAdminProtected) {
		t.Fatalf("expected ErrSuperAdminProtected, got %v", err)
	}
	if _, err := f.admin.ChangeRole(ctx, rootID, rootID, domain.RoleAdmin); !errors.Is(err, ErrSuperAdminProtected) {
		t.Fatalf("expected ErrSuperAdminProtected, got %v", err)
	}
	if _, err := f.admin.ToggleDisabled(ctx, rootID, ghostID); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	if _, err := f.admin.ToggleDisabled(ctx, rootID, "not-a-uuid"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound for a malformed id, got %v", err)
	}

	for _, role := range []domain.Role{domain.RoleSuperAdmin, domain.RoleHelper, "OWNER", ""} {
		if _, err := f.admin.ChangeRole(ctx, rootID, janeID, role); !errors.Is(err, ErrValidation) {
			t.Fatalf("role %q: expected ErrValidation, got %v", role, err)
		}
	}

	if len(f.publisher.published()) != 0 {
		t.Fatal("rejected changes must not publish events")
	}
}

func TestAccountServiceProfile(t *testing.T) {
	f := newAdminFixture(t)

	account, err := f.admin.Profile(context.Background(), janeID)
	if err != nil {
		t.Fatalf("Profile returned error: %v", err)
	}
	if account.Email != "jane@example.com" {
		t.Fatalf("unexpected profile %+v", account)
	}

	if _, err := f.admin.Profile(context.Background(), ""); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountServiceMalformedIDSkipsLookup(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	f.accounts.getErr = errors.New("invalid input syntax for type uuid")

	if _, err := f.admin.Profile(ctx, "42; drop"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := f.admin.ChangeRole(ctx, rootID, "not-a-uuid", domain.RoleAdmin); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
