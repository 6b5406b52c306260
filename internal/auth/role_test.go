package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/types"
)

func TestKeyringResolve(t *testing.T) {
	k, err := NewKeyring([]config.APIKeyConfig{
		{Key: "member-key", Role: "member"},
		{Key: "admin-key", Role: "Admin"},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key     string
		want    Role
		wantErr error
	}{
		{"", RoleAnonymous, nil},
		{"member-key", RoleMember, nil},
		{"admin-key", RoleAdmin, nil},
		{"nope", RoleAnonymous, types.ErrUnauthorized},
	}
	for _, tt := range tests {
		got, err := k.Resolve(tt.key)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Resolve(%q) error = %v, want %v", tt.key, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestNewKeyringRejectsBadEntries(t *testing.T) {
	if _, err := NewKeyring([]config.APIKeyConfig{{Key: "k", Role: "root"}}); err == nil {
		t.Error("expected unknown role error")
	}
	if _, err := NewKeyring([]config.APIKeyConfig{{Key: "", Role: "admin"}}); err == nil {
		t.Error("expected empty key error")
	}
}

func TestRoleAllows(t *testing.T) {
	if !RoleAdmin.Allows(RoleMember) || RoleMember.Allows(RoleAdmin) || !RoleAnonymous.Allows(RoleAnonymous) {
		t.Error("role ordering broken")
	}
	if RoleAdmin.String() != "admin" || Role(42).String() != "anonymous" {
		t.Error("unexpected role names")
	}
}

func TestRoleContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != RoleAnonymous {
		t.Error("empty context should be anonymous")
	}
	if FromContext(WithRole(ctx, RoleAdmin)) != RoleAdmin {
		t.Error("role not carried in context")
	}
}
