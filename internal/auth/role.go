// Package auth resolves API keys to roles and carries the role in the
// request context.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/types"
)

// Role is the caller's privilege level. Higher values include lower ones.
type Role int

const (
	RoleAnonymous Role = iota
	RoleMember
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// Allows reports whether r satisfies the required role.
func (r Role) Allows(required Role) bool {
	return r >= required
}

// ParseRole maps a configured role name to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member":
		return RoleMember, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleAnonymous, fmt.Errorf("unknown role %q", s)
	}
}

// Keyring maps static API keys to roles.
type Keyring struct {
	keys []keyEntry
}

type keyEntry struct {
	key  []byte
	role Role
}

// NewKeyring builds a Keyring from the configured keys.
func NewKeyring(entries []config.APIKeyConfig) (*Keyring, error) {
	k := &Keyring{}
	for i, e := range entries {
		role, err := ParseRole(e.Role)
		if err != nil {
			return nil, fmt.Errorf("api key %d: %w", i, err)
		}
		if e.Key == "" {
			return nil, fmt.Errorf("api key %d: empty key", i)
		}
		k.keys = append(k.keys, keyEntry{key: []byte(e.Key), role: role})
	}
	return k, nil
}

// Resolve returns the role for key. An empty key is anonymous; a key that
// matches nothing is types.ErrUnauthorized.
func (k *Keyring) Resolve(key string) (Role, error) {
	if key == "" {
		return RoleAnonymous, nil
	}
	for _, e := range k.keys {
		if subtle.ConstantTimeCompare(e.key, []byte(key)) == 1 {
			return e.role, nil
		}
	}
	return RoleAnonymous, types.ErrUnauthorized
}

// Len returns the number of configured keys.
func (k *Keyring) Len() int {
	return len(k.keys)
}

type roleKey struct{}

// WithRole returns a context carrying role.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// FromContext returns the role in ctx, or RoleAnonymous.
func FromContext(ctx context.Context) Role {
	if r, ok := ctx.Value(roleKey{}).(Role); ok {
		return r
	}
	return RoleAnonymous
}
