// Package access holds the authenticated principal and the permission checks
// that gate shop operations. Nothing here touches storage.
package access

import (
	"sort"
	"strings"

	"github.com/example/storefront/internal/apperr"
)

// Permission is a capability tag granted to a user.
type Permission string

const (
	PermAdmin            Permission = "ADMIN"
	PermUser             Permission = "USER"
	PermItemCreate       Permission = "ITEMCREATE"
	PermItemUpdate       Permission = "ITEMUPDATE"
	PermItemDelete       Permission = "ITEMDELETE"
	PermPermissionUpdate Permission = "PERMISSIONUPDATE"
)

// AllPermissions lists every permission in display order.
func AllPermissions() []Permission {
	return []Permission{PermAdmin, PermUser, PermItemCreate, PermItemUpdate, PermItemDelete, PermPermissionUpdate}
}

// ParsePermission accepts the upper-case tag, ignoring surrounding space and case.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllPermissions() {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Set is an unordered collection of permissions.
type Set map[Permission]struct{}

func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// ParseSet converts names to a Set, rejecting unknown names.
func ParseSet(names []string) (Set, error) {
	s := make(Set, len(names))
	for _, n := range names {
		p, ok := ParsePermission(n)
		if !ok {
			return nil, apperr.Validation("unknown permission " + strings.TrimSpace(n))
		}
		s[p] = struct{}{}
	}
	return s, nil
}

func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Intersects reports whether s and other share at least one permission.
func (s Set) Intersects(other Set) bool {
	for p := range other {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Slice returns the permissions sorted by name.
func (s Set) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted permission names.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for _, p := range s.Slice() {
		out = append(out, string(p))
	}
	return out
}

// Principal is the identity behind an authenticated request. Permissions are
// always loaded from storage, never from the session token.
type Principal struct {
	UserID      string
	Email       string
	Permissions Set
}

// RequireAuthenticated returns the caller's user id or Unauthenticated.
func RequireAuthenticated(p *Principal) (string, error) {
	if p == nil || p.UserID == "" {
		return "", apperr.Unauthenticated("you must be logged in to do that")
	}
	return p.UserID, nil
}

// RequirePermission grants when the principal holds any of required.
func RequirePermission(p *Principal, required ...Permission) error {
	if _, err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.Permissions.Intersects(NewSet(required...)) {
		return nil
	}
	return apperr.Forbidden("you do not have sufficient permissions")
}

// RequireOwnerOrPermission grants when the principal owns the resource,
// falling back to RequirePermission otherwise.
func RequireOwnerOrPermission(p *Principal, ownerID string, required ...Permission) error {
	if _, err := RequireAuthenticated(p); err != nil {
		return err
	}
	if ownerID != "" && p.UserID == ownerID {
		return nil
	}
	return RequirePermission(p, required...)
}
