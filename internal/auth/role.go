// Package auth normalises bearer tokens into a closed role enumeration.
package auth

import (
	"context"
	"strings"
)

// Role is the requester's privilege level.
type Role int

const (
	RoleNone Role = iota
	RoleStaff
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleStaff:
		return "staff"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

// CanDeleteLogs reports whether the role may delete activity log entries.
func (r Role) CanDeleteLogs() bool { return r == RoleAdmin }

// AtLeast reports whether r grants at least the privileges of required.
func (r Role) AtLeast(required Role) bool { return r >= required }

// ParseRole maps a loosely typed role claim onto a Role. Unknown values map
// to RoleNone. Lists resolve to their most privileged member.
func ParseRole(value any) Role {
	switch v := value.(type) {
	case string:
		return parseRoleName(v)
	case []string:
		best := RoleNone
		for _, s := range v {
			if r := parseRoleName(s); r > best {
				best = r
			}
		}
		return best
	case []any:
		best := RoleNone
		for _, item := range v {
			if r := ParseRole(item); r > best {
				best = r
			}
		}
		return best
	case bool:
		// {"isAdmin": true}-style payloads.
		if v {
			return RoleAdmin
		}
		return RoleNone
	default:
		return RoleNone
	}
}

func parseRoleName(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "administrator", "superadmin":
		return RoleAdmin
	case "staff", "mentor", "user":
		return RoleStaff
	default:
		return RoleNone
	}
}

type contextKey struct{}

// Principal is the authenticated requester.
type Principal struct {
	Subject string
	Role    Role
}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored on ctx, or an anonymous one.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(contextKey{}).(Principal); ok {
		return p
	}
	return Principal{Role: RoleNone}
}
