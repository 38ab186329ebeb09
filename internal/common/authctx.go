package common

import (
	"context"
	"slices"
	"sync/atomic"
)

type ctxKey string

const (
	userIDKey    ctxKey = "auth/user-id"
	rolesKey     ctxKey = "auth/roles"
	principalKey ctxKey = "auth/principal"
)

// Principal is filled in by authentication further down the middleware chain
// so outer middleware (request logs, audit) can see who made the request
// after the handler returns.
type Principal struct {
	userID atomic.Pointer[string]
}

// UserID returns the recorded user id, or "" for anonymous requests.
func (p *Principal) UserID() string {
	if p == nil {
		return ""
	}
	if id := p.userID.Load(); id != nil {
		return *id
	}
	return ""
}

// WithPrincipal attaches an empty Principal to ctx.
func WithPrincipal(ctx context.Context) (context.Context, *Principal) {
	p := &Principal{}
	return context.WithValue(ctx, principalKey, p), p
}

// PrincipalFrom returns the Principal attached by WithPrincipal, if any.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// WithUserID stores the authenticated user identifier on the provided context
// and records it on the request Principal when one is attached.
func WithUserID(ctx context.Context, id string) context.Context {
	if p := PrincipalFrom(ctx); p != nil {
		p.userID.Store(&id)
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithRoles stores the roles granted to the authenticated user.
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey, append([]string(nil), roles...))
}

// HasRole reports whether the authenticated user carries role.
func HasRole(ctx context.Context, role string) bool {
	roles, _ := ctx.Value(rolesKey).([]string)
	return slices.Contains(roles, role)
}
