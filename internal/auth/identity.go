// Package auth implements agent enrollment, bearer-token and admin
// authentication, and per-request identity resolution.
package auth

import "context"

// Identity represents the authenticated caller for the current request:
// either a specific agent (scoped to its own resources) or an admin
// (unrestricted, authenticated via HTTP Basic against the admin token).
type Identity struct {
	AgentID string // non-empty for agent identities
	IsAdmin bool
}

// ScopedToAgent reports whether this identity may act on behalf of the
// given agent: true for the matching agent, or any admin.
func (id Identity) ScopedToAgent(agentID string) bool {
	return id.IsAdmin || id.AgentID == agentID
}

type ctxKey string

const identityKey ctxKey = "nightwatch_identity"

// NewContext stores the identity in ctx.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity previously stored by the auth
// middleware. The second return value is false if no identity is present.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
