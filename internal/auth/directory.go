package auth

import "context"

// Directory is the narrow user-lookup contract the auth core requires from
// the persistence layer. Implementations must return users with roles and,
// transitively, permissions already resolved to plain name strings.
type Directory interface {
	// FindByID loads a user by identifier, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*User, error)
	// FindByUsername loads a user by username, or ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*User, error)
	// UpdateLastLogin records the login timestamp and source address.
	// Best-effort; callers ignore the error.
	UpdateLastLogin(ctx context.Context, id, address string) error
	// UpdatePasswordHash persists a new password digest.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// AuditSink receives security events. Recording is fire-and-forget: callers
// swallow failures so an audit outage never masks the primary outcome.
type AuditSink interface {
	Record(ctx context.Context, event string, fields map[string]any)
}

// NopAudit discards all events.
type NopAudit struct{}

func (NopAudit) Record(context.Context, string, map[string]any) {}
