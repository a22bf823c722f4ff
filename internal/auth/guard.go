package auth

import "context"

// Requirement declares the access rules of an endpoint: the caller must hold
// at least one of Roles (logical OR) and every entry of Perms (logical AND).
// A zero Requirement allows any authenticated caller.
type Requirement struct {
	Roles []string
	Perms []string
}

// IsZero reports whether no role or permission demands are declared.
func (r Requirement) IsZero() bool {
	return len(r.Roles) == 0 && len(r.Perms) == 0
}

// Guard is the per-request access decision point. Stage A verifies the bearer
// credential and the caller's live status; Stage B evaluates declared
// requirements against a freshly loaded role/permission graph.
type Guard struct {
	dir    Directory
	issuer *Issuer
}

// NewGuard wires a Guard.
func NewGuard(dir Directory, issuer *Issuer) *Guard {
	return &Guard{dir: dir, issuer: issuer}
}

// Authenticate is Stage A. Token validity is necessary but not sufficient:
// the user is re-loaded by subject id and must still be active, because
// status can change after issuance and there is no revocation list. Directory
// failures, including cancellation, fail closed as ErrUnauthorized.
func (g *Guard) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := g.issuer.Parse(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	user, err := g.dir.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive() {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// Authorize is Stage B. The role/permission graph is always re-loaded from
// the directory rather than taken from the Stage A result, so a role change
// takes effect on the caller's very next request. A super-admin role allows
// unconditionally, before any role or permission evaluation.
func (g *Guard) Authorize(ctx context.Context, userID string, req Requirement) (AuthUser, error) {
	if req.IsZero() {
		return AuthUser{}, nil
	}
	user, err := g.dir.FindByID(ctx, userID)
	if err != nil {
		return AuthUser{}, ErrUnauthorized
	}

	view := AuthUser{
		ID:          user.ID,
		Username:    user.Username,
		Roles:       user.RoleNames(),
		Permissions: user.PermissionNames(),
	}

	if user.HasRole(SuperAdminRole) {
		return view, nil
	}

	if len(req.Roles) > 0 {
		held := false
		for _, role := range req.Roles {
			if user.HasRole(role) {
				held = true
				break
			}
		}
		if !held {
			return AuthUser{}, &RoleError{Required: req.Roles}
		}
	}

	if len(req.Perms) > 0 {
		set := user.PermissionSet()
		var missing []string
		for _, perm := range req.Perms {
			if _, ok := set[perm]; !ok {
				missing = append(missing, perm)
			}
		}
		if len(missing) > 0 {
			return AuthUser{}, &PermissionError{Missing: missing}
		}
	}

	return view, nil
}
