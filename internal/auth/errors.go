package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountDisabled    = errors.New("auth: account is disabled")
	ErrAccountAdminLocked = errors.New("auth: account is locked by an administrator")
	ErrTokenInvalid       = errors.New("auth: invalid token")
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrPasswordUnchanged  = errors.New("auth: new password matches the current one")
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
)

// AccountLockedError reports a brute-force lockout together with the time
// left before attempts are accepted again.
type AccountLockedError struct {
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("auth: account is locked, retry in %d minutes", e.RemainingMinutes)
}

// RoleError reports a Stage B rejection because none of the required roles
// are held by the caller.
type RoleError struct {
	Required []string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("auth: requires one of roles [%s]", strings.Join(e.Required, ", "))
}

// PermissionError reports a Stage B rejection listing the permissions the
// caller is missing.
type PermissionError struct {
	Missing []string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("auth: missing permissions [%s]", strings.Join(e.Missing, ", "))
}

// WeakPasswordError carries the list of unmet strength rules.
type WeakPasswordError struct {
	Problems []string
}

func (e *WeakPasswordError) Error() string {
	return "auth: password too weak: " + strings.Join(e.Problems, "; ")
}
