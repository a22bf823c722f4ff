package auth

import (
	"context"
	"strings"
)

// Validator checks submitted credentials against the directory, consulting
// the tracker before and after so lockout policy is enforced and fed.
type Validator struct {
	dir     Directory
	tracker *Tracker
}

// NewValidator wires a Validator. Both dependencies are required.
func NewValidator(dir Directory, tracker *Tracker) *Validator {
	return &Validator{dir: dir, tracker: tracker}
}

// Validate runs the ordered credential check:
//
//  1. A locked key fails before the directory is touched, so a locked key
//     cannot probe for account existence via timing.
//  2. A failed attempt against an unknown username still counts toward that
//     key's lockout, blunting enumeration-assisted brute force.
//  3. Administrative lock and disabled status fail without recording an
//     attempt.
//  4. The password verdict is recorded either way.
//
// Directory failures (including context cancellation) are treated as
// not-found for fail-closed safety.
func (v *Validator) Validate(ctx context.Context, username, password, address, userAgent string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if strings.TrimSpace(address) != "" && v.tracker.IsLocked(username, address) {
		return nil, &AccountLockedError{
			RemainingMinutes: v.tracker.RemainingLockMinutes(username, address),
		}
	}

	user, err := v.dir.FindByUsername(ctx, username)
	if err != nil {
		v.tracker.RecordAttempt(username, address, false, userAgent)
		return nil, ErrInvalidCredentials
	}

	switch user.Status {
	case UserStatusLocked:
		return nil, ErrAccountAdminLocked
	case UserStatusInactive:
		return nil, ErrAccountDisabled
	}

	ok := VerifyPassword(password, user.PasswordHash)
	v.tracker.RecordAttempt(username, address, ok, userAgent)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
