package auth

import (
	"context"
	"errors"
	"time"
)

// Service bundles the login, password and lockout-administration flows on top
// of the validator, tracker and issuer.
type Service struct {
	dir       Directory
	tracker   *Tracker
	issuer    *Issuer
	validator *Validator
	audit     AuditSink
	now       func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAuditSink routes security events to the given sink.
func WithAuditSink(sink AuditSink) ServiceOption {
	return func(s *Service) error {
		if sink != nil {
			s.audit = sink
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the Service. Directory, tracker and issuer are
// required.
func NewService(dir Directory, tracker *Tracker, issuer *Issuer, opts ...ServiceOption) (*Service, error) {
	if dir == nil {
		return nil, errors.New("auth: directory is required")
	}
	if tracker == nil {
		return nil, errors.New("auth: tracker is required")
	}
	if issuer == nil {
		return nil, errors.New("auth: issuer is required")
	}
	svc := &Service{
		dir:       dir,
		tracker:   tracker,
		issuer:    issuer,
		validator: NewValidator(dir, tracker),
		audit:     NopAudit{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Tracker exposes the underlying login security tracker.
func (s *Service) Tracker() *Tracker { return s.tracker }

// Login validates credentials and mints a session. The last-login update is
// best-effort and never blocks issuance.
func (s *Service) Login(ctx context.Context, username, password, address, userAgent string) (Session, AuthUser, error) {
	user, err := s.validator.Validate(ctx, username, password, address, userAgent)
	if err != nil {
		s.audit.Record(ctx, "auth.login.denied", map[string]any{
			"username": username,
			"address":  address,
			"reason":   denialReason(err),
		})
		return Session{}, AuthUser{}, err
	}

	session, err := s.issuer.Issue(user)
	if err != nil {
		return Session{}, AuthUser{}, err
	}
	_ = s.dir.UpdateLastLogin(ctx, user.ID, address)

	s.audit.Record(ctx, "auth.login", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"address":  address,
	})
	view := AuthUser{
		ID:          user.ID,
		Username:    user.Username,
		Roles:       user.RoleNames(),
		Permissions: user.PermissionNames(),
	}
	return session, view, nil
}

// ChangePassword verifies the current password, scores the replacement and
// persists the new hash. The replacement must differ from the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.dir.FindByID(ctx, userID)
	if err != nil {
		return ErrUnauthorized
	}
	if !VerifyPassword(current, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if next == current {
		return ErrPasswordUnchanged
	}
	report := s.tracker.ScorePassword(next)
	if !report.Valid {
		return &WeakPasswordError{Problems: report.Errors}
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.dir.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	s.audit.Record(ctx, "auth.password.changed", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})
	return nil
}

// Unlock removes the lockout and attempt history for a username+address key.
// Operator override; audited.
func (s *Service) Unlock(ctx context.Context, username, address string) {
	s.tracker.Unlock(username, address)
	s.audit.Record(ctx, "auth.lockout.cleared", map[string]any{
		"username": username,
		"address":  address,
	})
}

// ScorePassword exposes strength scoring for the self-service endpoint.
func (s *Service) ScorePassword(password string) StrengthReport {
	return s.tracker.ScorePassword(password)
}

// StatsFor aggregates recorded attempts, optionally filtered to a username.
func (s *Service) StatsFor(username string) Stats {
	return s.tracker.Stats(username)
}

func denialReason(err error) string {
	var locked *AccountLockedError
	switch {
	case errors.As(err, &locked):
		return "locked"
	case errors.Is(err, ErrAccountAdminLocked):
		return "admin_locked"
	case errors.Is(err, ErrAccountDisabled):
		return "disabled"
	default:
		return "invalid_credentials"
	}
}
