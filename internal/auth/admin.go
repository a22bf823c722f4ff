package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AdminStore describes the persistence operations behind the user and role
// administration surface.
type AdminStore interface {
	CreateUser(ctx context.Context, username, passwordHash, status string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUserStatus(ctx context.Context, userID, status string) error

	CreateRole(ctx context.Context, name, description string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	SetRolePermissions(ctx context.Context, roleID string, permissionNames []string) error
	AssignRole(ctx context.Context, userID, roleID string) error
}

// AdminService validates and executes user/role administration requests.
type AdminService struct {
	store   AdminStore
	tracker *Tracker
	audit   AuditSink
}

// NewAdminService wires the administration service.
func NewAdminService(store AdminStore, tracker *Tracker, sink AuditSink) (*AdminService, error) {
	if store == nil {
		return nil, errors.New("auth: admin store is required")
	}
	if tracker == nil {
		return nil, errors.New("auth: tracker is required")
	}
	if sink == nil {
		sink = NopAudit{}
	}
	return &AdminService{store: store, tracker: tracker, audit: sink}, nil
}

// CreateUser provisions an account. The initial password must satisfy the
// strength rules; the status defaults to active.
func (s *AdminService) CreateUser(ctx context.Context, username, password, status string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	status = strings.TrimSpace(strings.ToLower(status))
	if status == "" {
		status = UserStatusActive
	}
	if !validStatus(status) {
		return User{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
	}
	report := s.tracker.ScorePassword(password)
	if !report.Valid {
		return User{}, &WeakPasswordError{Problems: report.Errors}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	user, err := s.store.CreateUser(ctx, username, hash, status)
	if err != nil {
		return User{}, err
	}
	s.audit.Record(ctx, "admin.user.create", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"status":   user.Status,
	})
	return user, nil
}

// ListUsers returns all accounts without their role graphs.
func (s *AdminService) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// UpdateUserStatus switches an account between active, inactive and locked.
// Takes effect on the target's next request: the decision point re-checks
// status every time.
func (s *AdminService) UpdateUserStatus(ctx context.Context, userID, status string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	status = strings.TrimSpace(strings.ToLower(status))
	if !validStatus(status) {
		return fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
	}
	if err := s.store.UpdateUserStatus(ctx, userID, status); err != nil {
		return err
	}
	s.audit.Record(ctx, "admin.user.status", map[string]any{
		"user_id": userID,
		"status":  status,
	})
	return nil
}

// CreateRole registers a role.
func (s *AdminService) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role, err := s.store.CreateRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, err
	}
	s.audit.Record(ctx, "admin.role.create", map[string]any{
		"role_id": role.ID,
		"name":    role.Name,
	})
	return role, nil
}

// ListRoles returns all roles with their permissions.
func (s *AdminService) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// SetRolePermissions replaces a role's permission set.
func (s *AdminService) SetRolePermissions(ctx context.Context, roleID string, permissions []string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if err := s.store.SetRolePermissions(ctx, roleID, dedupeStrings(permissions)); err != nil {
		return err
	}
	s.audit.Record(ctx, "admin.role.permissions", map[string]any{
		"role_id":     roleID,
		"permissions": dedupeStrings(permissions),
	})
	return nil
}

// AssignRole appends a role to a user's ordered role list.
func (s *AdminService) AssignRole(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	if err := s.store.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.audit.Record(ctx, "admin.user.assign_role", map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	return nil
}

func validStatus(status string) bool {
	switch status {
	case UserStatusActive, UserStatusInactive, UserStatusLocked:
		return true
	}
	return false
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
