package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLocked   = "locked"
)

// SuperAdminRole short-circuits every role and permission requirement.
const SuperAdminRole = "super_admin"

// User represents an administrative account with its resolved role graph.
// The auth core only reads users and writes password hashes; everything else
// belongs to the user-management layer.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Status       string
	Roles        []Role
	LastLoginAt  time.Time
	LastLoginIP  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role groups permissions under a name such as "operator".
type Role struct {
	ID          string
	Name        string
	Description string
	Permissions []Permission
}

// Permission is a fine-grained capability key such as "user:create".
type Permission struct {
	ID   string
	Name string
}

// IsActive reports whether the account may authenticate and act.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// RoleNames returns the user's role names in assignment order.
func (u *User) RoleNames() []string {
	if u == nil || len(u.Roles) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// PrimaryRole returns the first assigned role name, or empty.
func (u *User) PrimaryRole() string {
	if u == nil || len(u.Roles) == 0 {
		return ""
	}
	return u.Roles[0].Name
}

// HasRole reports whether the user holds the named role.
func (u *User) HasRole(name string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// PermissionSet computes the effective permission set: the deduplicated union
// of permission names across every role. It is recomputed on each call and
// never cached, so a role change takes effect on the next request.
func (u *User) PermissionSet() map[string]struct{} {
	if u == nil {
		return map[string]struct{}{}
	}
	set := make(map[string]struct{})
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			if p.Name == "" {
				continue
			}
			set[p.Name] = struct{}{}
		}
	}
	return set
}

// PermissionNames returns the effective permission set as a sorted-free slice
// in first-seen order.
func (u *User) PermissionNames() []string {
	if u == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			if p.Name == "" {
				continue
			}
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			names = append(names, p.Name)
		}
	}
	return names
}

// AuthUser is the resolved view attached to the request context after a
// successful authorization decision.
type AuthUser struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
