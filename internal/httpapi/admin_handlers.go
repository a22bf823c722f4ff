package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"kense.org/internal/auth"
)

const RoleAdmin = "admin"

const (
	permUserCreate = "user:create"
	permUserView   = "user:view"
	permUserUpdate = "user:update"
	permUserAssign = "user:assign-role"
	permRoleCreate = "role:create"
	permRoleView   = "role:view"
	permRoleUpdate = "role:update"
)

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Status   string `json:"status"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type userView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Status      string `json:"status"`
	LastLoginIP string `json:"last_login_ip,omitempty"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		r, ok := a.requireAccess(w, r, auth.Requirement{
			Roles: []string{RoleAdmin},
			Perms: []string{permUserCreate},
		})
		if !ok {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.admin.CreateUser(r.Context(), req.Username, req.Password, req.Status)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
		writeJSON(w, http.StatusCreated, userView{ID: user.ID, Username: user.Username, Status: user.Status})
	case http.MethodGet:
		r, ok := a.requireAccess(w, r, auth.Requirement{Perms: []string{permUserView}})
		if !ok {
			return
		}
		users, err := a.admin.ListUsers(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		views := make([]userView, 0, len(users))
		for _, u := range users {
			views = append(views, userView{
				ID:          u.ID,
				Username:    u.Username,
				Status:      u.Status,
				LastLoginIP: u.LastLoginIP,
			})
		}
		writeJSON(w, http.StatusOK, views)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	parts := scopedParts(r.URL.Path, "/v1/users/")
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]
	switch parts[1] {
	case "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		r, ok := a.requireAccess(w, r, auth.Requirement{Perms: []string{permUserUpdate}})
		if !ok {
			return
		}
		var req updateStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.admin.UpdateUserStatus(r.Context(), userID, req.Status); err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": req.Status})
	case "roles":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		r, ok := a.requireAccess(w, r, auth.Requirement{Perms: []string{permUserAssign}})
		if !ok {
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.admin.AssignRole(r.Context(), userID, req.RoleID); err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"user_id": userID, "role_id": req.RoleID})
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		r, ok := a.requireAccess(w, r, auth.Requirement{Perms: []string{permRoleCreate}})
		if !ok {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.admin.CreateRole(r.Context(), req.Name, req.Description)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	case http.MethodGet:
		r, ok := a.requireAccess(w, r, auth.Requirement{Perms: []string{permRoleView}})
		if !ok {
			return
		}
		roles, err := a.admin.ListRoles(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, roles)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleRoleScoped(w http.ResponseWriter, r *http.Request) {
	parts := scopedParts(r.URL.Path, "/v1/roles/")
	if len(parts) != 2 || parts[1] != "permissions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	r, ok := a.requireAccess(w, r, auth.Requirement{Perms: []string{permRoleUpdate}})
	if !ok {
		return
	}
	var req setPermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.admin.SetRolePermissions(r.Context(), parts[0], req.Permissions); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role_id": parts[0], "permissions": req.Permissions})
}

func scopedParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
