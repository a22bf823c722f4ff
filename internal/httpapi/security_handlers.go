package httpapi

import (
	"net/http"
	"strings"

	"kense.org/internal/auth"
)

const (
	PermSecurityUnlock = "security:unlock"
	PermSecurityView   = "security:view"
)

type unlockRequest struct {
	Username string `json:"username"`
	Address  string `json:"address"`
}

func (a *API) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	r, ok := a.requireAccess(w, r, auth.Requirement{Perms: []string{PermSecurityUnlock}})
	if !ok {
		return
	}

	var req unlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, r, http.StatusBadRequest, "username is required")
		return
	}

	a.svc.Unlock(r.Context(), req.Username, req.Address)
	writeJSON(w, http.StatusOK, map[string]any{"status": "unlocked"})
}

func (a *API) handleSecurityStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	r, ok := a.requireAccess(w, r, auth.Requirement{Perms: []string{PermSecurityView}})
	if !ok {
		return
	}

	username := strings.TrimSpace(r.URL.Query().Get("username"))
	writeJSON(w, http.StatusOK, a.svc.StatsFor(username))
}
