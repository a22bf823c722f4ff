package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"kense.org/internal/auth"
	"kense.org/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int           `json:"expires_in"`
	Profile   auth.AuthUser `json:"profile"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	session, profile, err := a.svc.Login(r.Context(), req.Username, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		var locked *auth.AccountLockedError
		if errors.As(err, &locked) {
			obs.ObserveLogin("locked")
			obs.ObserveLockout()
		} else {
			obs.ObserveLogin("denied")
		}
		handleAuthError(w, r, err)
		return
	}

	obs.ObserveLogin("success")
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		Profile:   profile,
	})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	caller, ok := auth.AuthUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, caller)
}

type changePasswordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	caller, ok := auth.AuthUserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Current == "" || req.New == "" {
		writeError(w, r, http.StatusBadRequest, "current_password and new_password are required")
		return
	}

	if err := a.svc.ChangePassword(r.Context(), caller.ID, req.Current, req.New); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "password_changed"})
}

type passwordStrengthRequest struct {
	Password string `json:"password"`
}

func (a *API) handlePasswordStrength(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req passwordStrengthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.svc.ScorePassword(req.Password))
}
