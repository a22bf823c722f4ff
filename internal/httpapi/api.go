package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"kense.org/internal/auth"
	"kense.org/internal/obs"
)

// ReadyProbe — простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API — HTTP слой.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	admin      *auth.AdminService
	guard      *auth.Guard
	readyProbe ReadyProbe
	version    string
}

// Options carries the API dependencies.
type Options struct {
	Service    *auth.Service
	Admin      *auth.AdminService
	Guard      *auth.Guard
	ReadyProbe ReadyProbe
	Version    string
}

func New(opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        opts.Service,
		admin:      opts.Admin,
		guard:      opts.Guard,
		readyProbe: opts.ReadyProbe,
		version:    opts.Version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth flows
	a.mux.Handle("/v1/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), 5, 5))
	a.mux.HandleFunc("/v1/auth/profile", a.handleProfile)
	a.mux.HandleFunc("/v1/auth/password", a.handleChangePassword)

	// account security administration
	a.mux.HandleFunc("/v1/security/password-strength", a.handlePasswordStrength)
	a.mux.HandleFunc("/v1/security/unlock", a.handleUnlock)
	a.mux.HandleFunc("/v1/security/stats", a.handleSecurityStats)

	// user/role administration
	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)
	a.mux.HandleFunc("/v1/roles", a.handleRoles)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleScoped)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler возвращает http.Handler для сервера.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return h
}

// --- health handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "kense-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "kense-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleAuthError maps the auth taxonomy onto HTTP statuses. Lockouts
// disclose remaining time; everything else stays deliberately vague so a
// caller cannot probe for account existence.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		locked *auth.AccountLockedError
		weak   *auth.WeakPasswordError
		role   *auth.RoleError
		perm   *auth.PermissionError
	)
	switch {
	case errors.As(err, &locked):
		payload := map[string]any{
			"error":               "account is temporarily locked",
			"retry_after_minutes": locked.RemainingMinutes,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusLocked, payload)
	case errors.As(err, &weak):
		payload := map[string]any{
			"error":    "password too weak",
			"problems": weak.Problems,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case errors.As(err, &role), errors.As(err, &perm):
		// Missing-role vs missing-permission is audit detail only.
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrAccountDisabled), errors.Is(err, auth.ErrAccountAdminLocked):
		writeError(w, r, http.StatusForbidden, "account unavailable")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrPasswordUnchanged):
		writeError(w, r, http.StatusBadRequest, "new password must differ from the current one")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
