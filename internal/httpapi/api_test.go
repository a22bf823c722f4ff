package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"kense.org/internal/auth"
)

// fakeStore backs both the directory and the admin surface for handler tests.
type fakeStore struct {
	mu     sync.Mutex
	users  map[string]*auth.User
	roles  []auth.Role
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*auth.User)}
}

func (s *fakeStore) add(u *auth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, auth.ErrNotFound
}

func (s *fakeStore) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *fakeStore) UpdateLastLogin(_ context.Context, id, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastLoginAt = time.Now()
		u.LastLoginIP = address
	}
	return nil
}

func (s *fakeStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *fakeStore) CreateUser(_ context.Context, username, passwordHash, status string) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return auth.User{}, auth.ErrConflict
		}
	}
	s.nextID++
	u := &auth.User{
		ID:           fmt.Sprintf("usr_%02d", s.nextID),
		Username:     username,
		PasswordHash: passwordHash,
		Status:       status,
	}
	s.users[u.ID] = u
	return *u, nil
}

func (s *fakeStore) ListUsers(context.Context) ([]auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]auth.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, *u)
	}
	return result, nil
}

func (s *fakeStore) UpdateUserStatus(_ context.Context, userID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.Status = status
	return nil
}

func (s *fakeStore) CreateRole(_ context.Context, name, description string) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role := auth.Role{ID: fmt.Sprintf("rol_%02d", len(s.roles)+1), Name: name, Description: description}
	s.roles = append(s.roles, role)
	return role, nil
}

func (s *fakeStore) ListRoles(context.Context) ([]auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auth.Role(nil), s.roles...), nil
}

func (s *fakeStore) SetRolePermissions(_ context.Context, roleID string, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.roles {
		if s.roles[i].ID == roleID {
			s.roles[i].Permissions = nil
			for _, n := range names {
				s.roles[i].Permissions = append(s.roles[i].Permissions, auth.Permission{Name: n})
			}
			return nil
		}
	}
	return auth.ErrNotFound
}

func (s *fakeStore) AssignRole(_ context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	for _, r := range s.roles {
		if r.ID == roleID {
			u.Roles = append(u.Roles, r)
			return nil
		}
	}
	return auth.ErrNotFound
}

var (
	_ auth.Directory  = (*fakeStore)(nil)
	_ auth.AdminStore = (*fakeStore)(nil)
)

type testEnv struct {
	handler http.Handler
	store   *fakeStore
	svc     *auth.Service
	issuer  *auth.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	tracker := auth.NewTracker(auth.TrackerConfig{})
	t.Cleanup(tracker.Stop)
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	svc, err := auth.NewService(store, tracker, issuer)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	admin, err := auth.NewAdminService(store, tracker, nil)
	if err != nil {
		t.Fatalf("new admin service: %v", err)
	}
	api := New(Options{
		Service: svc,
		Admin:   admin,
		Guard:   auth.NewGuard(store, issuer),
		Version: "test",
	})
	return &testEnv{handler: api.Handler(), store: store, svc: svc, issuer: issuer}
}

func (e *testEnv) addUser(t *testing.T, username, password string, roles ...auth.Role) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &auth.User{
		ID:           "usr_" + username,
		Username:     username,
		PasswordHash: hash,
		Status:       auth.UserStatusActive,
		Roles:        roles,
	}
	e.store.add(u)
	return u
}

func (e *testEnv) token(t *testing.T, u *auth.User) string {
	t.Helper()
	sess, err := e.issuer.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return sess.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:54321"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["service"] != "kense-api" || body["version"] != "test" {
		t.Fatalf("unexpected body: %v", body)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing X-Request-Id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "amira", "Correct-Horse-1", auth.Role{Name: "operator"})

	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "amira",
		"password": "Correct-Horse-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" || body["expires_in"].(float64) != 3600 {
		t.Fatalf("unexpected body: %v", body)
	}
	profile := body["profile"].(map[string]any)
	if profile["username"] != "amira" {
		t.Fatalf("unexpected profile: %v", profile)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "amira", "Correct-Horse-1")

	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "amira",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "invalid credentials" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["request_id"] == nil {
		t.Fatal("error body missing request_id")
	}
}

func TestLoginLockoutMapsTo423(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "amira", "Correct-Horse-1")

	// drive the key into lockout below the HTTP rate limit
	for i := 0; i < 5; i++ {
		env.svc.Login(context.Background(), "amira", "wrong", "10.0.0.1", "")
	}

	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "amira",
		"password": "Correct-Horse-1",
	})
	if rec.Code != http.StatusLocked {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["retry_after_minutes"].(float64) != 30 {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestLoginRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "amira",
		"password": "x",
		"extra":    "field",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoginMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/auth/login", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/auth/profile", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "amira", "Correct-Horse-1", auth.Role{
		Name:        "operator",
		Permissions: []auth.Permission{{Name: "security:view"}},
	})

	rec := env.do(t, http.MethodGet, "/v1/auth/profile", env.token(t, user), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["username"] != "amira" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestTokenOutlivesDeactivation(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "amira", "Correct-Horse-1")
	token := env.token(t, user)

	user.Status = auth.UserStatusInactive
	rec := env.do(t, http.MethodGet, "/v1/auth/profile", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated user still served: status = %d", rec.Code)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "amira", "Current-Pass-1!")
	token := env.token(t, user)

	rec := env.do(t, http.MethodPut, "/v1/auth/password", token, map[string]string{
		"current_password": "wrong",
		"new_password":     "Next-Pass-22!",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password: status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/v1/auth/password", token, map[string]string{
		"current_password": "Current-Pass-1!",
		"new_password":     "abc",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("weak password: status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["problems"] == nil {
		t.Fatalf("weak password body missing problems: %v", body)
	}

	rec = env.do(t, http.MethodPut, "/v1/auth/password", token, map[string]string{
		"current_password": "Current-Pass-1!",
		"new_password":     "Next-Pass-22!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("change password: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !auth.VerifyPassword("Next-Pass-22!", user.PasswordHash) {
		t.Fatal("new hash not persisted")
	}
}

func TestPasswordStrengthIsPublic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/security/password-strength", "", map[string]string{
		"password": "abc",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["valid"] != false || body["errors"] == nil {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestUnlockRequiresPermission(t *testing.T) {
	env := newTestEnv(t)
	operator := env.addUser(t, "operator", "Correct-Horse-1", auth.Role{Name: "operator"})

	rec := env.do(t, http.MethodPost, "/v1/security/unlock", env.token(t, operator), map[string]string{
		"username": "amira",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	// insufficiency detail must not leak into the response
	if body := decodeBody(t, rec); body["error"] != "forbidden" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestUnlockClearsLockout(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "amira", "Correct-Horse-1")
	guardian := env.addUser(t, "guardian", "Correct-Horse-1", auth.Role{
		Name:        "security",
		Permissions: []auth.Permission{{Name: PermSecurityUnlock}},
	})

	for i := 0; i < 5; i++ {
		env.svc.Login(context.Background(), "amira", "wrong", "10.0.0.1", "")
	}

	rec := env.do(t, http.MethodPost, "/v1/security/unlock", env.token(t, guardian), map[string]string{
		"username": "amira",
		"address":  "10.0.0.1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if _, _, err := env.svc.Login(context.Background(), "amira", "Correct-Horse-1", "10.0.0.1", ""); err != nil {
		t.Fatalf("login after unlock: %v", err)
	}
}

func TestSecurityStats(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "amira", "Correct-Horse-1")
	viewer := env.addUser(t, "viewer", "Correct-Horse-1", auth.Role{
		Name:        "security",
		Permissions: []auth.Permission{{Name: PermSecurityView}},
	})

	env.svc.Login(context.Background(), "amira", "Correct-Horse-1", "10.0.0.1", "")
	env.svc.Login(context.Background(), "amira", "wrong", "10.0.0.1", "")

	rec := env.do(t, http.MethodGet, "/v1/security/stats?username=amira", env.token(t, viewer), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["total"].(float64) != 2 || body["successful"].(float64) != 1 || body["failed"].(float64) != 1 {
		t.Fatalf("unexpected stats: %v", body)
	}
}

func TestCreateUserNeedsRoleAndPermission(t *testing.T) {
	env := newTestEnv(t)
	// holds the permission but not the admin role
	almost := env.addUser(t, "almost", "Correct-Horse-1", auth.Role{
		Name:        "operator",
		Permissions: []auth.Permission{{Name: "user:create"}},
	})
	payload := map[string]string{"username": "newbie", "password": "Fresh-Pass-33!"}

	rec := env.do(t, http.MethodPost, "/v1/users", env.token(t, almost), payload)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("permission without role: status = %d", rec.Code)
	}

	admin := env.addUser(t, "boss", "Correct-Horse-1", auth.Role{
		Name:        RoleAdmin,
		Permissions: []auth.Permission{{Name: "user:create"}},
	})
	rec = env.do(t, http.MethodPost, "/v1/users", env.token(t, admin), payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "/v1/users/") {
		t.Fatalf("Location = %q", loc)
	}
}

func TestSuperAdminBypassesRequirements(t *testing.T) {
	env := newTestEnv(t)
	root := env.addUser(t, "root", "Correct-Horse-1", auth.Role{Name: auth.SuperAdminRole})

	rec := env.do(t, http.MethodPost, "/v1/users", env.token(t, root), map[string]string{
		"username": "newbie",
		"password": "Fresh-Pass-33!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestRoleLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	root := env.addUser(t, "root", "Correct-Horse-1", auth.Role{Name: auth.SuperAdminRole})
	token := env.token(t, root)

	rec := env.do(t, http.MethodPost, "/v1/roles", token, map[string]string{
		"name":        "auditor",
		"description": "read-only access",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create role: status = %d, body %s", rec.Code, rec.Body.String())
	}

	roleID := env.store.roles[0].ID
	rec = env.do(t, http.MethodPut, "/v1/roles/"+roleID+"/permissions", token, map[string]any{
		"permissions": []string{"user:view", "security:view"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set permissions: status = %d, body %s", rec.Code, rec.Body.String())
	}

	target := env.addUser(t, "amira", "Correct-Horse-1")
	rec = env.do(t, http.MethodPost, "/v1/users/"+target.ID+"/roles", token, map[string]string{
		"role_id": roleID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("assign role: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !target.HasRole("auditor") {
		t.Fatalf("role not assigned: %+v", target.Roles)
	}
}

func TestUnknownResource(t *testing.T) {
	env := newTestEnv(t)
	root := env.addUser(t, "root", "Correct-Horse-1", auth.Role{Name: auth.SuperAdminRole})

	rec := env.do(t, http.MethodGet, "/v1/users/abc/unknown", env.token(t, root), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
