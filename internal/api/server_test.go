package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"

	"github.com/nerrad567/meshgate-core/internal/audit"
	"github.com/nerrad567/meshgate-core/internal/auth"
	"github.com/nerrad567/meshgate-core/internal/camera"
	"github.com/nerrad567/meshgate-core/internal/device"
	"github.com/nerrad567/meshgate-core/internal/gateway"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/config"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/database"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/logging"
	"github.com/nerrad567/meshgate-core/internal/infrastructure/metrics"
	"github.com/nerrad567/meshgate-core/internal/relay"
	_ "github.com/nerrad567/meshgate-core/migrations"
)

const (
	testJWTSecret     = "test-secret-key-at-least-32-characters-long"
	testAdminPassword = "correct horse battery staple"
)

// testEnv is a fully wired server over a temp SQLite database and a fake relay.
type testEnv struct {
	srv     *Server
	h       http.Handler
	db      *database.DB
	token   string
	relayUp atomic.Bool
}

// testPasswordHash builds a cheap argon2id PHC string so tests do not pay
// the production cost on every login.
func testPasswordHash(password string) string {
	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte(password), salt, 1, 1024, 1, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=1024,t=1,p=1$%s$%s",
		argon2.Version,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}
	env.relayUp.Store(true)

	relaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !env.relayUp.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"pageCount":1,"itemCount":2,"items":[
			{"name":"building/floor1/cam3","ready":true,"source":{"type":"rtspSession"}},
			{"name":"yard","ready":false}
		]}`)
	}))
	t.Cleanup(relaySrv.Close)

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	env.db = db

	admin, err := auth.NewAdmin(config.AdminConfig{Username: "admin", PasswordHash: testPasswordHash(testAdminPassword)})
	if err != nil {
		t.Fatalf("NewAdmin() error = %v", err)
	}

	relayCfg := config.RelayConfig{APIURL: relaySrv.URL, PublishUser: "gateway", StatusTimeout: 1}
	gateways := gateway.NewRegistry(gateway.NewSQLiteRepository(db.DB))
	deviceRepo := device.NewSQLiteRepository(db.DB)
	devices := device.NewRegistry(deviceRepo)
	m := metrics.New()
	authorizer := relay.NewAuthorizer(relayCfg, gateways)
	authorizer.AddRecorder(m)
	relayStatus := relay.NewStatusClient(relayCfg)

	srv, err := New(Deps{
		Config:     config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:         config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security:   config.SecurityConfig{JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15}},
		Logger:     logging.Discard(),
		DB:         db,
		Admin:      admin,
		Gateways:   gateways,
		Devices:    devices,
		Reconciler: device.NewReconciler(gateways, deviceRepo),
		Authorizer: authorizer,
		Cameras:    camera.NewProjector(relayStatus, devices),
		AuditRepo:  audit.NewSQLiteRepository(db.DB),
		Metrics:    m,
		Relay:      relayStatus,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.srv = srv
	env.h = srv.Handler()

	token, _, err := auth.GenerateAccessToken("admin", testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	env.token = token
	return env
}

// do sends a request through the router. An empty token sends no
// Authorization header.
func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

// createGateway creates a gateway through the API and returns its ID and key.
func (e *testEnv) createGateway(t *testing.T, name string) (id, key string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/gateways", fmt.Sprintf(`{"name":%q}`, name), e.token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create gateway status = %d; body: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Gateway gateway.Gateway `json:"gateway"`
		APIKey  string          `json:"api_key"`
	}](t, w)
	return resp.Gateway.ID, resp.APIKey
}

func (e *testEnv) register(t *testing.T, key, devicesJSON string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/v1/gateways/register",
		fmt.Sprintf(`{"api_key":%q,"devices":%s}`, key, devicesJSON), "")
}

// ─── Health & Middleware ───────────────────────────────────────────

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		relayUp    bool
		wantStatus string
		wantRelay  string
	}{
		{"relay up", true, "ok", componentOK},
		{"relay down", false, "degraded", componentDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.relayUp.Store(tt.relayUp)

			w := env.do(t, http.MethodGet, "/api/v1/health", "", "")
			if w.Code != http.StatusOK {
				t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			resp := decode[healthResponse](t, w)
			if resp.Status != tt.wantStatus || resp.Version != "test" {
				t.Errorf("health = %+v, want status %q", resp, tt.wantStatus)
			}
			want := map[string]string{
				"database": componentOK,
				"relay":    tt.wantRelay,
				"mqtt":     componentDisabled,
				"influxdb": componentDisabled,
			}
			for k, v := range want {
				if resp.Components[k] != v {
					t.Errorf("components[%s] = %q, want %q", k, resp.Components[k], v)
				}
			}
		})
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	env := newTestEnv(t)
	env.db.DB.Close() //nolint:errcheck // Simulating failure

	w := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/gateways", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodGet, "/api/v1/nonexistent", "", env.token); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t)
	expired := signExpiredToken(t)
	wrongSecret, _, err := auth.GenerateAccessToken("admin", "another-secret-that-is-32-chars-long!", 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic " + env.token},
		{"garbage", "Bearer not-a-jwt"},
		{"expired", "Bearer " + expired},
		{"wrong secret", "Bearer " + wrongSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/gateways", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.h.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

// signExpiredToken returns a correctly signed admin token that expired
// an hour ago.
func signExpiredToken(t *testing.T) string {
	t.Helper()
	past := time.Now().Add(-2 * time.Hour)
	claims := auth.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
		Role: auth.RoleAdmin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

// ─── Login ─────────────────────────────────────────────────────────

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"success", fmt.Sprintf(`{"username":"admin","password":%q}`, testAdminPassword), http.StatusOK},
		{"wrong password", `{"username":"admin","password":"wrong"}`, http.StatusUnauthorized},
		{"wrong username", fmt.Sprintf(`{"username":"root","password":%q}`, testAdminPassword), http.StatusUnauthorized},
		{"invalid JSON", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/auth/login", tt.body, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			resp := decode[loginResponse](t, w)
			if resp.TokenType != "Bearer" || resp.ExpiresIn != 15*60 {
				t.Errorf("login response = %+v", resp)
			}
			if w := env.do(t, http.MethodGet, "/api/v1/gateways", "", resp.AccessToken); w.Code != http.StatusOK {
				t.Errorf("issued token rejected: status %d", w.Code)
			}
		})
	}
}

// ─── Gateways ──────────────────────────────────────────────────────

func TestCreateGateway(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"name":"north yard","organization_id":"org-1"}`, http.StatusCreated},
		{"blank name", `{"name":"   "}`, http.StatusBadRequest},
		{"name too long", fmt.Sprintf(`{"name":%q}`, strings.Repeat("x", gateway.MaxNameLength+1)), http.StatusBadRequest},
		{"invalid JSON", `nope`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/gateways", tt.body, env.token)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestListGateways_NeverExposesSecrets(t *testing.T) {
	env := newTestEnv(t)
	_, key := env.createGateway(t, "yard")

	w := env.do(t, http.MethodGet, "/api/v1/gateways", "", env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, key) {
		t.Error("list exposes the plaintext key")
	}
	if strings.Contains(body, auth.HashSecret(key)) || strings.Contains(body, "api_key_hash") {
		t.Error("list exposes the key hash")
	}

	resp := decode[struct {
		Gateways []gateway.Gateway `json:"gateways"`
		Count    int               `json:"count"`
	}](t, w)
	if resp.Count != 1 || resp.Gateways[0].Name != "yard" || !resp.Gateways[0].Active {
		t.Errorf("list = %+v", resp)
	}
}

func TestGatewayNotFound(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/gateways/gw-missing"},
		{http.MethodPatch, "/api/v1/gateways/gw-missing/toggle"},
		{http.MethodDelete, "/api/v1/gateways/gw-missing"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := env.do(t, tt.method, tt.path, "", env.token); w.Code != http.StatusNotFound {
				t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
			}
		})
	}
}

func TestGatewayAuth(t *testing.T) {
	env := newTestEnv(t)
	id, key := env.createGateway(t, "yard")

	w := env.do(t, http.MethodPost, "/api/v1/gateways/auth",
		fmt.Sprintf(`{"api_key":%q,"local_api_url":"http://10.0.0.7:8081"}`, key), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	resp := decode[gatewayAuthResponse](t, w)
	if !resp.Valid || resp.ID != id || resp.Name != "yard" {
		t.Errorf("auth response = %+v", resp)
	}

	got := decode[gateway.Gateway](t, env.do(t, http.MethodGet, "/api/v1/gateways/"+id, "", env.token))
	if got.LocalAPIURL != "http://10.0.0.7:8081" || got.LastSeenAt == nil {
		t.Errorf("gateway after auth = %+v", got)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/gateways/auth", `{"api_key":"mgw_wrong"}`, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// ─── Registration ──────────────────────────────────────────────────

func TestRegister_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	_, key := env.createGateway(t, "yard")
	devices := `[{"name":"cam1","type":"CAMERA"},{"name":"door","type":"SENSOR_PRESENCA"}]`

	first := env.register(t, key, devices)
	if first.Code != http.StatusOK {
		t.Fatalf("first register status = %d; body: %s", first.Code, first.Body.String())
	}
	second := env.register(t, key, devices)
	if second.Code != http.StatusOK {
		t.Fatalf("second register status = %d", second.Code)
	}

	a := decode[device.Registration](t, first)
	b := decode[device.Registration](t, second)
	if a.Gateway != "yard" || len(a.Registered) != 2 || len(b.Registered) != 2 {
		t.Fatalf("registrations = %+v / %+v", a, b)
	}
	for i := range a.Registered {
		if a.Registered[i].Status != device.StatusCreated {
			t.Errorf("first[%d].status = %q, want created", i, a.Registered[i].Status)
		}
		if b.Registered[i].Status != device.StatusExisting {
			t.Errorf("second[%d].status = %q, want existing", i, b.Registered[i].Status)
		}
		if a.Registered[i].ID != b.Registered[i].ID {
			t.Errorf("id changed: %q -> %q", a.Registered[i].ID, b.Registered[i].ID)
		}
	}
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(t)
	_, key := env.createGateway(t, "yard")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid key", `{"api_key":"mgw_nope","devices":[{"name":"a","type":"CAMERA"}]}`, http.StatusUnauthorized},
		{"missing key", `{"devices":[{"name":"a","type":"CAMERA"}]}`, http.StatusUnauthorized},
		{"padded key", fmt.Sprintf(`{"api_key":%q,"devices":[{"name":"a","type":"CAMERA"}]}`, " "+key+"\n"), http.StatusUnauthorized},
		{"invalid key beats empty list", `{"api_key":"mgw_nope","devices":[]}`, http.StatusUnauthorized},
		{"invalid key beats non-array list", `{"api_key":"mgw_nope","devices":"notalist"}`, http.StatusUnauthorized},
		{"non-array list", fmt.Sprintf(`{"api_key":%q,"devices":"notalist"}`, key), http.StatusBadRequest},
		{"null list", fmt.Sprintf(`{"api_key":%q,"devices":null}`, key), http.StatusBadRequest},
		{"empty list", fmt.Sprintf(`{"api_key":%q,"devices":[]}`, key), http.StatusBadRequest},
		{"missing list", fmt.Sprintf(`{"api_key":%q}`, key), http.StatusBadRequest},
		{"invalid JSON", `{"api_key":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/gateways/register", tt.body, "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRegister_SkipsIncompleteEntries(t *testing.T) {
	env := newTestEnv(t)
	_, key := env.createGateway(t, "yard")

	tests := []struct {
		name      string
		devices   string
		wantNames []string
	}{
		{"blank fields", `[{"name":"cam1","type":"CAMERA"},{"name":"","type":"CAMERA"},{"name":"x"}]`, []string{"cam1"}},
		{"wrong-typed field", `[{"name":"cam2","type":"CAMERA"},{"name":7,"type":"CAMERA"},{"name":"door","type":false}]`, []string{"cam2"}},
		{"non-object entries", `["cam3",42,null,{"name":"plug","type":"TUYA"}]`, []string{"plug"}},
		{"nothing valid", `[{"name":1},"x"]`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.register(t, key, tt.devices)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
			}
			reg := decode[device.Registration](t, w)
			if len(reg.Registered) != len(tt.wantNames) {
				t.Fatalf("registered = %+v, want %v", reg.Registered, tt.wantNames)
			}
			for i, name := range tt.wantNames {
				if reg.Registered[i].Name != name || reg.Registered[i].Status != device.StatusCreated {
					t.Errorf("registered[%d] = %+v, want created %q", i, reg.Registered[i], name)
				}
			}
		})
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestGatewayLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id, key := env.createGateway(t, "yard")

	reg := decode[device.Registration](t, env.register(t, key, `[{"name":"building/floor1/cam3","type":"CAMERA"}]`))
	deviceID := reg.Registered[0].ID

	publish := fmt.Sprintf(`{"user":"gateway","password":%q,"action":"publish","path":"building/floor1/cam3"}`, key)
	if w := env.do(t, http.MethodPost, "/api/v1/relay/auth", publish, ""); w.Code != http.StatusOK {
		t.Fatalf("publish while active status = %d, want 200", w.Code)
	}

	toggled := decode[gateway.Gateway](t, env.do(t, http.MethodPatch, "/api/v1/gateways/"+id+"/toggle", "", env.token))
	if toggled.Active {
		t.Fatal("toggle did not deactivate")
	}

	if w := env.do(t, http.MethodPost, "/api/v1/relay/auth", publish, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("publish after deactivation status = %d, want 401", w.Code)
	}
	if w := env.register(t, key, `[{"name":"cam9","type":"CAMERA"}]`); w.Code != http.StatusUnauthorized {
		t.Errorf("register after deactivation status = %d, want 401", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/devices/"+deviceID, "", env.token); w.Code != http.StatusOK {
		t.Errorf("device of inactive gateway status = %d, want 200", w.Code)
	}

	if w := env.do(t, http.MethodDelete, "/api/v1/gateways/"+id, "", env.token); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/devices/"+deviceID, "", env.token); w.Code != http.StatusNotFound {
		t.Errorf("device after gateway delete status = %d, want 404", w.Code)
	}
}

// ─── Relay ─────────────────────────────────────────────────────────

func TestRelayAuth(t *testing.T) {
	env := newTestEnv(t)
	_, key := env.createGateway(t, "yard")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"read without credentials", `{"action":"read","path":"yard"}`, http.StatusOK},
		{"playback without credentials", `{"action":"playback","path":"yard"}`, http.StatusOK},
		{"unknown action", `{"action":"api"}`, http.StatusOK},
		{"publish valid", fmt.Sprintf(`{"user":"gateway","password":%q,"action":"publish"}`, key), http.StatusOK},
		{"publish upper case", fmt.Sprintf(`{"user":"gateway","password":%q,"action":"PUBLISH"}`, key), http.StatusOK},
		{"publish wrong user", fmt.Sprintf(`{"user":"viewer","password":%q,"action":"publish"}`, key), http.StatusUnauthorized},
		{"publish wrong key", `{"user":"gateway","password":"mgw_bad","action":"publish"}`, http.StatusUnauthorized},
		{"upper case wrong key", `{"user":"gateway","password":"mgw_bad","action":"PUBLISH"}`, http.StatusUnauthorized},
		{"malformed body", `{"action":`, http.StatusUnauthorized},
		{"not JSON", `not json`, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/relay/auth", tt.body, "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRelayAuth_MalformedBodyIsLoggedDeny(t *testing.T) {
	env := newTestEnv(t)
	var logs bytes.Buffer
	env.srv.logger = logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, "test", &logs)

	w := env.do(t, http.MethodPost, "/api/v1/relay/auth", `not json`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(logs.String(), "relay webhook body invalid") {
		t.Errorf("deny not logged; logs: %s", logs.String())
	}
}

func TestRelayAuth_RecordsAddressHint(t *testing.T) {
	env := newTestEnv(t)
	id, key := env.createGateway(t, "yard")

	body := fmt.Sprintf(`{"user":"gateway","password":%q,"action":"publish","query":"local_api_url=http://192.168.1.20:9000"}`, key)
	if w := env.do(t, http.MethodPost, "/api/v1/relay/auth", body, ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	got := decode[gateway.Gateway](t, env.do(t, http.MethodGet, "/api/v1/gateways/"+id, "", env.token))
	if got.LocalAPIURL != "http://192.168.1.20:9000" {
		t.Errorf("local_api_url = %q", got.LocalAPIURL)
	}
}

// ─── Devices ───────────────────────────────────────────────────────

func TestListDevices(t *testing.T) {
	env := newTestEnv(t)
	_, keyB := env.createGateway(t, "bravo")
	_, keyA := env.createGateway(t, "alpha")
	env.register(t, keyB, `[{"name":"plug","type":"TUYA"}]`)
	env.register(t, keyA, `[{"name":"cam","type":"CAMERA"},{"name":"door","type":"SENSOR_PRESENCA"}]`)

	type listResp struct {
		Devices []device.View `json:"devices"`
		Count   int           `json:"count"`
	}

	all := decode[listResp](t, env.do(t, http.MethodGet, "/api/v1/devices", "", env.token))
	if all.Count != 3 {
		t.Fatalf("count = %d, want 3", all.Count)
	}
	wantOrder := []string{"cam", "door", "plug"}
	for i, name := range wantOrder {
		if all.Devices[i].Name != name {
			t.Errorf("devices[%d] = %q, want %q", i, all.Devices[i].Name, name)
		}
	}
	if all.Devices[0].GatewayName != "alpha" || all.Devices[0].Category != device.CategoryCamera {
		t.Errorf("devices[0] = %+v", all.Devices[0])
	}

	cams := decode[listResp](t, env.do(t, http.MethodGet, "/api/v1/devices?type=CAMERA", "", env.token))
	if cams.Count != 1 || cams.Devices[0].Name != "cam" {
		t.Errorf("cameras = %+v", cams)
	}
}

func TestUpdateDevice(t *testing.T) {
	env := newTestEnv(t)
	_, key := env.createGateway(t, "yard")
	reg := decode[device.Registration](t, env.register(t, key, `[{"name":"cam1","type":"CAMERA"}]`))
	id := reg.Registered[0].ID

	tests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
		wantDesc   string
	}{
		{"trimmed", id, `{"description":"  Front gate  "}`, http.StatusOK, "Front gate"},
		{"blank", id, `{"description":"   "}`, http.StatusBadRequest, ""},
		{"missing", id, `{}`, http.StatusBadRequest, ""},
		{"unknown device", "dev-missing", `{"description":"x"}`, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPatch, "/api/v1/devices/"+tt.id, tt.body, env.token)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantDesc != "" {
				if d := decode[device.Device](t, w); d.Description != tt.wantDesc {
					t.Errorf("description = %q, want %q", d.Description, tt.wantDesc)
				}
			}
		})
	}
}

func TestDeleteDevice(t *testing.T) {
	env := newTestEnv(t)
	_, key := env.createGateway(t, "yard")
	reg := decode[device.Registration](t, env.register(t, key, `[{"name":"cam1","type":"CAMERA"}]`))
	id := reg.Registered[0].ID

	if w := env.do(t, http.MethodDelete, "/api/v1/devices/"+id, "", env.token); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/devices/"+id, "", env.token); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

// ─── Cameras ───────────────────────────────────────────────────────

func TestListCameras(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/cameras", "", env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Cameras []camera.View `json:"cameras"`
	}](t, w)
	if len(resp.Cameras) != 2 {
		t.Fatalf("cameras = %+v", resp.Cameras)
	}
	first := resp.Cameras[0]
	if first.ID != "building-floor1-cam3" || first.Path != "building/floor1/cam3" || !first.Ready || first.SourceType != "rtspSession" {
		t.Errorf("cameras[0] = %+v", first)
	}
	if resp.Cameras[1].SourceType != "unknown" {
		t.Errorf("cameras[1].SourceType = %q, want unknown", resp.Cameras[1].SourceType)
	}
}

func TestListCameras_RelayDown(t *testing.T) {
	env := newTestEnv(t)
	env.relayUp.Store(false)

	for _, path := range []string{"/api/v1/cameras", "/api/v1/cameras/devices"} {
		t.Run(path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, path, "", env.token)
			if w.Code != http.StatusBadGateway {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
			}
		})
	}

	body := env.do(t, http.MethodGet, "/metrics", "", "").Body.String()
	if !strings.Contains(body, "meshgate_relay_upstream_errors_total 2") {
		t.Error("upstream errors not counted")
	}
}

func TestListCameraDevices(t *testing.T) {
	env := newTestEnv(t)
	_, key := env.createGateway(t, "yard")
	env.register(t, key, `[{"name":"building/floor1/cam3","type":"CAMERA"},{"name":"offline","type":"CAMERA"},{"name":"door","type":"SENSOR_PRESENCA"}]`)

	w := env.do(t, http.MethodGet, "/api/v1/cameras/devices", "", env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	resp := decode[struct {
		Cameras []camera.DeviceView `json:"cameras"`
	}](t, w)
	if len(resp.Cameras) != 2 {
		t.Fatalf("cameras = %+v, want the two CAMERA devices", resp.Cameras)
	}

	byName := map[string]camera.DeviceView{}
	for _, c := range resp.Cameras {
		byName[c.Name] = c
	}
	if live := byName["building/floor1/cam3"]; !live.Streaming || !live.Ready {
		t.Errorf("live camera = %+v", live)
	}
	if off := byName["offline"]; off.Streaming {
		t.Errorf("offline camera = %+v", off)
	}
}

// ─── Audit ─────────────────────────────────────────────────────────

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.srv.drainAuditLog(ctx)
		close(done)
	}()

	id, _ := env.createGateway(t, "yard")
	env.do(t, http.MethodPatch, "/api/v1/gateways/"+id+"/toggle", "", env.token)

	cancel()
	<-done

	w := env.do(t, http.MethodGet, "/api/v1/audit?entity_id="+id, "", env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	result := decode[audit.ListResult](t, w)
	if result.Total != 2 {
		t.Fatalf("audit = %+v, want 2 entries", result)
	}
	actions := map[string]bool{}
	for _, e := range result.Logs {
		actions[e.Action] = true
		if e.UserID != "admin" {
			t.Errorf("entry %s user = %q, want admin", e.Action, e.UserID)
		}
	}
	if !actions[audit.ActionCreate] || !actions[audit.ActionToggle] {
		t.Errorf("actions = %v", actions)
	}
}

// ─── Metrics ───────────────────────────────────────────────────────

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/relay/auth", `{"action":"read"}`, "")
	env.do(t, http.MethodPost, "/api/v1/gateways/auth", `{"api_key":"mgw_nope"}`, "")

	w := env.do(t, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`meshgate_relay_decisions_total{action="read",decision="allow"} 1`,
		`meshgate_gateway_auth_total{result="rejected"} 1`,
		`route="/api/v1/relay/auth"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSystemMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/system/metrics", "", env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	m := decode[SystemMetrics](t, w)
	if m.Version != "test" || m.Runtime.Goroutines == 0 || m.MQTT.Enabled {
		t.Errorf("system metrics = %+v", m)
	}
}

// ─── Server lifecycle ──────────────────────────────────────────────

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no deps should fail")
	}
}

func TestClose_NotStarted(t *testing.T) {
	env := newTestEnv(t)
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
}

func TestStartAndClose(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := env.srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.srv.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
	if err := env.srv.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
