package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/mqttconnect/internal/history"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/config"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/database"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/logging"
	"github.com/nerrad567/mqttconnect/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttconnect/migrations"
)

const testSecret = "test-secret-for-development-only-0123456789"

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, "test", io.Discard)
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Host:     "127.0.0.1",
		Port:     0,
		Timeouts: config.TimeoutConfig{Read: 5, Write: 5, Idle: 5},
	}
}

// newTestHistory opens a migrated history database in a temp dir.
func newTestHistory(t *testing.T) *history.SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "history.db"), WALMode: true})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return history.NewSQLiteRepository(db.DB)
}

type testEnv struct {
	server  *Server
	factory *mqtt.Factory
	history *history.SQLiteRepository
	http    *httptest.Server
}

func newTestEnv(t *testing.T, cfg config.APIConfig, withHistory bool) *testEnv {
	t.Helper()
	env := &testEnv{factory: mqtt.NewFactory()}
	t.Cleanup(func() { _ = env.factory.Close() })

	deps := Deps{Config: cfg, Logger: testLogger(), Factory: env.factory, Version: "test"}
	if withHistory {
		env.history = newTestHistory(t)
		deps.History = env.history
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.server = srv
	env.http = httptest.NewServer(srv.Handler())
	t.Cleanup(env.http.Close)
	return env
}

func (e *testEnv) get(t *testing.T, path, token string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, e.http.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding %s response: %v", path, err)
	}
	return resp.StatusCode, body
}

// ===== Construction Tests =====

func TestNew_MissingDeps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		want string
	}{
		{"no logger", Deps{Factory: mqtt.NewFactory()}, "logger is required"},
		{"no factory", Deps{Logger: testLogger()}, "mqtt factory is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.deps)
			if err == nil || err.Error() != tt.want {
				t.Errorf("New() error = %v, want %q", err, tt.want)
			}
		})
	}
}

// ===== Route Tests =====

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), false)

	status, body := env.get(t, "/api/v1/health", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v, want status ok and version test", body)
	}
	if body["clients"] != float64(0) {
		t.Errorf("clients = %v, want 0", body["clients"])
	}
}

func TestListClients(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), false)

	if _, err := env.factory.Create("tcp://127.0.0.1:1883", "b-client"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	closed, err := env.factory.Create("tcp://127.0.0.1:1883", "c-client")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := env.factory.Create("tcp://127.0.0.1:1884", "a-client"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	closed.Close()

	status, body := env.get(t, "/api/v1/clients", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}

	clients := body["clients"].([]any)
	first := clients[0].(map[string]any)
	if first["client_id"] != "a-client" || first["server_uri"] != "tcp://127.0.0.1:1884" {
		t.Errorf("first client = %v, want a-client on port 1884", first)
	}
	if first["state"] != "created" || first["connected"] != false {
		t.Errorf("first client state = %v/%v, want created/false", first["state"], first["connected"])
	}
}

func TestGetClient(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), false)
	if _, err := env.factory.Create("tcp://127.0.0.1:1883", "c1"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	status, body := env.get(t, "/api/v1/clients/c1", "")
	if status != http.StatusOK || body["client_id"] != "c1" {
		t.Errorf("GET c1 = %d %v, want 200 c1", status, body)
	}

	status, body = env.get(t, "/api/v1/clients/missing", "")
	if status != http.StatusNotFound || body["code"] != ErrCodeNotFound {
		t.Errorf("GET missing = %d %v, want 404 not_found", status, body)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), false)

	status, body := env.get(t, "/api/v2/nothing", "")
	if status != http.StatusNotFound || body["code"] != ErrCodeNotFound {
		t.Errorf("unknown route = %d %v, want 404 not_found", status, body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), false)

	resp, err := http.Post(env.http.URL+"/api/v1/health", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), false)

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, env.http.URL+"/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}

	resp, err = http.Get(env.http.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Error("X-Request-ID not generated")
	}
}

// ===== Attempt History Tests =====

func seedAttempts(t *testing.T, repo *history.SQLiteRepository) {
	t.Helper()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	attempts := []mqtt.Attempt{
		{ClientID: "c1", ServerURI: "tcp://a:1883", Code: mqtt.CodeNotAuthorized, Outcome: mqtt.OutcomeRejected, Message: "not authorized", At: base},
		{ClientID: "c1", ServerURI: "tcp://a:1883", ServerURIs: []string{"tcp://a:1883", "tcp://b:1883"}, Outcome: mqtt.OutcomeConnected, Duration: 15 * time.Millisecond, At: base.Add(time.Minute)},
		{ClientID: "c2", ServerURI: "tcp://a:1883", Code: mqtt.ReturnCode(42), Outcome: mqtt.OutcomeUnmapped, At: base.Add(2 * time.Minute)},
	}
	for _, a := range attempts {
		if err := repo.RecordAttempt(context.Background(), a); err != nil {
			t.Fatalf("RecordAttempt() error = %v", err)
		}
	}
}

func TestListAttempts(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), true)
	seedAttempts(t, env.history)

	tests := []struct {
		name      string
		query     string
		wantTotal float64
		wantFirst string
	}{
		{"all", "", 3, mqtt.OutcomeUnmapped},
		{"by client", "?client_id=c1", 2, mqtt.OutcomeConnected},
		{"by outcome", "?outcome=rejected", 1, mqtt.OutcomeRejected},
		{"since", "?since=2026-03-01T09:00:30Z", 2, mqtt.OutcomeUnmapped},
		{"offset", "?client_id=c1&offset=1", 2, mqtt.OutcomeRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.get(t, "/api/v1/attempts"+tt.query, "")
			if status != http.StatusOK {
				t.Fatalf("status = %d, want 200 (%v)", status, body)
			}
			if body["total"] != tt.wantTotal {
				t.Errorf("total = %v, want %v", body["total"], tt.wantTotal)
			}
			attempts := body["attempts"].([]any)
			if len(attempts) == 0 {
				t.Fatal("no attempts returned")
			}
			if got := attempts[0].(map[string]any)["outcome"]; got != tt.wantFirst {
				t.Errorf("first outcome = %v, want %v", got, tt.wantFirst)
			}
		})
	}
}

func TestListAttempts_View(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), true)
	seedAttempts(t, env.history)

	_, body := env.get(t, "/api/v1/attempts?outcome=connected", "")
	got := body["attempts"].([]any)[0].(map[string]any)

	if got["duration_ms"] != float64(15) {
		t.Errorf("duration_ms = %v, want 15", got["duration_ms"])
	}
	if got["attempted_at"] != "2026-03-01T09:01:00Z" {
		t.Errorf("attempted_at = %v, want 2026-03-01T09:01:00Z", got["attempted_at"])
	}
	uris := got["server_uris"].([]any)
	if len(uris) != 2 || uris[0] != "tcp://a:1883" {
		t.Errorf("server_uris = %v, want [tcp://a:1883 tcp://b:1883]", uris)
	}
	if !strings.HasPrefix(got["id"].(string), "att-") {
		t.Errorf("id = %v, want att- prefix", got["id"])
	}
}

func TestListAttempts_BadQuery(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), true)

	tests := []struct {
		query string
		want  string
	}{
		{"?outcome=maybe", "outcome must be"},
		{"?since=yesterday", "since must be an RFC 3339 timestamp"},
		{"?limit=ten", "limit must be a non-negative integer"},
		{"?offset=-1", "offset must be a non-negative integer"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			status, body := env.get(t, "/api/v1/attempts"+tt.query, "")
			if status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
			if msg, _ := body["message"].(string); !strings.Contains(msg, tt.want) {
				t.Errorf("message = %q, want %q", msg, tt.want)
			}
		})
	}
}

func TestAttempts_NoHistory(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), false)

	for _, path := range []string{"/api/v1/attempts", "/api/v1/attempts/stats"} {
		status, body := env.get(t, path, "")
		if status != http.StatusServiceUnavailable || body["code"] != ErrCodeUnavailable {
			t.Errorf("GET %s = %d %v, want 503 unavailable", path, status, body)
		}
	}
}

func TestAttemptStats(t *testing.T) {
	env := newTestEnv(t, testAPIConfig(), true)
	seedAttempts(t, env.history)

	status, body := env.get(t, "/api/v1/attempts/stats", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["total"] != float64(3) {
		t.Errorf("total = %v, want 3", body["total"])
	}

	_, body = env.get(t, "/api/v1/attempts/stats?client_id=c1", "")
	counts := body["by_outcome"].(map[string]any)
	if counts[mqtt.OutcomeRejected] != float64(1) || counts[mqtt.OutcomeConnected] != float64(1) {
		t.Errorf("by_outcome = %v, want one rejected and one connected", counts)
	}
	if _, ok := counts[mqtt.OutcomeUnmapped]; ok {
		t.Errorf("by_outcome = %v, want no unmapped for c1", counts)
	}
}

// ===== Auth Tests =====

func TestAuth(t *testing.T) {
	cfg := testAPIConfig()
	cfg.Auth.JWTSecret = testSecret
	env := newTestEnv(t, cfg, false)

	valid, err := GenerateToken("operator", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	otherSecret, err := GenerateToken("operator", strings.Repeat("x", 40), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing expired token: %v", err)
	}

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"health is open", "/api/v1/health", "", http.StatusOK},
		{"missing token", "/api/v1/clients", "", http.StatusUnauthorized},
		{"garbage token", "/api/v1/clients", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", "/api/v1/clients", otherSecret, http.StatusUnauthorized},
		{"expired", "/api/v1/clients", expired, http.StatusUnauthorized},
		{"valid", "/api/v1/clients", valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.get(t, tt.path, tt.token)
			if status != tt.want {
				t.Errorf("status = %d, want %d (%v)", status, tt.want, body)
			}
			if tt.want == http.StatusUnauthorized && body["code"] != ErrCodeUnauthorized {
				t.Errorf("code = %v, want %q", body["code"], ErrCodeUnauthorized)
			}
		})
	}
}

func TestParseToken(t *testing.T) {
	token, err := GenerateToken("svc", testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "svc" {
		t.Errorf("Subject = %q, want svc", claims.Subject)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl < 23*time.Hour || ttl > 24*time.Hour {
		t.Errorf("default TTL = %v, want about 24h", ttl)
	}
	if claims.ID == "" {
		t.Error("ID is empty")
	}
}

func TestParseToken_Rejects(t *testing.T) {
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "svc",
	}).SignedString([]byte(testSecret))
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "svc",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))

	for name, token := range map[string]string{
		"no subject": noSubject,
		"no expiry":  noExpiry,
		"HS512":      wrongAlg,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseToken(token, testSecret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestGenerateToken_EmptySubject(t *testing.T) {
	if _, err := GenerateToken("", testSecret, time.Hour); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("GenerateToken() error = %v, want ErrTokenInvalid", err)
	}
}

// ===== Middleware Tests =====

func TestRecoverJSON(t *testing.T) {
	srv, err := New(Deps{Logger: testLogger(), Factory: mqtt.NewFactory()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	handler := srv.recoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ErrCodeInternal) {
		t.Errorf("body = %q, want internal_error", rec.Body.String())
	}
}

func TestRequireToken_SetsSubject(t *testing.T) {
	cfg := testAPIConfig()
	cfg.Auth.JWTSecret = testSecret
	srv, err := New(Deps{Config: cfg, Logger: testLogger(), Factory: mqtt.NewFactory()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	token, err := GenerateToken("operator", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	var got string
	handler := srv.requireToken(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = Subject(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "operator" {
		t.Errorf("Subject() = %q, want operator", got)
	}
	if _, ok := Subject(context.Background()); ok {
		t.Error("Subject() on a bare context reported ok")
	}
}

// ===== Lifecycle Tests =====

func TestStartAndClose(t *testing.T) {
	srv, err := New(Deps{Config: testAPIConfig(), Logger: testLogger(), Factory: mqtt.NewFactory(), Version: "test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if srv.Addr() != "" {
		t.Errorf("Addr() before Start = %q, want empty", srv.Addr())
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close should fail")
	}
}

func TestStart_PortInUse(t *testing.T) {
	first, _ := New(Deps{Config: testAPIConfig(), Logger: testLogger(), Factory: mqtt.NewFactory()})
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer first.Close()

	cfg := testAPIConfig()
	_, port, err := net.SplitHostPort(first.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort() error = %v", err)
	}
	if cfg.Port, err = strconv.Atoi(port); err != nil {
		t.Fatalf("Atoi() error = %v", err)
	}

	second, _ := New(Deps{Config: cfg, Logger: testLogger(), Factory: mqtt.NewFactory()})
	if err := second.Start(context.Background()); err == nil {
		second.Close()
		t.Fatal("Start() on a bound port should fail")
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	srv, _ := New(Deps{Config: testAPIConfig(), Logger: testLogger(), Factory: mqtt.NewFactory()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}
