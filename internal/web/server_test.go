package web

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/verte-zerg/typespeed/internal/cache"
	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/store"
	"github.com/verte-zerg/typespeed/internal/texts"
)

const testText = "the quick brown fox"

type testEnv struct {
	t     *testing.T
	app   *App
	e     *echo.Echo
	store *store.SQLite
	cache *cache.Memory
	now   time.Time
}

func newTestEnv(t *testing.T, mutate ...func(*model.ServerConfig)) *testEnv {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	cfg := model.ServerConfig{
		Addr:          ":0",
		SessionSecret: "test-secret-0123456789",
		SessionTTL:    time.Hour,
		Lang:          "en",
		Mode:          "char",
		BcryptCost:    bcrypt.MinCost,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	catalog := texts.NewCatalogWithSource(rand.NewSource(1))
	catalog.Set("en", []string{testText})

	env := &testEnv{t: t, store: st, cache: cache.NewMemory(time.Minute), now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)}
	app, err := NewApp(cfg, Deps{
		Store:   st,
		Catalog: catalog,
		Cache:   env.cache,
		Log:     zerolog.Nop(),
		Now:     func() time.Time { return env.now },
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	env.app = app
	env.e = NewServer(app)
	return env
}

func (env *testEnv) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	env.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) register(username, password string) {
	env.t.Helper()
	if _, err := env.app.Directory.Register(context.Background(), username, password); err != nil {
		env.t.Fatalf("register %s: %v", username, err)
	}
}

func (env *testEnv) registerAdmin(username, password string) {
	env.t.Helper()
	if _, err := env.app.Directory.RegisterAdmin(context.Background(), username, password); err != nil {
		env.t.Fatalf("register admin %s: %v", username, err)
	}
}

func (env *testEnv) login(path, username, password string) *http.Cookie {
	env.t.Helper()
	rec := env.do(http.MethodPost, path, `{"username":"`+username+`","password":"`+password+`"}`, nil)
	if rec.Code != http.StatusOK {
		env.t.Fatalf("login %s: expected 200, got %d %s", username, rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(rec)
	if cookie == nil {
		env.t.Fatalf("login %s: no session cookie", username)
	}
	return cookie
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, code int, msg string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, rec.Code, rec.Body.String())
	}
	body := decode[map[string]string](t, rec)
	if !strings.Contains(body["error"], msg) {
		t.Fatalf("expected error containing %q, got %q", msg, body["error"])
	}
}

func expectMessage(t *testing.T, rec *httptest.ResponseRecorder, msg string) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]string](t, rec)["message"]; got != msg {
		t.Fatalf("expected message %q, got %q", msg, got)
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/register", `{"username":"alice","password":"pw"}`, nil)
	expectMessage(t, rec, "Registration successful")

	rec = env.do(http.MethodPost, "/register", `{"username":"alice","password":"other"}`, nil)
	expectError(t, rec, http.StatusBadRequest, "Username already exists")

	rec = env.do(http.MethodPost, "/register", `{"username":"bob"}`, nil)
	expectError(t, rec, http.StatusBadRequest, "password is required")

	rec = env.do(http.MethodPost, "/register", `{"username":"carol","password":"`+strings.Repeat("p", 100)+`"}`, nil)
	expectError(t, rec, http.StatusBadRequest, "password must be at most 72 bytes")

	rec = env.do(http.MethodPost, "/register", `{"username":`, nil)
	expectError(t, rec, http.StatusBadRequest, "invalid payload")

	user, err := env.store.FindUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if user.PasswordHash == "pw" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw")) != nil {
		t.Fatalf("expected bcrypt hash of original secret")
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")

	wrong := env.do(http.MethodPost, "/login", `{"username":"alice","password":"nope"}`, nil)
	unknown := env.do(http.MethodPost, "/login", `{"username":"ghost","password":"nope"}`, nil)
	expectError(t, wrong, http.StatusUnauthorized, "Invalid credentials")
	expectError(t, unknown, http.StatusUnauthorized, "Invalid credentials")
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("unknown user and wrong password must look the same")
	}

	rec := env.do(http.MethodPost, "/login", `{"username":"alice","password":"pw"}`, nil)
	expectMessage(t, rec, "Login successful")
	cookie := sessionCookie(rec)
	if cookie == nil || !cookie.HttpOnly || cookie.Value == "" {
		t.Fatalf("expected HttpOnly session cookie, got %+v", cookie)
	}
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/save_score"},
		{http.MethodGet, "/user_history"},
		{http.MethodGet, "/logout"},
		{http.MethodGet, "/admin/status"},
		{http.MethodPost, "/admin/reset"},
	} {
		rec := env.do(tc.method, tc.path, "", nil)
		expectError(t, rec, http.StatusUnauthorized, "Login required")
	}

	bogus := &http.Cookie{Name: SessionCookie, Value: "not-a-token"}
	expectError(t, env.do(http.MethodGet, "/user_history", "", bogus), http.StatusUnauthorized, "Login required")
}

func TestSessionExpires(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")
	cookie := env.login("/login", "alice", "pw")

	if rec := env.do(http.MethodGet, "/user_history", "", cookie); rec.Code != http.StatusOK {
		t.Fatalf("expected fresh session to work, got %d", rec.Code)
	}
	env.now = env.now.Add(2 * time.Hour)
	expectError(t, env.do(http.MethodGet, "/user_history", "", cookie), http.StatusUnauthorized, "Login required")
}

func TestSessionSignedWithOtherSecretRejected(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")
	other := newTestEnv(t, func(cfg *model.ServerConfig) { cfg.SessionSecret = "another-secret-abcdefgh" })
	other.register("alice", "pw")
	cookie := other.login("/login", "alice", "pw")

	expectError(t, env.do(http.MethodGet, "/user_history", "", cookie), http.StatusUnauthorized, "Login required")
}

func TestSaveScoreRawAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")
	cookie := env.login("/login", "alice", "pw")

	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":55.56,"accuracy":97.04}`, cookie), "Score saved")
	env.now = env.now.Add(time.Minute)
	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":60,"accuracy":100}`, cookie), "Score saved")

	rec := env.do(http.MethodGet, "/user_history", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	history := decode[[]historyEntry](t, rec)
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %+v", history)
	}
	if history[0].WPM != 60 || history[0].Timestamp != "2024-03-01 10:01:00" {
		t.Fatalf("expected newest first, got %+v", history[0])
	}
	if history[1].WPM != 55.6 || history[1].Accuracy != 97 || history[1].Timestamp != "2024-03-01 10:00:00" {
		t.Fatalf("unexpected rounded entry %+v", history[1])
	}
}

func TestSaveScoreServerSide(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")
	cookie := env.login("/login", "alice", "pw")

	body := `{"reference":"the quick brown fox","typed":"the quick brown fix","elapsed_seconds":12}`
	expectMessage(t, env.do(http.MethodPost, "/save_score", body, cookie), "Score saved")
	body = `{"reference":"the quick brown fox","typed":"the quick brown fix","elapsed_seconds":12,"mode":"word"}`
	env.now = env.now.Add(time.Minute)
	expectMessage(t, env.do(http.MethodPost, "/save_score", body, cookie), "Score saved")

	results, err := env.store.List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].WPM != 20 || results[0].Accuracy != 75 {
		t.Fatalf("unexpected word-mode result %+v", results[0])
	}
	if results[1].WPM != 20 || results[1].Accuracy != 94.7 {
		t.Fatalf("unexpected char-mode result %+v", results[1])
	}
}

func TestSaveScoreValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")
	cookie := env.login("/login", "alice", "pw")

	cases := []struct{ body, msg string }{
		{`{"wpm":50,"accuracy":150}`, "accuracy must be at most 100"},
		{`{"wpm":-1,"accuracy":50}`, "wpm must be at least 0"},
		{`{"wpm":50}`, "wpm and accuracy are required"},
		{`{"reference":"abc","typed":"abc"}`, "elapsed_seconds is required"},
		{`{"reference":"abc","typed":"abc","elapsed_seconds":0}`, "elapsed time must be positive"},
		{`{"reference":"abc","typed":"abc","elapsed_seconds":1,"mode":"line"}`, "mode must be one of"},
		{`{"wpm":"fast","accuracy":1}`, "invalid payload"},
		{`{"wpm":1e308,"accuracy":50}`, "wpm must be a finite number"},
		{`{"reference":"a b","typed":"a b","elapsed_seconds":1e-310}`, "elapsed time must be positive"},
		{`{"reference":"a b","typed":"","elapsed_seconds":5e-324}`, "elapsed time must be positive"},
	}
	for _, tc := range cases {
		expectError(t, env.do(http.MethodPost, "/save_score", tc.body, cookie), http.StatusBadRequest, tc.msg)
	}
	if n, _ := env.store.CountResults(context.Background()); n != 0 {
		t.Fatalf("rejected scores must not be stored, got %d", n)
	}
}

func TestLeaderboardSurvivesOversizedScore(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")
	cookie := env.login("/login", "alice", "pw")

	expectError(t, env.do(http.MethodPost, "/save_score", `{"wpm":1e308,"accuracy":50}`, cookie), http.StatusBadRequest, "finite")
	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":1e300,"accuracy":50}`, cookie), "Score saved")

	for _, path := range []string{"/leaderboard", "/user_history"} {
		if rec := env.do(http.MethodGet, path, "", cookie); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}

type listHookStore struct {
	Store
	onList func()
}

func (s *listHookStore) List(ctx context.Context, owner string) ([]model.Result, error) {
	if hook := s.onList; hook != nil {
		s.onList = nil
		hook()
	}
	return s.Store.List(ctx, owner)
}

func TestLeaderboardNotCachedWhenInvalidatedDuringRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.register("alice", "pw")
	if err := env.store.Append(ctx, model.Result{Timestamp: env.now, WPM: 40, Accuracy: 90, Username: "alice"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	hooked := &listHookStore{Store: env.store}
	app, err := NewApp(env.app.Config, Deps{Store: hooked, Cache: env.cache, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	hooked.onList = func() { app.invalidateLeaderboard(ctx) }

	entries, err := app.leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if _, ok, _ := env.cache.Get(ctx); ok {
		t.Fatalf("entries read across an invalidation must not be cached")
	}

	if _, err := app.leaderboard(ctx); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if _, ok, _ := env.cache.Get(ctx); !ok {
		t.Fatalf("expected a quiet read to be cached")
	}
}

func TestLeaderboardCachedAndInvalidated(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")
	env.register("bob", "pw")
	alice := env.login("/login", "alice", "pw")
	ctx := context.Background()

	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":40,"accuracy":90}`, alice), "Score saved")
	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":50,"accuracy":95}`, alice), "Score saved")

	board := decode[[]model.LeaderboardEntry](t, env.do(http.MethodGet, "/leaderboard", "", nil))
	if len(board) != 1 || board[0].Username != "alice" || board[0].TotalGames != 2 || board[0].AverageWPM != 45 || board[0].BestWPM != 50 || board[0].AverageAccuracy != 92.5 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}

	if err := env.store.Append(ctx, model.Result{Timestamp: env.now, WPM: 90, Accuracy: 99, Username: "bob"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	board = decode[[]model.LeaderboardEntry](t, env.do(http.MethodGet, "/leaderboard", "", nil))
	if len(board) != 1 {
		t.Fatalf("expected cached leaderboard, got %+v", board)
	}

	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":45,"accuracy":90}`, alice), "Score saved")
	board = decode[[]model.LeaderboardEntry](t, env.do(http.MethodGet, "/leaderboard", "", nil))
	if len(board) != 2 || board[0].Username != "bob" || board[1].TotalGames != 3 {
		t.Fatalf("expected refreshed leaderboard ordered by best wpm, got %+v", board)
	}
}

func TestLeaderboardEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodGet, "/leaderboard", "", nil)
		if strings.TrimSpace(rec.Body.String()) != "[]" {
			t.Fatalf("expected empty array, got %q", rec.Body.String())
		}
	}
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.registerAdmin("root", "s3cret")
	env.register("alice", "pw")
	env.register("bob", "pw")
	alice := env.login("/login", "alice", "pw")

	expectError(t, env.do(http.MethodPost, "/admin/login", `{"username":"alice","password":"pw"}`, nil), http.StatusUnauthorized, "Invalid admin credentials")
	expectError(t, env.do(http.MethodGet, "/admin/status", "", alice), http.StatusForbidden, "Unauthorized")
	expectError(t, env.do(http.MethodPost, "/admin/reset/scores", "", alice), http.StatusForbidden, "Unauthorized")

	root := env.login("/admin/login", "root", "s3cret")
	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":40,"accuracy":90}`, alice), "Score saved")
	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":70,"accuracy":99}`, root), "Score saved")

	status := decode[statusResponse](t, env.do(http.MethodGet, "/admin/status", "", root))
	if status.Users != 2 || status.Scores != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	expectMessage(t, env.do(http.MethodPost, "/admin/reset/users", "", root), "All users have been deleted")
	status = decode[statusResponse](t, env.do(http.MethodGet, "/admin/status", "", root))
	if status.Users != 0 || status.Scores != 2 {
		t.Fatalf("user reset without cascade must keep scores, got %+v", status)
	}
	expectError(t, env.do(http.MethodGet, "/user_history", "", alice), http.StatusUnauthorized, "Login required")

	board := decode[[]model.LeaderboardEntry](t, env.do(http.MethodGet, "/leaderboard", "", nil))
	if len(board) != 1 || board[0].Username != "root" {
		t.Fatalf("orphaned scores must not appear on the leaderboard, got %+v", board)
	}

	expectMessage(t, env.do(http.MethodPost, "/admin/reset/scores", "", root), "All scores have been deleted")
	status = decode[statusResponse](t, env.do(http.MethodGet, "/admin/status", "", root))
	if status.Scores != 0 {
		t.Fatalf("expected no scores, got %+v", status)
	}
	board = decode[[]model.LeaderboardEntry](t, env.do(http.MethodGet, "/leaderboard", "", nil))
	if len(board) != 0 {
		t.Fatalf("expected empty leaderboard after reset, got %+v", board)
	}
}

func TestAdminResetAll(t *testing.T) {
	env := newTestEnv(t, func(cfg *model.ServerConfig) { cfg.CascadeUserReset = true })
	env.registerAdmin("root", "s3cret")
	env.register("alice", "pw")
	alice := env.login("/login", "alice", "pw")
	root := env.login("/admin/login", "root", "s3cret")
	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":40,"accuracy":90}`, alice), "Score saved")
	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":70,"accuracy":99}`, root), "Score saved")

	expectMessage(t, env.do(http.MethodPost, "/admin/reset", "", root), "All scores and non-admin users have been deleted")
	status := decode[statusResponse](t, env.do(http.MethodGet, "/admin/status", "", root))
	if status.Users != 0 || status.Scores != 0 {
		t.Fatalf("expected everything cleared, got %+v", status)
	}
	if _, err := env.store.FindUserByUsername(context.Background(), "root"); err != nil {
		t.Fatalf("admin must survive reset: %v", err)
	}
}

func TestAdminResetUsersCascade(t *testing.T) {
	env := newTestEnv(t, func(cfg *model.ServerConfig) { cfg.CascadeUserReset = true })
	env.registerAdmin("root", "s3cret")
	env.register("alice", "pw")
	alice := env.login("/login", "alice", "pw")
	root := env.login("/admin/login", "root", "s3cret")
	expectMessage(t, env.do(http.MethodPost, "/save_score", `{"wpm":40,"accuracy":90}`, alice), "Score saved")

	expectMessage(t, env.do(http.MethodPost, "/admin/reset/users", "", root), "All users have been deleted")
	status := decode[statusResponse](t, env.do(http.MethodGet, "/admin/status", "", root))
	if status.Scores != 0 {
		t.Fatalf("cascade must remove the users' scores, got %+v", status)
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")
	cookie := env.login("/login", "alice", "pw")

	rec := env.do(http.MethodGet, "/logout", "", cookie)
	expectMessage(t, rec, "Logged out")
	cleared := sessionCookie(rec)
	if cleared == nil || cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("expected session cookie to be cleared, got %+v", cleared)
	}
}

func TestGetText(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/get_text", "", nil)
	if got := decode[textResponse](t, rec); got.Text != testText {
		t.Fatalf("unexpected text %q", got.Text)
	}

	rec = env.do(http.MethodGet, "/get_text?lang=de", "", nil)
	if got := decode[textResponse](t, rec); got.Text == "" || got.Text == testText {
		t.Fatalf("expected a German text, got %q", got.Text)
	}

	expectError(t, env.do(http.MethodGet, "/get_text?lang=xx", "", nil), http.StatusBadRequest, "no texts for language")
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice", "pw")
	env.login("/login", "alice", "pw")

	rec := env.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	health := decode[healthResponse](t, rec)
	if health.Status != "ok" || health.Dependencies["store"].Status != "ok" {
		t.Fatalf("unexpected health %+v", health)
	}

	rec = env.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"typespeed_registrations_total", `typespeed_logins_total{kind="user",result="success"} 1`} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	env := newTestEnv(t)
	expectError(t, env.do(http.MethodGet, "/nope", "", nil), http.StatusNotFound, "Not Found")
}

func TestNewAppRejectsBadMode(t *testing.T) {
	st, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()
	if _, err := NewApp(model.ServerConfig{Mode: "line"}, Deps{Store: st}); err == nil {
		t.Fatalf("expected bad mode to be rejected")
	}
	if _, err := NewApp(model.ServerConfig{Mode: "char"}, Deps{}); err == nil {
		t.Fatalf("expected missing store to be rejected")
	}
}
