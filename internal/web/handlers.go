package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/scorer"
	"github.com/verte-zerg/typespeed/internal/stats"
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=80"`
	Password string `json:"password" validate:"required"`
}

// saveScoreRequest carries either client-computed metrics or the raw attempt.
type saveScoreRequest struct {
	WPM            *float64 `json:"wpm" validate:"omitempty,gte=0"`
	Accuracy       *float64 `json:"accuracy" validate:"omitempty,gte=0,lte=100"`
	Reference      string   `json:"reference"`
	Typed          string   `json:"typed"`
	ElapsedSeconds *float64 `json:"elapsed_seconds"`
	Mode           string   `json:"mode" validate:"omitempty,oneof=word char"`
}

type historyEntry struct {
	WPM       float64 `json:"wpm"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp string  `json:"timestamp"`
}

type statusResponse struct {
	Users  int64 `json:"users"`
	Scores int64 `json:"scores"`
}

type textResponse struct {
	Text string `json:"text"`
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

func bindCredentials(c echo.Context) (credentialsRequest, error) {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return req, nil
}

// Register handles POST /register.
func (a *App) Register(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}
	user, err := a.Directory.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	a.Metrics.Registrations.Inc()
	a.Log.Info().Str("username", user.Username).Msg("user registered")
	return c.JSON(http.StatusOK, messageResponse{Message: "Registration successful"})
}

// Login handles POST /login.
func (a *App) Login(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}
	user, err := a.Directory.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			a.Metrics.Logins.WithLabelValues("user", "failure").Inc()
		}
		return err
	}
	if err := a.startSession(c, user.Username); err != nil {
		return err
	}
	a.Metrics.Logins.WithLabelValues("user", "success").Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "Login successful"})
}

// AdminLogin handles POST /admin/login.
func (a *App) AdminLogin(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}
	user, err := a.Directory.AuthenticateAdmin(c.Request().Context(), req.Username, req.Password)
	if errors.Is(err, model.ErrInvalidCredentials) {
		a.Metrics.Logins.WithLabelValues("admin", "failure").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid admin credentials")
	}
	if err != nil {
		return err
	}
	if err := a.startSession(c, user.Username); err != nil {
		return err
	}
	a.Metrics.Logins.WithLabelValues("admin", "success").Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "Admin login successful"})
}

// Logout handles GET /logout.
func (a *App) Logout(c echo.Context) error {
	a.endSession(c)
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out"})
}

// SaveScore handles POST /save_score.
func (a *App) SaveScore(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return errLoginRequired
	}
	var req saveScoreRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	metrics, source, err := a.metricsFor(req)
	if err != nil {
		return err
	}
	res := model.NewResult(metrics, user.Username, a.now())
	if err := a.Store.Append(c.Request().Context(), res); err != nil {
		return err
	}
	a.invalidateLeaderboard(c.Request().Context())
	a.Metrics.ScoresSaved.WithLabelValues(source).Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: "Score saved"})
}

func (a *App) metricsFor(req saveScoreRequest) (model.Metrics, string, error) {
	if req.Reference != "" {
		if req.ElapsedSeconds == nil {
			return model.Metrics{}, "", echo.NewHTTPError(http.StatusBadRequest, "elapsed_seconds is required")
		}
		mode := a.mode
		if req.Mode != "" {
			parsed, err := scorer.ParseMode(req.Mode)
			if err != nil {
				return model.Metrics{}, "", err
			}
			mode = parsed
		}
		m, err := scorer.Score(req.Reference, req.Typed, *req.ElapsedSeconds, mode)
		return m, "server", err
	}
	if req.WPM == nil || req.Accuracy == nil {
		return model.Metrics{}, "", echo.NewHTTPError(http.StatusBadRequest, "wpm and accuracy are required")
	}
	m := model.Metrics{
		WPM:      scorer.Round1(*req.WPM),
		Accuracy: scorer.Round1(*req.Accuracy),
	}
	if !scorer.Finite(m.WPM) || !scorer.Finite(m.Accuracy) {
		return model.Metrics{}, "", echo.NewHTTPError(http.StatusBadRequest, "wpm must be a finite number")
	}
	return m, "client", nil
}

// Leaderboard handles GET /leaderboard.
func (a *App) Leaderboard(c echo.Context) error {
	entries, err := a.leaderboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (a *App) leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	entries, ok, err := a.Cache.Get(ctx)
	if err != nil {
		a.Log.Warn().Err(err).Msg("leaderboard cache unavailable")
	}
	if ok {
		a.Metrics.LeaderboardCache.WithLabelValues("hit").Inc()
		return entries, nil
	}
	a.Metrics.LeaderboardCache.WithLabelValues("miss").Inc()

	gen := a.boardGen.Load()
	results, err := a.Store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	entries = stats.Leaderboard(results)
	// A save or reset during the read makes these entries stale.
	if a.boardGen.Load() != gen {
		return entries, nil
	}
	if err := a.Cache.Set(ctx, entries); err != nil {
		a.Log.Warn().Err(err).Msg("failed to cache leaderboard")
	}
	if a.boardGen.Load() != gen {
		a.invalidateLeaderboard(ctx)
	}
	return entries, nil
}

// UserHistory handles GET /user_history.
func (a *App) UserHistory(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return errLoginRequired
	}
	results, err := a.Store.List(c.Request().Context(), user.Username)
	if err != nil {
		return err
	}
	out := make([]historyEntry, 0, len(results))
	for _, r := range results {
		out = append(out, historyEntry{
			WPM:       r.WPM,
			Accuracy:  r.Accuracy,
			Timestamp: r.Timestamp.Format(model.TimestampLayout),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// ResetScores handles POST /admin/reset/scores.
func (a *App) ResetScores(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := a.Store.Reset(ctx, "")
	if err != nil {
		return err
	}
	a.invalidateLeaderboard(ctx)
	a.audit(c, "reset scores").Int64("results", n).Send()
	return c.JSON(http.StatusOK, messageResponse{Message: "All scores have been deleted"})
}

// ResetUsers handles POST /admin/reset/users.
func (a *App) ResetUsers(c echo.Context) error {
	ctx := c.Request().Context()
	n, err := a.Store.DeleteNonAdminUsers(ctx, a.Config.CascadeUserReset)
	if err != nil {
		return err
	}
	a.invalidateLeaderboard(ctx)
	a.audit(c, "reset users").Int64("users", n).Bool("cascade", a.Config.CascadeUserReset).Send()
	return c.JSON(http.StatusOK, messageResponse{Message: "All users have been deleted"})
}

// ResetAll handles POST /admin/reset.
func (a *App) ResetAll(c echo.Context) error {
	ctx := c.Request().Context()
	results, users, err := a.Store.ResetAll(ctx)
	if err != nil {
		return err
	}
	a.invalidateLeaderboard(ctx)
	a.audit(c, "reset all").Int64("results", results).Int64("users", users).Send()
	return c.JSON(http.StatusOK, messageResponse{Message: "All scores and non-admin users have been deleted"})
}

// Status handles GET /admin/status.
func (a *App) Status(c echo.Context) error {
	ctx := c.Request().Context()
	users, err := a.Store.CountNonAdminUsers(ctx)
	if err != nil {
		return err
	}
	scores, err := a.Store.CountResults(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Users: users, Scores: scores})
}

// GetText handles GET /get_text. The optional lang query overrides the configured language.
func (a *App) GetText(c echo.Context) error {
	lang := strings.TrimSpace(c.QueryParam("lang"))
	if lang == "" {
		lang = a.Config.Lang
	}
	text, err := a.Catalog.Pick(lang)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, textResponse{Text: text})
}

// Health handles GET /health and checks the store and, when present, the cache.
func (a *App) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus)
	healthy := true
	if err := a.Store.Ping(ctx); err != nil {
		deps["store"] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
		healthy = false
	} else {
		deps["store"] = dependencyStatus{Status: "ok"}
	}
	if p, ok := a.Cache.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			deps["cache"] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
		} else {
			deps["cache"] = dependencyStatus{Status: "ok"}
		}
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	return c.JSON(code, healthResponse{Status: status, Dependencies: deps})
}

func (a *App) audit(c echo.Context, action string) *zerolog.Event {
	user, _ := currentUser(c)
	return a.Log.Info().Str("admin", user.Username).Str("action", action)
}
