package web

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer builds the Echo instance with all routes registered.
func NewServer(a *App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(a.Log)
	e.Validator = newValidator()

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(a.Log))

	e.POST("/register", a.Register)
	e.POST("/login", a.Login)
	e.POST("/admin/login", a.AdminLogin)
	e.GET("/leaderboard", a.Leaderboard)
	e.GET("/get_text", a.GetText)

	e.GET("/logout", a.Logout, a.RequireUser)
	e.POST("/save_score", a.SaveScore, a.RequireUser)
	e.GET("/user_history", a.UserHistory, a.RequireUser)

	admin := []echo.MiddlewareFunc{a.RequireUser, a.RequireAdmin}
	e.POST("/admin/reset", a.ResetAll, admin...)
	e.POST("/admin/reset/scores", a.ResetScores, admin...)
	e.POST("/admin/reset/users", a.ResetUsers, admin...)
	e.GET("/admin/status", a.Status, admin...)

	e.GET("/health", a.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))

	return e
}
