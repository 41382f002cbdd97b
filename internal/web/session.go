package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/verte-zerg/typespeed/internal/model"
)

const (
	// SessionCookie carries the signed session token.
	SessionCookie = "typespeed_session"
	userKey       = "user"
)

var errLoginRequired = echo.NewHTTPError(http.StatusUnauthorized, "Login required")

func (a *App) issueToken(username string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.Config.SessionTTL)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.Config.SessionSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (a *App) parseToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(a.Config.SessionSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", errLoginRequired
	}
	return claims.Subject, nil
}

func (a *App) startSession(c echo.Context, username string) error {
	token, expires, err := a.issueToken(username)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.Config.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (a *App) endSession(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.Config.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireUser resolves the session cookie to a current account. The account is
// reloaded on every request so deleted users lose access immediately.
func (a *App) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			return errLoginRequired
		}
		username, err := a.parseToken(cookie.Value)
		if err != nil {
			return err
		}
		user, err := a.Directory.Lookup(c.Request().Context(), username)
		if errors.Is(err, model.ErrUserNotFound) {
			return errLoginRequired
		}
		if err != nil {
			return err
		}
		c.Set(userKey, user)
		return next(c)
	}
}

// RequireAdmin rejects accounts without the admin flag. It must run after RequireUser.
func (a *App) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := currentUser(c)
		if !ok {
			return errLoginRequired
		}
		if !user.IsAdmin {
			return model.ErrUnauthorized
		}
		return next(c)
	}
}

func currentUser(c echo.Context) (model.User, bool) {
	user, ok := c.Get(userKey).(model.User)
	return user, ok
}
