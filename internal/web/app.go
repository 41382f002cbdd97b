// Package web serves the typing test over HTTP.
package web

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/typespeed/internal/account"
	"github.com/verte-zerg/typespeed/internal/cache"
	"github.com/verte-zerg/typespeed/internal/model"
	"github.com/verte-zerg/typespeed/internal/scorer"
	"github.com/verte-zerg/typespeed/internal/store"
	"github.com/verte-zerg/typespeed/internal/texts"
)

// Store is the persistence the server needs: results, accounts and admin maintenance.
type Store interface {
	store.ResultStore
	account.Repository
	DeleteNonAdminUsers(ctx context.Context, cascade bool) (int64, error)
	ResetAll(ctx context.Context) (results, users int64, err error)
	CountNonAdminUsers(ctx context.Context) (int64, error)
	CountResults(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

var _ Store = (*store.SQLite)(nil)

// Pinger is implemented by caches that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App carries everything handlers need. It is built once at startup.
type App struct {
	Store     Store
	Directory *account.Directory
	Catalog   *texts.Catalog
	Cache     cache.Leaderboard
	Log       zerolog.Logger
	Config    model.ServerConfig
	Metrics   *Metrics
	Registry  *prometheus.Registry

	mode scorer.Mode
	now  func() time.Time
	// boardGen advances on every leaderboard invalidation.
	boardGen atomic.Uint64
}

// Deps are the collaborators NewApp wires together.
type Deps struct {
	Store   Store
	Catalog *texts.Catalog
	Cache   cache.Leaderboard
	Log     zerolog.Logger
	// Registry defaults to a fresh registry.
	Registry *prometheus.Registry
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewApp builds the application context from configuration and dependencies.
func NewApp(cfg model.ServerConfig, deps Deps) (*App, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	mode, err := scorer.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	dir, err := account.NewDirectory(deps.Store, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	if deps.Catalog == nil {
		deps.Catalog = texts.NewCatalog()
	}
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &App{
		Store:     deps.Store,
		Directory: dir,
		Catalog:   deps.Catalog,
		Cache:     deps.Cache,
		Log:       deps.Log,
		Config:    cfg,
		Metrics:   NewMetrics(deps.Registry),
		Registry:  deps.Registry,
		mode:      mode,
		now:       deps.Now,
	}, nil
}

func (a *App) invalidateLeaderboard(ctx context.Context) {
	a.boardGen.Add(1)
	if err := a.Cache.Invalidate(ctx); err != nil {
		a.Log.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
}
