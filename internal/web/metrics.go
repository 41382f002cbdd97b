package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "typespeed"

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	// ScoresSaved counts stored results.
	// Label source: "client" for submitted metrics, "server" for server-side scoring.
	ScoresSaved *prometheus.CounterVec
	// Registrations counts created accounts.
	Registrations prometheus.Counter
	// Logins counts login attempts.
	// Labels kind: "user" or "admin"; result: "success" or "failure".
	Logins *prometheus.CounterVec
	// LeaderboardCache counts leaderboard lookups by result: "hit" or "miss".
	LeaderboardCache *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScoresSaved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scores_saved_total",
			Help:      "Total number of typing results saved.",
		}, []string{"source"}),
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of accounts registered.",
		}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of login attempts, by kind and result.",
		}, []string{"kind", "result"}),
		LeaderboardCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaderboard_cache_total",
			Help:      "Leaderboard cache lookups, labelled by result (hit/miss).",
		}, []string{"result"}),
	}
}
