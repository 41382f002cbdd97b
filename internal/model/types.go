// Package model defines shared data structures.
package model

import "time"

// TimestampLayout is the human-readable layout used by the file backends and the HTTP history.
const TimestampLayout = "2006-01-02 15:04:05"

// TestConfig defines typing test settings.
type TestConfig struct {
	Lang      string
	Mode      string
	Backend   string
	StorePath string
	TextsPath string
	User      string

	// WordList switches from fixed passages to texts composed from a word list.
	WordList string
	Words    int
	CapsPct  float64
	PunctPct float64
}

// ServerConfig defines settings for the HTTP server.
type ServerConfig struct {
	Addr             string        `env:"TYPESPEED_ADDR, default=:8080"`
	Env              string        `env:"TYPESPEED_ENV, default=development"`
	LogLevel         string        `env:"TYPESPEED_LOG_LEVEL, default=info"`
	SessionSecret    string        `env:"TYPESPEED_SESSION_SECRET"`
	SessionTTL       time.Duration `env:"TYPESPEED_SESSION_TTL, default=24h"`
	DBPath           string        `env:"TYPESPEED_DB_PATH"`
	Lang             string        `env:"TYPESPEED_LANG, default=en"`
	Mode             string        `env:"TYPESPEED_MODE, default=char"`
	TextsPath        string        `env:"TYPESPEED_TEXTS"`
	CascadeUserReset bool          `env:"TYPESPEED_CASCADE_USER_RESET, default=false"`
	BcryptCost       int           `env:"TYPESPEED_BCRYPT_COST, default=10"`

	Redis RedisConfig
}

// RedisConfig configures the optional leaderboard cache.
type RedisConfig struct {
	Addr string        `env:"TYPESPEED_REDIS_ADDR"`
	DB   int           `env:"TYPESPEED_REDIS_DB, default=0"`
	TTL  time.Duration `env:"TYPESPEED_REDIS_TTL, default=1m"`
}

// Metrics holds the numeric outcome of one typing attempt.
type Metrics struct {
	WPM      float64
	Accuracy float64
}

// Result is one completed typing attempt. Results are never mutated once stored.
type Result struct {
	Timestamp time.Time
	WPM       float64
	Accuracy  float64
	// Username is empty when the attempt has no owner (console variant).
	Username string
}

// NewResult builds a Result completed at the given time, truncated to whole seconds.
func NewResult(m Metrics, username string, at time.Time) Result {
	return Result{
		Timestamp: at.Truncate(time.Second),
		WPM:       m.WPM,
		Accuracy:  m.Accuracy,
		Username:  username,
	}
}

// User is an account in the directory.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// LeaderboardEntry aggregates results of a single user.
type LeaderboardEntry struct {
	Username        string  `json:"username"`
	TotalGames      int     `json:"totalGames"`
	AverageWPM      float64 `json:"averageWPM"`
	BestWPM         float64 `json:"bestWPM"`
	AverageAccuracy float64 `json:"averageAccuracy"`
}
