package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/typespeed/internal/model"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Fixed-width UTC layout so timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite stores results and accounts in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the SQLite database and applies migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, persistErr("create database directory", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, persistErr("open database", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, persistErr("migrate database", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return persistErr("ping database", s.db.PingContext(ctx))
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			id INTEGER PRIMARY KEY,
			wpm REAL NOT NULL,
			accuracy REAL NOT NULL,
			timestamp TEXT NOT NULL,
			user_id INTEGER REFERENCES users(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_timestamp ON scores(timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user_id ON scores(user_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append implements ResultStore. A non-empty owner must be a registered user.
func (s *SQLite) Append(ctx context.Context, r model.Result) (err error) {
	if err := validateResult(r); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var userID sql.NullInt64
	if r.Username != "" {
		err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, r.Username).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrUnknownOwner
		}
		if err != nil {
			return persistErr("look up result owner", err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO scores (wpm, accuracy, timestamp, user_id) VALUES (?, ?, ?, ?)`,
		r.WPM, r.Accuracy, r.Timestamp.UTC().Format(sqliteTimeLayout), userID,
	); err != nil {
		return persistErr("insert result", err)
	}
	if err = tx.Commit(); err != nil {
		return persistErr("commit result", err)
	}
	return nil
}

// List implements ResultStore.
func (s *SQLite) List(ctx context.Context, owner string) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.wpm, s.accuracy, s.timestamp, COALESCE(u.username, '')
		 FROM scores s
		 LEFT JOIN users u ON u.id = s.user_id
		 WHERE (? = '' OR u.username = ?)
		 ORDER BY s.timestamp DESC, s.id DESC`,
		owner, owner)
	if err != nil {
		return nil, persistErr("query results", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	results := []model.Result{}
	for rows.Next() {
		var r model.Result
		var ts string
		if err := rows.Scan(&r.WPM, &r.Accuracy, &ts, &r.Username); err != nil {
			return nil, persistErr("scan result", err)
		}
		parsed, err := time.Parse(sqliteTimeLayout, ts)
		if err != nil {
			return nil, persistErr("parse result timestamp", err)
		}
		r.Timestamp = parsed.Local()
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate results", err)
	}
	return results, nil
}

// Reset implements ResultStore.
func (s *SQLite) Reset(ctx context.Context, owner string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if owner == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM scores`)
	} else {
		res, err = s.db.ExecContext(ctx,
			`DELETE FROM scores WHERE user_id IN (SELECT id FROM users WHERE username = ?)`, owner)
	}
	if err != nil {
		return 0, persistErr("delete results", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistErr("count deleted results", err)
	}
	return n, nil
}

// CountResults returns the number of stored results.
func (s *SQLite) CountResults(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores`).Scan(&n); err != nil {
		return 0, persistErr("count results", err)
	}
	return n, nil
}

// CreateUser inserts a user and returns it with its assigned id.
func (s *SQLite) CreateUser(ctx context.Context, u model.User) (_ model.User, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, persistErr("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var exists bool
	if err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, u.Username).Scan(&exists); err != nil {
		return model.User{}, persistErr("check username", err)
	}
	if exists {
		err = model.ErrDuplicateUsername
		return model.User{}, err
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?)`,
		u.Username, u.PasswordHash, u.IsAdmin, u.CreatedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			err = model.ErrDuplicateUsername
			return model.User{}, err
		}
		return model.User{}, persistErr("insert user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, persistErr("read user id", err)
	}
	if err = tx.Commit(); err != nil {
		return model.User{}, persistErr("commit user", err)
	}
	u.ID = id
	return u, nil
}

// FindUserByUsername returns the user or model.ErrUserNotFound.
func (s *SQLite) FindUserByUsername(ctx context.Context, username string) (model.User, error) {
	var (
		u         model.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, is_admin, created_at FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsAdmin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, persistErr("look up user", err)
	}
	parsed, err := time.Parse(sqliteTimeLayout, createdAt)
	if err != nil {
		return model.User{}, persistErr("parse user timestamp", err)
	}
	u.CreatedAt = parsed.Local()
	return u, nil
}

// DeleteNonAdminUsers removes every non-admin account. With cascade the
// accounts' results are removed in the same transaction; otherwise they stay
// behind without a resolvable owner.
func (s *SQLite) DeleteNonAdminUsers(ctx context.Context, cascade bool) (_ int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistErr("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	// Orphaned scores are detached so a reused user id cannot inherit them.
	scoresStmt := `UPDATE scores SET user_id = NULL WHERE user_id IN (SELECT id FROM users WHERE is_admin = 0)`
	if cascade {
		scoresStmt = `DELETE FROM scores WHERE user_id IN (SELECT id FROM users WHERE is_admin = 0)`
	}
	if _, err = tx.ExecContext(ctx, scoresStmt); err != nil {
		return 0, persistErr("detach user results", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE is_admin = 0`)
	if err != nil {
		return 0, persistErr("delete users", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistErr("count deleted users", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, persistErr("commit user reset", err)
	}
	return n, nil
}

// ResetAll removes every result and every non-admin account in one transaction.
func (s *SQLite) ResetAll(ctx context.Context) (results, users int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, persistErr("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM scores`)
	if err != nil {
		return 0, 0, persistErr("delete results", err)
	}
	if results, err = res.RowsAffected(); err != nil {
		return 0, 0, persistErr("count deleted results", err)
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM users WHERE is_admin = 0`)
	if err != nil {
		return 0, 0, persistErr("delete users", err)
	}
	if users, err = res.RowsAffected(); err != nil {
		return 0, 0, persistErr("count deleted users", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, persistErr("commit reset", err)
	}
	return results, users, nil
}

// CountNonAdminUsers returns the number of regular accounts.
func (s *SQLite) CountNonAdminUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = 0`).Scan(&n); err != nil {
		return 0, persistErr("count users", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
