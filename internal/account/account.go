// Package account maps usernames to hashed secrets and the admin flag.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/verte-zerg/typespeed/internal/model"
)

// MaxUsernameLen bounds usernames in runes.
const MaxUsernameLen = 80

// MaxSecretLen is the bcrypt input limit in bytes.
const MaxSecretLen = 72

// Repository persists accounts.
type Repository interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	FindUserByUsername(ctx context.Context, username string) (model.User, error)
}

// Directory registers and authenticates accounts.
type Directory struct {
	repo      Repository
	cost      int
	dummyHash []byte
}

// NewDirectory returns a Directory hashing secrets with the given bcrypt cost.
// Costs outside bcrypt's range fall back to bcrypt.DefaultCost.
func NewDirectory(repo Repository, cost int) (*Directory, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// Compared against when the username is unknown so both failure paths cost the same.
	dummy, err := bcrypt.GenerateFromPassword([]byte("typespeed-unknown-user"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare directory: %w", err)
	}
	return &Directory{repo: repo, cost: cost, dummyHash: dummy}, nil
}

// Register stores a regular account.
func (d *Directory) Register(ctx context.Context, username, secret string) (model.User, error) {
	return d.create(ctx, username, secret, false)
}

// RegisterAdmin stores an admin account with operator-supplied credentials.
func (d *Directory) RegisterAdmin(ctx context.Context, username, secret string) (model.User, error) {
	return d.create(ctx, username, secret, true)
}

func (d *Directory) create(ctx context.Context, username, secret string, admin bool) (model.User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return model.User{}, err
	}
	if secret == "" {
		return model.User{}, fmt.Errorf("%w: password is required", model.ErrInvalidCredentials)
	}
	if len(secret) > MaxSecretLen {
		return model.User{}, fmt.Errorf("%w: password must be at most %d bytes", model.ErrInvalidPassword, MaxSecretLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), d.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	return d.repo.CreateUser(ctx, model.User{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      admin,
	})
}

// Authenticate returns the account when secret matches its stored hash.
// Unknown users and wrong secrets both yield model.ErrInvalidCredentials.
func (d *Directory) Authenticate(ctx context.Context, username, secret string) (model.User, error) {
	u, err := d.repo.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(d.dummyHash, []byte(secret))
			return model.User{}, model.ErrInvalidCredentials
		}
		return model.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(secret)) != nil {
		return model.User{}, model.ErrInvalidCredentials
	}
	return u, nil
}

// AuthenticateAdmin is Authenticate restricted to admin accounts.
func (d *Directory) AuthenticateAdmin(ctx context.Context, username, secret string) (model.User, error) {
	u, err := d.Authenticate(ctx, username, secret)
	if err != nil {
		return model.User{}, err
	}
	if !u.IsAdmin {
		return model.User{}, model.ErrInvalidCredentials
	}
	return u, nil
}

// Lookup returns the account for username.
func (d *Directory) Lookup(ctx context.Context, username string) (model.User, error) {
	return d.repo.FindUserByUsername(ctx, username)
}

// ValidateUsername checks length and rejects control characters.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", model.ErrInvalidUsername)
	}
	if utf8.RuneCountInString(username) > MaxUsernameLen {
		return fmt.Errorf("%w: username must be at most %d characters", model.ErrInvalidUsername, MaxUsernameLen)
	}
	for _, r := range username {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: username contains control characters", model.ErrInvalidUsername)
		}
	}
	return nil
}
