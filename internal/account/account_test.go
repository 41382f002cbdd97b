package account

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/verte-zerg/typespeed/internal/model"
)

type stubRepo struct {
	users   map[string]model.User
	findErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[string]model.User)}
}

func (r *stubRepo) CreateUser(_ context.Context, u model.User) (model.User, error) {
	if _, exists := r.users[u.Username]; exists {
		return model.User{}, model.ErrDuplicateUsername
	}
	u.ID = int64(len(r.users) + 1)
	r.users[u.Username] = u
	return u, nil
}

func (r *stubRepo) FindUserByUsername(_ context.Context, username string) (model.User, error) {
	if r.findErr != nil {
		return model.User{}, r.findErr
	}
	u, ok := r.users[username]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func newTestDirectory(t *testing.T, repo Repository) *Directory {
	t.Helper()
	d, err := NewDirectory(repo, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	return d
}

func TestRegisterHashesSecret(t *testing.T) {
	repo := newStubRepo()
	d := newTestDirectory(t, repo)

	u, err := d.Register(context.Background(), "  alice ", "pass123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username != "alice" {
		t.Fatalf("expected trimmed username, got %q", u.Username)
	}
	if u.PasswordHash == "pass123" || strings.Contains(u.PasswordHash, "pass123") {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("pass123")); err != nil {
		t.Fatalf("stored hash does not match: %v", err)
	}
	if u.IsAdmin {
		t.Fatalf("regular registration must not grant admin")
	}
}

func TestRegisterDuplicateKeepsExistingHash(t *testing.T) {
	repo := newStubRepo()
	d := newTestDirectory(t, repo)

	first, err := d.Register(context.Background(), "bob", "first")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := d.Register(context.Background(), "bob", "second"); !errors.Is(err, model.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
	if repo.users["bob"].PasswordHash != first.PasswordHash {
		t.Fatalf("existing hash changed")
	}
	if _, err := d.Authenticate(context.Background(), "bob", "first"); err != nil {
		t.Fatalf("original secret must still work: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	d := newTestDirectory(t, newStubRepo())
	ctx := context.Background()

	if _, err := d.Register(ctx, "   ", "x"); !errors.Is(err, model.ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	if _, err := d.Register(ctx, strings.Repeat("a", MaxUsernameLen+1), "x"); !errors.Is(err, model.ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername for long name, got %v", err)
	}
	if _, err := d.Register(ctx, "a\nb", "x"); !errors.Is(err, model.ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername for control chars, got %v", err)
	}
	if _, err := d.Register(ctx, "carol", ""); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty secret, got %v", err)
	}
}

func TestRegisterRejectsSecretOverBcryptLimit(t *testing.T) {
	repo := newStubRepo()
	d := newTestDirectory(t, repo)

	_, err := d.Register(context.Background(), "alice", strings.Repeat("x", MaxSecretLen+1))
	if !errors.Is(err, model.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if len(repo.users) != 0 {
		t.Fatalf("expected no stored user, got %+v", repo.users)
	}
	if _, err := d.Register(context.Background(), "alice", strings.Repeat("x", MaxSecretLen)); err != nil {
		t.Fatalf("register at limit: %v", err)
	}
}

func TestAuthenticateDoesNotRevealUnknownUser(t *testing.T) {
	d := newTestDirectory(t, newStubRepo())
	ctx := context.Background()
	if _, err := d.Register(ctx, "dave", "goodpass"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, wrongSecret := d.Authenticate(ctx, "dave", "badpass")
	_, unknownUser := d.Authenticate(ctx, "ghost", "badpass")
	if !errors.Is(wrongSecret, model.ErrInvalidCredentials) || !errors.Is(unknownUser, model.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v and %v", wrongSecret, unknownUser)
	}
	if wrongSecret.Error() != unknownUser.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongSecret, unknownUser)
	}

	u, err := d.Authenticate(ctx, "dave", "goodpass")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.Username != "dave" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestAuthenticatePropagatesRepositoryFailure(t *testing.T) {
	repo := newStubRepo()
	boom := errors.New("disk on fire")
	repo.findErr = boom
	d := newTestDirectory(t, repo)
	if _, err := d.Authenticate(context.Background(), "x", "y"); !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
}

func TestAuthenticateAdmin(t *testing.T) {
	d := newTestDirectory(t, newStubRepo())
	ctx := context.Background()
	if _, err := d.RegisterAdmin(ctx, "root", "s3cret"); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if _, err := d.Register(ctx, "erin", "s3cret"); err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := d.AuthenticateAdmin(ctx, "root", "s3cret")
	if err != nil || !u.IsAdmin {
		t.Fatalf("expected admin login, got %+v %v", u, err)
	}
	if _, err := d.AuthenticateAdmin(ctx, "erin", "s3cret"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected non-admin to be rejected, got %v", err)
	}
}

func TestNewDirectoryClampsCost(t *testing.T) {
	d, err := NewDirectory(newStubRepo(), 1)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	if d.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", d.cost)
	}
}
