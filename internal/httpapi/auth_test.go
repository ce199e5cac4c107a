package httpapi

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store/memory"
)

func seedUser(t *testing.T, repo *memory.Store, email, password, role string, active bool) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := repo.CreateUser(context.Background(), domain.User{
		Name:     "Test User",
		Email:    email,
		Password: string(hash),
		Role:     role,
		Active:   active,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return *user
}

func TestLoginAndParseToken(t *testing.T) {
	repo := memory.New()
	user := seedUser(t, repo, "owner@example.com", "s3cret-pass", domain.RoleAdmin, true)
	auth := NewAuthManager("unit-test-secret-material-0123456789", time.Hour, repo)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{
		Email: "owner@example.com", Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}

	actor, err := auth.ParseToken(resp.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != user.ID || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejections(t *testing.T) {
	repo := memory.New()
	seedUser(t, repo, "owner@example.com", "s3cret-pass", domain.RoleAdmin, true)
	seedUser(t, repo, "asleep@example.com", "s3cret-pass", domain.RoleCashier, false)
	auth := NewAuthManager("unit-test-secret-material-0123456789", time.Hour, repo)

	cases := []struct {
		name  string
		email string
		pass  string
	}{
		{"unknown email", "ghost@example.com", "s3cret-pass"},
		{"wrong password", "owner@example.com", "nope"},
		{"inactive account", "asleep@example.com", "s3cret-pass"},
	}
	for _, tc := range cases {
		if _, err := auth.Login(context.Background(), domain.LoginRequest{Email: tc.email, Password: tc.pass}); err == nil {
			t.Fatalf("%s: expected login to fail", tc.name)
		}
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := NewAuthManager("unit-test-secret-material-0123456789", time.Hour, memory.New())

	if _, err := auth.ParseToken("not-a-token"); err == nil {
		t.Fatal("expected error for malformed token")
	}

	repo := memory.New()
	user := seedUser(t, repo, "owner@example.com", "s3cret-pass", domain.RoleAdmin, true)
	other := NewAuthManager("a-completely-different-secret-string!", time.Hour, repo)
	token, err := other.sign(user, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
}

func TestParseTokenExpired(t *testing.T) {
	repo := memory.New()
	user := seedUser(t, repo, "owner@example.com", "s3cret-pass", domain.RoleAdmin, true)
	auth := NewAuthManager("unit-test-secret-material-0123456789", time.Hour, repo)

	token, err := auth.sign(user, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}
