package auth

import (
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskforge-io/taskforge/config"
	"github.com/taskforge-io/taskforge/storage"
)

func newTestStorage(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "auth-test.db"), nil)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.DefaultConfig().Auth
	cfg.JWTSecret = "test-secret-key-1234567890"
	return NewStore(cfg, newTestStorage(t), nil)
}

func TestLogin_Success(t *testing.T) {
	s := newTestStore(t)

	user, token, err := s.Login("manager@example.com", "man123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Role != RoleManager {
		t.Errorf("expected manager role, got %q", user.Role)
	}
	if token == "" {
		t.Error("expected non-empty token")
	}
	if cur := s.Current(); cur == nil || cur.Email != "manager@example.com" {
		t.Errorf("expected current user to be set, got %+v", cur)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Login("manager@example.com", "wrong")
	if err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if s.Current() != nil {
		t.Error("failed login must leave session state unchanged")
	}

	// And no session must have been persisted.
	s2 := newTestStore(t)
	s2.Initialize()
	if s2.Current() != nil {
		t.Error("expected no restorable session after failed login")
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.Login("nobody@example.com", "dev123"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_BcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := config.AuthConfig{
		JWTSecret:  "test-secret",
		SessionTTL: config.Duration(time.Hour),
		Users: []config.UserConfig{
			{ID: "9", Name: "Hash User", Email: "hash@example.com", Role: "developer", Password: string(hash)},
		},
	}
	s := NewStore(cfg, newTestStorage(t), nil)

	if _, _, err := s.Login("hash@example.com", "s3cret"); err != nil {
		t.Fatalf("Login with bcrypt hash: %v", err)
	}
	if _, _, err := s.Login("hash@example.com", "nope"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	st := newTestStorage(t)
	cfg := config.DefaultConfig().Auth
	cfg.JWTSecret = "test-secret"
	s := NewStore(cfg, st, nil)

	if _, _, err := s.Login("developer@example.com", "dev123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	s.Logout()

	if s.Current() != nil {
		t.Error("expected nil current user after logout")
	}
	// Persisted session gone too: a fresh store over the same storage
	// must not restore anything.
	s2 := NewStore(cfg, st, nil)
	s2.Initialize()
	if s2.Current() != nil {
		t.Error("expected no session to restore after logout")
	}
}

func TestInitialize_RestoresSession(t *testing.T) {
	st := newTestStorage(t)
	cfg := config.DefaultConfig().Auth
	cfg.JWTSecret = "test-secret"

	s := NewStore(cfg, st, nil)
	if _, _, err := s.Login("developer@example.com", "dev123"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// New store instance over the same storage, as on process restart.
	s2 := NewStore(cfg, st, nil)
	s2.Initialize()
	cur := s2.Current()
	if cur == nil || cur.Email != "developer@example.com" {
		t.Fatalf("expected restored session, got %+v", cur)
	}

	// Idempotent.
	s2.Initialize()
	if cur := s2.Current(); cur == nil || cur.Email != "developer@example.com" {
		t.Errorf("expected session to survive repeated Initialize, got %+v", cur)
	}
}

func TestInitialize_EmptyStorage(t *testing.T) {
	s := newTestStore(t)
	s.Initialize()
	if s.Current() != nil {
		t.Error("expected empty session with empty storage")
	}
}

func TestInitialize_RejectsForeignToken(t *testing.T) {
	st := newTestStorage(t)
	cfg := config.DefaultConfig().Auth
	cfg.JWTSecret = "secret-one"

	s := NewStore(cfg, st, nil)
	if _, _, err := s.Login("developer@example.com", "dev123"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Restart with a different secret: the persisted token no longer verifies.
	cfg.JWTSecret = "secret-two"
	s2 := NewStore(cfg, st, nil)
	s2.Initialize()
	if s2.Current() != nil {
		t.Error("expected session with unverifiable token to be discarded")
	}
}

func TestIssueAndVerifyToken(t *testing.T) {
	s := newTestStore(t)
	u := &User{ID: "2", Name: "Jane Manager", Email: "manager@example.com", Role: RoleManager}

	token, err := s.IssueToken(u)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	got, err := s.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if got.ID != "2" || got.Role != RoleManager || got.Email != "manager@example.com" {
		t.Errorf("unexpected verified user: %+v", got)
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.VerifyToken("not.a.token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	if _, _, err := s.Login("developer@example.com", "dev123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	cur := s.Current()
	cur.Name = "mutated"
	if s.Current().Name == "mutated" {
		t.Error("Current must return a copy, not an alias")
	}
}
