// Package auth implements the session store: credential validation against
// a fixed allow-list, JWT session tokens, and session persistence.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskforge-io/taskforge/config"
	"github.com/taskforge-io/taskforge/storage"
)

// Storage keys for the persisted session.
const (
	keyAuthToken   = "auth-token"
	keyCurrentUser = "current-user"
)

// ErrInvalidCredentials is returned by Login when the email/password pair
// does not match any allow-list entry. It is the only surfaced auth failure.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Role classifies a user's access level.
type Role string

const (
	RoleManager   Role = "manager"
	RoleDeveloper Role = "developer"
)

// User is an authenticated identity. Immutable once issued by the
// credential table; tasks hold denormalized snapshots of it.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Credential pairs a user with its password, which is either a bcrypt hash
// ("$2..." prefix) or a plaintext mock value.
type Credential struct {
	User     User
	Password string
}

// Store owns the single current session. All session state flows through
// its methods; construct one per process and inject it where needed.
type Store struct {
	mu      sync.RWMutex
	current *User

	creds   []Credential
	storage *storage.Store
	logger  *slog.Logger

	secret     string
	sessionTTL time.Duration
}

// NewStore builds a session store from the auth config. An empty JWT secret
// gets a random per-process one, matching the single-profile scope of the
// persisted session.
func NewStore(cfg config.AuthConfig, st *storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	secret := cfg.JWTSecret
	if secret == "" {
		secret = generateSecret()
	}
	ttl := cfg.SessionTTL.Std()
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	creds := make([]Credential, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		creds = append(creds, Credential{
			User: User{
				ID:    u.ID,
				Name:  u.Name,
				Email: u.Email,
				Role:  Role(u.Role),
			},
			Password: u.Password,
		})
	}
	return &Store{
		creds:      creds,
		storage:    st,
		logger:     logger,
		secret:     secret,
		sessionTTL: ttl,
	}
}

// generateSecret creates a random 32-byte url-safe secret.
func generateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Login validates the email/password pair against the allow-list. On match
// it sets the current user, persists the session, and returns the user and
// a signed token. On mismatch it returns ErrInvalidCredentials with no
// side effects.
func (s *Store) Login(email, password string) (*User, string, error) {
	cred, ok := s.lookup(email, password)
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(&cred.User)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.mu.Lock()
	u := cred.User
	s.current = &u
	s.mu.Unlock()

	s.storage.Set(keyAuthToken, token)
	s.storage.Set(keyCurrentUser, cred.User)

	s.logger.Info("login", slog.String("email", email), slog.String("role", string(cred.User.Role)))
	out := cred.User
	return &out, token, nil
}

func (s *Store) lookup(email, password string) (Credential, bool) {
	for _, c := range s.creds {
		if c.User.Email != email {
			continue
		}
		if passwordMatches(c.Password, password) {
			return c, true
		}
	}
	return Credential{}, false
}

func passwordMatches(stored, supplied string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// Logout clears the current user and removes the persisted session.
// Always succeeds.
func (s *Store) Logout() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.storage.Remove(keyAuthToken)
	s.storage.Remove(keyCurrentUser)
}

// Initialize restores a persisted session when both the token and the user
// record are present, fresh, and the token still verifies. Otherwise the
// session stays empty. Idempotent; safe to call more than once.
func (s *Store) Initialize() {
	var token string
	var user User
	if !s.storage.GetFresh(keyAuthToken, s.sessionTTL, &token) {
		return
	}
	if !s.storage.GetFresh(keyCurrentUser, s.sessionTTL, &user) {
		return
	}
	if _, err := s.VerifyToken(token); err != nil {
		s.logger.Warn("discarding stale session", slog.Any("err", err))
		s.storage.Remove(keyAuthToken)
		s.storage.Remove(keyCurrentUser)
		return
	}

	s.mu.Lock()
	s.current = &user
	s.mu.Unlock()
	s.logger.Info("session restored", slog.String("email", user.Email))
}

// Current returns a copy of the current user, or nil when logged out.
func (s *Store) Current() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// claims is the JWT payload for a session token.
type claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 session token for the given user.
func (s *Store) IssueToken(u *User) (string, error) {
	now := time.Now()
	c := claims{
		Email: u.Email,
		Role:  u.Role,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(s.secret))
}

// VerifyToken validates a session token and returns the user it names.
func (s *Store) VerifyToken(token string) (*User, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return &User{ID: c.Subject, Name: c.Name, Email: c.Email, Role: c.Role}, nil
}
