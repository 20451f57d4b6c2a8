package security

import (
	"context"
	"errors"
	"time"

	"github.com/cppla/secureboard/utils"
)

// ErrSessionRevoked is returned for a token whose session was logged out.
var ErrSessionRevoked = errors.New("session revoked")

// Session identifies a logged-in user. The signed token is what travels in the cookie.
type Session struct {
	ID        string
	UserID    uint
	Email     string
	ExpiresAt time.Time
	Token     string
}

// SessionManager issues, resolves and invalidates sessions.
type SessionManager struct {
	secret    string
	ttl       time.Duration
	blacklist *utils.TokenBlacklist
}

// NewSessionManager creates a SessionManager signing tokens with secret.
func NewSessionManager(secret string, ttl time.Duration, blacklist *utils.TokenBlacklist) *SessionManager {
	if blacklist == nil {
		blacklist = utils.NewTokenBlacklist(nil)
	}
	return &SessionManager{secret: secret, ttl: ttl, blacklist: blacklist}
}

// TTL is the lifetime of newly issued sessions.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Start opens a session for the principal.
func (m *SessionManager) Start(p *Principal) (*Session, error) {
	token, claims, err := utils.GenerateToken(m.secret, p.UserID, p.Username, m.ttl)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        claims.ID,
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
		Token:     token,
	}, nil
}

// Resolve validates a token and checks that its session is still live.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := utils.ParseToken(m.secret, token)
	if err != nil {
		return nil, err
	}
	if m.blacklist.IsRevoked(ctx, claims.ID) {
		return nil, ErrSessionRevoked
	}
	s := &Session{ID: claims.ID, UserID: claims.UserID, Email: claims.Email, Token: token}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Invalidate discards the session so its token is rejected from now on.
func (m *SessionManager) Invalidate(ctx context.Context, s *Session) error {
	expiresAt := s.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(m.ttl)
	}
	return m.blacklist.Revoke(ctx, s.ID, expiresAt)
}
