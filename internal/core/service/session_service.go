package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/core/domain"
	"github.com/facegate/facegate/internal/core/ports"
)

// SessionService issues signed session tokens backed by a revocable store.
type SessionService struct {
	store     ports.SessionStore
	jwtSecret string
	ttl       time.Duration
	now       func() time.Time
}

func NewSessionService(store ports.SessionStore, jwtSecret string, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{store: store, jwtSecret: jwtSecret, ttl: ttl, now: time.Now}
}

// Establish opens a session for account and returns its bearer token.
func (s *SessionService) Establish(ctx context.Context, account *domain.Account) (string, *domain.Session, error) {
	now := s.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Email:     account.Email,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.store.Save(ctx, session, s.ttl); err != nil {
		return "", nil, fmt.Errorf("establish session: %w", err)
	}

	claims := jwt.MapClaims{
		"sid":   session.ID,
		"sub":   session.AccountID,
		"email": session.Email,
		"iat":   now.Unix(),
		"exp":   session.ExpiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
	if err != nil {
		_ = s.store.Delete(ctx, session.ID)
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, session, nil
}

// Resolve validates token and checks that its session has not been revoked.
func (s *SessionService) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !tkn.Valid {
		return nil, domain.ErrSessionNotFound
	}

	sid, _ := claims["sid"].(string)
	if sid == "" {
		return nil, domain.ErrSessionNotFound
	}

	live, err := s.store.Exists(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if !live {
		return nil, domain.ErrSessionNotFound
	}

	session := &domain.Session{ID: sid}
	session.AccountID, _ = claims["sub"].(string)
	session.Email, _ = claims["email"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time.UTC()
	}
	return session, nil
}

// Revoke ends a session; later Resolve calls for it fail.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
