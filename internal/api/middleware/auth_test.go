package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/facegate/facegate/internal/core/domain"
)

type stubResolver struct {
	resolveFn func(ctx context.Context, token string) (*domain.Session, error)
}

func (s *stubResolver) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	return s.resolveFn(ctx, token)
}

func rejectAll(t *testing.T) *stubResolver {
	return &stubResolver{resolveFn: func(context.Context, string) (*domain.Session, error) {
		t.Fatalf("resolver should not be called")
		return nil, nil
	}}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	resolver := &stubResolver{resolveFn: func(_ context.Context, token string) (*domain.Session, error) {
		if token != "tok-123" {
			t.Fatalf("unexpected token %q", token)
		}
		return &domain.Session{ID: "sid-1", Email: "a@x.com"}, nil
	}}

	called := false
	handler := Auth(resolver)(func(c echo.Context) error {
		called = true
		s, ok := c.Get(SessionKey).(*domain.Session)
		if !ok || s.ID != "sid-1" || s.Email != "a@x.com" {
			t.Fatalf("session not set: %#v", c.Get(SessionKey))
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Token abc",
		"empty token":    "Bearer ",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := Auth(rejectAll(t))(func(c echo.Context) error {
				t.Fatalf("should not reach next")
				return nil
			})

			if err := handler(c); err != nil {
				e.HTTPErrorHandler(err, c)
			}
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestAuthMiddleware_RevokedSession(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer revoked")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	resolver := &stubResolver{resolveFn: func(context.Context, string) (*domain.Session, error) {
		return nil, domain.ErrSessionNotFound
	}}
	handler := Auth(resolver)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_StoreFailurePropagates(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	c := e.NewContext(req, httptest.NewRecorder())

	boom := errors.New("redis down")
	resolver := &stubResolver{resolveFn: func(context.Context, string) (*domain.Session, error) {
		return nil, boom
	}}

	err := Auth(resolver)(func(echo.Context) error { return nil })(c)
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
}
