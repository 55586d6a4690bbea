package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/core/domain"
)

// currentSession returns the session injected by middleware.Auth. A missing
// session means the route was mounted without the middleware.
func currentSession(c echo.Context) (*domain.Session, error) {
	session, _ := c.Get(middleware.SessionKey).(*domain.Session)
	if session == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return session, nil
}
