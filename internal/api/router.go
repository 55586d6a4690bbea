package api

import (
	"fmt"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/facegate/facegate/docs"
	"github.com/facegate/facegate/internal/api/handler"
	"github.com/facegate/facegate/internal/api/middleware"
	"github.com/facegate/facegate/internal/core/ports"
	"github.com/facegate/facegate/internal/infrastructure/upload"
)

// formOverhead leaves room for the non-file multipart fields on top of the
// image size limit.
const formOverhead = 64 << 10

// Deps carries everything the HTTP layer needs. Construction of the concrete
// services happens in the serve command.
type Deps struct {
	AuthService ports.AuthService
	Sessions    middleware.SessionResolver
	Stager      *upload.Stager
	Checks      []handler.DependencyCheck
	Log         zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace: "facegate",
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	authHandler := handler.NewAuthHandler(deps.AuthService, deps.Stager)
	requireSession := middleware.Auth(deps.Sessions)
	bodyLimit := echomiddleware.BodyLimit(fmt.Sprintf("%dB", deps.Stager.MaxBytes()+formOverhead))

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register, bodyLimit)
	auth.POST("/login", authHandler.Login)
	auth.POST("/login/face", authHandler.LoginFace, bodyLimit)
	auth.POST("/logout", authHandler.Logout, requireSession)
	auth.GET("/me", authHandler.Me, requireSession)

	// --- Health probes (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(deps.Checks...).Readiness)

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			switch {
			case v.Status >= 500:
				evt = log.Error().Err(v.Error)
			case v.Error != nil:
				evt = log.Warn().Err(v.Error)
			}
			evt.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency.Round(time.Microsecond)).
				Msg("request")
			return nil
		},
	})
}
