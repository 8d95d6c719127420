package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/carelink/internal/config"
	"github.com/ehr/carelink/internal/domain/careteam"
	"github.com/ehr/carelink/internal/domain/device"
	"github.com/ehr/carelink/internal/domain/patient"
	"github.com/ehr/carelink/internal/domain/provider"
	"github.com/ehr/carelink/internal/platform/auth"
	"github.com/ehr/carelink/internal/platform/db"
	"github.com/ehr/carelink/internal/platform/middleware"
	"github.com/ehr/carelink/internal/platform/sandbox"
	"github.com/ehr/carelink/internal/platform/websocket"
)

const (
	version        = "0.1.0"
	requestTimeout = 30 * time.Second
)

func newServer(cfg *config.Config, a *app, b *backend, d *deps, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(requestTimeout))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(b.pinger, b.pool))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(d.limiter, logger))

	patientHandler := patient.NewHandler(a.patients)
	patientHandler.SetViewer(a.query)
	patientHandler.RegisterRoutes(apiV1)
	device.NewHandler(a.devices).RegisterRoutes(apiV1)
	provider.NewHandler(a.providers).RegisterRoutes(apiV1)
	careteam.NewHandler(a.mgr, a.query).RegisterRoutes(apiV1)
	websocket.NewHandler(d.hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	if cfg.IsDev() {
		sandbox.NewSeedHandler(a.seeder).RegisterRoutes(apiV1)
	}

	return e
}
