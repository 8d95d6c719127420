package provider

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/carelink/internal/platform/apierr"
	"github.com/ehr/carelink/internal/platform/auth"
	"github.com/ehr/carelink/internal/platform/validate"
	"github.com/ehr/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts provider CRUD. The detail read, which carries the
// provider's patients, is served by the careteam handler.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.GET("/providers", h.ListProviders)

	write := api.Group("", auth.RequireRole(auth.WriteRoles...))
	write.POST("/providers", h.CreateProvider)
	write.PATCH("/providers/:id", h.UpdateProvider)
	write.DELETE("/providers/:id", h.DeleteProvider)
}

func (h *Handler) CreateProvider(c echo.Context) error {
	var in NewProvider
	if err := validate.DecodeJSON(c.Request().Body, &in); err != nil {
		return apierr.From(err)
	}
	p, err := h.svc.CreateProvider(c.Request().Context(), in)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListProviders(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListProviders(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.BadID("id")
	}
	var u ProviderUpdate
	if err := validate.DecodeJSON(c.Request().Body, &u); err != nil {
		return apierr.From(err)
	}
	p, err := h.svc.UpdateProvider(c.Request().Context(), id, u)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProvider(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.BadID("id")
	}
	deleted, err := h.svc.DeleteProvider(c.Request().Context(), id)
	if err != nil {
		return apierr.From(err)
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "provider not found")
	}
	return c.NoContent(http.StatusNoContent)
}
