package device

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.GET("/devices", h.ListDevices)
	read.GET("/devices/:id", h.GetDevice)

	write := api.Group("", auth.RequireRole(auth.WriteRoles...))
	write.POST("/devices", h.CreateDevice)
	write.PATCH("/devices/:id", h.UpdateDevice)
	write.DELETE("/devices/:id", h.DeleteDevice)
}

func (h *Handler) CreateDevice(c echo.Context) error {
	var in NewDevice
	if err := validate.DecodeJSON(c.Request().Body, &in); err != nil {
		return apierr.From(err)
	}
	d, err := h.svc.CreateDevice(c.Request().Context(), in)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDevice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.BadID("id")
	}
	d, err := h.svc.GetDevice(c.Request().Context(), id)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDevices(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDevices(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdateDevice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.BadID("id")
	}
	var u DeviceUpdate
	if err := validate.DecodeJSON(c.Request().Body, &u); err != nil {
		return apierr.From(err)
	}
	d, err := h.svc.UpdateDevice(c.Request().Context(), id, u)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDevice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.BadID("id")
	}
	deleted, err := h.svc.DeleteDevice(c.Request().Context(), id)
	if err != nil {
		return apierr.From(err)
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "device not found")
	}
	return c.NoContent(http.StatusNoContent)
}
