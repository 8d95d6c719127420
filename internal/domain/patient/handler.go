package patient

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/carelink/internal/platform/apierr"
	"github.com/ehr/carelink/internal/platform/auth"
	"github.com/ehr/carelink/internal/platform/validate"
)

// Viewer resolves a patient's relationships for responses.
type Viewer interface {
	PatientWithRelations(ctx context.Context, id uuid.UUID) (*View, error)
}

type Handler struct {
	svc    *Service
	viewer Viewer
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SetViewer makes write responses include resolved relationships. Without a
// viewer the relation lists are empty.
func (h *Handler) SetViewer(v Viewer) {
	h.viewer = v
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	write := api.Group("", auth.RequireRole(auth.WriteRoles...))
	write.POST("/patients", h.CreatePatient)
	write.PATCH("/patients/:id", h.UpdatePatient)
	write.DELETE("/patients/:id", h.DeletePatient)
}

func (h *Handler) view(ctx context.Context, p *Patient) (*View, error) {
	if h.viewer == nil {
		return NewView(p), nil
	}
	return h.viewer.PatientWithRelations(ctx, p.ID)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in NewPatient
	if err := validate.DecodeJSON(c.Request().Body, &in); err != nil {
		return apierr.From(err)
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), in)
	if err != nil {
		return apierr.From(err)
	}
	// A fresh patient has no relationships yet.
	return c.JSON(http.StatusCreated, NewView(p))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.BadID("id")
	}
	var u PatientUpdate
	if err := validate.DecodeJSON(c.Request().Body, &u); err != nil {
		return apierr.From(err)
	}
	ctx := c.Request().Context()
	p, err := h.svc.UpdatePatient(ctx, id, u)
	if err != nil {
		return apierr.From(err)
	}
	v, err := h.view(ctx, p)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apierr.BadID("id")
	}
	deleted, err := h.svc.DeletePatient(c.Request().Context(), id)
	if err != nil {
		return apierr.From(err)
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.NoContent(http.StatusNoContent)
}
