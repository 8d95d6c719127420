package careteam

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/carelink/internal/platform/apierr"
	"github.com/ehr/carelink/internal/platform/auth"
	"github.com/ehr/carelink/pkg/pagination"
)

type Handler struct {
	mgr   *Manager
	query *Query
}

func NewHandler(mgr *Manager, query *Query) *Handler {
	return &Handler{mgr: mgr, query: query}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/patients/:id/devices", h.ListPatientDevices)
	read.GET("/patients/:id/providers", h.ListPatientProviders)
	read.GET("/devices/unassigned", h.ListUnassignedDevices)
	read.GET("/providers/:id", h.GetProvider)
	read.GET("/providers/:id/patients", h.ListProviderPatients)
	read.GET("/stats", h.GetStats)

	write := api.Group("", auth.RequireRole(auth.WriteRoles...))
	write.PUT("/patients/:id/devices/:device_id", h.AssignDevice)
	write.DELETE("/patients/:id/devices/:device_id", h.UnassignDevice)
	write.PUT("/patients/:id/providers/:provider_id", h.AssignProvider)
	write.DELETE("/patients/:id/providers/:provider_id", h.RemoveProvider)
}

func parseIDs(c echo.Context, names ...string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(names))
	for i, name := range names {
		id, err := uuid.Parse(c.Param(name))
		if err != nil {
			return nil, apierr.BadID(name)
		}
		ids[i] = id
	}
	return ids, nil
}

// -- Patient views --

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	views, total, err := h.query.ListPatientsWithRelations(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}

func (h *Handler) GetPatient(c echo.Context) error {
	ids, err := parseIDs(c, "id")
	if err != nil {
		return err
	}
	v, err := h.query.PatientWithRelations(c.Request().Context(), ids[0])
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListPatientDevices(c echo.Context) error {
	ids, err := parseIDs(c, "id")
	if err != nil {
		return err
	}
	devices, err := h.query.DevicesForPatient(c.Request().Context(), ids[0])
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, devices)
}

func (h *Handler) ListPatientProviders(c echo.Context) error {
	ids, err := parseIDs(c, "id")
	if err != nil {
		return err
	}
	providers, err := h.query.ProvidersForPatient(c.Request().Context(), ids[0])
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, providers)
}

// -- Device ownership --

func (h *Handler) AssignDevice(c echo.Context) error {
	ids, err := parseIDs(c, "id", "device_id")
	if err != nil {
		return err
	}
	d, err := h.mgr.AssignDevice(c.Request().Context(), ids[0], ids[1])
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UnassignDevice(c echo.Context) error {
	ids, err := parseIDs(c, "id", "device_id")
	if err != nil {
		return err
	}
	d, err := h.mgr.UnassignDevice(c.Request().Context(), ids[0], ids[1])
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListUnassignedDevices(c echo.Context) error {
	devices, err := h.query.UnassignedDevices(c.Request().Context())
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, devices)
}

// -- Provider associations --

// AssignProvider responds with the patient's updated view whether or not the
// association already existed.
func (h *Handler) AssignProvider(c echo.Context) error {
	ids, err := parseIDs(c, "id", "provider_id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.mgr.AssignProvider(ctx, ids[0], ids[1]); err != nil {
		return apierr.From(err)
	}
	v, err := h.query.PatientWithRelations(ctx, ids[0])
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) RemoveProvider(c echo.Context) error {
	ids, err := parseIDs(c, "id", "provider_id")
	if err != nil {
		return err
	}
	if _, err := h.mgr.RemoveProvider(c.Request().Context(), ids[0], ids[1]); err != nil {
		return apierr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetProvider(c echo.Context) error {
	ids, err := parseIDs(c, "id")
	if err != nil {
		return err
	}
	v, err := h.query.ProviderWithPatients(c.Request().Context(), ids[0])
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListProviderPatients(c echo.Context) error {
	ids, err := parseIDs(c, "id")
	if err != nil {
		return err
	}
	patients, err := h.query.PatientsForProvider(c.Request().Context(), ids[0])
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetStats(c echo.Context) error {
	s, err := h.mgr.Stats(c.Request().Context())
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusOK, s)
}
