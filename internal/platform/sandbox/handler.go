package sandbox

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/carelink/internal/platform/apierr"
	"github.com/ehr/carelink/internal/platform/auth"
	"github.com/ehr/carelink/internal/platform/store"
)

// SeedHandler exposes the seeder over HTTP. It is only mounted in
// development.
type SeedHandler struct {
	seeder *Seeder
}

func NewSeedHandler(seeder *Seeder) *SeedHandler {
	return &SeedHandler{seeder: seeder}
}

func (h *SeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sandbox/seed", h.handleSeed, auth.RequireRole(auth.RoleAdmin))
}

// handleSeed accepts a fixture as YAML or JSON. An empty body generates a
// small default data set.
func (h *SeedHandler) handleSeed(c echo.Context) error {
	f, err := DecodeFixture(c.Request().Body)
	if err != nil {
		return apierr.From(fmt.Errorf("%w: %v", store.ErrValidation, err))
	}
	if len(f.Patients) == 0 && len(f.Devices) == 0 && len(f.Providers) == 0 && f.Generate == nil {
		f.Generate = &GenerateConfig{Patients: 10, DevicesPerPatient: 1, UnassignedDevices: 3, Providers: 3, ProvidersPerPatient: 1}
	}
	res, err := h.seeder.Apply(c.Request().Context(), f)
	if err != nil {
		return apierr.From(err)
	}
	return c.JSON(http.StatusCreated, res)
}
