package device

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/store"
)

type DeviceRepository interface {
	store.Repository[*Device]
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Device, error)
	// ListByPatients returns the devices owned by any of patientIDs.
	ListByPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*Device, error)
	ListUnassigned(ctx context.Context) ([]*Device, error)
	// UnassignAll clears patient_id on every device owned by patientID and
	// returns how many changed.
	UnassignAll(ctx context.Context, patientID uuid.UUID) (int64, error)
	CountAssigned(ctx context.Context) (int, error)
}
