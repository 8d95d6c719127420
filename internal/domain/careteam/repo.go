package careteam

import (
	"context"

	"github.com/google/uuid"
)

// LinkRepository stores patient-provider associations. A pair is stored at
// most once; listings follow insertion order.
type LinkRepository interface {
	// Add reports whether a new row was inserted.
	Add(ctx context.Context, patientID, providerID uuid.UUID) (bool, error)
	// Remove reports whether a row was deleted.
	Remove(ctx context.Context, patientID, providerID uuid.UUID) (bool, error)
	Exists(ctx context.Context, patientID, providerID uuid.UUID) (bool, error)
	ProviderIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
	PatientIDs(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error)
	ForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]Link, error)
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error)
	DeleteByProvider(ctx context.Context, providerID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int, error)
}
