package device

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/store"
)

type deviceRepoMemory struct {
	*store.MemoryRepository[*Device]
	mdb *store.MemoryDB
}

func NewDeviceRepoMemory(mdb *store.MemoryDB) DeviceRepository {
	return &deviceRepoMemory{
		MemoryRepository: store.NewMemoryRepository(mdb, "device",
			store.UniqueKey[*Device]{Field: "serial_number", Value: func(d *Device) string { return d.SerialNumber }},
		),
		mdb: mdb,
	}
}

func (r *deviceRepoMemory) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Device, error) {
	return r.Filter(ctx, func(d *Device) bool { return d.AssignedTo(patientID) }), nil
}

func (r *deviceRepoMemory) ListByPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*Device, error) {
	want := make(map[uuid.UUID]struct{}, len(patientIDs))
	for _, id := range patientIDs {
		want[id] = struct{}{}
	}
	return r.Filter(ctx, func(d *Device) bool {
		if d.PatientID == nil {
			return false
		}
		_, ok := want[*d.PatientID]
		return ok
	}), nil
}

func (r *deviceRepoMemory) ListUnassigned(ctx context.Context) ([]*Device, error) {
	return r.Filter(ctx, func(d *Device) bool { return d.PatientID == nil }), nil
}

func (r *deviceRepoMemory) UnassignAll(ctx context.Context, patientID uuid.UUID) (int64, error) {
	var n int64
	err := r.mdb.InTx(ctx, func(ctx context.Context) error {
		for _, d := range r.Filter(ctx, func(d *Device) bool { return d.AssignedTo(patientID) }) {
			d.PatientID = nil
			if err := r.Update(ctx, d); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (r *deviceRepoMemory) CountAssigned(ctx context.Context) (int, error) {
	return len(r.Filter(ctx, func(d *Device) bool { return d.PatientID != nil })), nil
}
