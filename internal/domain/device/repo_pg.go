package device

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/carelink/internal/platform/store"
)

var deviceTable = store.Table[*Device]{
	Name:    "device",
	Kind:    "device",
	Columns: []string{"serial_number", "active", "patient_id"},
	Values: func(d *Device) []any {
		return []any{d.SerialNumber, d.Active, d.PatientID}
	},
	Scan: func(row pgx.Row) (*Device, error) {
		var d Device
		err := row.Scan(&d.ID, &d.SerialNumber, &d.Active, &d.PatientID, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, err
		}
		return &d, nil
	},
}

type deviceRepoPG struct {
	*store.PGRepository[*Device]
}

func NewDeviceRepoPG(pool *pgxpool.Pool) DeviceRepository {
	return &deviceRepoPG{PGRepository: store.NewPGRepository(pool, deviceTable)}
}

func (r *deviceRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Device, error) {
	return r.Select(ctx, "patient_id = $1", 0, 0, patientID)
}

func (r *deviceRepoPG) ListByPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*Device, error) {
	if len(patientIDs) == 0 {
		return []*Device{}, nil
	}
	return r.Select(ctx, "patient_id = ANY($1::uuid[])", 0, 0, store.UUIDStrings(patientIDs))
}

func (r *deviceRepoPG) ListUnassigned(ctx context.Context) ([]*Device, error) {
	return r.Select(ctx, "patient_id IS NULL", 0, 0)
}

func (r *deviceRepoPG) UnassignAll(ctx context.Context, patientID uuid.UUID) (int64, error) {
	return r.Exec(ctx, `UPDATE device SET patient_id = NULL, updated_at = NOW() WHERE patient_id = $1`, patientID)
}

func (r *deviceRepoPG) CountAssigned(ctx context.Context) (int, error) {
	var n int
	err := r.Conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM device WHERE patient_id IS NOT NULL`).Scan(&n)
	return n, err
}
