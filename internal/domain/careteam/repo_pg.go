package careteam

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/carelink/internal/platform/db"
	"github.com/ehr/carelink/internal/platform/store"
)

const linkKind = "patient_provider"

type linkRepoPG struct{ pool *pgxpool.Pool }

func NewLinkRepoPG(pool *pgxpool.Pool) LinkRepository {
	return &linkRepoPG{pool: pool}
}

func (r *linkRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *linkRepoPG) Add(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_provider (patient_id, provider_id)
		VALUES ($1, $2)
		ON CONFLICT (patient_id, provider_id) DO NOTHING`,
		patientID, providerID)
	if err != nil {
		return false, store.FromPG(linkKind, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *linkRepoPG) Remove(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM patient_provider WHERE patient_id = $1 AND provider_id = $2`,
		patientID, providerID)
	if err != nil {
		return false, store.FromPG(linkKind, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *linkRepoPG) Exists(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM patient_provider WHERE patient_id = $1 AND provider_id = $2)`,
		patientID, providerID).Scan(&ok)
	return ok, err
}

func (r *linkRepoPG) ids(ctx context.Context, query string, arg uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *linkRepoPG) ProviderIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT provider_id FROM patient_provider WHERE patient_id = $1 ORDER BY seq`, patientID)
}

func (r *linkRepoPG) PatientIDs(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error) {
	return r.ids(ctx, `SELECT patient_id FROM patient_provider WHERE provider_id = $1 ORDER BY seq`, providerID)
}

func (r *linkRepoPG) ForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]Link, error) {
	links := []Link{}
	if len(patientIDs) == 0 {
		return links, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_id, provider_id, created_at
		FROM patient_provider
		WHERE patient_id = ANY($1::uuid[])
		ORDER BY seq`, store.UUIDStrings(patientIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.PatientID, &l.ProviderID, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *linkRepoPG) DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_provider WHERE patient_id = $1`, patientID)
	if err != nil {
		return 0, store.FromPG(linkKind, err)
	}
	return tag.RowsAffected(), nil
}

func (r *linkRepoPG) DeleteByProvider(ctx context.Context, providerID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_provider WHERE provider_id = $1`, providerID)
	if err != nil {
		return 0, store.FromPG(linkKind, err)
	}
	return tag.RowsAffected(), nil
}

func (r *linkRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_provider`).Scan(&n)
	return n, err
}
