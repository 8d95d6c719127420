package patient

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/carelink/internal/platform/store"
)

var patientTable = store.Table[*Patient]{
	Name:    "patient",
	Kind:    "patient",
	Columns: []string{"name", "email", "age", "active"},
	Values: func(p *Patient) []any {
		return []any{p.Name, p.Email, p.Age, p.Active}
	},
	Scan: func(row pgx.Row) (*Patient, error) {
		var p Patient
		err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Age, &p.Active, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		return &p, nil
	},
}

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return store.NewPGRepository(pool, patientTable)
}
