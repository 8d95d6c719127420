package provider

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/carelink/internal/platform/store"
)

var providerTable = store.Table[*Provider]{
	Name:    "provider",
	Kind:    "provider",
	Columns: []string{"name", "email", "specialty"},
	Values: func(p *Provider) []any {
		return []any{p.Name, p.Email, p.Specialty}
	},
	Scan: func(row pgx.Row) (*Provider, error) {
		var p Provider
		err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Specialty, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		return &p, nil
	},
}

func NewProviderRepoPG(pool *pgxpool.Pool) ProviderRepository {
	return store.NewPGRepository(pool, providerTable)
}
