package patient

import (
	"github.com/ehr/carelink/internal/platform/store"
)

func NewPatientRepoMemory(mdb *store.MemoryDB) PatientRepository {
	return store.NewMemoryRepository(mdb, "patient",
		store.UniqueKey[*Patient]{Field: "email", Value: func(p *Patient) string { return p.Email }},
	)
}
