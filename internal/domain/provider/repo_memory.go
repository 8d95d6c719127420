package provider

import (
	"github.com/ehr/carelink/internal/platform/store"
)

func NewProviderRepoMemory(mdb *store.MemoryDB) ProviderRepository {
	return store.NewMemoryRepository(mdb, "provider",
		store.UniqueKey[*Provider]{Field: "email", Value: func(p *Provider) string {
			if p.Email == nil {
				return ""
			}
			return *p.Email
		}},
	)
}
