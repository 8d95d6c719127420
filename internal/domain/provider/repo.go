package provider

import (
	"github.com/ehr/carelink/internal/platform/store"
)

type ProviderRepository interface {
	store.Repository[*Provider]
}
