package patient

import (
	"github.com/ehr/carelink/internal/platform/store"
)

type PatientRepository interface {
	store.Repository[*Patient]
}
