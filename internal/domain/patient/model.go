package patient

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/store"
	"github.com/ehr/carelink/pkg/optional"
)

// Patient maps to the patient table.
type Patient struct {
	store.Record
	Name   string `json:"name"`
	Email  string `json:"email"`
	Age    *int   `json:"age"`
	Active bool   `json:"active"`
}

func (p *Patient) Clone() *Patient {
	c := *p
	if p.Age != nil {
		age := *p.Age
		c.Age = &age
	}
	return &c
}

// NewPatient is the create payload.
type NewPatient struct {
	Name   string `json:"name" validate:"notblank,max=100"`
	Email  string `json:"email" validate:"required,email,max=254"`
	Age    *int   `json:"age" validate:"omitempty,gte=0"`
	Active *bool  `json:"active"`
}

// PatientUpdate is the partial-update payload: only fields present in the
// request are applied.
type PatientUpdate struct {
	Name   *string             `json:"name" validate:"omitempty,notblank,max=100"`
	Email  *string             `json:"email" validate:"omitempty,email,max=254"`
	Age    optional.Field[int] `json:"age"`
	Active *bool               `json:"active"`
}

func (u *PatientUpdate) normalize() {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	if u.Email != nil {
		email := NormalizeEmail(*u.Email)
		u.Email = &email
	}
}

// Apply merges the present fields onto p.
func (u PatientUpdate) Apply(p *Patient) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Email != nil {
		p.Email = *u.Email
	}
	u.Age.Apply(&p.Age)
	if u.Active != nil {
		p.Active = *u.Active
	}
}

// NormalizeEmail trims and lower-cases an address so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DeviceSummary is the device entry embedded in a patient view.
type DeviceSummary struct {
	ID           uuid.UUID `json:"id"`
	SerialNumber string    `json:"serial_number"`
	Active       bool      `json:"active"`
}

// ProviderSummary is the provider entry embedded in a patient view.
type ProviderSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty"`
}

// View is a patient together with its resolved relationships.
type View struct {
	*Patient
	Devices   []DeviceSummary   `json:"devices"`
	Providers []ProviderSummary `json:"providers"`
}

// NewView wraps p with empty relation lists.
func NewView(p *Patient) *View {
	return &View{Patient: p, Devices: []DeviceSummary{}, Providers: []ProviderSummary{}}
}
