package provider

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/store"
	"github.com/ehr/carelink/pkg/optional"
)

// Provider maps to the provider table. Email and Specialty are nullable.
type Provider struct {
	store.Record
	Name      string  `json:"name"`
	Email     *string `json:"email,omitempty"`
	Specialty *string `json:"specialty,omitempty"`
}

func (p *Provider) Clone() *Provider {
	c := *p
	if p.Email != nil {
		email := *p.Email
		c.Email = &email
	}
	if p.Specialty != nil {
		sp := *p.Specialty
		c.Specialty = &sp
	}
	return &c
}

// NewProvider is the create payload.
type NewProvider struct {
	Name      string  `json:"name" validate:"notblank,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Specialty *string `json:"specialty" validate:"omitempty,max=100"`
}

func (in *NewProvider) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Specialty = trimmed(in.Specialty)
}

// ProviderUpdate is the partial-update payload. Email and specialty may be
// cleared with an explicit null.
type ProviderUpdate struct {
	Name      *string                `json:"name" validate:"omitempty,notblank,max=100"`
	Email     optional.Field[string] `json:"email"`
	Specialty optional.Field[string] `json:"specialty"`
}

func (u *ProviderUpdate) normalize() {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	if u.Email.Set && !u.Email.Null {
		u.Email.Val = strings.ToLower(strings.TrimSpace(u.Email.Val))
		// An empty address clears the field.
		if u.Email.Val == "" {
			u.Email = optional.Null[string]()
		}
	}
	if u.Specialty.Set && !u.Specialty.Null {
		u.Specialty.Val = strings.TrimSpace(u.Specialty.Val)
		if u.Specialty.Val == "" {
			u.Specialty = optional.Null[string]()
		}
	}
}

// Apply merges the present fields onto p.
func (u ProviderUpdate) Apply(p *Provider) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	u.Email.Apply(&p.Email)
	u.Specialty.Apply(&p.Specialty)
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	if v == "" {
		return nil
	}
	return &v
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// PatientSummary is the patient entry embedded in a provider view.
type PatientSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// View is a provider together with the patients it is associated with.
type View struct {
	*Provider
	Patients []PatientSummary `json:"patients"`
}

func NewView(p *Provider) *View {
	return &View{Provider: p, Patients: []PatientSummary{}}
}
