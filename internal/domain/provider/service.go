package provider

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/store"
	"github.com/ehr/carelink/internal/platform/validate"
)

// Cascader removes a provider's patient associations inside the delete
// transaction.
type Cascader interface {
	CascadeProviderDelete(ctx context.Context, providerID uuid.UUID) error
}

type Service struct {
	providers ProviderRepository
	tx        store.TxRunner
	validate  *validate.Validator
	cascade   Cascader
}

func NewService(providers ProviderRepository, tx store.TxRunner, v *validate.Validator) *Service {
	return &Service{providers: providers, tx: tx, validate: v}
}

func (s *Service) SetCascader(c Cascader) {
	s.cascade = c
}

func (s *Service) CreateProvider(ctx context.Context, in NewProvider) (*Provider, error) {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	p := &Provider{Name: in.Name, Email: in.Email, Specialty: in.Specialty}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.providers.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.providers.Get(ctx, id)
}

func (s *Service) ListProviders(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	return s.providers.List(ctx, limit, offset)
}

func (s *Service) UpdateProvider(ctx context.Context, id uuid.UUID, u ProviderUpdate) (*Provider, error) {
	u.normalize()
	if err := s.validate.Struct(u); err != nil {
		return nil, err
	}
	if u.Email.Set && !u.Email.Null {
		if err := s.validate.Var("email", u.Email.Val, "email,max=254"); err != nil {
			return nil, err
		}
	}
	if u.Specialty.Set && !u.Specialty.Null {
		if err := s.validate.Var("specialty", u.Specialty.Val, "max=100"); err != nil {
			return nil, err
		}
	}

	var p *Provider
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.providers.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		u.Apply(p)
		return s.providers.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProvider removes the provider and its patient associations. Patients
// are left untouched.
func (s *Service) DeleteProvider(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.providers.GetForUpdate(ctx, id); err != nil {
			if store.IsNotFound(err) {
				return nil
			}
			return err
		}
		if s.cascade != nil {
			if err := s.cascade.CascadeProviderDelete(ctx, id); err != nil {
				return err
			}
		}
		var err error
		deleted, err = s.providers.Delete(ctx, id)
		return err
	})
	return deleted, err
}
