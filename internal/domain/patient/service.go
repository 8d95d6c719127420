package patient

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/carelink/internal/platform/notification"
	"github.com/ehr/carelink/internal/platform/store"
	"github.com/ehr/carelink/internal/platform/validate"
)

// Cascader clears a patient's relationships inside the delete transaction.
type Cascader interface {
	CascadePatientDelete(ctx context.Context, patientID uuid.UUID) error
}

// EventSink receives events once the creating transaction has committed.
type EventSink interface {
	Enqueue(e notification.Event) bool
}

type Service struct {
	patients PatientRepository
	tx       store.TxRunner
	validate *validate.Validator
	cascade  Cascader
	events   EventSink
	logger   zerolog.Logger
}

func NewService(patients PatientRepository, tx store.TxRunner, v *validate.Validator, logger zerolog.Logger) *Service {
	return &Service{patients: patients, tx: tx, validate: v, logger: logger}
}

// SetCascader attaches the relationship cleanup run on delete.
func (s *Service) SetCascader(c Cascader) {
	s.cascade = c
}

// SetEventSink attaches an optional sink for patient-created events.
func (s *Service) SetEventSink(e EventSink) {
	s.events = e
}

func (s *Service) CreatePatient(ctx context.Context, in NewPatient) (*Patient, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	p := &Patient{
		Name:   in.Name,
		Email:  in.Email,
		Age:    in.Age,
		Active: true,
	}
	if in.Active != nil {
		p.Active = *in.Active
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Create(ctx, p); err != nil {
			return err
		}
		if s.events != nil {
			e := notification.NewEvent(notification.EventPatientCreated, p.ID, map[string]string{
				"name":  p.Name,
				"email": p.Email,
			})
			store.AfterCommit(ctx, func() { s.events.Enqueue(e) })
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.Get(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, u PatientUpdate) (*Patient, error) {
	u.normalize()
	if err := s.validate.Struct(u); err != nil {
		return nil, err
	}
	if u.Age.Set && !u.Age.Null {
		if err := s.validate.Var("age", u.Age.Val, "gte=0"); err != nil {
			return nil, err
		}
	}

	var p *Patient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.patients.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		u.Apply(p)
		return s.patients.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePatient unassigns the patient's devices, removes its provider
// associations and deletes the record, atomically. It reports false when
// the patient did not exist.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetForUpdate(ctx, id); err != nil {
			if store.IsNotFound(err) {
				return nil
			}
			return err
		}
		if s.cascade != nil {
			if err := s.cascade.CascadePatientDelete(ctx, id); err != nil {
				return err
			}
		}
		var err error
		deleted, err = s.patients.Delete(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Debug().Str("patient_id", id.String()).Msg("patient deleted")
	}
	return deleted, nil
}
