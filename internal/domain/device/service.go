package device

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/store"
	"github.com/ehr/carelink/internal/platform/validate"
)

// PatientChecker confirms a patient exists before a device is created
// already assigned to it.
type PatientChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type Service struct {
	devices  DeviceRepository
	patients PatientChecker
	tx       store.TxRunner
	validate *validate.Validator
}

func NewService(devices DeviceRepository, patients PatientChecker, tx store.TxRunner, v *validate.Validator) *Service {
	return &Service{devices: devices, patients: patients, tx: tx, validate: v}
}

func (s *Service) CreateDevice(ctx context.Context, in NewDevice) (*Device, error) {
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	d := &Device{SerialNumber: in.SerialNumber, Active: true, PatientID: in.PatientID}
	if in.Active != nil {
		d.Active = *in.Active
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if d.PatientID != nil {
			ok, err := s.patients.Exists(ctx, *d.PatientID)
			if err != nil {
				return err
			}
			if !ok {
				return store.NotFound("patient", *d.PatientID)
			}
		}
		return s.devices.Create(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDevice(ctx context.Context, id uuid.UUID) (*Device, error) {
	return s.devices.Get(ctx, id)
}

func (s *Service) ListDevices(ctx context.Context, limit, offset int) ([]*Device, int, error) {
	return s.devices.List(ctx, limit, offset)
}

func (s *Service) UpdateDevice(ctx context.Context, id uuid.UUID, u DeviceUpdate) (*Device, error) {
	u.normalize()
	if err := s.validate.Struct(u); err != nil {
		return nil, err
	}

	var d *Device
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.devices.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		u.Apply(d)
		return s.devices.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDevice removes an unassigned device. Deleting a device that is still
// assigned fails with store.ErrConflict. It reports false when the device did
// not exist.
func (s *Service) DeleteDevice(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		d, err := s.devices.GetForUpdate(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				return nil
			}
			return err
		}
		if d.PatientID != nil {
			return store.Conflict("device %s is assigned to patient %s; unassign it first", d.ID, *d.PatientID)
		}
		deleted, err = s.devices.Delete(ctx, id)
		return err
	})
	return deleted, err
}
