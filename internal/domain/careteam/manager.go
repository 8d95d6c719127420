package careteam

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/carelink/internal/domain/device"
	"github.com/ehr/carelink/internal/domain/patient"
	"github.com/ehr/carelink/internal/domain/provider"
	"github.com/ehr/carelink/internal/platform/store"
)

// Manager applies relationship changes. Every operation is one unit of work;
// rows whose ownership changes are locked first so concurrent assignments of
// the same device serialise.
type Manager struct {
	patients  patient.PatientRepository
	devices   device.DeviceRepository
	providers provider.ProviderRepository
	links     LinkRepository
	tx        store.TxRunner
	logger    zerolog.Logger
}

func NewManager(
	patients patient.PatientRepository,
	devices device.DeviceRepository,
	providers provider.ProviderRepository,
	links LinkRepository,
	tx store.TxRunner,
	logger zerolog.Logger,
) *Manager {
	return &Manager{
		patients:  patients,
		devices:   devices,
		providers: providers,
		links:     links,
		tx:        tx,
		logger:    logger,
	}
}

// AssignDevice makes patientID the owner of deviceID. Assigning a device to
// its current owner is a no-op; a device owned by another patient is a
// conflict and stays with that patient.
func (m *Manager) AssignDevice(ctx context.Context, patientID, deviceID uuid.UUID) (*device.Device, error) {
	var d *device.Device
	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := m.patients.GetForUpdate(ctx, patientID); err != nil {
			return err
		}
		var err error
		d, err = m.devices.GetForUpdate(ctx, deviceID)
		if err != nil {
			return err
		}
		switch {
		case d.AssignedTo(patientID):
			m.logger.Debug().Str("device_id", deviceID.String()).Msg("device already assigned to patient")
			return nil
		case d.PatientID != nil:
			return store.Conflict("device %s is already assigned to another patient", deviceID)
		}
		owner := patientID
		d.PatientID = &owner
		return m.devices.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UnassignDevice clears the owner of deviceID when it is patientID. A device
// owned by someone else, or by nobody, is returned unchanged.
func (m *Manager) UnassignDevice(ctx context.Context, patientID, deviceID uuid.UUID) (*device.Device, error) {
	var d *device.Device
	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = m.devices.GetForUpdate(ctx, deviceID)
		if err != nil {
			return err
		}
		if !d.AssignedTo(patientID) {
			m.logger.Debug().Str("device_id", deviceID.String()).Msg("device not assigned to patient")
			return nil
		}
		d.PatientID = nil
		return m.devices.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// AssignProvider associates a provider with a patient. It reports whether a
// new association was created; an existing pair is left as is.
func (m *Manager) AssignProvider(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	var added bool
	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := m.patients.GetForUpdate(ctx, patientID); err != nil {
			return err
		}
		if _, err := m.providers.GetForUpdate(ctx, providerID); err != nil {
			return err
		}
		// Both rows are locked, so the pair cannot appear between the check and the insert.
		exists, err := m.links.Exists(ctx, patientID, providerID)
		if err != nil {
			return err
		}
		if exists {
			m.logger.Debug().
				Str("patient_id", patientID.String()).
				Str("provider_id", providerID.String()).
				Msg("provider already associated")
			return nil
		}
		added, err = m.links.Add(ctx, patientID, providerID)
		return err
	})
	return added, err
}

// RemoveProvider deletes the association if present and reports whether it
// existed. Neither entity needs to exist.
func (m *Manager) RemoveProvider(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	var removed bool
	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		removed, err = m.links.Remove(ctx, patientID, providerID)
		return err
	})
	return removed, err
}

// CascadePatientDelete unassigns the patient's devices and drops its provider
// associations. It joins the caller's transaction.
func (m *Manager) CascadePatientDelete(ctx context.Context, patientID uuid.UUID) error {
	return m.tx.InTx(ctx, func(ctx context.Context) error {
		devices, err := m.devices.UnassignAll(ctx, patientID)
		if err != nil {
			return err
		}
		links, err := m.links.DeleteByPatient(ctx, patientID)
		if err != nil {
			return err
		}
		m.logger.Debug().
			Str("patient_id", patientID.String()).
			Int64("devices_unassigned", devices).
			Int64("links_removed", links).
			Msg("patient relationships cleared")
		return nil
	})
}

// CascadeProviderDelete drops the provider's patient associations.
func (m *Manager) CascadeProviderDelete(ctx context.Context, providerID uuid.UUID) error {
	return m.tx.InTx(ctx, func(ctx context.Context) error {
		n, err := m.links.DeleteByProvider(ctx, providerID)
		if err != nil {
			return err
		}
		m.logger.Debug().Str("provider_id", providerID.String()).Int64("links_removed", n).Msg("provider associations cleared")
		return nil
	})
}

// Stats counts entities and relationships in one consistent read.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if s.Patients, err = m.patients.Count(ctx); err != nil {
			return err
		}
		if s.Providers, err = m.providers.Count(ctx); err != nil {
			return err
		}
		if s.Devices, err = m.devices.Count(ctx); err != nil {
			return err
		}
		if s.AssignedDevices, err = m.devices.CountAssigned(ctx); err != nil {
			return err
		}
		if s.Associations, err = m.links.Count(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.UnassignedDevices = s.Devices - s.AssignedDevices
	return &s, nil
}
