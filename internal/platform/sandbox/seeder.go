package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/carelink/internal/domain/careteam"
	"github.com/ehr/carelink/internal/domain/device"
	"github.com/ehr/carelink/internal/domain/patient"
	"github.com/ehr/carelink/internal/domain/provider"
	"github.com/ehr/carelink/internal/platform/store"
)

// SeedResult summarizes the output of a seed operation.
type SeedResult struct {
	Patients     int           `json:"patients"`
	Devices      int           `json:"devices"`
	Providers    int           `json:"providers"`
	Assignments  int           `json:"assignments"`
	Associations int           `json:"associations"`
	Duration     time.Duration `json:"duration_ns"`
}

// Seeder applies fixtures through the domain services.
type Seeder struct {
	patients  *patient.Service
	devices   *device.Service
	providers *provider.Service
	mgr       *careteam.Manager
	tx        store.TxRunner
	logger    zerolog.Logger
}

func NewSeeder(
	patients *patient.Service,
	devices *device.Service,
	providers *provider.Service,
	mgr *careteam.Manager,
	tx store.TxRunner,
	logger zerolog.Logger,
) *Seeder {
	return &Seeder{
		patients:  patients,
		devices:   devices,
		providers: providers,
		mgr:       mgr,
		tx:        tx,
		logger:    logger,
	}
}

// Apply creates everything in f in one transaction. Any failure, such as a
// duplicate email already in the store, leaves the store unchanged.
func (s *Seeder) Apply(ctx context.Context, f *Fixture) (*SeedResult, error) {
	start := time.Now()
	res := &SeedResult{}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		byKey := make(map[string]uuid.UUID, len(f.Patients))
		for i, pf := range f.Patients {
			p, err := s.patients.CreatePatient(ctx, patient.NewPatient{Name: pf.Name, Email: pf.Email, Age: pf.Age, Active: pf.Active})
			if err != nil {
				return fmt.Errorf("patients[%d]: %w", i, err)
			}
			res.Patients++
			if pf.Key != "" {
				byKey[pf.Key] = p.ID
			}
		}

		for i, df := range f.Devices {
			d, err := s.devices.CreateDevice(ctx, device.NewDevice{SerialNumber: df.SerialNumber, Active: df.Active})
			if err != nil {
				return fmt.Errorf("devices[%d]: %w", i, err)
			}
			res.Devices++
			if df.Patient == "" {
				continue
			}
			if _, err := s.mgr.AssignDevice(ctx, byKey[df.Patient], d.ID); err != nil {
				return fmt.Errorf("devices[%d]: assign: %w", i, err)
			}
			res.Assignments++
		}

		for i, pf := range f.Providers {
			pr, err := s.providers.CreateProvider(ctx, provider.NewProvider{Name: pf.Name, Email: pf.Email, Specialty: pf.Specialty})
			if err != nil {
				return fmt.Errorf("providers[%d]: %w", i, err)
			}
			res.Providers++
			for _, key := range pf.Patients {
				added, err := s.mgr.AssignProvider(ctx, byKey[key], pr.ID)
				if err != nil {
					return fmt.Errorf("providers[%d]: associate %s: %w", i, key, err)
				}
				if added {
					res.Associations++
				}
			}
		}

		if f.Generate != nil {
			return s.generate(ctx, *f.Generate, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	s.logger.Info().
		Int("patients", res.Patients).
		Int("devices", res.Devices).
		Int("providers", res.Providers).
		Int("associations", res.Associations).
		Dur("duration", res.Duration).
		Msg("sandbox data seeded")
	return res, nil
}

func (s *Seeder) generate(ctx context.Context, cfg GenerateConfig, res *SeedResult) error {
	g := NewDataGenerator(cfg.Seed)

	providerIDs := make([]uuid.UUID, 0, cfg.Providers)
	for i := 0; i < cfg.Providers; i++ {
		pr, err := s.providers.CreateProvider(ctx, g.Provider())
		if err != nil {
			return fmt.Errorf("generate provider: %w", err)
		}
		providerIDs = append(providerIDs, pr.ID)
		res.Providers++
	}

	for i := 0; i < cfg.Patients; i++ {
		p, err := s.patients.CreatePatient(ctx, g.Patient())
		if err != nil {
			return fmt.Errorf("generate patient: %w", err)
		}
		res.Patients++

		for j := 0; j < cfg.DevicesPerPatient; j++ {
			d, err := s.devices.CreateDevice(ctx, g.Device())
			if err != nil {
				return fmt.Errorf("generate device: %w", err)
			}
			res.Devices++
			if _, err := s.mgr.AssignDevice(ctx, p.ID, d.ID); err != nil {
				return err
			}
			res.Assignments++
		}

		for _, idx := range g.Sample(len(providerIDs), cfg.ProvidersPerPatient) {
			if _, err := s.mgr.AssignProvider(ctx, p.ID, providerIDs[idx]); err != nil {
				return err
			}
			res.Associations++
		}
	}

	for i := 0; i < cfg.UnassignedDevices; i++ {
		if _, err := s.devices.CreateDevice(ctx, g.Device()); err != nil {
			return fmt.Errorf("generate device: %w", err)
		}
		res.Devices++
	}
	return nil
}
