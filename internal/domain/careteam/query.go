package careteam

import (
	"context"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/domain/device"
	"github.com/ehr/carelink/internal/domain/patient"
	"github.com/ehr/carelink/internal/domain/provider"
	"github.com/ehr/carelink/internal/platform/store"
)

// Query resolves relationships for reads. Each call reads inside one unit of
// work so a view never mixes states from before and after a concurrent write.
type Query struct {
	patients  patient.PatientRepository
	devices   device.DeviceRepository
	providers provider.ProviderRepository
	links     LinkRepository
	tx        store.TxRunner
}

func NewQuery(
	patients patient.PatientRepository,
	devices device.DeviceRepository,
	providers provider.ProviderRepository,
	links LinkRepository,
	tx store.TxRunner,
) *Query {
	return &Query{patients: patients, devices: devices, providers: providers, links: links, tx: tx}
}

func (q *Query) PatientWithRelations(ctx context.Context, id uuid.UUID) (*patient.View, error) {
	var view *patient.View
	err := q.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := q.patients.Get(ctx, id)
		if err != nil {
			return err
		}
		views, err := q.resolvePatients(ctx, []*patient.Patient{p})
		if err != nil {
			return err
		}
		view = views[0]
		return nil
	})
	return view, err
}

func (q *Query) ListPatientsWithRelations(ctx context.Context, limit, offset int) ([]*patient.View, int, error) {
	var (
		views []*patient.View
		total int
	)
	err := q.tx.InTx(ctx, func(ctx context.Context) error {
		items, n, err := q.patients.List(ctx, limit, offset)
		if err != nil {
			return err
		}
		total = n
		views, err = q.resolvePatients(ctx, items)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// resolvePatients builds views for a page of patients with one query per
// relation rather than per patient.
func (q *Query) resolvePatients(ctx context.Context, items []*patient.Patient) ([]*patient.View, error) {
	views := make([]*patient.View, len(items))
	byID := make(map[uuid.UUID]*patient.View, len(items))
	ids := make([]uuid.UUID, len(items))
	for i, p := range items {
		views[i] = patient.NewView(p)
		byID[p.ID] = views[i]
		ids[i] = p.ID
	}
	if len(items) == 0 {
		return views, nil
	}

	devices, err := q.devices.ListByPatients(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		v := byID[*d.PatientID]
		v.Devices = append(v.Devices, patient.DeviceSummary{ID: d.ID, SerialNumber: d.SerialNumber, Active: d.Active})
	}

	links, err := q.links.ForPatients(ctx, ids)
	if err != nil {
		return nil, err
	}
	providerIDs := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		providerIDs = append(providerIDs, l.ProviderID)
	}
	providers, err := q.providers.ListByIDs(ctx, providerIDs)
	if err != nil {
		return nil, err
	}
	byProvider := make(map[uuid.UUID]*provider.Provider, len(providers))
	for _, pr := range providers {
		byProvider[pr.ID] = pr
	}
	for _, l := range links {
		pr, ok := byProvider[l.ProviderID]
		if !ok {
			continue
		}
		v := byID[l.PatientID]
		v.Providers = append(v.Providers, patient.ProviderSummary{ID: pr.ID, Name: pr.Name, Specialty: pr.Specialty})
	}
	return views, nil
}

func (q *Query) DevicesForPatient(ctx context.Context, id uuid.UUID) ([]*device.Device, error) {
	var out []*device.Device
	err := q.tx.InTx(ctx, func(ctx context.Context) error {
		if err := q.requirePatient(ctx, id); err != nil {
			return err
		}
		var err error
		out, err = q.devices.ListByPatient(ctx, id)
		return err
	})
	return out, err
}

func (q *Query) ProvidersForPatient(ctx context.Context, id uuid.UUID) ([]*provider.Provider, error) {
	var out []*provider.Provider
	err := q.tx.InTx(ctx, func(ctx context.Context) error {
		if err := q.requirePatient(ctx, id); err != nil {
			return err
		}
		ids, err := q.links.ProviderIDs(ctx, id)
		if err != nil {
			return err
		}
		providers, err := q.providers.ListByIDs(ctx, ids)
		if err != nil {
			return err
		}
		out = inOrder(ids, providers)
		return nil
	})
	return out, err
}

func (q *Query) PatientsForProvider(ctx context.Context, id uuid.UUID) ([]*patient.Patient, error) {
	var out []*patient.Patient
	err := q.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := q.providers.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return store.NotFound("provider", id)
		}
		out, err = q.patientsOf(ctx, id)
		return err
	})
	return out, err
}

func (q *Query) ProviderWithPatients(ctx context.Context, id uuid.UUID) (*provider.View, error) {
	var view *provider.View
	err := q.tx.InTx(ctx, func(ctx context.Context) error {
		pr, err := q.providers.Get(ctx, id)
		if err != nil {
			return err
		}
		patients, err := q.patientsOf(ctx, id)
		if err != nil {
			return err
		}
		view = provider.NewView(pr)
		for _, p := range patients {
			view.Patients = append(view.Patients, provider.PatientSummary{ID: p.ID, Name: p.Name, Email: p.Email})
		}
		return nil
	})
	return view, err
}

func (q *Query) UnassignedDevices(ctx context.Context) ([]*device.Device, error) {
	return q.devices.ListUnassigned(ctx)
}

func (q *Query) patientsOf(ctx context.Context, providerID uuid.UUID) ([]*patient.Patient, error) {
	ids, err := q.links.PatientIDs(ctx, providerID)
	if err != nil {
		return nil, err
	}
	patients, err := q.patients.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return inOrder(ids, patients), nil
}

func (q *Query) requirePatient(ctx context.Context, id uuid.UUID) error {
	ok, err := q.patients.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return store.NotFound("patient", id)
	}
	return nil
}

// inOrder arranges items in the order of ids (association order), skipping
// ids with no matching item.
func inOrder[T store.Entity[T]](ids []uuid.UUID, items []T) []T {
	byID := make(map[uuid.UUID]T, len(items))
	for _, e := range items {
		byID[e.Base().ID] = e
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}
