package careteam

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/carelink/internal/domain/device"
	"github.com/ehr/carelink/internal/domain/patient"
	"github.com/ehr/carelink/internal/domain/provider"
	"github.com/ehr/carelink/internal/platform/store"
	"github.com/ehr/carelink/internal/platform/validate"
)

// fixture wires the full domain on the memory backend the way serve does.
type fixture struct {
	patients  *patient.Service
	devices   *device.Service
	providers *provider.Service
	links     LinkRepository
	mgr       *Manager
	query     *Query
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mdb := store.NewMemoryDB()
	v := validate.New()
	log := zerolog.Nop()

	patientRepo := patient.NewPatientRepoMemory(mdb)
	deviceRepo := device.NewDeviceRepoMemory(mdb)
	providerRepo := provider.NewProviderRepoMemory(mdb)
	links := NewLinkRepoMemory(mdb)

	f := &fixture{
		patients:  patient.NewService(patientRepo, mdb, v, log),
		devices:   device.NewService(deviceRepo, patientRepo, mdb, v),
		providers: provider.NewService(providerRepo, mdb, v),
		links:     links,
		mgr:       NewManager(patientRepo, deviceRepo, providerRepo, links, mdb, log),
		query:     NewQuery(patientRepo, deviceRepo, providerRepo, links, mdb),
	}
	f.patients.SetCascader(f.mgr)
	f.providers.SetCascader(f.mgr)
	return f
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func (f *fixture) patient(t *testing.T, name, email string) *patient.Patient {
	t.Helper()
	p, err := f.patients.CreatePatient(context.Background(), patient.NewPatient{Name: name, Email: email, Age: intPtr(30)})
	require.NoError(t, err)
	return p
}

func (f *fixture) device(t *testing.T, serial string) *device.Device {
	t.Helper()
	d, err := f.devices.CreateDevice(context.Background(), device.NewDevice{SerialNumber: serial})
	require.NoError(t, err)
	return d
}

func (f *fixture) provider(t *testing.T, name string) *provider.Provider {
	t.Helper()
	p, err := f.providers.CreateProvider(context.Background(), provider.NewProvider{Name: name})
	require.NoError(t, err)
	return p
}

func TestAssignDevice_JaneDoeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.patients.CreatePatient(ctx, patient.NewPatient{Name: "Jane Doe", Email: "jane@x.com", Age: intPtr(25)})
	require.NoError(t, err)
	d := f.device(t, "XYZ789")

	got, err := f.mgr.AssignDevice(ctx, p.ID, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PatientID)
	assert.Equal(t, p.ID, *got.PatientID)

	view, err := f.query.PatientWithRelations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, view.Devices, 1)
	assert.Equal(t, "XYZ789", view.Devices[0].SerialNumber)

	got, err = f.mgr.UnassignDevice(ctx, p.ID, d.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PatientID)

	view, err = f.query.PatientWithRelations(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Devices)
}

func TestAssignDevice_SameOwnerIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "A", "a@x.com")
	d := f.device(t, "D1")

	first, err := f.mgr.AssignDevice(ctx, p.ID, d.ID)
	require.NoError(t, err)
	second, err := f.mgr.AssignDevice(ctx, p.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PatientID, second.PatientID)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt, "no-op must not touch the row")
}

func TestAssignDevice_OtherOwnerConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.patient(t, "A", "a@x.com")
	b := f.patient(t, "B", "b@x.com")
	d := f.device(t, "D1")

	_, err := f.mgr.AssignDevice(ctx, a.ID, d.ID)
	require.NoError(t, err)

	_, err = f.mgr.AssignDevice(ctx, b.ID, d.ID)
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := f.devices.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.AssignedTo(a.ID), "owner must be unchanged")
}

func TestAssignDevice_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "A", "a@x.com")
	d := f.device(t, "D1")

	_, err := f.mgr.AssignDevice(ctx, uuid.New(), d.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.mgr.AssignDevice(ctx, p.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUnassignDevice_NonOwnerIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.patient(t, "A", "a@x.com")
	b := f.patient(t, "B", "b@x.com")
	d := f.device(t, "D1")
	_, err := f.mgr.AssignDevice(ctx, a.ID, d.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := f.mgr.UnassignDevice(ctx, b.ID, d.ID)
		require.NoError(t, err)
		assert.True(t, got.AssignedTo(a.ID))
	}

	_, err = f.mgr.UnassignDevice(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAssignDevice_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.device(t, "D1")
	patients := make([]*patient.Patient, 8)
	for i := range patients {
		patients[i] = f.patient(t, "P", uuid.NewString()+"@x.com")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for _, p := range patients {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.mgr.AssignDevice(ctx, id, d.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, store.ErrConflict):
				conflicts++
			}
		}(p.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, len(patients)-1, conflicts)
}

func TestAssignProvider_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "A", "a@x.com")
	pr := f.provider(t, "Dr. Who")

	added, err := f.mgr.AssignProvider(ctx, p.ID, pr.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = f.mgr.AssignProvider(ctx, p.ID, pr.ID)
	require.NoError(t, err)
	assert.False(t, added)

	n, err := f.links.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// countingLinks records how often the association table is written.
type countingLinks struct {
	LinkRepository
	adds int
}

func (c *countingLinks) Add(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	c.adds++
	return c.LinkRepository.Add(ctx, patientID, providerID)
}

func TestAssignProvider_ExistingPairSkipsWrite(t *testing.T) {
	f := newFixture(t)
	links := &countingLinks{LinkRepository: f.links}
	f.mgr.links = links
	ctx := context.Background()
	p := f.patient(t, "Jane", "jane@x.com")
	dr := f.provider(t, "Dr. Smith")

	for i := 0; i < 3; i++ {
		added, err := f.mgr.AssignProvider(ctx, p.ID, dr.ID)
		require.NoError(t, err)
		assert.Equal(t, i == 0, added)
	}
	assert.Equal(t, 1, links.adds, "repeat assignments must not touch the table")
}

func TestAssignProvider_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "A", "a@x.com")
	pr := f.provider(t, "Dr. Who")

	_, err := f.mgr.AssignProvider(ctx, uuid.New(), pr.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.mgr.AssignProvider(ctx, p.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, _ := f.links.Count(ctx)
	assert.Zero(t, n)
}

func TestRemoveProvider_AbsentIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	removed, err := f.mgr.RemoveProvider(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.False(t, removed)

	p := f.patient(t, "A", "a@x.com")
	pr := f.provider(t, "Dr. Who")
	_, err = f.mgr.AssignProvider(ctx, p.ID, pr.ID)
	require.NoError(t, err)

	removed, err = f.mgr.RemoveProvider(ctx, p.ID, pr.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	ok, _ := f.links.Exists(ctx, p.ID, pr.ID)
	assert.False(t, ok)
}

func TestDeletePatient_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.patient(t, "A", "a@x.com")
	b := f.patient(t, "B", "b@x.com")
	pr := f.provider(t, "Dr. Who")
	d1, d2, d3 := f.device(t, "D1"), f.device(t, "D2"), f.device(t, "D3")

	for _, d := range []*device.Device{d1, d2} {
		_, err := f.mgr.AssignDevice(ctx, a.ID, d.ID)
		require.NoError(t, err)
	}
	_, err := f.mgr.AssignDevice(ctx, b.ID, d3.ID)
	require.NoError(t, err)
	for _, p := range []*patient.Patient{a, b} {
		_, err := f.mgr.AssignProvider(ctx, p.ID, pr.ID)
		require.NoError(t, err)
	}

	deleted, err := f.patients.DeletePatient(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	// No device and no association references the deleted patient.
	for _, d := range []*device.Device{d1, d2} {
		got, err := f.devices.GetDevice(ctx, d.ID)
		require.NoError(t, err, "devices survive the patient")
		assert.Nil(t, got.PatientID)
	}
	ok, _ := f.links.Exists(ctx, a.ID, pr.ID)
	assert.False(t, ok)

	// B keeps its relationships.
	view, err := f.query.PatientWithRelations(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, view.Devices, 1)
	assert.Len(t, view.Providers, 1)

	// The freed devices can now be deleted.
	deleted, err = f.devices.DeleteDevice(ctx, d1.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestDeleteProvider_DrSmithScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pr, err := f.providers.CreateProvider(ctx, provider.NewProvider{Name: "Dr. Smith", Specialty: strPtr("Cardiology")})
	require.NoError(t, err)
	bob, err := f.patients.CreatePatient(ctx, patient.NewPatient{Name: "Bob", Email: "bob@x.com", Age: intPtr(40)})
	require.NoError(t, err)

	_, err = f.mgr.AssignProvider(ctx, bob.ID, pr.ID)
	require.NoError(t, err)
	ok, _ := f.links.Exists(ctx, bob.ID, pr.ID)
	require.True(t, ok)

	deleted, err := f.providers.DeleteProvider(ctx, pr.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	ok, _ = f.links.Exists(ctx, bob.ID, pr.ID)
	assert.False(t, ok)
	got, err := f.patients.GetPatient(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
}

func TestDuplicatePatientEmailConflicts(t *testing.T) {
	f := newFixture(t)
	f.patient(t, "A", "dup@x.com")
	_, err := f.patients.CreatePatient(context.Background(), patient.NewPatient{Name: "B", Email: "dup@x.com"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.patient(t, "A", "a@x.com")
	pr := f.provider(t, "Dr. Who")
	d := f.device(t, "D1")
	f.device(t, "D2")
	_, err := f.mgr.AssignDevice(ctx, p.ID, d.ID)
	require.NoError(t, err)
	_, err = f.mgr.AssignProvider(ctx, p.ID, pr.ID)
	require.NoError(t, err)

	s, err := f.mgr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		Patients:          1,
		Providers:         1,
		Devices:           2,
		AssignedDevices:   1,
		UnassignedDevices: 1,
		Associations:      1,
	}, *s)
}
