package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/domain/device"
	"github.com/ehr/carelink/internal/domain/patient"
	"github.com/ehr/carelink/internal/domain/provider"
	"github.com/ehr/carelink/internal/platform/store"
)

func TestPG_PatientRoundTripAndConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p := e.patient(t, "Jane Doe")
	got, err := e.patients.GetPatient(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "jane.doe@example.com" || got.Age == nil || *got.Age != 40 || !got.Active {
		t.Errorf("unexpected patient %+v", got)
	}

	_, err = e.patients.CreatePatient(ctx, patient.NewPatient{Name: "Other", Email: "JANE.DOE@example.com"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}

	_, err = e.patients.GetPatient(ctx, uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPG_JaneDoeScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	jane := e.patient(t, "Jane Doe")
	d := e.device(t, "XYZ789")

	if _, err := e.mgr.AssignDevice(ctx, jane.ID, d.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	view, err := e.query.PatientWithRelations(ctx, jane.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Devices) != 1 || view.Devices[0].SerialNumber != "XYZ789" {
		t.Fatalf("expected XYZ789 in view, got %+v", view.Devices)
	}

	other := e.patient(t, "John Roe")
	_, err = e.mgr.AssignDevice(ctx, other.ID, d.ID)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict reassigning owned device, got %v", err)
	}
	stored, _ := e.devices.GetDevice(ctx, d.ID)
	if stored.PatientID == nil || *stored.PatientID != jane.ID {
		t.Fatal("owner must stay unchanged after a refused reassignment")
	}

	if _, err := e.devices.DeleteDevice(ctx, d.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict deleting assigned device, got %v", err)
	}

	// Unassign by a non-owner leaves the device alone.
	if _, err := e.mgr.UnassignDevice(ctx, other.ID, d.ID); err != nil {
		t.Fatalf("unassign by non-owner: %v", err)
	}
	stored, _ = e.devices.GetDevice(ctx, d.ID)
	if stored.PatientID == nil {
		t.Fatal("non-owner unassign must be a no-op")
	}
}

func TestPG_ProviderAssociationIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	bob := e.patient(t, "Bob Stone")
	smith := e.provider(t, "Dr. Smith")

	added, err := e.mgr.AssignProvider(ctx, bob.ID, smith.ID)
	if err != nil || !added {
		t.Fatalf("first assign: added=%v err=%v", added, err)
	}
	added, err = e.mgr.AssignProvider(ctx, bob.ID, smith.ID)
	if err != nil || added {
		t.Fatalf("second assign: added=%v err=%v", added, err)
	}
	n, err := e.links.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one link row, got %d (%v)", n, err)
	}

	patients, err := e.query.PatientsForProvider(ctx, smith.ID)
	if err != nil {
		t.Fatalf("patients for provider: %v", err)
	}
	if len(patients) != 1 || patients[0].ID != bob.ID {
		t.Fatalf("expected Bob, got %+v", patients)
	}

	_, err = e.mgr.AssignProvider(ctx, bob.ID, uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown provider, got %v", err)
	}
}

func TestPG_PatientDeleteCascade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p := e.patient(t, "Ann Lee")
	d1, d2 := e.device(t, "A-1"), e.device(t, "A-2")
	pr := e.provider(t, "Dr. Who")
	for _, d := range []*device.Device{d1, d2} {
		if _, err := e.mgr.AssignDevice(ctx, p.ID, d.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}
	if _, err := e.mgr.AssignProvider(ctx, p.ID, pr.ID); err != nil {
		t.Fatalf("assign provider: %v", err)
	}

	deleted, err := e.patients.DeletePatient(ctx, p.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}

	unassigned, err := e.query.UnassignedDevices(ctx)
	if err != nil || len(unassigned) != 2 {
		t.Fatalf("expected both devices unassigned, got %d (%v)", len(unassigned), err)
	}
	if n, _ := e.links.Count(ctx); n != 0 {
		t.Fatalf("expected no dangling links, got %d", n)
	}
	if _, err := e.providers.GetProvider(ctx, pr.ID); err != nil {
		t.Fatalf("provider must survive patient delete: %v", err)
	}
}

func TestPG_ProviderDeleteCascade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p := e.patient(t, "Ray Kim")
	pr := e.provider(t, "Dr. Grey")
	if _, err := e.mgr.AssignProvider(ctx, p.ID, pr.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := e.providers.DeleteProvider(ctx, pr.ID); err != nil {
		t.Fatalf("delete provider: %v", err)
	}
	view, err := e.query.PatientWithRelations(ctx, p.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Providers) != 0 {
		t.Fatalf("expected no providers, got %+v", view.Providers)
	}
}

func TestPG_TxRollback(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := e.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := e.patients.CreatePatient(ctx, patient.NewPatient{Name: "Ghost", Email: "ghost@example.com"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_, total, err := e.patients.ListPatients(ctx, 10, 0)
	if err != nil || total != 0 {
		t.Fatalf("expected rollback, total=%d err=%v", total, err)
	}
}

func TestPG_ConcurrentAssignSingleWinner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d := e.device(t, "RACE-1")
	contenders := make([]*patient.Patient, 6)
	for i := range contenders {
		contenders[i] = e.patient(t, "Racer "+string(rune('A'+i)))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for _, p := range contenders {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := e.mgr.AssignDevice(ctx, id, d.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, store.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(p.ID)
	}
	wg.Wait()

	if winners != 1 || conflicts != len(contenders)-1 {
		t.Fatalf("expected one winner, got winners=%d conflicts=%d", winners, conflicts)
	}
}

func TestPG_ProviderEmailNullable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// Several providers without email must not collide on the unique key.
	e.provider(t, "Dr. One")
	e.provider(t, "Dr. Two")

	email := "shared@clinic.example.com"
	if _, err := e.providers.CreateProvider(ctx, provider.NewProvider{Name: "Dr. Three", Email: &email}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := e.providers.CreateProvider(ctx, provider.NewProvider{Name: "Dr. Four", Email: &email})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	stats, err := e.mgr.Stats(ctx)
	if err != nil || stats.Providers != 3 {
		t.Fatalf("expected 3 providers, got %+v (%v)", stats, err)
	}
}
