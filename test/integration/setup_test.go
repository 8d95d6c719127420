// Package integration runs the PostgreSQL repositories against a real
// database. Set CARELINK_TEST_DATABASE_URL to enable it, or
// CARELINK_TEST_DOCKER=1 to start a throwaway postgres:16-alpine container.
package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/carelink/internal/domain/careteam"
	"github.com/ehr/carelink/internal/domain/device"
	"github.com/ehr/carelink/internal/domain/patient"
	"github.com/ehr/carelink/internal/domain/provider"
	"github.com/ehr/carelink/internal/platform/db"
	"github.com/ehr/carelink/internal/platform/validate"
	"github.com/ehr/carelink/migrations"
)

// baseURL is the database every test schema is created in.
var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("CARELINK_TEST_DATABASE_URL")
	cleanup := func() {}

	if baseURL == "" && os.Getenv("CARELINK_TEST_DOCKER") == "1" {
		url, stop, err := startPostgresContainer(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
			os.Exit(1)
		}
		baseURL, cleanup = url, stop
	}
	if baseURL == "" {
		fmt.Println("integration: CARELINK_TEST_DATABASE_URL not set, skipping")
		os.Exit(0)
	}

	code := m.Run()
	cleanup()
	os.Exit(code)
}

var schemaSeq atomic.Int64

// env is one migrated schema with the full domain wired on top of it.
type env struct {
	pool      *pgxpool.Pool
	patients  *patient.Service
	devices   *device.Service
	providers *provider.Service
	mgr       *careteam.Manager
	query     *careteam.Query
	links     careteam.LinkRepository
	tx        *db.TxRunner
}

// newEnv creates a fresh schema, migrates it and drops it when the test ends.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	schema := fmt.Sprintf("it_%d_%d", time.Now().UnixNano()%1_000_000, schemaSeq.Add(1))

	admin, err := db.NewPool(ctx, db.PoolConfig{URL: baseURL, MaxConns: 2})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := db.NewMigrator(admin, migrations.FS, schema).Up(ctx); err != nil {
		admin.Close()
		t.Fatalf("migrate %s: %v", schema, err)
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: baseURL, MaxConns: 8, Schema: schema})
	if err != nil {
		admin.Close()
		t.Fatalf("connect to %s: %v", schema, err)
	}
	t.Cleanup(func() {
		pool.Close()
		if _, err := admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	v := validate.New()
	log := zerolog.Nop()
	patientRepo := patient.NewPatientRepoPG(pool)
	deviceRepo := device.NewDeviceRepoPG(pool)
	providerRepo := provider.NewProviderRepoPG(pool)
	links := careteam.NewLinkRepoPG(pool)
	tx := db.NewTxRunner(pool)

	e := &env{
		pool:      pool,
		patients:  patient.NewService(patientRepo, tx, v, log),
		devices:   device.NewService(deviceRepo, patientRepo, tx, v),
		providers: provider.NewService(providerRepo, tx, v),
		mgr:       careteam.NewManager(patientRepo, deviceRepo, providerRepo, links, tx, log),
		query:     careteam.NewQuery(patientRepo, deviceRepo, providerRepo, links, tx),
		links:     links,
		tx:        tx,
	}
	e.patients.SetCascader(e.mgr)
	e.providers.SetCascader(e.mgr)
	return e
}

func (e *env) patient(t *testing.T, name string) *patient.Patient {
	t.Helper()
	age := 40
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
	p, err := e.patients.CreatePatient(context.Background(), patient.NewPatient{Name: name, Email: email, Age: &age})
	if err != nil {
		t.Fatalf("create patient %s: %v", name, err)
	}
	return p
}

func (e *env) device(t *testing.T, serial string) *device.Device {
	t.Helper()
	d, err := e.devices.CreateDevice(context.Background(), device.NewDevice{SerialNumber: serial})
	if err != nil {
		t.Fatalf("create device %s: %v", serial, err)
	}
	return d
}

func (e *env) provider(t *testing.T, name string) *provider.Provider {
	t.Helper()
	p, err := e.providers.CreateProvider(context.Background(), provider.NewProvider{Name: name})
	if err != nil {
		t.Fatalf("create provider %s: %v", name, err)
	}
	return p
}
