// Package sandbox loads demo and test data: hand-written YAML fixtures and
// reproducible synthetic records, applied through the domain services so
// every rule (uniqueness, ownership) still holds.
package sandbox

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture describes a data set. Keys are local names used to wire
// relationships inside the file; they are not stored.
type Fixture struct {
	Patients  []PatientFixture  `yaml:"patients" json:"patients"`
	Devices   []DeviceFixture   `yaml:"devices" json:"devices"`
	Providers []ProviderFixture `yaml:"providers" json:"providers"`
	Generate  *GenerateConfig   `yaml:"generate" json:"generate"`
}

type PatientFixture struct {
	Key    string `yaml:"key" json:"key"`
	Name   string `yaml:"name" json:"name"`
	Email  string `yaml:"email" json:"email"`
	Age    *int   `yaml:"age" json:"age"`
	Active *bool  `yaml:"active" json:"active"`
}

type DeviceFixture struct {
	SerialNumber string `yaml:"serial_number" json:"serial_number"`
	Active       *bool  `yaml:"active" json:"active"`
	// Patient is the key of the owning patient, if any.
	Patient string `yaml:"patient" json:"patient"`
}

type ProviderFixture struct {
	Key       string   `yaml:"key" json:"key"`
	Name      string   `yaml:"name" json:"name"`
	Email     *string  `yaml:"email" json:"email"`
	Specialty *string  `yaml:"specialty" json:"specialty"`
	Patients  []string `yaml:"patients" json:"patients"`
}

// GenerateConfig asks for synthetic records on top of the listed ones.
type GenerateConfig struct {
	Patients            int   `yaml:"patients" json:"patients"`
	DevicesPerPatient   int   `yaml:"devices_per_patient" json:"devices_per_patient"`
	UnassignedDevices   int   `yaml:"unassigned_devices" json:"unassigned_devices"`
	Providers           int   `yaml:"providers" json:"providers"`
	ProvidersPerPatient int   `yaml:"providers_per_patient" json:"providers_per_patient"`
	Seed                int64 `yaml:"seed" json:"seed"`
}

// DecodeFixture parses YAML (JSON is valid YAML) and checks that every
// relationship refers to a declared key.
func DecodeFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := f.check(); err != nil {
		return nil, err
	}
	return &f, nil
}

func LoadFixtureFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return DecodeFixture(file)
}

func (f *Fixture) check() error {
	keys := make(map[string]bool, len(f.Patients))
	for i, p := range f.Patients {
		if p.Key == "" {
			continue
		}
		if keys[p.Key] {
			return fmt.Errorf("patients[%d]: duplicate key %q", i, p.Key)
		}
		keys[p.Key] = true
	}
	for i, d := range f.Devices {
		if d.Patient != "" && !keys[d.Patient] {
			return fmt.Errorf("devices[%d]: unknown patient %q", i, d.Patient)
		}
	}
	for i, p := range f.Providers {
		for _, k := range p.Patients {
			if !keys[k] {
				return fmt.Errorf("providers[%d]: unknown patient %q", i, k)
			}
		}
	}
	if g := f.Generate; g != nil {
		if g.Patients < 0 || g.DevicesPerPatient < 0 || g.UnassignedDevices < 0 || g.Providers < 0 || g.ProvidersPerPatient < 0 {
			return fmt.Errorf("generate: counts must not be negative")
		}
	}
	return nil
}
