package sandbox

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/carelink/internal/domain/device"
	"github.com/ehr/carelink/internal/domain/patient"
	"github.com/ehr/carelink/internal/domain/provider"
)

var (
	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
		"Linda", "David", "Elizabeth", "William", "Barbara", "Carlos", "Aisha",
		"Wei", "Priya", "Olga", "Kenji", "Fatima", "Liam",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Nguyen", "Patel", "Kim", "Okafor",
		"Schmidt", "Rossi", "Tanaka", "Kowalski", "Haddad", "Murphy",
	}
	specialties = []string{
		"Cardiology", "Endocrinology", "Family Medicine", "Internal Medicine",
		"Nephrology", "Neurology", "Pulmonology", "Geriatrics",
	}
	devicePrefixes = []string{"GLU", "BPM", "ECG", "SPO", "THM", "WGT"}
)

// DataGenerator produces reproducible synthetic records. Emails and serial
// numbers carry the seed and a counter, so one generator never repeats itself
// and generators with different seeds do not collide.
type DataGenerator struct {
	rng     *rand.Rand
	tag     string
	counter uint64
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
		tag: strconv.FormatUint(uint64(seed), 36),
	}
}

func (g *DataGenerator) next() uint64 {
	g.counter++
	return g.counter
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) Patient() patient.NewPatient {
	first, last := g.pick(firstNames), g.pick(lastNames)
	age := 18 + g.rng.Intn(75)
	return patient.NewPatient{
		Name:  first + " " + last,
		Email: fmt.Sprintf("%s.%s.%s.%04d@patients.example.com", strings.ToLower(first), strings.ToLower(last), g.tag, g.next()),
		Age:   &age,
	}
}

func (g *DataGenerator) Provider() provider.NewProvider {
	first, last := g.pick(firstNames), g.pick(lastNames)
	email := fmt.Sprintf("%s.%s.%s.%04d@clinic.example.com", strings.ToLower(first[:1]), strings.ToLower(last), g.tag, g.next())
	specialty := g.pick(specialties)
	return provider.NewProvider{
		Name:      "Dr. " + first + " " + last,
		Email:     &email,
		Specialty: &specialty,
	}
}

func (g *DataGenerator) Device() device.NewDevice {
	return device.NewDevice{
		SerialNumber: fmt.Sprintf("%s-%s-%06d-%04d", g.pick(devicePrefixes), strings.ToUpper(g.tag), g.rng.Intn(1000000), g.next()),
	}
}

// Sample returns up to n distinct indexes in [0, size).
func (g *DataGenerator) Sample(size, n int) []int {
	if n > size {
		n = size
	}
	return g.rng.Perm(size)[:n]
}
