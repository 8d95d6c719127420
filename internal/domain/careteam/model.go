// Package careteam owns the relationships between patients, devices and
// providers: device ownership, patient-provider associations, the cascades
// run when an entity is deleted, and the read views that resolve them.
package careteam

import (
	"time"

	"github.com/google/uuid"
)

// Link is one patient_provider association row.
type Link struct {
	PatientID  uuid.UUID `json:"patient_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats holds the dashboard counts.
type Stats struct {
	Patients          int `json:"patients"`
	Providers         int `json:"providers"`
	Devices           int `json:"devices"`
	AssignedDevices   int `json:"assigned_devices"`
	UnassignedDevices int `json:"unassigned_devices"`
	Associations      int `json:"associations"`
}
