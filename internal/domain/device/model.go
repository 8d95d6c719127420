package device

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/store"
)

// Device maps to the device table. PatientID is nil while unassigned.
type Device struct {
	store.Record
	SerialNumber string     `json:"serial_number"`
	Active       bool       `json:"active"`
	PatientID    *uuid.UUID `json:"patient_id"`
}

func (d *Device) Clone() *Device {
	c := *d
	if d.PatientID != nil {
		pid := *d.PatientID
		c.PatientID = &pid
	}
	return &c
}

// AssignedTo reports whether the device is owned by patientID.
func (d *Device) AssignedTo(patientID uuid.UUID) bool {
	return d.PatientID != nil && *d.PatientID == patientID
}

// NewDevice is the create payload. PatientID optionally assigns the device
// at creation.
type NewDevice struct {
	SerialNumber string     `json:"serial_number" validate:"notblank,max=100"`
	Active       *bool      `json:"active"`
	PatientID    *uuid.UUID `json:"patient_id"`
}

// DeviceUpdate is the partial-update payload. Ownership is changed only
// through assignment, so patient_id is not accepted here.
type DeviceUpdate struct {
	SerialNumber *string `json:"serial_number" validate:"omitempty,notblank,max=100"`
	Active       *bool   `json:"active"`
}

func (u *DeviceUpdate) normalize() {
	if u.SerialNumber != nil {
		sn := strings.TrimSpace(*u.SerialNumber)
		u.SerialNumber = &sn
	}
}

// Apply merges the present fields onto d.
func (u DeviceUpdate) Apply(d *Device) {
	if u.SerialNumber != nil {
		d.SerialNumber = *u.SerialNumber
	}
	if u.Active != nil {
		d.Active = *u.Active
	}
}
