// Package store holds the storage-agnostic entity repository: one generic
// implementation per backend (PostgreSQL and in-process memory), shared by
// every entity kind, plus the transaction boundary both backends honour.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/db"
)

// Record carries the identity and timestamps common to every entity.
// Entities embed it.
type Record struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Base gives repositories access to the embedded Record.
func (r *Record) Base() *Record { return r }

// Entity is implemented by pointer record types, e.g. *patient.Patient.
// Clone must return a deep copy so stored rows never alias caller memory.
type Entity[T any] interface {
	Base() *Record
	Clone() T
}

// Repository is the per-kind entity store.
type Repository[T Entity[T]] interface {
	// Create assigns a new id, persists e and fills its timestamps.
	Create(ctx context.Context, e T) error
	Get(ctx context.Context, id uuid.UUID) (T, error)
	// GetForUpdate reads e and locks it until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (T, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// List returns records in insertion order; limit <= 0 returns every record.
	List(ctx context.Context, limit, offset int) ([]T, int, error)
	// ListByIDs returns the records whose id is in ids, in insertion order.
	// Unknown ids are skipped.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error)
	Count(ctx context.Context) (int, error)
	// Update replaces every stored field of e.
	Update(ctx context.Context, e T) error
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// TxRunner scopes a unit of work. Everything fn does through repositories
// bound to the same backend commits or rolls back together; nested calls
// join the outer unit.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AfterCommit runs fn once the outermost unit of work in ctx commits, or
// immediately when ctx carries none. Rolled-back units never run it.
func AfterCommit(ctx context.Context, fn func()) {
	db.AfterCommit(ctx, fn)
}
