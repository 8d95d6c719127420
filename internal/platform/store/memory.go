package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/db"
)

// Snapshotter is a memory table that can capture and restore its state.
type Snapshotter interface {
	// Snapshot captures the current state and returns a function restoring it.
	Snapshot() (restore func())
}

type memTxKey struct{}

// MemoryDB is the in-process backend. A single mutex serialises every unit of
// work; a failed unit restores each registered table to its snapshot.
type MemoryDB struct {
	mu     sync.Mutex
	tables []Snapshotter
	now    func() time.Time
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{now: time.Now}
}

// Register adds a table to the snapshot set. Call before first use.
func (d *MemoryDB) Register(t Snapshotter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables = append(d.tables, t)
}

// Lock acquires the database lock unless ctx is already inside InTx.
func (d *MemoryDB) Lock(ctx context.Context) (unlock func()) {
	if owner, _ := ctx.Value(memTxKey{}).(*MemoryDB); owner == d {
		return func() {}
	}
	d.mu.Lock()
	return d.mu.Unlock
}

func (d *MemoryDB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, _ := ctx.Value(memTxKey{}).(*MemoryDB); owner == d {
		return fn(ctx)
	}

	txCtx, runHooks := db.WithCommitHooks(context.WithValue(ctx, memTxKey{}, d))
	if err := d.run(txCtx, fn); err != nil {
		return err
	}
	// Hooks run after the lock is released so they may read the store.
	runHooks()
	return nil
}

func (d *MemoryDB) run(ctx context.Context, fn func(ctx context.Context) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	restores := make([]func(), len(d.tables))
	for i, t := range d.tables {
		restores[i] = t.Snapshot()
	}

	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// Ping always succeeds; it lets MemoryDB stand in for a pool in health checks.
func (d *MemoryDB) Ping(context.Context) error { return nil }

// UniqueKey declares a uniqueness constraint. Value returning "" means the
// record does not participate (nullable unique column).
type UniqueKey[T any] struct {
	Field string
	Value func(e T) string
}

// MemoryRepository is the generic in-memory Repository.
type MemoryRepository[T Entity[T]] struct {
	db      *MemoryDB
	kind    string
	uniques []UniqueKey[T]
	rows    map[uuid.UUID]T
	order   []uuid.UUID
}

func NewMemoryRepository[T Entity[T]](d *MemoryDB, kind string, uniques ...UniqueKey[T]) *MemoryRepository[T] {
	r := &MemoryRepository[T]{
		db:      d,
		kind:    kind,
		uniques: uniques,
		rows:    make(map[uuid.UUID]T),
	}
	d.Register(r)
	return r
}

func (r *MemoryRepository[T]) Snapshot() func() {
	rows := make(map[uuid.UUID]T, len(r.rows))
	for id, e := range r.rows {
		rows[id] = e
	}
	order := append([]uuid.UUID(nil), r.order...)
	return func() {
		r.rows = rows
		r.order = order
	}
}

func (r *MemoryRepository[T]) checkUnique(e T, self uuid.UUID) error {
	for _, u := range r.uniques {
		v := u.Value(e)
		if v == "" {
			continue
		}
		for id, other := range r.rows {
			if id != self && u.Value(other) == v {
				return Conflict("%s %s already exists", r.kind, u.Field)
			}
		}
	}
	return nil
}

func (r *MemoryRepository[T]) Create(ctx context.Context, e T) error {
	defer r.db.Lock(ctx)()

	if err := r.checkUnique(e, uuid.Nil); err != nil {
		return err
	}
	rec := e.Base()
	rec.ID = uuid.New()
	rec.CreatedAt = r.db.now().UTC()
	rec.UpdatedAt = rec.CreatedAt

	r.rows[rec.ID] = e.Clone()
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *MemoryRepository[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	defer r.db.Lock(ctx)()

	e, ok := r.rows[id]
	if !ok {
		var zero T
		return zero, NotFound(r.kind, id)
	}
	return e.Clone(), nil
}

// GetForUpdate equals Get: the database lock already serialises writers.
func (r *MemoryRepository[T]) GetForUpdate(ctx context.Context, id uuid.UUID) (T, error) {
	return r.Get(ctx, id)
}

func (r *MemoryRepository[T]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.db.Lock(ctx)()
	_, ok := r.rows[id]
	return ok, nil
}

func (r *MemoryRepository[T]) Count(ctx context.Context) (int, error) {
	defer r.db.Lock(ctx)()
	return len(r.rows), nil
}

func (r *MemoryRepository[T]) List(ctx context.Context, limit, offset int) ([]T, int, error) {
	items := r.Filter(ctx, nil)
	total := len(items)
	return page(items, limit, offset), total, nil
}

func (r *MemoryRepository[T]) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]T, error) {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.Filter(ctx, func(e T) bool {
		_, ok := want[e.Base().ID]
		return ok
	}), nil
}

// Filter returns clones of the records matching keep (nil keeps all) in
// insertion order.
func (r *MemoryRepository[T]) Filter(ctx context.Context, keep func(e T) bool) []T {
	defer r.db.Lock(ctx)()

	items := []T{}
	for _, id := range r.order {
		e, ok := r.rows[id]
		if !ok {
			continue
		}
		if keep == nil || keep(e) {
			items = append(items, e.Clone())
		}
	}
	return items
}

func (r *MemoryRepository[T]) Update(ctx context.Context, e T) error {
	defer r.db.Lock(ctx)()

	rec := e.Base()
	existing, ok := r.rows[rec.ID]
	if !ok {
		return NotFound(r.kind, rec.ID)
	}
	if err := r.checkUnique(e, rec.ID); err != nil {
		return err
	}
	rec.CreatedAt = existing.Base().CreatedAt
	rec.UpdatedAt = r.db.now().UTC()
	r.rows[rec.ID] = e.Clone()
	return nil
}

func (r *MemoryRepository[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.db.Lock(ctx)()

	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
