package careteam

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/carelink/internal/platform/store"
)

type linkRepoMemory struct {
	db    *store.MemoryDB
	links []Link
}

func NewLinkRepoMemory(mdb *store.MemoryDB) LinkRepository {
	r := &linkRepoMemory{db: mdb}
	mdb.Register(r)
	return r
}

func (r *linkRepoMemory) Snapshot() func() {
	links := append([]Link(nil), r.links...)
	return func() { r.links = links }
}

func (r *linkRepoMemory) index(patientID, providerID uuid.UUID) int {
	for i, l := range r.links {
		if l.PatientID == patientID && l.ProviderID == providerID {
			return i
		}
	}
	return -1
}

func (r *linkRepoMemory) Add(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	defer r.db.Lock(ctx)()
	if r.index(patientID, providerID) >= 0 {
		return false, nil
	}
	r.links = append(r.links, Link{PatientID: patientID, ProviderID: providerID, CreatedAt: time.Now().UTC()})
	return true, nil
}

func (r *linkRepoMemory) Remove(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	defer r.db.Lock(ctx)()
	i := r.index(patientID, providerID)
	if i < 0 {
		return false, nil
	}
	r.links = append(r.links[:i:i], r.links[i+1:]...)
	return true, nil
}

func (r *linkRepoMemory) Exists(ctx context.Context, patientID, providerID uuid.UUID) (bool, error) {
	defer r.db.Lock(ctx)()
	return r.index(patientID, providerID) >= 0, nil
}

func (r *linkRepoMemory) ProviderIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	defer r.db.Lock(ctx)()
	ids := []uuid.UUID{}
	for _, l := range r.links {
		if l.PatientID == patientID {
			ids = append(ids, l.ProviderID)
		}
	}
	return ids, nil
}

func (r *linkRepoMemory) PatientIDs(ctx context.Context, providerID uuid.UUID) ([]uuid.UUID, error) {
	defer r.db.Lock(ctx)()
	ids := []uuid.UUID{}
	for _, l := range r.links {
		if l.ProviderID == providerID {
			ids = append(ids, l.PatientID)
		}
	}
	return ids, nil
}

func (r *linkRepoMemory) ForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]Link, error) {
	defer r.db.Lock(ctx)()
	want := make(map[uuid.UUID]struct{}, len(patientIDs))
	for _, id := range patientIDs {
		want[id] = struct{}{}
	}
	links := []Link{}
	for _, l := range r.links {
		if _, ok := want[l.PatientID]; ok {
			links = append(links, l)
		}
	}
	return links, nil
}

func (r *linkRepoMemory) deleteWhere(ctx context.Context, match func(Link) bool) int64 {
	defer r.db.Lock(ctx)()
	kept := r.links[:0:0]
	var n int64
	for _, l := range r.links {
		if match(l) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.links = kept
	return n
}

func (r *linkRepoMemory) DeleteByPatient(ctx context.Context, patientID uuid.UUID) (int64, error) {
	return r.deleteWhere(ctx, func(l Link) bool { return l.PatientID == patientID }), nil
}

func (r *linkRepoMemory) DeleteByProvider(ctx context.Context, providerID uuid.UUID) (int64, error) {
	return r.deleteWhere(ctx, func(l Link) bool { return l.ProviderID == providerID }), nil
}

func (r *linkRepoMemory) Count(ctx context.Context) (int, error) {
	defer r.db.Lock(ctx)()
	return len(r.links), nil
}
