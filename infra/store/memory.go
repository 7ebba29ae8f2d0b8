// Package store provides the state store backends: an in-memory store and a
// SQLite store.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/ers/core/model"
	corestore "github.com/kilianp07/ers/core/store"
)

type row[T any] struct {
	seq uint64
	val T
}

// overlay stages writes on top of a base table until commit.
type overlay[T any] struct {
	base  map[string]row[T]
	puts  map[string]row[T]
	dels  map[string]bool
	clone func(T) T
}

func newOverlay[T any](base map[string]row[T], clone func(T) T) *overlay[T] {
	return &overlay[T]{base: base, puts: map[string]row[T]{}, dels: map[string]bool{}, clone: clone}
}

func (o *overlay[T]) lookup(id string) (row[T], bool) {
	if r, ok := o.puts[id]; ok {
		return r, true
	}
	if o.dels[id] {
		return row[T]{}, false
	}
	r, ok := o.base[id]
	return r, ok
}

func (o *overlay[T]) get(id string) (T, bool) {
	r, ok := o.lookup(id)
	if !ok {
		var zero T
		return zero, false
	}
	return o.clone(r.val), true
}

func (o *overlay[T]) put(id string, v T, next func() uint64) {
	r, ok := o.lookup(id)
	if !ok {
		r.seq = next()
	}
	r.val = o.clone(v)
	o.puts[id] = r
	delete(o.dels, id)
}

func (o *overlay[T]) del(id string) {
	delete(o.puts, id)
	o.dels[id] = true
}

func (o *overlay[T]) list(keep func(T) bool) []T {
	rows := make([]row[T], 0, len(o.base)+len(o.puts))
	for id, r := range o.base {
		if o.dels[id] {
			continue
		}
		if _, staged := o.puts[id]; staged {
			continue
		}
		rows = append(rows, r)
	}
	for _, r := range o.puts {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if keep(r.val) {
			out = append(out, o.clone(r.val))
		}
	}
	return out
}

func (o *overlay[T]) commit() {
	for id := range o.dels {
		delete(o.base, id)
	}
	for id, r := range o.puts {
		o.base[id] = r
	}
}

// MemoryStore keeps all records in process memory. Update calls are
// serialized by a single writer lock and staged until the callback returns
// without error.
type MemoryStore struct {
	mu        sync.RWMutex
	seq       uint64
	incidents map[string]row[model.Incident]
	vehicles  map[string]row[model.Vehicle]
	hospitals map[string]row[model.Hospital]
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		incidents: map[string]row[model.Incident]{},
		vehicles:  map[string]row[model.Vehicle]{},
		hospitals: map[string]row[model.Hospital]{},
	}
}

type memTx struct {
	s         *MemoryStore
	incidents *overlay[model.Incident]
	vehicles  *overlay[model.Vehicle]
	hospitals *overlay[model.Hospital]
}

func (s *MemoryStore) begin() *memTx {
	return &memTx{
		s:         s,
		incidents: newOverlay(s.incidents, cloneIncident),
		vehicles:  newOverlay(s.vehicles, cloneVehicle),
		hospitals: newOverlay(s.hospitals, cloneHospital),
	}
}

// View runs fn against a consistent snapshot.
func (s *MemoryStore) View(ctx context.Context, fn func(corestore.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.begin())
}

// Update runs fn as one transaction.
func (s *MemoryStore) Update(ctx context.Context, fn func(corestore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	tx.incidents.commit()
	tx.vehicles.commit()
	tx.hospitals.commit()
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (t *memTx) next() uint64 {
	t.s.seq++
	return t.s.seq
}

func (t *memTx) Incident(id string) (model.Incident, error) {
	inc, ok := t.incidents.get(id)
	if !ok {
		return model.Incident{}, model.NotFound(model.ErrIncidentNotFound, id)
	}
	return inc, nil
}

func (t *memTx) Incidents(f corestore.IncidentFilter) ([]model.Incident, error) {
	return t.incidents.list(f.Match), nil
}

func (t *memTx) Vehicle(id string) (model.Vehicle, error) {
	v, ok := t.vehicles.get(id)
	if !ok {
		return model.Vehicle{}, model.NotFound(model.ErrVehicleNotFound, id)
	}
	return v, nil
}

func (t *memTx) Vehicles(f corestore.VehicleFilter) ([]model.Vehicle, error) {
	return t.vehicles.list(f.Match), nil
}

func (t *memTx) Hospital(id string) (model.Hospital, error) {
	h, ok := t.hospitals.get(id)
	if !ok {
		return model.Hospital{}, model.NotFound(model.ErrHospitalNotFound, id)
	}
	return h, nil
}

func (t *memTx) Hospitals() ([]model.Hospital, error) {
	return t.hospitals.list(func(model.Hospital) bool { return true }), nil
}

func (t *memTx) PutIncident(inc model.Incident) error {
	if inc.ID == "" {
		return model.Validation("incident id is empty")
	}
	t.incidents.put(inc.ID, inc, t.next)
	return nil
}

func (t *memTx) PutVehicle(v model.Vehicle) error {
	if v.ID == "" {
		return model.Validation("vehicle id is empty")
	}
	t.vehicles.put(v.ID, v, t.next)
	return nil
}

func (t *memTx) PutHospital(h model.Hospital) error {
	if h.ID == "" {
		return model.Validation("hospital id is empty")
	}
	t.hospitals.put(h.ID, h, t.next)
	return nil
}

func (t *memTx) AdjustHospitalLoad(id string, delta, max int) (int, int, error) {
	h, ok := t.hospitals.get(id)
	if !ok {
		return 0, 0, model.NotFound(model.ErrHospitalNotFound, id)
	}
	load := model.ClampLoad(h.Load+delta, max)
	applied := load - h.Load
	h.Load = load
	t.hospitals.put(id, h, t.next)
	return applied, load, nil
}

func (t *memTx) DeleteIncidents(f corestore.IncidentFilter) (int, error) {
	matched := t.incidents.list(f.Match)
	for _, inc := range matched {
		t.incidents.del(inc.ID)
	}
	return len(matched), nil
}

func cloneIncident(i model.Incident) model.Incident { return i }

func cloneVehicle(v model.Vehicle) model.Vehicle {
	if v.Destination != nil {
		d := *v.Destination
		if d.ETASeconds != nil {
			eta := *d.ETASeconds
			d.ETASeconds = &eta
		}
		v.Destination = &d
	}
	return v
}

func cloneHospital(h model.Hospital) model.Hospital {
	h.Specialties = append([]string(nil), h.Specialties...)
	return h
}
