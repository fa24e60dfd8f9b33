package patient

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo keeps patient records in process memory behind a single
// reader/writer lock. Reads share the lock; writes hold it exclusively.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[HN]*memoryEntry
	seq     uint64
	now     func() time.Time
}

type memoryEntry struct {
	patient *Patient
	// seq breaks createdAt ties so List stays in insertion order.
	seq uint64
}

type MemoryOption func(*MemoryRepo)

// WithMemoryClock overrides the clock used for CreatedAt/UpdatedAt.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRepo) { r.now = now }
}

func NewMemoryRepo(opts ...MemoryOption) *MemoryRepo {
	r := &MemoryRepo{
		records: make(map[HN]*memoryEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MemoryRepo) List(_ context.Context) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*memoryEntry, 0, len(r.records))
	for _, e := range r.records {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.patient.CreatedAt.Equal(b.patient.CreatedAt) {
			return a.patient.CreatedAt.After(b.patient.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*Patient, len(entries))
	for i, e := range entries {
		out[i] = e.patient.clone()
	}
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, hn HN) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.records[hn]
	if !ok {
		return nil, ErrNotFound
	}
	return e.patient.clone(), nil
}

func (r *MemoryRepo) Create(_ context.Context, p *Patient) (*Patient, error) {
	if err := checkRecord(p); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[p.HN]; exists {
		return nil, ErrAlreadyExists
	}

	stored := p.clone()
	now := r.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.seq++
	r.records[stored.HN] = &memoryEntry{patient: stored, seq: r.seq}
	return stored.clone(), nil
}

func (r *MemoryRepo) Update(_ context.Context, hn HN, p *Patient) (*Patient, error) {
	if p.HN != "" && p.HN != hn {
		return nil, newValidationError(FieldHN, CodeHNImmutable, "hospital number cannot be changed")
	}
	next := p.clone()
	next.HN = hn
	if err := checkRecord(next); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.records[hn]
	if !ok {
		return nil, ErrNotFound
	}

	next.CreatedAt = e.patient.CreatedAt
	next.UpdatedAt = r.now()
	if next.UpdatedAt.Before(e.patient.UpdatedAt) {
		next.UpdatedAt = e.patient.UpdatedAt
	}
	e.patient = next
	return next.clone(), nil
}

func (r *MemoryRepo) Delete(_ context.Context, hn HN) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[hn]; !ok {
		return ErrNotFound
	}
	delete(r.records, hn)
	return nil
}
