// Package memory implements media.Records with an in-process map.
// It is meant for tests, prototypes and single-process tools.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mediakit/pkg/media"
)

// Records implements media.Records using an in-memory map.
type Records struct {
	mu      sync.RWMutex
	records map[string]media.Record
	now     func() time.Time
}

// Option configures Records.
type Option func(*Records)

// WithClock sets the time source for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Records) {
		r.now = now
	}
}

// New creates an empty record set.
func New(opts ...Option) *Records {
	r := &Records{
		records: make(map[string]media.Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert stores a copy of rec under a new uuid.
func (r *Records) Insert(_ context.Context, rec *media.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.records[rec.ID] = clone(*rec)

	return nil
}

// FindByID returns a copy of the record.
func (r *Records) FindByID(_ context.Context, id string) (*media.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, media.ErrNotFound
	}
	rec = clone(rec)
	return &rec, nil
}

// Find returns the owner's records ordered by weight, creation time and id.
func (r *Records) Find(_ context.Context, owner media.OwnerRef, group string) ([]media.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []media.Record{}
	for _, rec := range r.records {
		if matches(rec, owner, group) {
			out = append(out, clone(rec))
		}
	}

	slices.SortFunc(out, func(a, b media.Record) int {
		return cmp.Or(
			cmp.Compare(a.Weight, b.Weight),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.ID, b.ID),
		)
	})

	return out, nil
}

// Count returns the number of records in (owner, group).
func (r *Records) Count(_ context.Context, owner media.OwnerRef, group string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.records {
		if matches(rec, owner, group) {
			n++
		}
	}
	return n, nil
}

// CountByFilename returns the number of records pointing at filename.
func (r *Records) CountByFilename(_ context.Context, filename string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.records {
		if rec.Filename == filename {
			n++
		}
	}
	return n, nil
}

// Update persists the editable metadata of rec.
func (r *Records) Update(_ context.Context, rec *media.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[rec.ID]
	if !ok {
		return media.ErrNotFound
	}

	stored.Name = rec.Name
	stored.Alt = rec.Alt
	stored.Title = rec.Title
	stored.Weight = rec.Weight
	stored.UpdatedAt = r.now()
	r.records[rec.ID] = stored
	rec.UpdatedAt = stored.UpdatedAt

	return nil
}

// Delete removes the record.
func (r *Records) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return media.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// Len returns the number of stored records.
func (r *Records) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func matches(rec media.Record, owner media.OwnerRef, group string) bool {
	if rec.OwnerType != owner.Type || rec.OwnerID != owner.ID {
		return false
	}
	return group == "" || rec.Group == group
}

// clone detaches the size pointer from the caller's copy.
func clone(rec media.Record) media.Record {
	if rec.Size != nil {
		size := *rec.Size
		rec.Size = &size
	}
	return rec
}
