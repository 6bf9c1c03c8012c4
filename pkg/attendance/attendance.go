// Package attendance stores check-in records.
package attendance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("attendance record not found")

// Record is one check-in. End stays nil until the employee checks out.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	EmployeeID int        `json:"employee_id"`
	Start      time.Time  `json:"start"`
	End        *time.Time `json:"end"`
}

// Store persists attendance records.
type Store interface {
	Create(ctx context.Context, employeeID int) (Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	Close()
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]Record),
		now:     time.Now,
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, employeeID int) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		Start:      s.now().Truncate(time.Second),
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()

	return rec, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close implements Store. It is a no-op.
func (s *MemoryStore) Close() {}
