package repository

import (
	"context"
	"sort"
	"sync"

	"coldbook/internal/domain"
	"coldbook/internal/interval"
	"coldbook/internal/models"
)

// MemoryReservationStore keeps reservations in process memory behind one
// mutex, which trivially serializes the check-then-insert sequence. It backs
// tests and dev setups; sqlite is the production store.
type MemoryReservationStore struct {
	mu           sync.Mutex
	reservations map[string]*models.Reservation
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{
		reservations: make(map[string]*models.Reservation),
	}
}

func (s *MemoryReservationStore) CreateReservation(ctx context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conflict := s.findConflictLocked(r.ResourceID, r.Interval(), ""); conflict != nil {
		return &domain.ConflictError{ConflictsWith: conflict.ID}
	}

	stored := *r
	s.reservations[r.ID] = &stored
	return nil
}

func (s *MemoryReservationStore) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reservations[r.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.Version != r.Version {
		return domain.ErrConcurrentModification
	}

	if r.IsActive() {
		if conflict := s.findConflictLocked(r.ResourceID, r.Interval(), r.ID); conflict != nil {
			return &domain.ConflictError{ConflictsWith: conflict.ID}
		}
	}

	stored := *r
	stored.Version++
	s.reservations[r.ID] = &stored
	r.Version = stored.Version
	return nil
}

func (s *MemoryReservationStore) DeleteReservation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.reservations, id)
	return nil
}

func (s *MemoryReservationStore) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *MemoryReservationStore) ListReservations(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Reservation
	for _, r := range s.reservations {
		if f.ResourceID != "" && r.ResourceID != f.ResourceID {
			continue
		}
		if f.OwnerID != "" && r.OwnerID != f.OwnerID {
			continue
		}
		if len(f.Statuses) > 0 && !containsString(f.Statuses, r.Status) {
			continue
		}
		if !f.End.IsZero() && !r.StartAt.Before(f.End) {
			continue
		}
		if !f.Start.IsZero() && !r.EndAt.After(f.Start) {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out, nil
}

func (s *MemoryReservationStore) FindConflict(ctx context.Context, resourceID string, iv interval.Interval, excludeID string) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conflict := s.findConflictLocked(resourceID, iv, excludeID); conflict != nil {
		copied := *conflict
		return &copied, nil
	}
	return nil, nil
}

func (s *MemoryReservationStore) findConflictLocked(resourceID string, iv interval.Interval, excludeID string) *models.Reservation {
	var found *models.Reservation
	for _, r := range s.reservations {
		if r.ResourceID != resourceID || r.ID == excludeID || !r.IsActive() {
			continue
		}
		if !r.Interval().Overlaps(iv) {
			continue
		}
		if found == nil || r.StartAt.Before(found.StartAt) {
			found = r
		}
	}
	return found
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
