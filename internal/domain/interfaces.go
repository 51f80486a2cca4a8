package domain

import (
	"context"
	"time"

	"coldbook/internal/interval"
	"coldbook/internal/models"
)

// ReservationStore persists reservations and enforces the no-overlap
// invariant. CreateReservation and UpdateReservation run their conflict
// check and write as one unit of work per resource: of two concurrent
// conflicting calls at most one may succeed.
type ReservationStore interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, id string) error
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	ListReservations(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, error)
	// FindConflict returns the first active reservation for resourceID whose
	// interval overlaps iv, skipping excludeID. Nil when the slot is free.
	FindConflict(ctx context.Context, resourceID string, iv interval.Interval, excludeID string) (*models.Reservation, error)
}

// ResourceDirectory answers whether a piece of equipment exists and is
// bookable. The booking engine never dereferences equipment beyond this.
type ResourceDirectory interface {
	GetEquipment(ctx context.Context, id string) (*models.Equipment, error)
	ListEquipment(ctx context.Context) ([]*models.Equipment, error)
	CreateEquipment(ctx context.Context, eq *models.Equipment) error
	DeleteEquipment(ctx context.Context, id string) error
}

// AttemptLimiter bounds booking attempts per key inside a sliding window.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BookingService is the engine surface consumed by the API layer.
type BookingService interface {
	Create(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error)
	Update(ctx context.Context, id string, req models.UpdateReservationRequest) (*models.Reservation, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Reservation, error)
	List(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, error)
	CheckAvailability(ctx context.Context, resourceID string, iv interval.Interval) (*models.Reservation, error)
}
