package models

import (
	"time"

	"coldbook/internal/interval"
)

type Reservation struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	OwnerID    string    `json:"owner_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Precision  string    `json:"precision"` // date, datetime
	Status     string    `json:"status"`    // pending, approved, rejected, cancelled
	Purpose    string    `json:"purpose"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int64     `json:"version"`
}

// Interval returns the stored half-open interval of the reservation.
func (r *Reservation) Interval() interval.Interval {
	return interval.Interval{
		Start:     r.StartAt,
		End:       r.EndAt,
		Precision: interval.Precision(r.Precision),
	}
}

// IsActive reports whether the reservation participates in conflict checks.
func (r *Reservation) IsActive() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// ReservationFilter narrows List queries. Zero values mean "no filter";
// Start/End describe a half-open range the reservation must intersect.
type ReservationFilter struct {
	ResourceID string
	OwnerID    string
	Statuses   []string
	Start      time.Time
	End        time.Time
}
