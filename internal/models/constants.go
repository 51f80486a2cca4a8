package models

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// ActiveStatuses are the statuses that block other bookings.
var ActiveStatuses = []string{StatusPending, StatusApproved}

// KnownStatuses lists every accepted status value.
var KnownStatuses = []string{StatusPending, StatusApproved, StatusRejected, StatusCancelled}

// IsKnownStatus reports whether s is a recognized reservation status.
func IsKnownStatus(s string) bool {
	for _, known := range KnownStatuses {
		if s == known {
			return true
		}
	}
	return false
}

const (
	// DefaultAttemptLimit ограничение попыток бронирования на владельца в окне
	DefaultAttemptLimit = 20

	// DefaultAttemptWindow окно ограничения попыток в секундах
	DefaultAttemptWindow = 60
)
