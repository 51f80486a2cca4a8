package models

// CreateReservationRequest carries raw booking input. Start and End are
// either RFC 3339 timestamps or bare YYYY-MM-DD dates; End may be empty for
// a single-day date booking.
type CreateReservationRequest struct {
	ResourceID string `json:"resource_id"`
	OwnerID    string `json:"owner_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Status     string `json:"status"`
	Purpose    string `json:"purpose"`
}

// UpdateReservationRequest is a partial CreateReservationRequest: empty
// fields keep their prior values.
type UpdateReservationRequest struct {
	ResourceID string `json:"resource_id"`
	OwnerID    string `json:"owner_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Status     string `json:"status"`
	Purpose    string `json:"purpose"`
}
