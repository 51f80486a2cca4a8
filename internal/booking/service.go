package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coldbook/internal/config"
	"coldbook/internal/domain"
	"coldbook/internal/interval"
	"coldbook/internal/metrics"
	"coldbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service implements the booking engine: it normalizes proposed intervals,
// applies booking policy and delegates the conflict-checked write to the
// store. The store - not the service - holds the serialization guarantee,
// so the service never caches the active reservation set between calls.
type Service struct {
	store     domain.ReservationStore
	resources domain.ResourceDirectory
	limiter   domain.AttemptLimiter
	cfg       config.BookingConfig
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewService(
	store domain.ReservationStore,
	resources domain.ResourceDirectory,
	limiter domain.AttemptLimiter,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *Service {
	return &Service{
		store:     store,
		resources: resources,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error) {
	if req.ResourceID == "" {
		return nil, &domain.MissingFieldError{Field: "resource_id"}
	}
	if req.OwnerID == "" {
		return nil, &domain.MissingFieldError{Field: "owner_id"}
	}
	if req.Start == "" {
		return nil, &domain.MissingFieldError{Field: "start"}
	}

	iv, err := s.parseInterval(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotPast(iv); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = s.cfg.DefaultStatus
	}
	if !models.IsKnownStatus(status) {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("unknown status %q", status)}
	}

	if err := s.checkResource(ctx, req.ResourceID); err != nil {
		return nil, err
	}
	if err := s.checkAttemptLimit(ctx, req.OwnerID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	r := &models.Reservation{
		ID:         uuid.NewString(),
		ResourceID: req.ResourceID,
		OwnerID:    req.OwnerID,
		StartAt:    iv.Start,
		EndAt:      iv.End,
		Precision:  string(iv.Precision),
		Status:     status,
		Purpose:    req.Purpose,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}

	if err := s.store.CreateReservation(ctx, r); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			metrics.IncConflict()
			s.logger.Info().
				Str("resource_id", r.ResourceID).
				Str("conflicts_with", conflict.ConflictsWith).
				Msg("booking rejected: slot taken")
		}
		return nil, err
	}

	metrics.IncReservationCreated()
	s.logger.Info().
		Str("reservation_id", r.ID).
		Str("resource_id", r.ResourceID).
		Str("owner_id", r.OwnerID).
		Time("start_at", r.StartAt).
		Time("end_at", r.EndAt).
		Msg("reservation created")
	return r, nil
}

func (s *Service) Update(ctx context.Context, id string, req models.UpdateReservationRequest) (*models.Reservation, error) {
	existing, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.ResourceID != "" {
		updated.ResourceID = req.ResourceID
	}
	if req.OwnerID != "" {
		updated.OwnerID = req.OwnerID
	}
	if req.Purpose != "" {
		updated.Purpose = req.Purpose
	}
	if req.Status != "" {
		if !models.IsKnownStatus(req.Status) {
			return nil, &domain.ValidationError{Msg: fmt.Sprintf("unknown status %q", req.Status)}
		}
		updated.Status = req.Status
	}

	if req.Start != "" || req.End != "" {
		iv, err := s.mergeInterval(existing, req.Start, req.End)
		if err != nil {
			return nil, err
		}
		if err := s.checkNotPast(iv); err != nil {
			return nil, err
		}
		updated.StartAt = iv.Start
		updated.EndAt = iv.End
		updated.Precision = string(iv.Precision)
	}

	if req.ResourceID != "" && req.ResourceID != existing.ResourceID {
		if err := s.checkResource(ctx, req.ResourceID); err != nil {
			return nil, err
		}
	}
	if err := s.checkAttemptLimit(ctx, updated.OwnerID); err != nil {
		return nil, err
	}

	updated.UpdatedAt = s.now().UTC()

	// The store excludes the reservation's own id from the conflict search
	// and bumps the version, so a stale read loses the race cleanly.
	if err := s.store.UpdateReservation(ctx, &updated); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			metrics.IncConflict()
		}
		return nil, err
	}

	s.logger.Info().
		Str("reservation_id", updated.ID).
		Str("resource_id", updated.ResourceID).
		Msg("reservation updated")
	return &updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteReservation(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("reservation_id", id).Msg("reservation deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

func (s *Service) List(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, error) {
	return s.store.ListReservations(ctx, f)
}

// CheckAvailability is a read-only conflict probe: it returns the blocking
// reservation, or nil when the interval is free for the resource.
func (s *Service) CheckAvailability(ctx context.Context, resourceID string, iv interval.Interval) (*models.Reservation, error) {
	if err := s.checkResource(ctx, resourceID); err != nil {
		return nil, err
	}
	return s.store.FindConflict(ctx, resourceID, iv, "")
}

func (s *Service) parseInterval(rawStart, rawEnd string) (interval.Interval, error) {
	start, startPrec, err := interval.ParseBound(rawStart)
	if err != nil {
		return interval.Interval{}, &domain.InvalidIntervalError{Reason: err.Error()}
	}

	var end time.Time
	prec := startPrec
	if rawEnd != "" {
		var endPrec interval.Precision
		end, endPrec, err = interval.ParseBound(rawEnd)
		if err != nil {
			return interval.Interval{}, &domain.InvalidIntervalError{Reason: err.Error()}
		}
		if endPrec == interval.PrecisionDateTime {
			prec = interval.PrecisionDateTime
		}
	}

	iv, err := interval.Normalize(start, end, prec)
	if err != nil {
		if errors.Is(err, interval.ErrMissingEnd) {
			return interval.Interval{}, &domain.MissingFieldError{Field: "end"}
		}
		return interval.Interval{}, &domain.InvalidIntervalError{Reason: err.Error()}
	}
	return iv, nil
}

// mergeInterval combines supplied bounds with the stored ones. A retained
// bound keeps the stored precision; the merged interval is datetime-precise
// as soon as any contributing bound is.
func (s *Service) mergeInterval(existing *models.Reservation, rawStart, rawEnd string) (interval.Interval, error) {
	start := existing.StartAt
	end := existing.EndAt
	prec := interval.Precision(existing.Precision)

	if rawStart != "" {
		parsed, p, err := interval.ParseBound(rawStart)
		if err != nil {
			return interval.Interval{}, &domain.InvalidIntervalError{Reason: err.Error()}
		}
		start = parsed
		if p == interval.PrecisionDateTime {
			prec = interval.PrecisionDateTime
		}
	}
	if rawEnd != "" {
		parsed, p, err := interval.ParseBound(rawEnd)
		if err != nil {
			return interval.Interval{}, &domain.InvalidIntervalError{Reason: err.Error()}
		}
		end = parsed
		if p == interval.PrecisionDateTime {
			prec = interval.PrecisionDateTime
		}
	}

	iv, err := interval.Normalize(start, end, prec)
	if err != nil {
		return interval.Interval{}, &domain.InvalidIntervalError{Reason: err.Error()}
	}
	return iv, nil
}

// checkNotPast enforces the future-only policy when enabled. Date-precision
// intervals compare against the start of today so same-day bookings stay
// allowed; datetime intervals compare against the current instant.
func (s *Service) checkNotPast(iv interval.Interval) error {
	if !s.cfg.FutureOnly {
		return nil
	}

	now := s.now().UTC()
	cutoff := now
	if iv.Precision == interval.PrecisionDate {
		cutoff = interval.StartOfDay(now)
	}
	if iv.Start.Before(cutoff) {
		return &domain.InvalidIntervalError{Reason: "start is in the past"}
	}
	return nil
}

func (s *Service) checkResource(ctx context.Context, resourceID string) error {
	eq, err := s.resources.GetEquipment(ctx, resourceID)
	if err != nil {
		return err
	}
	if !eq.IsActive {
		return domain.ErrResourceInactive
	}
	return nil
}

func (s *Service) checkAttemptLimit(ctx context.Context, ownerID string) error {
	if s.limiter == nil || s.cfg.RateLimit.Attempts <= 0 {
		return nil
	}

	window := time.Duration(s.cfg.RateLimit.WindowSeconds) * time.Second
	allowed, err := s.limiter.Allow(ctx, "booking_attempts:"+ownerID, s.cfg.RateLimit.Attempts, window)
	if err != nil {
		// Limiter trouble must not block bookings.
		s.logger.Warn().Err(err).Msg("attempt limiter failed, allowing request")
		return nil
	}
	if !allowed {
		return domain.ErrRateLimited
	}
	return nil
}
