package booking

import (
	"context"
	"io"
	"testing"
	"time"

	"coldbook/internal/config"
	"coldbook/internal/domain"
	"coldbook/internal/interval"
	"coldbook/internal/models"
	"coldbook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	equipment map[string]*models.Equipment
}

func (d *fakeDirectory) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	eq, ok := d.equipment[id]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	return eq, nil
}

func (d *fakeDirectory) ListEquipment(ctx context.Context) ([]*models.Equipment, error) {
	var out []*models.Equipment
	for _, eq := range d.equipment {
		out = append(out, eq)
	}
	return out, nil
}

func (d *fakeDirectory) CreateEquipment(ctx context.Context, eq *models.Equipment) error {
	d.equipment[eq.ID] = eq
	return nil
}

func (d *fakeDirectory) DeleteEquipment(ctx context.Context, id string) error {
	if _, ok := d.equipment[id]; !ok {
		return domain.ErrResourceNotFound
	}
	delete(d.equipment, id)
	return nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, nil
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, context.DeadlineExceeded
}

func newTestService(t *testing.T, cfg config.BookingConfig) *Service {
	t.Helper()
	directory := &fakeDirectory{equipment: map[string]*models.Equipment{
		"microscope": {ID: "microscope", Name: "Confocal microscope", IsActive: true},
		"centrifuge": {ID: "centrifuge", Name: "Ultracentrifuge", IsActive: true},
		"broken-pcr": {ID: "broken-pcr", Name: "PCR thermocycler", IsActive: false},
	}}
	if cfg.DefaultStatus == "" {
		cfg.DefaultStatus = models.StatusApproved
	}
	logger := zerolog.New(io.Discard)
	svc := NewService(repository.NewMemoryReservationStore(), directory, nil, cfg, &logger)
	// Tests run against a fixed clock.
	svc.now = func() time.Time {
		return time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestCreateReservation(t *testing.T) {
	svc := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	t.Run("DatetimeBooking", func(t *testing.T) {
		r, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "microscope",
			OwnerID:    "alice",
			Start:      "2030-06-01T10:00:00Z",
			End:        "2030-06-01T12:00:00Z",
			Purpose:    "sample imaging",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, models.StatusApproved, r.Status)
		assert.Equal(t, string(interval.PrecisionDateTime), r.Precision)
		assert.Equal(t, int64(1), r.Version)
		assert.Equal(t, time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC), r.StartAt)
		assert.Equal(t, time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC), r.EndAt)
	})

	t.Run("SingleDayDateBooking", func(t *testing.T) {
		r, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "alice",
			Start:      "2030-06-02",
		})
		require.NoError(t, err)
		assert.Equal(t, string(interval.PrecisionDate), r.Precision)
		assert.Equal(t, time.Date(2030, 6, 2, 0, 0, 0, 0, time.UTC), r.StartAt)
		assert.Equal(t, time.Date(2030, 6, 3, 0, 0, 0, 0, time.UTC), r.EndAt)
	})

	t.Run("ExplicitStatus", func(t *testing.T) {
		r, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "bob",
			Start:      "2030-06-05",
			Status:     models.StatusPending,
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, r.Status)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "bob",
			Start:      "2030-06-06",
			Status:     "maybe",
		})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("MissingFields", func(t *testing.T) {
		cases := []struct {
			name  string
			req   models.CreateReservationRequest
			field string
		}{
			{"NoResource", models.CreateReservationRequest{OwnerID: "alice", Start: "2030-06-10"}, "resource_id"},
			{"NoOwner", models.CreateReservationRequest{ResourceID: "microscope", Start: "2030-06-10"}, "owner_id"},
			{"NoStart", models.CreateReservationRequest{ResourceID: "microscope", OwnerID: "alice"}, "start"},
			{"DatetimeWithoutEnd", models.CreateReservationRequest{ResourceID: "microscope", OwnerID: "alice", Start: "2030-06-10T10:00:00Z"}, "end"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.Create(ctx, tc.req)
				var missing *domain.MissingFieldError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, tc.field, missing.Field)
			})
		}
	})

	t.Run("InvertedInterval", func(t *testing.T) {
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "microscope",
			OwnerID:    "alice",
			Start:      "2030-06-10T12:00:00Z",
			End:        "2030-06-10T10:00:00Z",
		})
		var invalid *domain.InvalidIntervalError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("UnknownResource", func(t *testing.T) {
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "no-such-thing",
			OwnerID:    "alice",
			Start:      "2030-06-10",
		})
		assert.ErrorIs(t, err, domain.ErrResourceNotFound)
	})

	t.Run("InactiveResource", func(t *testing.T) {
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "broken-pcr",
			OwnerID:    "alice",
			Start:      "2030-06-10",
		})
		assert.ErrorIs(t, err, domain.ErrResourceInactive)
	})
}

func TestCreateReservationConflicts(t *testing.T) {
	svc := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	first, err := svc.Create(ctx, models.CreateReservationRequest{
		ResourceID: "microscope",
		OwnerID:    "alice",
		Start:      "2030-06-01T10:00:00Z",
		End:        "2030-06-01T12:00:00Z",
	})
	require.NoError(t, err)

	t.Run("OverlapRejectedWithBlockerID", func(t *testing.T) {
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "microscope",
			OwnerID:    "bob",
			Start:      "2030-06-01T11:00:00Z",
			End:        "2030-06-01T13:00:00Z",
		})
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, first.ID, conflict.ConflictsWith)
	})

	t.Run("BackToBackAllowed", func(t *testing.T) {
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "microscope",
			OwnerID:    "bob",
			Start:      "2030-06-01T12:00:00Z",
			End:        "2030-06-01T13:00:00Z",
		})
		assert.NoError(t, err)
	})

	t.Run("OtherResourceUnaffected", func(t *testing.T) {
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "bob",
			Start:      "2030-06-01T10:00:00Z",
			End:        "2030-06-01T12:00:00Z",
		})
		assert.NoError(t, err)
	})

	t.Run("BackToBackDays", func(t *testing.T) {
		// The end date is exclusive: June 10 to 12 covers June 10 and 11.
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "alice",
			Start:      "2030-06-10",
			End:        "2030-06-12",
		})
		require.NoError(t, err)

		_, err = svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "bob",
			Start:      "2030-06-12",
		})
		assert.NoError(t, err)

		// June 11 is the last covered day and stays blocked.
		_, err = svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "bob",
			Start:      "2030-06-11",
		})
		var conflict *domain.ConflictError
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("SubSecondBounds", func(t *testing.T) {
		// Bounds are kept at second resolution, so an interval shorter
		// than a second cannot sneak in and dodge conflict checks.
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "alice",
			Start:      "2030-06-20T10:00:00.2Z",
			End:        "2030-06-20T10:00:00.8Z",
		})
		var invalid *domain.InvalidIntervalError
		require.ErrorAs(t, err, &invalid)

		// Fractional parts are dropped; the truncated intervals still
		// collide like their whole-second counterparts.
		_, err = svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "alice",
			Start:      "2030-06-20T10:00:00.5Z",
			End:        "2030-06-20T10:00:02.5Z",
		})
		require.NoError(t, err)

		_, err = svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "bob",
			Start:      "2030-06-20T10:00:01.9Z",
			End:        "2030-06-20T10:00:03.1Z",
		})
		var conflict *domain.ConflictError
		assert.ErrorAs(t, err, &conflict)
	})
}

func TestFutureOnlyPolicy(t *testing.T) {
	svc := newTestService(t, config.BookingConfig{FutureOnly: true})
	ctx := context.Background()

	t.Run("PastDatetimeRejected", func(t *testing.T) {
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "microscope",
			OwnerID:    "alice",
			Start:      "2030-06-01T08:00:00Z", // clock reads 09:00
			End:        "2030-06-01T10:00:00Z",
		})
		var invalid *domain.InvalidIntervalError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, invalid.Reason, "past")
	})

	t.Run("SameDayDateAllowed", func(t *testing.T) {
		// A date booking for today is fine even mid-morning.
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "microscope",
			OwnerID:    "alice",
			Start:      "2030-06-01",
		})
		assert.NoError(t, err)
	})

	t.Run("YesterdayRejected", func(t *testing.T) {
		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "centrifuge",
			OwnerID:    "alice",
			Start:      "2030-05-31",
		})
		var invalid *domain.InvalidIntervalError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestUpdateReservation(t *testing.T) {
	svc := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	first, err := svc.Create(ctx, models.CreateReservationRequest{
		ResourceID: "microscope",
		OwnerID:    "alice",
		Start:      "2030-06-01T10:00:00Z",
		End:        "2030-06-01T12:00:00Z",
	})
	require.NoError(t, err)

	second, err := svc.Create(ctx, models.CreateReservationRequest{
		ResourceID: "microscope",
		OwnerID:    "bob",
		Start:      "2030-06-01T13:00:00Z",
		End:        "2030-06-01T14:00:00Z",
	})
	require.NoError(t, err)

	t.Run("ResizeWithinOwnSlot", func(t *testing.T) {
		updated, err := svc.Update(ctx, first.ID, models.UpdateReservationRequest{
			End: "2030-06-01T12:30:00Z",
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC), updated.StartAt)
		assert.Equal(t, time.Date(2030, 6, 1, 12, 30, 0, 0, time.UTC), updated.EndAt)
		assert.Equal(t, int64(2), updated.Version)
	})

	t.Run("MoveOntoOtherRejected", func(t *testing.T) {
		_, err := svc.Update(ctx, first.ID, models.UpdateReservationRequest{
			Start: "2030-06-01T13:30:00Z",
			End:   "2030-06-01T15:00:00Z",
		})
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, second.ID, conflict.ConflictsWith)
	})

	t.Run("CancellingFreesSlot", func(t *testing.T) {
		_, err := svc.Update(ctx, second.ID, models.UpdateReservationRequest{
			Status: models.StatusCancelled,
		})
		require.NoError(t, err)

		_, err = svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "microscope",
			OwnerID:    "carol",
			Start:      "2030-06-01T13:00:00Z",
			End:        "2030-06-01T14:00:00Z",
		})
		assert.NoError(t, err)
	})

	t.Run("UnknownID", func(t *testing.T) {
		_, err := svc.Update(ctx, "no-such-id", models.UpdateReservationRequest{Purpose: "x"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		_, err := svc.Update(ctx, first.ID, models.UpdateReservationRequest{Status: "paused"})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("MoveToInactiveResource", func(t *testing.T) {
		_, err := svc.Update(ctx, first.ID, models.UpdateReservationRequest{ResourceID: "broken-pcr"})
		assert.ErrorIs(t, err, domain.ErrResourceInactive)
	})
}

func TestUpdateMergesPrecision(t *testing.T) {
	svc := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	r, err := svc.Create(ctx, models.CreateReservationRequest{
		ResourceID: "microscope",
		OwnerID:    "alice",
		Start:      "2030-06-10",
		End:        "2030-06-12",
	})
	require.NoError(t, err)
	require.Equal(t, string(interval.PrecisionDate), r.Precision)

	// Supplying one datetime bound upgrades the whole interval.
	updated, err := svc.Update(ctx, r.ID, models.UpdateReservationRequest{
		End: "2030-06-12T18:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, string(interval.PrecisionDateTime), updated.Precision)
	assert.Equal(t, time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC), updated.StartAt)
	assert.Equal(t, time.Date(2030, 6, 12, 18, 0, 0, 0, time.UTC), updated.EndAt)
}

func TestAttemptLimit(t *testing.T) {
	ctx := context.Background()
	cfg := config.BookingConfig{
		RateLimit: config.BookingRateLimit{Attempts: 5, WindowSeconds: 60},
	}

	t.Run("DeniedOwnerGets429Error", func(t *testing.T) {
		svc := newTestService(t, cfg)
		svc.limiter = denyLimiter{}

		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "microscope",
			OwnerID:    "alice",
			Start:      "2030-06-10",
		})
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("LimiterFailureDoesNotBlock", func(t *testing.T) {
		svc := newTestService(t, cfg)
		svc.limiter = brokenLimiter{}

		_, err := svc.Create(ctx, models.CreateReservationRequest{
			ResourceID: "microscope",
			OwnerID:    "alice",
			Start:      "2030-06-10",
		})
		assert.NoError(t, err)
	})
}

func TestCheckAvailability(t *testing.T) {
	svc := newTestService(t, config.BookingConfig{})
	ctx := context.Background()

	r, err := svc.Create(ctx, models.CreateReservationRequest{
		ResourceID: "microscope",
		OwnerID:    "alice",
		Start:      "2030-06-01T10:00:00Z",
		End:        "2030-06-01T12:00:00Z",
	})
	require.NoError(t, err)

	taken, err := interval.Normalize(
		time.Date(2030, 6, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2030, 6, 1, 13, 0, 0, 0, time.UTC),
		interval.PrecisionDateTime,
	)
	require.NoError(t, err)

	conflict, err := svc.CheckAvailability(ctx, "microscope", taken)
	require.NoError(t, err)
	require.NotNil(t, conflict)
	assert.Equal(t, r.ID, conflict.ID)

	free, err := interval.Normalize(
		time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2030, 6, 1, 13, 0, 0, 0, time.UTC),
		interval.PrecisionDateTime,
	)
	require.NoError(t, err)

	conflict, err = svc.CheckAvailability(ctx, "microscope", free)
	require.NoError(t, err)
	assert.Nil(t, conflict)

	_, err = svc.CheckAvailability(ctx, "no-such-thing", free)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
}
