package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"coldbook/internal/domain"
	"coldbook/internal/interval"
	"coldbook/internal/models"
)

const reservationColumns = `id, resource_id, owner_id, start_at, end_at, time_precision,
                 status, purpose, created_at, updated_at, version`

// CreateReservation inserts a reservation after re-checking for conflicts
// inside the same transaction, so two concurrent overlapping inserts for one
// resource cannot both commit.
func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	conflict, err := findConflictTx(ctx, tx, r.ResourceID, r.Interval(), "")
	if err != nil {
		return err
	}
	if conflict != nil {
		return &domain.ConflictError{ConflictsWith: conflict.ID}
	}

	query := `INSERT INTO reservations (
				id, resource_id, owner_id, start_at, end_at, time_precision,
				status, purpose, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, query,
		r.ID,
		r.ResourceID,
		r.OwnerID,
		formatTime(r.StartAt),
		formatTime(r.EndAt),
		r.Precision,
		r.Status,
		r.Purpose,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1

	return tx.Commit()
}

// UpdateReservation rewrites a reservation, excluding its own id from the
// conflict search. The version predicate makes concurrent updates lose
// instead of clobbering each other.
func (db *DB) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Cancelled or rejected reservations stop blocking others, so only
	// re-validate the invariant when the updated row stays active.
	if r.IsActive() {
		conflict, err := findConflictTx(ctx, tx, r.ResourceID, r.Interval(), r.ID)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &domain.ConflictError{ConflictsWith: conflict.ID}
		}
	}

	query := `UPDATE reservations
              SET resource_id = ?, owner_id = ?, start_at = ?, end_at = ?, time_precision = ?,
                  status = ?, purpose = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND version = ?`
	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, query,
		r.ResourceID,
		r.OwnerID,
		formatTime(r.StartAt),
		formatTime(r.EndAt),
		r.Precision,
		r.Status,
		r.Purpose,
		now,
		r.ID,
		r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE id = ?`, r.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check reservation existence: %w", err)
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	r.UpdatedAt = now
	r.Version++
	return nil
}

func (db *DB) DeleteReservation(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// ListReservations returns reservations matching the filter, sorted by start
// time ascending. A time range matches reservations that intersect it.
func (db *DB) ListReservations(ctx context.Context, f models.ReservationFilter) ([]*models.Reservation, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ResourceID != "" {
		clauses = append(clauses, "resource_id = ?")
		args = append(args, f.ResourceID)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if len(f.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Statuses)), ", ")
		clauses = append(clauses, "status IN ("+placeholders+")")
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	if !f.End.IsZero() {
		clauses = append(clauses, "start_at < ?")
		args = append(args, formatTime(f.End))
	}
	if !f.Start.IsZero() {
		clauses = append(clauses, "end_at > ?")
		args = append(args, formatTime(f.Start))
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_at ASC, created_at ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// FindConflict reports the first active reservation for resourceID whose
// interval overlaps iv, skipping excludeID.
func (db *DB) FindConflict(ctx context.Context, resourceID string, iv interval.Interval, excludeID string) (*models.Reservation, error) {
	return findConflictTx(ctx, db.DB, resourceID, iv, excludeID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findConflictTx(ctx context.Context, q querier, resourceID string, iv interval.Interval, excludeID string) (*models.Reservation, error) {
	// Half-open overlap: existing.start < new.end AND existing.end > new.start.
	query := `SELECT ` + reservationColumns + `
              FROM reservations
              WHERE resource_id = ? AND id <> ? AND status IN (?, ?)
                AND start_at < ? AND end_at > ?
              ORDER BY start_at ASC LIMIT 1`
	r, err := scanReservation(q.QueryRowContext(ctx, query,
		resourceID,
		excludeID,
		models.StatusPending,
		models.StatusApproved,
		formatTime(iv.End),
		formatTime(iv.Start),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search for conflicts: %w", err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r                models.Reservation
		startStr, endStr string
	)
	err := row.Scan(
		&r.ID, &r.ResourceID, &r.OwnerID, &startStr, &endStr, &r.Precision,
		&r.Status, &r.Purpose, &r.CreatedAt, &r.UpdatedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}

	if r.StartAt, err = parseTime(startStr); err != nil {
		return nil, fmt.Errorf("failed to parse start_at %s: %w", startStr, err)
	}
	if r.EndAt, err = parseTime(endStr); err != nil {
		return nil, fmt.Errorf("failed to parse end_at %s: %w", endStr, err)
	}
	return &r, nil
}
