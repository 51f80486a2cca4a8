package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coldbook/internal/domain"
	"coldbook/internal/models"
)

// CreateEquipment inserts an equipment record. Names are unique across the
// directory, matching the lab's one-name-per-unit convention.
func (db *DB) CreateEquipment(ctx context.Context, eq *models.Equipment) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment WHERE name = ?`, eq.Name).Scan(&count); err != nil {
		return fmt.Errorf("failed to check equipment name: %w", err)
	}
	if count > 0 {
		return domain.ErrDuplicateResource
	}

	query := `INSERT INTO equipment (id, name, description, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, query,
		eq.ID,
		eq.Name,
		eq.Description,
		eq.SortOrder,
		eq.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}
	eq.CreatedAt = now
	eq.UpdatedAt = now

	return tx.Commit()
}

func (db *DB) GetEquipment(ctx context.Context, id string) (*models.Equipment, error) {
	query := `SELECT id, name, description, sort_order, is_active, created_at, updated_at
              FROM equipment WHERE id = ?`
	var eq models.Equipment
	err := db.QueryRowContext(ctx, query, id).Scan(
		&eq.ID, &eq.Name, &eq.Description, &eq.SortOrder, &eq.IsActive, &eq.CreatedAt, &eq.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	return &eq, nil
}

func (db *DB) GetEquipmentByName(ctx context.Context, name string) (*models.Equipment, error) {
	query := `SELECT id, name, description, sort_order, is_active, created_at, updated_at
              FROM equipment WHERE name = ?`
	var eq models.Equipment
	err := db.QueryRowContext(ctx, query, name).Scan(
		&eq.ID, &eq.Name, &eq.Description, &eq.SortOrder, &eq.IsActive, &eq.CreatedAt, &eq.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get equipment by name: %w", err)
	}
	return &eq, nil
}

func (db *DB) ListEquipment(ctx context.Context) ([]*models.Equipment, error) {
	query := `SELECT id, name, description, sort_order, is_active, created_at, updated_at
              FROM equipment ORDER BY sort_order, name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	defer rows.Close()

	var equipment []*models.Equipment
	for rows.Next() {
		var eq models.Equipment
		if err := rows.Scan(&eq.ID, &eq.Name, &eq.Description, &eq.SortOrder, &eq.IsActive, &eq.CreatedAt, &eq.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		equipment = append(equipment, &eq)
	}
	return equipment, rows.Err()
}

// DeleteEquipment removes the record and every reservation scoped to it,
// matching the directory's cascade behavior.
func (db *DB) DeleteEquipment(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete equipment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrResourceNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE resource_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete equipment reservations: %w", err)
	}

	return tx.Commit()
}

// SeedEquipment inserts config-declared equipment that is not in the
// directory yet. Existing records are left untouched.
func (db *DB) SeedEquipment(ctx context.Context, equipment []*models.Equipment) error {
	for _, eq := range equipment {
		err := db.CreateEquipment(ctx, eq)
		if errors.Is(err, domain.ErrDuplicateResource) {
			continue
		}
		if err != nil {
			return err
		}
		db.logger.Info().Str("equipment_id", eq.ID).Str("name", eq.Name).Msg("equipment seeded")
	}
	return nil
}
