package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rentwheels/carshare-backend/internal/models"
)

const carSelect = `
	SELECT c.id, c.host_id, h.user_id AS host_user_id, c.make, c.model, c.year,
		c.price_per_hour, c.is_available, c.is_blocked
	FROM cars c
	JOIN hosts h ON h.id = c.host_id
	WHERE c.id = $1`

// CarRepository handles car lookups
type CarRepository struct {
	db *sqlx.DB
}

// NewCarRepository creates a new car repository
func NewCarRepository(db *sqlx.DB) *CarRepository {
	return &CarRepository{db: db}
}

// GetByID retrieves a car with its host's account ID
func (r *CarRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Car, error) {
	return r.get(ctx, carSelect, id)
}

// GetForUpdate locks the car row. Concurrent bookings of the same car
// serialize on this lock before the overlap check.
func (r *CarRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Car, error) {
	return r.get(ctx, carSelect+` FOR UPDATE OF c`, id)
}

func (r *CarRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.Car, error) {
	var car models.Car
	err := conn(ctx, r.db).GetContext(ctx, &car, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCarNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get car: %w", err)
	}
	return &car, nil
}
