package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/weather-service/internal/weather"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access for weather records.
// Every method is a single statement and commits on return.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

const recordColumns = `id, city, country, temperature, humidity, pressure, fetched_at`

func scanRecord(row pgx.Row) (*weather.Record, error) {
	var rec weather.Record
	err := row.Scan(
		&rec.ID,
		&rec.City,
		&rec.Country,
		&rec.Temperature,
		&rec.Humidity,
		&rec.Pressure,
		&rec.FetchedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts obs and returns the stored row with its id and timestamp.
func (r *Repository) Create(ctx context.Context, obs weather.Observation) (*weather.Record, error) {
	const q = `
		INSERT INTO weather_data (city, country, temperature, humidity, pressure)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.q.QueryRow(ctx, q, obs.City, obs.Country, obs.Temperature, obs.Humidity, obs.Pressure))
	if err != nil {
		return nil, fmt.Errorf("inserting weather record for city %s: %w", obs.City, err)
	}
	return rec, nil
}

// GetLatest returns the most recent record for the exact city name.
// Ties on fetched_at go to the higher id.
func (r *Repository) GetLatest(ctx context.Context, city string) (*weather.Record, error) {
	const q = `
		SELECT ` + recordColumns + `
		FROM weather_data
		WHERE city = $1
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`

	rec, err := scanRecord(r.q.QueryRow(ctx, q, city))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, weather.CityNotFound(city)
		}
		return nil, fmt.Errorf("querying latest weather for city %s: %w", city, err)
	}
	return rec, nil
}

// ListByCity returns up to limit records for city, newest first.
func (r *Repository) ListByCity(ctx context.Context, city string, limit int) ([]*weather.Record, error) {
	const q = `
		SELECT ` + recordColumns + `
		FROM weather_data
		WHERE city = $1
		ORDER BY fetched_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, q, city, limit)
	if err != nil {
		return nil, fmt.Errorf("querying weather history for city %s: %w", city, err)
	}
	defer rows.Close()

	results := make([]*weather.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning weather row: %w", err)
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating weather rows: %w", err)
	}

	return results, nil
}

// Update applies the non-nil fields of patch to record id.
// NULL parameters fall back to the current column value.
func (r *Repository) Update(ctx context.Context, id int64, patch weather.Patch) (*weather.Record, error) {
	const q = `
		UPDATE weather_data
		SET temperature = COALESCE($2, temperature),
		    humidity    = COALESCE($3, humidity),
		    pressure    = COALESCE($4, pressure)
		WHERE id = $1
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.q.QueryRow(ctx, q, id, patch.Temperature, patch.Humidity, patch.Pressure))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, weather.RecordNotFound(id)
		}
		return nil, fmt.Errorf("updating weather record %d: %w", id, err)
	}
	return rec, nil
}

// Delete removes record id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM weather_data WHERE id = $1`

	tag, err := r.q.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting weather record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return weather.RecordNotFound(id)
	}
	return nil
}
