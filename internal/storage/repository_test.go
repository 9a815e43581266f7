package storage_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/weather-service/internal/storage"
	"github.com/neexbeast/weather-service/internal/weather"
)

// ---- mock Querier ----

type mockQuerier struct {
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.queryRowFn(ctx, sql, args...)
}
func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return m.queryFn(ctx, sql, args...)
}
func (m *mockQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.execFn(ctx, sql, args...)
}

// ---- mock pgx.Row ----

type fakeRow struct {
	scanFn func(dest ...any) error
}

func (f *fakeRow) Scan(dest ...any) error { return f.scanFn(dest...) }

// recordRow returns a row that scans the given record's columns.
func recordRow(rec weather.Record) *fakeRow {
	return &fakeRow{scanFn: func(dest ...any) error {
		return assign(dest, recordValues(rec))
	}}
}

func recordValues(rec weather.Record) []any {
	return []any{rec.ID, rec.City, rec.Country, rec.Temperature, rec.Humidity, rec.Pressure, rec.FetchedAt}
}

func assign(dest []any, row []any) error {
	for i, d := range dest {
		if i >= len(row) {
			break
		}
		switch v := d.(type) {
		case *int64:
			*v = row[i].(int64)
		case *int:
			*v = row[i].(int)
		case *float64:
			*v = row[i].(float64)
		case *string:
			*v = row[i].(string)
		case *bool:
			*v = row[i].(bool)
		case *time.Time:
			*v = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

// ---- mock pgx.Rows ----

type fakeRows struct {
	rows    [][]any
	idx     int
	rowErr  error
	scanErr error
}

func (f *fakeRows) Next() bool                                   { f.idx++; return f.idx <= len(f.rows) }
func (f *fakeRows) Err() error                                   { return f.rowErr }
func (f *fakeRows) Close()                                       {}
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (f *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (f *fakeRows) RawValues() [][]byte                          { return nil }
func (f *fakeRows) Conn() *pgx.Conn                              { return nil }

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	return assign(dest, f.rows[f.idx-1])
}

// ---- helpers ----

func sampleRecord(id int64, city string, temp float64) weather.Record {
	return weather.Record{
		ID: id,
		Observation: weather.Observation{
			City:        city,
			Country:     "GB",
			Temperature: temp,
			Humidity:    50,
			Pressure:    1000,
		},
		FetchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// ---- Create ----

func TestCreate_Success(t *testing.T) {
	var capturedArgs []any
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, sql string, args ...any) pgx.Row {
			capturedArgs = args
			assert.Contains(t, sql, "INSERT INTO weather_data")
			return recordRow(sampleRecord(7, "London", 15.5))
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	rec, err := repo.Create(context.Background(), weather.Observation{
		City: "London", Country: "GB", Temperature: 15.5, Humidity: 50, Pressure: 1000,
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, "London", rec.City)
	assert.False(t, rec.FetchedAt.IsZero())
	assert.Equal(t, []any{"London", "GB", 15.5, 50, 1000}, capturedArgs)
}

func TestCreate_DBError(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFn: func(_ ...any) error { return fmt.Errorf("connection reset") }}
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.Create(context.Background(), weather.Observation{City: "London"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inserting weather record")
	assert.False(t, errors.Is(err, weather.ErrNotFound))
}

// ---- GetLatest ----

func TestGetLatest_Found(t *testing.T) {
	var query string
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, sql string, args ...any) pgx.Row {
			query = sql
			assert.Equal(t, []any{"TimeCity"}, args)
			return recordRow(sampleRecord(2, "TimeCity", 20.0))
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	rec, err := repo.GetLatest(context.Background(), "TimeCity")
	require.NoError(t, err)
	assert.Equal(t, 20.0, rec.Temperature)
	assert.Contains(t, query, "ORDER BY fetched_at DESC, id DESC")
	assert.Contains(t, query, "LIMIT 1")
}

func TestGetLatest_NotFound(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFn: func(_ ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	rec, err := repo.GetLatest(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, weather.ErrNotFound)
	assert.Equal(t, "Weather data for city 'Atlantis' not found.", err.Error())
}

func TestGetLatest_DBError(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFn: func(_ ...any) error { return fmt.Errorf("connection reset") }}
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.GetLatest(context.Background(), "London")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying latest weather")
	assert.NotErrorIs(t, err, weather.ErrNotFound)
}

// ---- ListByCity ----

func TestListByCity_Found(t *testing.T) {
	newer := sampleRecord(2, "London", 20.0)
	older := sampleRecord(1, "London", 10.0)
	rows := &fakeRows{rows: [][]any{recordValues(newer), recordValues(older)}}

	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			assert.Equal(t, []any{"London", 5}, args)
			return rows, nil
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	results, err := repo.ListByCity(context.Background(), "London", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].ID)
	assert.Equal(t, 10.0, results[1].Temperature)
}

func TestListByCity_Empty(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return &fakeRows{}, nil
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	results, err := repo.ListByCity(context.Background(), "Nowhere", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestListByCity_QueryError(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return nil, fmt.Errorf("query failed")
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.ListByCity(context.Background(), "London", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying weather history")
}

func TestListByCity_ScanError(t *testing.T) {
	rows := &fakeRows{
		rows:    [][]any{recordValues(sampleRecord(1, "London", 10.0))},
		scanErr: fmt.Errorf("scan failed"),
	}
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return rows, nil },
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.ListByCity(context.Background(), "London", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning")
}

func TestListByCity_RowsErr(t *testing.T) {
	rows := &fakeRows{rowErr: fmt.Errorf("rows iteration error")}
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return rows, nil },
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.ListByCity(context.Background(), "London", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iterating")
}

// ---- Update ----

func TestUpdate_PassesOnlyPresentFields(t *testing.T) {
	var capturedArgs []any
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, sql string, args ...any) pgx.Row {
			capturedArgs = args
			assert.Contains(t, sql, "COALESCE($2, temperature)")
			updated := sampleRecord(3, "UpdateCity", 25.5)
			return recordRow(updated)
		},
	}

	temp := 25.5
	repo := storage.NewRepositoryWithQuerier(q)
	rec, err := repo.Update(context.Background(), 3, weather.Patch{Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, 25.5, rec.Temperature)
	assert.Equal(t, 50, rec.Humidity)
	assert.Equal(t, 1000, rec.Pressure)

	require.Len(t, capturedArgs, 4)
	assert.Equal(t, int64(3), capturedArgs[0])
	assert.Equal(t, &temp, capturedArgs[1])
	assert.Nil(t, capturedArgs[2].(*int))
	assert.Nil(t, capturedArgs[3].(*int))
}

func TestUpdate_NotFound(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFn: func(_ ...any) error { return pgx.ErrNoRows }}
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.Update(context.Background(), 99, weather.Patch{})
	require.Error(t, err)
	assert.ErrorIs(t, err, weather.ErrNotFound)
	assert.Equal(t, "Weather record with ID 99 not found.", err.Error())
}

func TestUpdate_DBError(t *testing.T) {
	q := &mockQuerier{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFn: func(_ ...any) error { return fmt.Errorf("check constraint violated") }}
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	_, err := repo.Update(context.Background(), 1, weather.Patch{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "updating weather record 1")
}

// ---- Delete ----

func TestDelete_Success(t *testing.T) {
	q := &mockQuerier{
		execFn: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
			assert.Equal(t, []any{int64(4)}, args)
			return pgconn.NewCommandTag("DELETE 1"), nil
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	require.NoError(t, repo.Delete(context.Background(), 4))
}

func TestDelete_NotFound(t *testing.T) {
	q := &mockQuerier{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	err := repo.Delete(context.Background(), 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, weather.ErrNotFound)
}

func TestDelete_DBError(t *testing.T) {
	q := &mockQuerier{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, fmt.Errorf("db error")
		},
	}

	repo := storage.NewRepositoryWithQuerier(q)
	err := repo.Delete(context.Background(), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deleting weather record")
}

// ---- NewRepository ----

func TestNewRepository_NotNil(t *testing.T) {
	repo := storage.NewRepository(nil)
	assert.NotNil(t, repo)
}

// ---- Connect ----

func TestConnect_BadURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := storage.Connect(ctx, "postgres://invalid-host-xyz:5432/db?sslmode=disable")
	require.Error(t, err)
}
