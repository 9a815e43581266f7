package api

import (
	"context"

	"github.com/neexbeast/weather-service/internal/weather"
)

// WeatherService defines the weather operations needed by handlers.
type WeatherService interface {
	FetchOrRefresh(ctx context.Context, city string) (*weather.Record, error)
	CreateManual(ctx context.Context, obs weather.Observation) (*weather.Record, error)
	History(ctx context.Context, city string, limit int) ([]*weather.Record, error)
	UpdateRecord(ctx context.Context, id int64, patch weather.Patch) (*weather.Record, error)
	DeleteRecord(ctx context.Context, id int64) error
}

// Pinger is a dependency the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}
