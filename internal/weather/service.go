package weather

import (
	"context"
	"fmt"
	"log/slog"
)

// Source is the external weather adapter. Fetch returns nil when no live
// observation is available.
type Source interface {
	Fetch(ctx context.Context, city string) *Observation
}

// Repository is the persistence the service needs. Lookups of missing rows
// fail with an error matching ErrNotFound.
type Repository interface {
	Create(ctx context.Context, obs Observation) (*Record, error)
	GetLatest(ctx context.Context, city string) (*Record, error)
	ListByCity(ctx context.Context, city string, limit int) ([]*Record, error)
	Update(ctx context.Context, id int64, patch Patch) (*Record, error)
	Delete(ctx context.Context, id int64) error
}

// Service coordinates the live source and the stored history.
type Service struct {
	source Source
	repo   Repository
	log    *slog.Logger
}

// NewService constructs a Service.
func NewService(source Source, repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{source: source, repo: repo, log: log}
}

// FetchOrRefresh prefers live data: a successful fetch is stored as a new row
// and returned. When the source has nothing, the latest stored row is
// returned instead, or an ErrNotFound error if there is none.
func (s *Service) FetchOrRefresh(ctx context.Context, city string) (*Record, error) {
	if obs := s.source.Fetch(ctx, city); obs != nil {
		rec, err := s.repo.Create(ctx, *obs)
		if err != nil {
			return nil, fmt.Errorf("storing live observation for %s: %w", city, err)
		}
		s.log.Info("recorded weather", "city", rec.City, "id", rec.ID)
		return rec, nil
	}

	s.log.Debug("live fetch unavailable, using stored data", "city", city)
	return s.repo.GetLatest(ctx, city)
}

// CreateManual stores a caller-supplied observation.
func (s *Service) CreateManual(ctx context.Context, obs Observation) (*Record, error) {
	rec, err := s.repo.Create(ctx, obs)
	if err != nil {
		return nil, err
	}
	s.log.Info("recorded weather", "city", rec.City, "id", rec.ID)
	return rec, nil
}

// GetLatest returns the newest stored record for city.
func (s *Service) GetLatest(ctx context.Context, city string) (*Record, error) {
	return s.repo.GetLatest(ctx, city)
}

// History returns up to limit stored records for city, newest first.
func (s *Service) History(ctx context.Context, city string, limit int) ([]*Record, error) {
	return s.repo.ListByCity(ctx, city, limit)
}

// UpdateRecord applies patch to the record with the given id.
func (s *Service) UpdateRecord(ctx context.Context, id int64, patch Patch) (*Record, error) {
	return s.repo.Update(ctx, id, patch)
}

// DeleteRecord removes the record with the given id.
func (s *Service) DeleteRecord(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
