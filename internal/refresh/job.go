// Package refresh re-fetches and stores observations for the tracked cities
// on a fixed interval.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/neexbeast/weather-service/internal/lock"
	"github.com/neexbeast/weather-service/internal/weather"
)

const leaseName = "refresh"

// Store is the persistence the job writes to.
type Store interface {
	Create(ctx context.Context, obs weather.Observation) (*weather.Record, error)
}

// Locker guards a run against overlapping runs on other replicas.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (*lock.Lease, error)
}

// Result summarises one run.
type Result struct {
	Stored  int
	Skipped int
	Failed  int
	// Locked is true when another replica held the lease and the run did nothing.
	Locked bool
}

// Job fetches each tracked city in turn and inserts a new row per success.
type Job struct {
	source   weather.Source
	store    Store
	locker   Locker
	cities   []string
	leaseTTL time.Duration
	log      *slog.Logger
}

// NewJob constructs a Job. locker may be nil, in which case runs are not
// coordinated across replicas. leaseTTL bounds how long a crashed run keeps
// others out.
func NewJob(source weather.Source, store Store, locker Locker, cities []string, leaseTTL time.Duration, log *slog.Logger) *Job {
	if log == nil {
		log = slog.Default()
	}
	return &Job{
		source:   source,
		store:    store,
		locker:   locker,
		cities:   cities,
		leaseTTL: leaseTTL,
		log:      log,
	}
}

// Run performs one refresh pass. Cities are handled sequentially; a city with
// no live data or a failed insert is logged and skipped.
func (j *Job) Run(ctx context.Context) Result {
	var res Result

	if j.locker != nil {
		lease, err := j.locker.Acquire(ctx, leaseName, j.leaseTTL)
		switch {
		case errors.Is(err, lock.ErrHeld):
			j.log.Info("weather update already running elsewhere, skipping")
			res.Locked = true
			return res
		case err != nil:
			// Redis trouble should not stop the refresh itself.
			j.log.Warn("refresh lease unavailable, running uncoordinated", "err", err)
		default:
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					j.log.Warn("releasing refresh lease failed", "err", err)
				}
			}()
		}
	}

	j.log.Info("starting scheduled weather update", "cities", len(j.cities))
	start := time.Now()

	for _, city := range j.cities {
		if ctx.Err() != nil {
			j.log.Warn("weather update interrupted", "err", ctx.Err())
			break
		}

		obs := j.source.Fetch(ctx, city)
		if obs == nil {
			j.log.Warn("skipping update", "city", city)
			res.Skipped++
			continue
		}

		rec, err := j.store.Create(ctx, *obs)
		if err != nil {
			j.log.Error("storing weather update failed", "city", city, "err", err)
			res.Failed++
			continue
		}
		j.log.Debug("recorded weather", "city", rec.City, "id", rec.ID)
		res.Stored++
	}

	j.log.Info("weather update completed",
		"stored", res.Stored,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}
