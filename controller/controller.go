package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/mww/global_leaderboard/db"
	"github.com/mww/global_leaderboard/enrich"
	"github.com/mww/global_leaderboard/lock"
	"github.com/mww/global_leaderboard/model"
	"github.com/mww/global_leaderboard/scoring"
)

const defaultWorkers = 16

// C encapsulates business logic without worrying about any web layers
type C interface {
	// Computes and stores one global leaderboard per date. Dates are processed
	// in ascending order whatever order they are given in. Returns lock.ErrLocked
	// if another computation is running.
	ComputeLeaderboards(ctx context.Context, dates []time.Time) (*RunSummary, error)
	GetGlobalLeaderboard(ctx context.Context, date time.Time) (*model.GlobalLeaderboardSnapshot, error)
	ListGlobalLeaderboards(ctx context.Context) ([]model.GlobalLeaderboard, error)
	// Recomputes the leaderboard of the current day on every tick.
	RunPeriodicLeaderboardUpdates(frequency time.Duration, shutdown chan bool, wg *sync.WaitGroup)
}

type RunSummary struct {
	Dates                   []time.Time
	UserCount               int
	EventCount              int
	CreatedInstitutionCount int
	Leaderboards            []model.GlobalLeaderboard
	Duration                time.Duration
}

type controller struct {
	clock   clock.Clock
	db      db.DB
	enrich  enrich.Client
	locker  lock.Locker
	scorer  *scoring.Scorer
	workers int
}

func New(clock clock.Clock, db db.DB, enrich enrich.Client, locker lock.Locker, scorer *scoring.Scorer) (C, error) {
	if db == nil {
		return nil, fmt.Errorf("a db is required")
	}
	if enrich == nil {
		return nil, fmt.Errorf("an enrich client is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("a locker is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("a scorer is required")
	}

	c := &controller{
		clock:   clock,
		db:      db,
		enrich:  enrich,
		locker:  locker,
		scorer:  scorer,
		workers: defaultWorkers,
	}
	return c, nil
}

func (c *controller) GetGlobalLeaderboard(ctx context.Context, date time.Time) (*model.GlobalLeaderboardSnapshot, error) {
	return c.db.GetGlobalLeaderboard(ctx, date)
}

func (c *controller) ListGlobalLeaderboards(ctx context.Context) ([]model.GlobalLeaderboard, error) {
	return c.db.ListGlobalLeaderboards(ctx)
}
