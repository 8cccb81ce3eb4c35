package mockcontroller

import (
	"context"
	"sync"
	"time"

	"github.com/mww/global_leaderboard/controller"
	"github.com/mww/global_leaderboard/model"
	"github.com/stretchr/testify/mock"
)

type C struct {
	mock.Mock
}

func (c *C) ComputeLeaderboards(ctx context.Context, dates []time.Time) (*controller.RunSummary, error) {
	args := c.Called(ctx, dates)

	var s *controller.RunSummary
	if args.Get(0) != nil {
		s = args.Get(0).(*controller.RunSummary)
	}

	return s, args.Error(1)
}

func (c *C) GetGlobalLeaderboard(ctx context.Context, date time.Time) (*model.GlobalLeaderboardSnapshot, error) {
	args := c.Called(ctx, date)

	var s *model.GlobalLeaderboardSnapshot
	if args.Get(0) != nil {
		s = args.Get(0).(*model.GlobalLeaderboardSnapshot)
	}

	return s, args.Error(1)
}

func (c *C) ListGlobalLeaderboards(ctx context.Context) ([]model.GlobalLeaderboard, error) {
	args := c.Called(ctx)

	var res []model.GlobalLeaderboard
	if args.Get(0) != nil {
		res = args.Get(0).([]model.GlobalLeaderboard)
	}

	return res, args.Error(1)
}

func (c *C) RunPeriodicLeaderboardUpdates(frequency time.Duration, shutdown chan bool, wg *sync.WaitGroup) {
	c.Called(frequency, shutdown, wg)
}
