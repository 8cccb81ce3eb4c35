package controller

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mww/global_leaderboard/model"
	"golang.org/x/sync/errgroup"
)

// participationCounts holds, per user, the number of competition entries active
// on each date. The counts are aligned with the dates they were computed for.
type participationCounts map[int64][]int

func (p participationCounts) on(userID int64, dateIndex int) int {
	counts, found := p[userID]
	if !found {
		return 0
	}
	return counts[dateIndex]
}

func (c *controller) computeParticipations(ctx context.Context, dates []time.Time, users []model.User) (participationCounts, error) {
	start := c.clock.Now()
	results := make([][]int, len(users))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := range users {
		g.Go(func() error {
			participants, err := c.db.ListParticipants(ctx, users[i].ID)
			if err != nil {
				return fmt.Errorf("error getting participants of user %d: %w", users[i].ID, err)
			}

			counts := make([]int, len(dates))
			for d, today := range dates {
				for _, p := range participants {
					if p.ActiveOn(today) {
						counts[d]++
					}
				}
			}
			results[i] = counts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(participationCounts, len(users))
	for i, u := range users {
		counts[u.ID] = results[i]
	}

	log.Printf("counted participations of %d users over %d dates in %v", len(users), len(dates), c.clock.Now().Sub(start))
	return counts, nil
}
