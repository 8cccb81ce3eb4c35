package controller

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/mww/global_leaderboard/lock"
	"github.com/mww/global_leaderboard/model"
	"github.com/mww/global_leaderboard/scoring"
)

func (c *controller) ComputeLeaderboards(ctx context.Context, dates []time.Time) (*RunSummary, error) {
	start := c.clock.Now()

	dates = normalizeDates(dates)
	if len(dates) == 0 {
		return nil, errors.New("no dates to compute")
	}

	lease, err := c.locker.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("error acquiring run lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			log.Printf("error releasing run lock: %v", err)
		}
	}()

	// Everything the run does is cancelled once the lease is lost.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-lease.Done():
			cancel(lock.ErrLeaseLost)
		case <-ctx.Done():
		}
	}()

	log.Printf("computing leaderboards from %s to %s (%d dates)",
		dates[0].Format(time.DateOnly), dates[len(dates)-1].Format(time.DateOnly), len(dates))

	if err := c.db.Load(ctx); err != nil {
		return nil, fmt.Errorf("error loading data: %w", err)
	}

	users, err := c.db.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	competitions, err := c.db.ListCompetitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing competitions: %w", err)
	}

	events, err := c.computeEvents(ctx, users, competitions)
	if err != nil {
		return nil, err
	}

	participations, err := c.computeParticipations(ctx, dates, users)
	if err != nil {
		return nil, err
	}

	institutions, created, err := c.resolveInstitutions(ctx, users, events)
	if err != nil {
		return nil, err
	}
	log.Printf("created %d institutions", created)

	summary := &RunSummary{
		Dates:                   dates,
		UserCount:               len(users),
		CreatedInstitutionCount: created,
		Leaderboards:            make([]model.GlobalLeaderboard, 0, len(dates)),
	}
	for _, e := range events {
		summary.EventCount += len(e)
	}

	// Each date reads the best ranks written for the previous one, so dates
	// must be written one after the other.
	for i, today := range dates {
		if err := holding(ctx, lease); err != nil {
			return nil, fmt.Errorf("error computing leaderboard for %s: %w", today.Format(time.DateOnly), err)
		}

		s, err := c.buildSnapshot(ctx, today, users, events, institutions, func(userID int64) int {
			return participations.on(userID, i)
		})
		if err != nil {
			return nil, fmt.Errorf("error computing leaderboard for %s: %w", today.Format(time.DateOnly), err)
		}

		if err := c.db.ReplaceGlobalLeaderboard(ctx, s); err != nil {
			return nil, fmt.Errorf("error saving leaderboard for %s: %w", today.Format(time.DateOnly), err)
		}

		log.Printf("computed leaderboard for %s: %d users, %d institutions",
			s.Leaderboard.FormattedDate(), s.Leaderboard.UserCount, s.Leaderboard.InstitutionCount)
		summary.Leaderboards = append(summary.Leaderboards, s.Leaderboard)
	}

	summary.Duration = c.clock.Now().Sub(start)
	log.Printf("computed %d leaderboards in %v", len(dates), summary.Duration)
	return summary, nil
}

// holding returns lock.ErrLeaseLost once the lease is lost, or the cause of the
// run's cancellation.
func holding(ctx context.Context, lease lock.Lease) error {
	select {
	case <-lease.Done():
		return lock.ErrLeaseLost
	default:
	}
	return context.Cause(ctx)
}

// normalizeDates truncates to days, sorts ascending and drops duplicates.
func normalizeDates(dates []time.Time) []time.Time {
	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = model.Day(d)
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(days, func(a, b time.Time) bool { return a.Equal(b) })
}

type participationKey struct {
	institutionID int64
	competitionID int64
}

type participationData struct {
	totalPoints float64
	memberCount int
	bestUserID  *int64
	bestRank    *int
}

// buildSnapshot computes the leaderboard of one date. It reads the previous
// leaderboard's best ranks but writes nothing.
func (c *controller) buildSnapshot(ctx context.Context, today time.Time, users []model.User, events map[int64][]model.ScoredEvent,
	institutions map[int64]*model.Institution, participationCount func(userID int64) int) (*model.GlobalLeaderboardSnapshot, error) {
	today = model.Day(today)

	points := make(map[int64]int64)
	participations := make(map[participationKey]*participationData)

	for _, u := range users {
		institution := institutions[u.ID]

		for _, e := range events[u.ID] {
			if e.Start.After(today) {
				continue
			}

			points[u.ID] += c.scorer.DecayedPoints(&e, today)

			if institution == nil {
				continue
			}

			key := participationKey{institutionID: institution.ID, competitionID: e.CompetitionID}
			data, found := participations[key]
			if !found {
				data = &participationData{}
				participations[key] = data
			}
			data.totalPoints += e.RawPoints
			data.memberCount++

			if e.Rank != 0 && (data.bestRank == nil || float64(*data.bestRank) > e.Rank) {
				rank := int(math.Floor(e.Rank))
				data.bestUserID = ptr(u.ID)
				data.bestRank = &rank
			}
		}
	}

	bestRanks, err := c.db.GetBestRankPerUserBefore(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("error getting previous best ranks: %w", err)
	}
	submissions, err := c.db.CountSubmissionsUpTo(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("error counting submissions: %w", err)
	}

	items := make([]scoring.Item[int64], 0, len(points))
	for id, p := range points {
		items = append(items, scoring.Item[int64]{ID: id, Points: p})
	}
	ranked := scoring.RankByPoints(items)

	userPositions := make([]model.GlobalUserPosition, len(ranked))
	for i, r := range ranked {
		best := r.Rank
		if previous, found := bestRanks[r.ID]; found && previous < best {
			best = previous
		}

		var institutionID *int64
		if institution := institutions[r.ID]; institution != nil {
			institutionID = ptr(institution.ID)
		}

		userPositions[i] = model.GlobalUserPosition{
			UserID:             r.ID,
			InstitutionID:      institutionID,
			Rank:               r.Rank,
			Points:             r.Points,
			BestRank:           best,
			ParticipationCount: participationCount(r.ID),
			SubmissionCount:    submissions[r.ID],
		}
	}

	// Members keep the user rank order within their institution.
	members := make(map[int64][]*model.GlobalUserPosition)
	for i := range userPositions {
		if id := userPositions[i].InstitutionID; id != nil {
			members[*id] = append(members[*id], &userPositions[i])
		}
	}

	institutionItems := make([]scoring.Item[int64], 0, len(members))
	for id, positions := range members {
		var total int64
		for k, p := range positions {
			p.InstitutionMemberRank = ptr(k + 1)
			total += p.Points
		}
		scoring.ApplyTies(positions,
			func(p **model.GlobalUserPosition) int64 { return (*p).Points },
			func(p **model.GlobalUserPosition) int { return *(*p).InstitutionMemberRank },
			func(p **model.GlobalUserPosition, rank int) { (*p).InstitutionMemberRank = &rank })

		institutionItems = append(institutionItems, scoring.Item[int64]{ID: id, Points: total})
	}

	institutionRanks := scoring.RankByPoints(institutionItems)
	institutionPositions := make([]model.GlobalInstitutionPosition, len(institutionRanks))
	for i, r := range institutionRanks {
		positions := members[r.ID]
		p := model.GlobalInstitutionPosition{
			InstitutionID:        r.ID,
			Rank:                 r.Rank,
			TotalPoints:          r.Points,
			UserCount:            len(positions),
			AveragePointsPerUser: r.Points / int64(len(positions)),
		}
		top := []**int64{&p.TopUser1ID, &p.TopUser2ID, &p.TopUser3ID}
		for k := 0; k < len(top) && k < len(positions); k++ {
			*top[k] = ptr(positions[k].UserID)
		}
		institutionPositions[i] = p
	}

	keys := make([]participationKey, 0, len(participations))
	for k := range participations {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b participationKey) int {
		if n := cmp.Compare(a.institutionID, b.institutionID); n != 0 {
			return n
		}
		return cmp.Compare(a.competitionID, b.competitionID)
	})

	participationRows := make([]model.InstitutionParticipation, len(keys))
	for i, k := range keys {
		data := participations[k]
		participationRows[i] = model.InstitutionParticipation{
			InstitutionID:           k.institutionID,
			CompetitionID:           k.competitionID,
			BestUserID:              data.bestUserID,
			BestUserLeaderboardRank: data.bestRank,
			MemberCount:             data.memberCount,
			TotalPoints:             int64(math.Ceil(data.totalPoints)),
			CreatedAt:               today,
		}
	}

	return &model.GlobalLeaderboardSnapshot{
		Leaderboard: model.GlobalLeaderboard{
			Date:             today,
			UserCount:        len(points),
			InstitutionCount: len(members),
			Published:        false,
			CreatedAt:        today,
			UpdatedAt:        today,
		},
		Users:          userPositions,
		Institutions:   institutionPositions,
		Participations: participationRows,
	}, nil
}

func (c *controller) RunPeriodicLeaderboardUpdates(frequency time.Duration, shutdown chan bool, wg *sync.WaitGroup) {
	ticker := time.NewTicker(frequency)
	defer ticker.Stop()
	defer wg.Done()

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			c.updateToday(frequency)
		}
	}
}

func (c *controller) updateToday(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	today := model.Day(c.clock.Now())
	_, err := c.ComputeLeaderboards(ctx, []time.Time{today})
	if errors.Is(err, lock.ErrLocked) {
		log.Printf("skipping leaderboard update for %s, another computation is running", today.Format(time.DateOnly))
	} else if err != nil {
		log.Printf("%v", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
