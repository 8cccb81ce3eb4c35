package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mww/global_leaderboard/db"
	"github.com/mww/global_leaderboard/model"
	"golang.org/x/sync/errgroup"
)

// Each competition format keeps its history in a different shape. An eventSource
// turns that history into events of a single user. This is internal to the
// controller package.
type eventSource interface {
	events(ctx context.Context, u *model.User) ([]model.Event, error)
}

func (c *controller) getEventSource(comp *model.Competition) eventSource {
	switch f := comp.Format(); f {
	case model.FORMAT_LEGACY:
		return &legacySource{db: c.db, comp: comp}
	case model.FORMAT_REAL_TIME:
		return &realTimeSource{db: c.db, comp: comp}
	case model.FORMAT_OFFLINE:
		return &offlineSource{db: c.db, comp: comp}
	default:
		return &nilEventSource{err: fmt.Errorf("competition %s has unsupported format %v", comp.Name, f)}
	}
}

// nilEventSource exists so that we can always return a source and simplify the usage.
type nilEventSource struct {
	err error
}

func (s *nilEventSource) events(ctx context.Context, u *model.User) ([]model.Event, error) {
	return nil, s.err
}

func newEvent(u *model.User, comp *model.Competition, target model.Target, phase model.Phase, crunch model.Crunch,
	start time.Time, rank float64, size int) model.Event {
	return model.Event{
		UserID:          u.ID,
		CompetitionID:   comp.ID,
		CompetitionName: comp.Name,
		PrizePoolUSD:    comp.PrizePoolUSD,
		Target:          target,
		Phase:           phase,
		Crunch:          crunch,
		Start:           model.Day(start),
		Rank:            rank,
		LeaderboardSize: size,
	}
}

type legacySource struct {
	db   db.DB
	comp *model.Competition
}

func (s *legacySource) events(ctx context.Context, u *model.User) ([]model.Event, error) {
	entries, err := s.db.ListLegacyLeaderboardEntries(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting legacy entries of user %d: %w", u.ID, err)
	}

	target := model.SyntheticTarget(s.comp.ID)
	phase := model.SyntheticPhase(model.LegacyPhaseWeight)

	events := make([]model.Event, 0, len(entries))
	for _, e := range entries {
		crunch := model.SyntheticCrunch(e.CrunchNumber, e.CrunchDate)
		events = append(events, newEvent(u, s.comp, target, phase, crunch, e.CrunchDate, float64(e.Rank), e.CrunchSize))
	}
	return events, nil
}

type realTimeSource struct {
	db   db.DB
	comp *model.Competition
}

func (s *realTimeSource) events(ctx context.Context, u *model.User) ([]model.Event, error) {
	payouts, err := s.db.ListPaidCheckpointPayouts(ctx, s.comp.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting payouts of competition %d: %w", s.comp.ID, err)
	}

	target := model.SyntheticTarget(s.comp.ID)
	phase := model.SyntheticPhase(model.RealTimePhaseWeight)

	var events []model.Event
	for _, p := range payouts {
		r, err := s.db.GetPayoutRecipient(ctx, p.ID, u.ID)
		if errors.Is(err, db.ErrRecipientNotFound) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("error getting recipient of payout %d: %w", p.ID, err)
		}

		crunch := model.SyntheticCrunch(1, p.Date)
		events = append(events, newEvent(u, s.comp, target, phase, crunch, p.Date, float64(r.Rank), p.Size))
	}
	return events, nil
}

type offlineSource struct {
	db   db.DB
	comp *model.Competition
}

func (s *offlineSource) events(ctx context.Context, u *model.User) ([]model.Event, error) {
	def, err := s.db.GetDefaultLeaderboardDefinition(ctx, s.comp.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting default leaderboard definition of competition %d: %w", s.comp.ID, err)
	}
	targets, err := s.db.ListUsableTargets(ctx, s.comp.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting targets of competition %d: %w", s.comp.ID, err)
	}
	rounds, err := s.db.ListRounds(ctx, s.comp.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting rounds of competition %d: %w", s.comp.ID, err)
	}

	var events []model.Event
	for _, round := range rounds {
		phases, err := s.db.ListPhases(ctx, round.ID)
		if err != nil {
			return nil, fmt.Errorf("error getting phases of round %d: %w", round.ID, err)
		}

		for _, phase := range phases {
			crunches, err := s.db.ListCrunches(ctx, phase.ID)
			if err != nil {
				return nil, fmt.Errorf("error getting crunches of phase %d: %w", phase.ID, err)
			}
			// only the final crunch of an out of sample phase counts
			if phase.IsOutOfSample() && len(crunches) > 0 {
				crunches = crunches[len(crunches)-1:]
			}

			for _, crunch := range crunches {
				for _, target := range targets {
					rank, size, found, err := s.rank(ctx, u, &crunch, &target, def, phase.IsOutOfSample())
					if err != nil {
						return nil, err
					}
					if !found {
						continue
					}
					events = append(events, newEvent(u, s.comp, target, phase, crunch, crunch.End, rank, size))
				}
			}
		}
	}
	return events, nil
}

// rank resolves the reward rank of the user on the leaderboard of the crunch and target.
// A position held by a team takes the best rank of the team. Without a position, the
// user's team is used only when teamFallback is set.
func (s *offlineSource) rank(ctx context.Context, u *model.User, crunch *model.Crunch, target *model.Target,
	def *model.LeaderboardDefinition, teamFallback bool) (float64, int, bool, error) {
	l, err := s.db.GetLeaderboard(ctx, crunch.ID, target.ID, def.ID)
	if errors.Is(err, db.ErrLeaderboardNotFound) {
		return 0, 0, false, nil
	} else if err != nil {
		return 0, 0, false, fmt.Errorf("error getting leaderboard of crunch %d and target %d: %w", crunch.ID, target.ID, err)
	}

	p, err := s.db.GetUserPosition(ctx, l.ID, u.ID)
	if errors.Is(err, db.ErrPositionNotFound) {
		if !teamFallback {
			return 0, l.Size, false, nil
		}

		team, err := s.db.GetUserTeam(ctx, s.comp.ID, u.ID)
		if errors.Is(err, db.ErrTeamNotFound) {
			return 0, l.Size, false, nil
		} else if err != nil {
			return 0, 0, false, fmt.Errorf("error getting team of user %d: %w", u.ID, err)
		}
		return s.teamRank(ctx, l, team.ID)
	} else if err != nil {
		return 0, 0, false, fmt.Errorf("error getting position of user %d on leaderboard %d: %w", u.ID, l.ID, err)
	}

	if p.TeamID != nil {
		return s.teamRank(ctx, l, *p.TeamID)
	}
	if p.RewardRank == nil {
		return 0, l.Size, false, nil
	}
	return *p.RewardRank, l.Size, true, nil
}

func (s *offlineSource) teamRank(ctx context.Context, l *model.Leaderboard, teamID int64) (float64, int, bool, error) {
	r, err := s.db.GetTeamBestRank(ctx, l.ID, teamID)
	if errors.Is(err, db.ErrPositionNotFound) {
		return 0, l.Size, false, nil
	} else if err != nil {
		return 0, 0, false, fmt.Errorf("error getting best rank of team %d on leaderboard %d: %w", teamID, l.ID, err)
	}
	return r, l.Size, true, nil
}

// computeEvents determines and raw-scores the events of every user. Users are
// independent of each other, so they are spread over the workers.
func (c *controller) computeEvents(ctx context.Context, users []model.User, competitions []model.Competition) (map[int64][]model.ScoredEvent, error) {
	start := c.clock.Now()

	sources := make([]eventSource, len(competitions))
	for i := range competitions {
		sources[i] = c.getEventSource(&competitions[i])
	}

	results := make([][]model.ScoredEvent, len(users))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := range users {
		g.Go(func() error {
			u := &users[i]

			var scored []model.ScoredEvent
			for _, src := range sources {
				events, err := src.events(ctx, u)
				if err != nil {
					return err
				}
				for _, e := range events {
					se, err := c.scorer.Score(e)
					if err != nil {
						return err
					}
					scored = append(scored, se)
				}
			}
			results[i] = scored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("error computing events: %w", err)
	}

	byUser := make(map[int64][]model.ScoredEvent, len(users))
	count := 0
	for i, u := range users {
		byUser[u.ID] = results[i]
		count += len(results[i])
	}

	log.Printf("computed %d events of %d users in %v", count, len(users), c.clock.Now().Sub(start))
	return byUser, nil
}
