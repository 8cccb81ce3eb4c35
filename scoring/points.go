package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/mww/global_leaderboard/model"
)

const (
	DefaultMaxRewardRank = 500
	DefaultDecayConstant = 365.0
)

type Parameters struct {
	// Events ranked at or beyond this rank score nothing.
	MaxRewardRank int
	// Days for the decay factor to fall to 1/e.
	DecayConstant float64
}

func DefaultParameters() Parameters {
	return Parameters{
		MaxRewardRank: DefaultMaxRewardRank,
		DecayConstant: DefaultDecayConstant,
	}
}

type Scorer struct {
	params  Parameters
	weights *WeightCache
}

func NewScorer(params Parameters, weights *WeightCache) *Scorer {
	if weights == nil {
		weights = NewWeightCache()
	}
	return &Scorer{params: params, weights: weights}
}

// RawPoints scores an event independently of any snapshot date.
func (s *Scorer) RawPoints(e *model.Event) (float64, error) {
	if e.Rank >= float64(s.params.MaxRewardRank) {
		return 0, nil
	}

	idx := int(e.Rank) - 1
	if idx < 0 || idx >= e.LeaderboardSize {
		return 0, fmt.Errorf("rank %v of user %d is outside leaderboard of size %d (competition %d, crunch %d, target %d)",
			e.Rank, e.UserID, e.LeaderboardSize, e.CompetitionID, e.Crunch.ID, e.Target.ID)
	}

	weight := s.weights.Weights(e.LeaderboardSize)[idx]
	return float64(e.PrizePoolUSD) * weight * e.Target.Weight * e.Phase.PerCrunchWeight, nil
}

func (s *Scorer) Score(e model.Event) (model.ScoredEvent, error) {
	raw, err := s.RawPoints(&e)
	if err != nil {
		return model.ScoredEvent{}, err
	}
	return model.ScoredEvent{Event: e, RawPoints: raw}, nil
}

// DecayedPoints returns the points of the event as of today. Events starting
// after today must be filtered out by the caller.
func (s *Scorer) DecayedPoints(e *model.ScoredEvent, today time.Time) int64 {
	days := model.DaysBetween(e.Start, today)
	factor := math.Exp(-float64(days) / s.params.DecayConstant)
	return int64(math.Ceil(e.RawPoints * factor))
}
