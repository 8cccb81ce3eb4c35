package model

import (
	"time"
)

const SyntheticID int64 = -1

// Per crunch weights of the synthesized phases.
const (
	LegacyPhaseWeight   = 0.9 / 260
	RealTimePhaseWeight = 0.9 / 52
)

// Event is one scoring-relevant result of a user in a competition.
// It is never mutated once built; scoring results live in ScoredEvent.
type Event struct {
	UserID          int64
	CompetitionID   int64
	CompetitionName string
	PrizePoolUSD    int64
	Target          Target
	Phase           Phase
	Crunch          Crunch
	Start           time.Time // day of the event, UTC midnight
	Rank            float64
	LeaderboardSize int
}

type ScoredEvent struct {
	Event
	RawPoints float64
}

// SyntheticTarget stands in for the single implicit target of legacy and real-time competitions.
func SyntheticTarget(competitionID int64) Target {
	return Target{
		ID:            SyntheticID,
		CompetitionID: competitionID,
		Name:          "global",
		Weight:        1.0,
	}
}

func SyntheticPhase(perCrunchWeight float64) Phase {
	return Phase{
		ID:              SyntheticID,
		RoundID:         SyntheticID,
		Type:            PHASE_OUT_OF_SAMPLE,
		PerCrunchWeight: perCrunchWeight,
	}
}

func SyntheticCrunch(number int, end time.Time) Crunch {
	return Crunch{
		ID:      SyntheticID,
		PhaseID: SyntheticID,
		Number:  number,
		End:     Day(end),
	}
}
