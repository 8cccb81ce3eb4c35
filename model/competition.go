package model

import (
	"strings"
	"time"
)

// The single competition whose history only exists as precomputed leaderboard entries.
const LegacyCompetitionName = "datacrunch-legacy"

type Mode string

const (
	MODE_UNKNOWN   Mode = "UNKNOWN"
	MODE_OFFLINE   Mode = "OFFLINE"
	MODE_REAL_TIME Mode = "REAL_TIME"
)

func ParseMode(mode string) Mode {
	switch strings.ToUpper(mode) {
	case "OFFLINE":
		return MODE_OFFLINE
	case "REAL_TIME":
		return MODE_REAL_TIME
	default:
		return MODE_UNKNOWN
	}
}

type PhaseType string

const (
	PHASE_UNKNOWN       PhaseType = "UNKNOWN"
	PHASE_SUBMISSION    PhaseType = "SUBMISSION"
	PHASE_OUT_OF_SAMPLE PhaseType = "OUT_OF_SAMPLE"
)

func ParsePhaseType(t string) PhaseType {
	switch strings.ToUpper(t) {
	case "SUBMISSION":
		return PHASE_SUBMISSION
	case "OUT_OF_SAMPLE":
		return PHASE_OUT_OF_SAMPLE
	default:
		return PHASE_UNKNOWN
	}
}

// Format is the shape in which a competition's scoring history is stored.
// The set is closed, every switch over it should handle all three.
type Format int

const (
	FORMAT_LEGACY Format = iota
	FORMAT_REAL_TIME
	FORMAT_OFFLINE
)

func (f Format) String() string {
	switch f {
	case FORMAT_LEGACY:
		return "legacy"
	case FORMAT_REAL_TIME:
		return "real-time"
	case FORMAT_OFFLINE:
		return "offline"
	default:
		return "unknown"
	}
}

const VISIBILITY_PUBLIC = "PUBLIC"

type Competition struct {
	ID           int64
	Name         string
	Mode         Mode
	Start        time.Time
	PrizePoolUSD int64
	Visibility   string
	External     bool
}

// IsListed reports whether the competition takes part in the global leaderboard.
func (c *Competition) IsListed() bool {
	return c.Visibility == VISIBILITY_PUBLIC && !c.External
}

// Format decides which event source applies. The legacy competition is identified
// by its name, whatever its mode says.
func (c *Competition) Format() Format {
	if c.Name == LegacyCompetitionName {
		return FORMAT_LEGACY
	}
	if c.Mode == MODE_REAL_TIME {
		return FORMAT_REAL_TIME
	}
	return FORMAT_OFFLINE
}

type LeaderboardDefinition struct {
	ID            int64
	CompetitionID int64
	Default       bool
}

type Target struct {
	ID            int64
	CompetitionID int64
	Name          string
	Weight        float64
	Virtual       bool
}

type Round struct {
	ID            int64
	CompetitionID int64
	End           time.Time
}

type Phase struct {
	ID              int64
	RoundID         int64
	Type            PhaseType
	PerCrunchWeight float64
}

func (p *Phase) IsOutOfSample() bool {
	return p.Type == PHASE_OUT_OF_SAMPLE
}

type Crunch struct {
	ID      int64
	PhaseID int64
	Number  int
	End     time.Time
}

type CrunchTarget struct {
	ID       int64
	CrunchID int64
	TargetID int64
}

type Leaderboard struct {
	ID             int64
	CrunchTargetID int64
	DefinitionID   int64
	Size           int
}

type Position struct {
	LeaderboardID int64
	UserID        int64
	TeamID        *int64
	Rank          int
	RewardRank    *float64
}

type Team struct {
	ID            int64
	CompetitionID int64
	Deleted       bool
}

type TeamMember struct {
	ID     int64
	TeamID int64
	UserID int64
}

const (
	PAYOUT_CHECKPOINT = "CHECKPOINT"
	PAYOUT_PAID       = "PAID"
)

type Payout struct {
	ID            int64
	CompetitionID int64
	Date          time.Time
	Size          int
	Type          string
	Status        string
}

func (p *Payout) IsPaidCheckpoint() bool {
	return p.Type == PAYOUT_CHECKPOINT && p.Status == PAYOUT_PAID
}

type PayoutRecipient struct {
	ID       int64
	PayoutID int64
	UserID   int64
	Rank     int
}

type LegacyLeaderboardEntry struct {
	UserID       int64
	CrunchDate   time.Time
	CrunchNumber int
	CrunchSize   int
	Rank         int
}
