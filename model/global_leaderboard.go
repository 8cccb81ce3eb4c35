package model

import (
	"time"
)

type GlobalLeaderboard struct {
	ID               int64
	Date             time.Time
	UserCount        int
	InstitutionCount int
	Published        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (g *GlobalLeaderboard) FormattedDate() string {
	return g.Date.Format(time.DateOnly)
}

type GlobalUserPosition struct {
	LeaderboardID         int64
	UserID                int64
	InstitutionID         *int64
	Rank                  int
	InstitutionMemberRank *int
	Points                int64
	BestRank              int
	ParticipationCount    int
	SubmissionCount       int
}

type GlobalInstitutionPosition struct {
	LeaderboardID        int64
	InstitutionID        int64
	Rank                 int
	TotalPoints          int64
	UserCount            int
	TopUser1ID           *int64
	TopUser2ID           *int64
	TopUser3ID           *int64
	AveragePointsPerUser int64
}

type InstitutionParticipation struct {
	LeaderboardID           int64
	InstitutionID           int64
	CompetitionID           int64
	BestUserID              *int64
	BestUserLeaderboardRank *int
	MemberCount             int
	TotalPoints             int64
	CreatedAt               time.Time
}

// GlobalLeaderboardSnapshot is everything written for one date. It replaces the
// previous snapshot of the same date as a whole.
type GlobalLeaderboardSnapshot struct {
	Leaderboard    GlobalLeaderboard
	Users          []GlobalUserPosition
	Institutions   []GlobalInstitutionPosition
	Participations []InstitutionParticipation
}
