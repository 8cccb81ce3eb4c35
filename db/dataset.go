package db

import (
	"github.com/mww/global_leaderboard/model"
)

// Dataset is every row a computation run reads, as stored. Filtering and
// indexing happen when an index is built from it.
type Dataset struct {
	Universities       []model.University
	Competitions       []model.Competition
	Users              []model.User
	Definitions        []model.LeaderboardDefinition
	Targets            []model.Target
	Rounds             []model.Round
	Phases             []model.Phase
	Crunches           []model.Crunch
	CrunchTargets      []model.CrunchTarget
	Leaderboards       []model.Leaderboard
	Positions          []model.Position
	Teams              []model.Team
	TeamMembers        []model.TeamMember
	Payouts            []model.Payout
	PayoutRecipients   []model.PayoutRecipient
	LegacyEntries      []model.LegacyLeaderboardEntry
	Participants       []model.Participant
	SubmissionCounts   []model.DailySubmissionCount
	Institutions       []model.Institution
	InstitutionMembers []model.InstitutionMember
}
