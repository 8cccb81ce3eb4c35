package mockdb

import (
	"context"
	"time"

	"github.com/mww/global_leaderboard/model"
	"github.com/stretchr/testify/mock"
)

type DB struct {
	mock.Mock
}

func (db *DB) Load(ctx context.Context) error {
	args := db.Called(ctx)
	return args.Error(0)
}

func (db *DB) ListCompetitions(ctx context.Context) ([]model.Competition, error) {
	args := db.Called(ctx)

	var r []model.Competition
	if args.Get(0) != nil {
		r = args.Get(0).([]model.Competition)
	}
	return r, args.Error(1)
}

func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	args := db.Called(ctx)

	var r []model.User
	if args.Get(0) != nil {
		r = args.Get(0).([]model.User)
	}
	return r, args.Error(1)
}

func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	args := db.Called(ctx, id)

	var u *model.User
	if args.Get(0) != nil {
		u = args.Get(0).(*model.User)
	}
	return u, args.Error(1)
}

func (db *DB) GetDefaultLeaderboardDefinition(ctx context.Context, competitionID int64) (*model.LeaderboardDefinition, error) {
	args := db.Called(ctx, competitionID)

	var d *model.LeaderboardDefinition
	if args.Get(0) != nil {
		d = args.Get(0).(*model.LeaderboardDefinition)
	}
	return d, args.Error(1)
}

func (db *DB) ListUsableTargets(ctx context.Context, competitionID int64) ([]model.Target, error) {
	args := db.Called(ctx, competitionID)

	var r []model.Target
	if args.Get(0) != nil {
		r = args.Get(0).([]model.Target)
	}
	return r, args.Error(1)
}

func (db *DB) ListRounds(ctx context.Context, competitionID int64) ([]model.Round, error) {
	args := db.Called(ctx, competitionID)

	var r []model.Round
	if args.Get(0) != nil {
		r = args.Get(0).([]model.Round)
	}
	return r, args.Error(1)
}

func (db *DB) ListPhases(ctx context.Context, roundID int64) ([]model.Phase, error) {
	args := db.Called(ctx, roundID)

	var r []model.Phase
	if args.Get(0) != nil {
		r = args.Get(0).([]model.Phase)
	}
	return r, args.Error(1)
}

func (db *DB) ListCrunches(ctx context.Context, phaseID int64) ([]model.Crunch, error) {
	args := db.Called(ctx, phaseID)

	var r []model.Crunch
	if args.Get(0) != nil {
		r = args.Get(0).([]model.Crunch)
	}
	return r, args.Error(1)
}

func (db *DB) GetLeaderboard(ctx context.Context, crunchID, targetID, definitionID int64) (*model.Leaderboard, error) {
	args := db.Called(ctx, crunchID, targetID, definitionID)

	var l *model.Leaderboard
	if args.Get(0) != nil {
		l = args.Get(0).(*model.Leaderboard)
	}
	return l, args.Error(1)
}

func (db *DB) GetUserPosition(ctx context.Context, leaderboardID, userID int64) (*model.Position, error) {
	args := db.Called(ctx, leaderboardID, userID)

	var p *model.Position
	if args.Get(0) != nil {
		p = args.Get(0).(*model.Position)
	}
	return p, args.Error(1)
}

func (db *DB) GetTeamBestRank(ctx context.Context, leaderboardID, teamID int64) (float64, error) {
	args := db.Called(ctx, leaderboardID, teamID)
	return args.Get(0).(float64), args.Error(1)
}

func (db *DB) GetUserTeam(ctx context.Context, competitionID, userID int64) (*model.Team, error) {
	args := db.Called(ctx, competitionID, userID)

	var t *model.Team
	if args.Get(0) != nil {
		t = args.Get(0).(*model.Team)
	}
	return t, args.Error(1)
}

func (db *DB) ListPaidCheckpointPayouts(ctx context.Context, competitionID int64) ([]model.Payout, error) {
	args := db.Called(ctx, competitionID)

	var r []model.Payout
	if args.Get(0) != nil {
		r = args.Get(0).([]model.Payout)
	}
	return r, args.Error(1)
}

func (db *DB) GetPayoutRecipient(ctx context.Context, payoutID, userID int64) (*model.PayoutRecipient, error) {
	args := db.Called(ctx, payoutID, userID)

	var r *model.PayoutRecipient
	if args.Get(0) != nil {
		r = args.Get(0).(*model.PayoutRecipient)
	}
	return r, args.Error(1)
}

func (db *DB) ListLegacyLeaderboardEntries(ctx context.Context, userID int64) ([]model.LegacyLeaderboardEntry, error) {
	args := db.Called(ctx, userID)

	var r []model.LegacyLeaderboardEntry
	if args.Get(0) != nil {
		r = args.Get(0).([]model.LegacyLeaderboardEntry)
	}
	return r, args.Error(1)
}

func (db *DB) ListParticipants(ctx context.Context, userID int64) ([]model.Participant, error) {
	args := db.Called(ctx, userID)

	var r []model.Participant
	if args.Get(0) != nil {
		r = args.Get(0).([]model.Participant)
	}
	return r, args.Error(1)
}

func (db *DB) FindUniversityByDisplayName(ctx context.Context, displayName string) (*model.University, error) {
	args := db.Called(ctx, displayName)

	var u *model.University
	if args.Get(0) != nil {
		u = args.Get(0).(*model.University)
	}
	return u, args.Error(1)
}

func (db *DB) GetInstitution(ctx context.Context, id int64) (*model.Institution, error) {
	args := db.Called(ctx, id)

	var i *model.Institution
	if args.Get(0) != nil {
		i = args.Get(0).(*model.Institution)
	}
	return i, args.Error(1)
}

func (db *DB) FindInstitutionByName(ctx context.Context, name string) (*model.Institution, error) {
	args := db.Called(ctx, name)

	var i *model.Institution
	if args.Get(0) != nil {
		i = args.Get(0).(*model.Institution)
	}
	return i, args.Error(1)
}

func (db *DB) IsInstitutionMember(ctx context.Context, institutionID, userID int64) (bool, error) {
	args := db.Called(ctx, institutionID, userID)
	return args.Bool(0), args.Error(1)
}

func (db *DB) AddInstitution(ctx context.Context, i *model.Institution) error {
	args := db.Called(ctx, i)
	return args.Error(0)
}

func (db *DB) AddInstitutionMember(ctx context.Context, m *model.InstitutionMember) error {
	args := db.Called(ctx, m)
	return args.Error(0)
}

func (db *DB) GetBestRankPerUserBefore(ctx context.Context, date time.Time) (map[int64]int, error) {
	args := db.Called(ctx, date)

	var r map[int64]int
	if args.Get(0) != nil {
		r = args.Get(0).(map[int64]int)
	}
	return r, args.Error(1)
}

func (db *DB) CountSubmissionsUpTo(ctx context.Context, date time.Time) (map[int64]int, error) {
	args := db.Called(ctx, date)

	var r map[int64]int
	if args.Get(0) != nil {
		r = args.Get(0).(map[int64]int)
	}
	return r, args.Error(1)
}

func (db *DB) GetGlobalLeaderboard(ctx context.Context, date time.Time) (*model.GlobalLeaderboardSnapshot, error) {
	args := db.Called(ctx, date)

	var s *model.GlobalLeaderboardSnapshot
	if args.Get(0) != nil {
		s = args.Get(0).(*model.GlobalLeaderboardSnapshot)
	}
	return s, args.Error(1)
}

func (db *DB) ListGlobalLeaderboards(ctx context.Context) ([]model.GlobalLeaderboard, error) {
	args := db.Called(ctx)

	var r []model.GlobalLeaderboard
	if args.Get(0) != nil {
		r = args.Get(0).([]model.GlobalLeaderboard)
	}
	return r, args.Error(1)
}

func (db *DB) ReplaceGlobalLeaderboard(ctx context.Context, s *model.GlobalLeaderboardSnapshot) error {
	args := db.Called(ctx, s)
	return args.Error(0)
}
