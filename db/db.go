package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mww/global_leaderboard/model"
)

var (
	ErrNotLoaded                 error = errors.New("data set not loaded")
	ErrUserNotFound              error = errors.New("user not found")
	ErrDefinitionNotFound        error = errors.New("default leaderboard definition not found")
	ErrLeaderboardNotFound       error = errors.New("leaderboard not found")
	ErrPositionNotFound          error = errors.New("position not found")
	ErrTeamNotFound              error = errors.New("team not found")
	ErrRecipientNotFound         error = errors.New("payout recipient not found")
	ErrUniversityNotFound        error = errors.New("university not found")
	ErrInstitutionNotFound       error = errors.New("institution not found")
	ErrGlobalLeaderboardNotFound error = errors.New("global leaderboard not found")
)

// DuplicateKeyError is returned when building an index that has no merge rule
// and the same key shows up twice.
type DuplicateKeyError struct {
	Index string
	Key   any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %v in %s index", e.Key, e.Index)
}

type DB interface {
	// Load reads every entity needed by a computation run. It replaces whatever
	// was loaded before.
	Load(ctx context.Context) error

	// Listed competitions, the legacy competition first.
	ListCompetitions(ctx context.Context) ([]model.Competition, error)
	// Users who ever held a position, joined a team or received a payout.
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	GetDefaultLeaderboardDefinition(ctx context.Context, competitionID int64) (*model.LeaderboardDefinition, error)
	// If a competition has virtual targets, only those are usable.
	ListUsableTargets(ctx context.Context, competitionID int64) ([]model.Target, error)
	ListRounds(ctx context.Context, competitionID int64) ([]model.Round, error)
	ListPhases(ctx context.Context, roundID int64) ([]model.Phase, error)
	// Crunches of a phase, ordered by number.
	ListCrunches(ctx context.Context, phaseID int64) ([]model.Crunch, error)
	GetLeaderboard(ctx context.Context, crunchID, targetID, definitionID int64) (*model.Leaderboard, error)
	GetUserPosition(ctx context.Context, leaderboardID, userID int64) (*model.Position, error)
	// Best reward rank of any member of the team on the leaderboard.
	GetTeamBestRank(ctx context.Context, leaderboardID, teamID int64) (float64, error)
	GetUserTeam(ctx context.Context, competitionID, userID int64) (*model.Team, error)

	ListPaidCheckpointPayouts(ctx context.Context, competitionID int64) ([]model.Payout, error)
	GetPayoutRecipient(ctx context.Context, payoutID, userID int64) (*model.PayoutRecipient, error)
	ListLegacyLeaderboardEntries(ctx context.Context, userID int64) ([]model.LegacyLeaderboardEntry, error)
	ListParticipants(ctx context.Context, userID int64) ([]model.Participant, error)

	FindUniversityByDisplayName(ctx context.Context, displayName string) (*model.University, error)
	GetInstitution(ctx context.Context, id int64) (*model.Institution, error)
	FindInstitutionByName(ctx context.Context, name string) (*model.Institution, error)
	IsInstitutionMember(ctx context.Context, institutionID, userID int64) (bool, error)
	AddInstitution(ctx context.Context, i *model.Institution) error
	AddInstitutionMember(ctx context.Context, m *model.InstitutionMember) error

	// Best rank of every user in the latest snapshot strictly before date.
	GetBestRankPerUserBefore(ctx context.Context, date time.Time) (map[int64]int, error)
	// Cumulative submission count of every user as of date.
	CountSubmissionsUpTo(ctx context.Context, date time.Time) (map[int64]int, error)

	GetGlobalLeaderboard(ctx context.Context, date time.Time) (*model.GlobalLeaderboardSnapshot, error)
	// Snapshot headers, the most recent first.
	ListGlobalLeaderboards(ctx context.Context) ([]model.GlobalLeaderboard, error)
	// Deletes the snapshot of the same date, if any, and writes s in its place.
	// IDs of s are filled in.
	ReplaceGlobalLeaderboard(ctx context.Context, s *model.GlobalLeaderboardSnapshot) error
}
