package db

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/mww/global_leaderboard/model"
)

// indexed serves every read a run needs from the last loaded index. It is
// shared by the providers, which only differ in how rows are read and written.
type indexed struct {
	idx atomic.Pointer[index]
}

func (s *indexed) current() (*index, error) {
	idx := s.idx.Load()
	if idx == nil {
		return nil, ErrNotLoaded
	}
	return idx, nil
}

func (s *indexed) ListCompetitions(ctx context.Context) ([]model.Competition, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return slices.Clone(idx.competitions), nil
}

func (s *indexed) ListUsers(ctx context.Context) ([]model.User, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return slices.Clone(idx.users), nil
}

func (s *indexed) GetUser(ctx context.Context, id int64) (*model.User, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	u, ok := idx.userByID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *indexed) GetDefaultLeaderboardDefinition(ctx context.Context, competitionID int64) (*model.LeaderboardDefinition, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	d, ok := idx.definitionByCompetition[competitionID]
	if !ok {
		return nil, ErrDefinitionNotFound
	}
	return d, nil
}

func (s *indexed) ListUsableTargets(ctx context.Context, competitionID int64) ([]model.Target, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return idx.targetsByCompetition[competitionID], nil
}

func (s *indexed) ListRounds(ctx context.Context, competitionID int64) ([]model.Round, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return idx.roundsByCompetition[competitionID], nil
}

func (s *indexed) ListPhases(ctx context.Context, roundID int64) ([]model.Phase, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return idx.phasesByRound[roundID], nil
}

func (s *indexed) ListCrunches(ctx context.Context, phaseID int64) ([]model.Crunch, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return idx.crunchesByPhase[phaseID], nil
}

// A crunch without a crunch target for the target has no leaderboard either.
func (s *indexed) GetLeaderboard(ctx context.Context, crunchID, targetID, definitionID int64) (*model.Leaderboard, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	ct, ok := idx.crunchTargetByPair[pair{crunchID, targetID}]
	if !ok {
		return nil, ErrLeaderboardNotFound
	}
	l, ok := idx.leaderboardByPair[pair{ct.ID, definitionID}]
	if !ok {
		return nil, ErrLeaderboardNotFound
	}
	return l, nil
}

func (s *indexed) GetUserPosition(ctx context.Context, leaderboardID, userID int64) (*model.Position, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	p, ok := idx.positionByPair[pair{leaderboardID, userID}]
	if !ok {
		return nil, ErrPositionNotFound
	}
	return p, nil
}

func (s *indexed) GetTeamBestRank(ctx context.Context, leaderboardID, teamID int64) (float64, error) {
	idx, err := s.current()
	if err != nil {
		return 0, err
	}
	r, ok := idx.teamBestRank[pair{leaderboardID, teamID}]
	if !ok {
		return 0, ErrPositionNotFound
	}
	return r, nil
}

func (s *indexed) GetUserTeam(ctx context.Context, competitionID, userID int64) (*model.Team, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	t, ok := idx.teamByCompetitionUser[pair{competitionID, userID}]
	if !ok {
		return nil, ErrTeamNotFound
	}
	return t, nil
}

func (s *indexed) ListPaidCheckpointPayouts(ctx context.Context, competitionID int64) ([]model.Payout, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return idx.payoutsByCompetition[competitionID], nil
}

func (s *indexed) GetPayoutRecipient(ctx context.Context, payoutID, userID int64) (*model.PayoutRecipient, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	r, ok := idx.recipientByPair[pair{payoutID, userID}]
	if !ok {
		return nil, ErrRecipientNotFound
	}
	return r, nil
}

func (s *indexed) ListLegacyLeaderboardEntries(ctx context.Context, userID int64) ([]model.LegacyLeaderboardEntry, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return idx.legacyByUser[userID], nil
}

func (s *indexed) ListParticipants(ctx context.Context, userID int64) ([]model.Participant, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return idx.participantsByUser[userID], nil
}

func (s *indexed) FindUniversityByDisplayName(ctx context.Context, displayName string) (*model.University, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	u, ok := idx.universityByDisplayName[displayName]
	if !ok {
		return nil, ErrUniversityNotFound
	}
	return u, nil
}

func (s *indexed) GetInstitution(ctx context.Context, id int64) (*model.Institution, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	idx.instMu.RLock()
	defer idx.instMu.RUnlock()

	i, ok := idx.institutionByID[id]
	if !ok {
		return nil, ErrInstitutionNotFound
	}
	cp := *i
	return &cp, nil
}

func (s *indexed) FindInstitutionByName(ctx context.Context, name string) (*model.Institution, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	idx.instMu.RLock()
	defer idx.instMu.RUnlock()

	i, ok := idx.institutionByName[name]
	if !ok {
		return nil, ErrInstitutionNotFound
	}
	cp := *i
	return &cp, nil
}

func (s *indexed) IsInstitutionMember(ctx context.Context, institutionID, userID int64) (bool, error) {
	idx, err := s.current()
	if err != nil {
		return false, err
	}
	idx.instMu.RLock()
	defer idx.instMu.RUnlock()

	return idx.membersByInstitution[institutionID][userID], nil
}

func (s *indexed) CountSubmissionsUpTo(ctx context.Context, date time.Time) (map[int64]int, error) {
	idx, err := s.current()
	if err != nil {
		return nil, err
	}
	return idx.submissionsUpTo(date), nil
}

func (s *indexed) recordInstitution(i *model.Institution) {
	if idx := s.idx.Load(); idx != nil {
		idx.addInstitution(i)
	}
}

func (s *indexed) recordMember(m *model.InstitutionMember) {
	if idx := s.idx.Load(); idx != nil {
		idx.instMu.Lock()
		defer idx.instMu.Unlock()
		idx.addMember(m.InstitutionID, m.UserID)
	}
}
