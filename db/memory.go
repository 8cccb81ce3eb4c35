package db

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/mww/global_leaderboard/model"
	"github.com/mww/global_leaderboard/scoring"
)

// NewMemory returns a DB that keeps everything in process. Rows written to it
// live as long as the returned value. It is used for tests and dry runs.
func NewMemory(ds *Dataset, clock clock.Clock, params scoring.Parameters) DB {
	if ds == nil {
		ds = &Dataset{}
	}

	m := &memoryDB{
		clock:     clock,
		params:    params,
		ds:        ds,
		snapshots: make(map[time.Time]*model.GlobalLeaderboardSnapshot),
	}
	for _, i := range ds.Institutions {
		m.nextInstitutionID = max(m.nextInstitutionID, i.ID)
	}
	for _, im := range ds.InstitutionMembers {
		m.nextMemberID = max(m.nextMemberID, im.ID)
	}
	return m
}

type memoryDB struct {
	indexed

	clock  clock.Clock
	params scoring.Parameters

	mu                sync.Mutex
	ds                *Dataset
	nextInstitutionID int64
	nextMemberID      int64
	nextLeaderboardID int64
	snapshots         map[time.Time]*model.GlobalLeaderboardSnapshot
}

func (db *memoryDB) Load(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	start := db.clock.Now()
	idx, err := buildIndex(db.ds, db.params.MaxRewardRank)
	if err != nil {
		return fmt.Errorf("error indexing data set: %w", err)
	}
	db.idx.Store(idx)

	log.Printf("indexed %d users and %d competitions in %v", len(idx.users), len(idx.competitions), db.clock.Now().Sub(start))
	return nil
}

func (db *memoryDB) AddInstitution(ctx context.Context, i *model.Institution) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.ds.Institutions {
		if existing.Name == i.Name {
			return &DuplicateKeyError{Index: "institution name", Key: i.Name}
		}
	}

	db.nextInstitutionID++
	i.ID = db.nextInstitutionID
	db.ds.Institutions = append(db.ds.Institutions, *i)
	db.recordInstitution(i)
	return nil
}

func (db *memoryDB) AddInstitutionMember(ctx context.Context, m *model.InstitutionMember) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextMemberID++
	m.ID = db.nextMemberID
	db.ds.InstitutionMembers = append(db.ds.InstitutionMembers, *m)
	db.recordMember(m)
	return nil
}

func (db *memoryDB) GetBestRankPerUserBefore(ctx context.Context, date time.Time) (map[int64]int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	date = model.Day(date)
	var latest *model.GlobalLeaderboardSnapshot
	for d, s := range db.snapshots {
		if d.Before(date) && (latest == nil || d.After(latest.Leaderboard.Date)) {
			latest = s
		}
	}

	result := make(map[int64]int)
	if latest != nil {
		for _, p := range latest.Users {
			result[p.UserID] = p.BestRank
		}
	}
	return result, nil
}

func (db *memoryDB) GetGlobalLeaderboard(ctx context.Context, date time.Time) (*model.GlobalLeaderboardSnapshot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.snapshots[model.Day(date)]
	if !ok {
		return nil, ErrGlobalLeaderboardNotFound
	}
	return copySnapshot(s), nil
}

func (db *memoryDB) ListGlobalLeaderboards(ctx context.Context) ([]model.GlobalLeaderboard, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]model.GlobalLeaderboard, 0, len(db.snapshots))
	for _, s := range db.snapshots {
		result = append(result, s.Leaderboard)
	}
	slices.SortFunc(result, func(a, b model.GlobalLeaderboard) int { return b.Date.Compare(a.Date) })
	return result, nil
}

func (db *memoryDB) ReplaceGlobalLeaderboard(ctx context.Context, s *model.GlobalLeaderboardSnapshot) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextLeaderboardID++
	s.Leaderboard.Date = model.Day(s.Leaderboard.Date)
	s.Leaderboard.ID = db.nextLeaderboardID
	setLeaderboardID(s)

	db.snapshots[s.Leaderboard.Date] = copySnapshot(s)
	return nil
}

func setLeaderboardID(s *model.GlobalLeaderboardSnapshot) {
	id := s.Leaderboard.ID
	for i := range s.Users {
		s.Users[i].LeaderboardID = id
	}
	for i := range s.Institutions {
		s.Institutions[i].LeaderboardID = id
	}
	for i := range s.Participations {
		s.Participations[i].LeaderboardID = id
	}
}

func copySnapshot(s *model.GlobalLeaderboardSnapshot) *model.GlobalLeaderboardSnapshot {
	return &model.GlobalLeaderboardSnapshot{
		Leaderboard:    s.Leaderboard,
		Users:          slices.Clone(s.Users),
		Institutions:   slices.Clone(s.Institutions),
		Participations: slices.Clone(s.Participations),
	}
}
