package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mww/global_leaderboard/db"
	"github.com/mww/global_leaderboard/db/mockdb"
	"github.com/mww/global_leaderboard/enrich"
	"github.com/mww/global_leaderboard/enrich/mockenrich"
	"github.com/mww/global_leaderboard/lock"
	"github.com/mww/global_leaderboard/model"
	"github.com/mww/global_leaderboard/scoring"
	"github.com/mww/global_leaderboard/testutils"
	"github.com/stretchr/testify/mock"
)

// The fake external services shared by all of the tests.
var testCtrl *testutils.TestController

// TestMain controls the main for the tests and allows for setup and shutdown of the tests
func TestMain(m *testing.M) {
	defer func() {
		// Catch all panics to make sure the shutdown is successfully run
		if r := recover(); r != nil {
			if testCtrl != nil {
				testCtrl.Close()
			}
			fmt.Printf("panic - %v\n", r)
		}
	}()

	testCtrl = testutils.NewTestController()
	code := m.Run()
	testCtrl.Close()
	os.Exit(code)
}

func newController(t *testing.T, tdb *testutils.TestDB, e enrich.Client, locker lock.Locker) *controller {
	t.Helper()
	c, err := New(tdb.Clock, tdb.DB, e, locker, scoring.NewScorer(scoring.DefaultParameters(), nil))
	if err != nil {
		t.Fatalf("error creating controller: %v", err)
	}
	return c.(*controller)
}

// Clears the ids assigned on write so that two generations can be compared.
func withoutIDs(s *model.GlobalLeaderboardSnapshot) *model.GlobalLeaderboardSnapshot {
	s.Leaderboard.ID = 0
	for i := range s.Users {
		s.Users[i].LeaderboardID = 0
	}
	for i := range s.Institutions {
		s.Institutions[i].LeaderboardID = 0
	}
	for i := range s.Participations {
		s.Participations[i].LeaderboardID = 0
	}
	return s
}

func TestNew_missingDependencies(t *testing.T) {
	tdb := testutils.NewTestDB("")
	scorer := scoring.NewScorer(scoring.DefaultParameters(), nil)

	tests := map[string]struct {
		db     db.DB
		enrich enrich.Client
		locker lock.Locker
		scorer *scoring.Scorer
	}{
		"no db":     {enrich: enrich.NewNop(), locker: lock.NewLocal(), scorer: scorer},
		"no enrich": {db: tdb.DB, locker: lock.NewLocal(), scorer: scorer},
		"no locker": {db: tdb.DB, enrich: enrich.NewNop(), scorer: scorer},
		"no scorer": {db: tdb.DB, enrich: enrich.NewNop(), locker: lock.NewLocal()},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := New(tdb.Clock, tc.db, tc.enrich, tc.locker, tc.scorer); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestComputeLeaderboards(t *testing.T) {
	tdb := testutils.NewTestDB(testCtrl.UniversityURL())
	c := newController(t, tdb, enrich.New(nil), lock.NewLocal())
	ctx := context.Background()

	summary, err := c.ComputeLeaderboards(ctx, []time.Time{testutils.CrunchEnd})
	if err != nil {
		t.Fatalf("error computing leaderboards: %v", err)
	}

	assertEquals(t, "summary.UserCount", 3, summary.UserCount)
	// adialab for alice and bob, the legacy entry of bob, the paid checkpoint of carol
	assertEquals(t, "summary.EventCount", 4, summary.EventCount)
	assertEquals(t, "summary.CreatedInstitutionCount", 1, summary.CreatedInstitutionCount)
	assertEquals(t, "len(summary.Leaderboards)", 1, len(summary.Leaderboards))

	eth, err := tdb.DB.FindInstitutionByName(ctx, "university.eth-zurich")
	if err != nil {
		t.Fatalf("error finding institution: %v", err)
	}
	assertEquals(t, "eth.DisplayName", testutils.EthZurich, eth.DisplayName)
	assertEquals(t, "eth.Country", "CHE", eth.Country)
	assertEquals(t, "eth.MemberCount", 1, eth.MemberCount)
	assertEquals(t, "eth.CreatedAt", tdb.Clock.Now(), eth.CreatedAt)
	assertFatalf(t, eth.About != nil, "expected eth to have an about text")
	assertEquals(t, "eth.About", testutils.EthDescription, *eth.About)
	assertFatalf(t, eth.WebsiteURL != nil, "expected eth to have a website")
	assertEquals(t, "eth.WebsiteURL", testCtrl.UniversityURL()+"/eth", *eth.WebsiteURL)

	isMember, err := tdb.DB.IsInstitutionMember(ctx, eth.ID, testutils.AliceID)
	if err != nil {
		t.Fatalf("error checking membership: %v", err)
	}
	assertTrue(t, "alice is a member of eth", isMember)

	s, err := c.GetGlobalLeaderboard(ctx, testutils.CrunchEnd)
	if err != nil {
		t.Fatalf("error getting leaderboard: %v", err)
	}

	assertEquals(t, "Leaderboard.Date", testutils.CrunchEnd, s.Leaderboard.Date)
	assertEquals(t, "Leaderboard.UserCount", 2, s.Leaderboard.UserCount)
	assertEquals(t, "Leaderboard.InstitutionCount", 1, s.Leaderboard.InstitutionCount)
	assertEquals(t, "Leaderboard.Published", false, s.Leaderboard.Published)
	assertEquals(t, "Leaderboard.CreatedAt", testutils.CrunchEnd, s.Leaderboard.CreatedAt)

	expectedUsers := []model.GlobalUserPosition{
		{
			LeaderboardID:         s.Leaderboard.ID,
			UserID:                testutils.AliceID,
			InstitutionID:         &eth.ID,
			Rank:                  1,
			InstitutionMemberRank: ptr(1),
			Points:                24,
			BestRank:              1,
			ParticipationCount:    1,
			SubmissionCount:       3,
		},
		{
			LeaderboardID:      s.Leaderboard.ID,
			UserID:             testutils.BobID,
			Rank:               2,
			Points:             12,
			BestRank:           2,
			ParticipationCount: 1,
		},
	}
	if !reflect.DeepEqual(expectedUsers, s.Users) {
		t.Errorf("user positions not as expected.\nwanted: %+v\ngot:    %+v", expectedUsers, s.Users)
	}

	expectedInstitutions := []model.GlobalInstitutionPosition{
		{
			LeaderboardID:        s.Leaderboard.ID,
			InstitutionID:        eth.ID,
			Rank:                 1,
			TotalPoints:          24,
			UserCount:            1,
			TopUser1ID:           ptr(testutils.AliceID),
			AveragePointsPerUser: 24,
		},
	}
	if !reflect.DeepEqual(expectedInstitutions, s.Institutions) {
		t.Errorf("institution positions not as expected.\nwanted: %+v\ngot:    %+v", expectedInstitutions, s.Institutions)
	}

	expectedParticipations := []model.InstitutionParticipation{
		{
			LeaderboardID:           s.Leaderboard.ID,
			InstitutionID:           eth.ID,
			CompetitionID:           testutils.AdialabID,
			BestUserID:              ptr(testutils.AliceID),
			BestUserLeaderboardRank: ptr(1),
			MemberCount:             1,
			TotalPoints:             24,
			CreatedAt:               testutils.CrunchEnd,
		},
	}
	if !reflect.DeepEqual(expectedParticipations, s.Participations) {
		t.Errorf("participations not as expected.\nwanted: %+v\ngot:    %+v", expectedParticipations, s.Participations)
	}
}

func TestComputeLeaderboards_bestRank(t *testing.T) {
	tdb := testutils.NewTestDB("")
	c := newController(t, tdb, enrich.NewNop(), lock.NewLocal())
	ctx := context.Background()

	// given out of order on purpose
	summary, err := c.ComputeLeaderboards(ctx, []time.Time{testutils.PayoutDate, testutils.CrunchEnd, testutils.PayoutDate})
	if err != nil {
		t.Fatalf("error computing leaderboards: %v", err)
	}
	assertEquals(t, "summary.Dates", []time.Time{testutils.CrunchEnd, testutils.PayoutDate}, summary.Dates)

	before, err := c.GetGlobalLeaderboard(ctx, testutils.CrunchEnd)
	if err != nil {
		t.Fatalf("error getting leaderboard: %v", err)
	}
	after, err := c.GetGlobalLeaderboard(ctx, testutils.PayoutDate)
	if err != nil {
		t.Fatalf("error getting leaderboard: %v", err)
	}

	tests := map[string]struct {
		userID             int64
		rank               int
		bestRank           int
		points             int64
		participationCount int
		submissionCount    int
	}{
		"carol takes the lead": {userID: testutils.CarolID, rank: 1, bestRank: 1, points: 31, participationCount: 1, submissionCount: 5},
		"alice keeps her best": {userID: testutils.AliceID, rank: 2, bestRank: 1, points: 23, participationCount: 1, submissionCount: 4},
		"bob keeps his best":   {userID: testutils.BobID, rank: 3, bestRank: 2, points: 12, participationCount: 1, submissionCount: 0},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var p *model.GlobalUserPosition
			for i := range after.Users {
				if after.Users[i].UserID == tc.userID {
					p = &after.Users[i]
				}
			}
			assertFatalf(t, p != nil, "user %d not in leaderboard", tc.userID)

			assertEquals(t, "Rank", tc.rank, p.Rank)
			assertEquals(t, "BestRank", tc.bestRank, p.BestRank)
			assertEquals(t, "Points", tc.points, p.Points)
			assertEquals(t, "ParticipationCount", tc.participationCount, p.ParticipationCount)
			assertEquals(t, "SubmissionCount", tc.submissionCount, p.SubmissionCount)
		})
	}

	previous := make(map[int64]int)
	for _, p := range before.Users {
		previous[p.UserID] = p.BestRank
	}
	for _, p := range after.Users {
		assertTrue(t, fmt.Sprintf("best rank of %d not above rank", p.UserID), p.BestRank <= p.Rank)
		if b, found := previous[p.UserID]; found {
			assertTrue(t, fmt.Sprintf("best rank of %d not above previous best rank", p.UserID), p.BestRank <= b)
		}
	}
}

func TestComputeLeaderboards_idempotent(t *testing.T) {
	tdb := testutils.NewTestDB("")
	c := newController(t, tdb, enrich.NewNop(), lock.NewLocal())
	ctx := context.Background()

	if _, err := c.ComputeLeaderboards(ctx, []time.Time{testutils.CrunchEnd}); err != nil {
		t.Fatalf("error computing leaderboards: %v", err)
	}
	first, err := c.GetGlobalLeaderboard(ctx, testutils.CrunchEnd)
	if err != nil {
		t.Fatalf("error getting leaderboard: %v", err)
	}

	tdb.Clock.Add(3 * time.Hour)
	summary, err := c.ComputeLeaderboards(ctx, []time.Time{testutils.CrunchEnd})
	if err != nil {
		t.Fatalf("error computing leaderboards again: %v", err)
	}
	assertEquals(t, "summary.CreatedInstitutionCount", 0, summary.CreatedInstitutionCount)

	second, err := c.GetGlobalLeaderboard(ctx, testutils.CrunchEnd)
	if err != nil {
		t.Fatalf("error getting leaderboard: %v", err)
	}

	if !reflect.DeepEqual(withoutIDs(first), withoutIDs(second)) {
		t.Errorf("recomputed leaderboard differs.\nfirst:  %+v\nsecond: %+v", first, second)
	}

	all, err := c.ListGlobalLeaderboards(ctx)
	if err != nil {
		t.Fatalf("error listing leaderboards: %v", err)
	}
	assertEquals(t, "len(ListGlobalLeaderboards)", 1, len(all))
}

func TestComputeLeaderboards_enrichesNewInstitutionsOnly(t *testing.T) {
	tdb := testutils.NewTestDB("https://eth.example")
	e := &mockenrich.Client{}
	c := newController(t, tdb, e, lock.NewLocal())
	ctx := context.Background()

	expected := map[string]model.University{
		"university.eth-zurich": {ID: 1, Name: testutils.EthZurich, URL: "https://eth.example/eth", CountryAlpha3: "CHE"},
	}
	about := "A public research university."
	e.On("Describe", mock.Anything, expected).Return(map[string]*string{"university.eth-zurich": &about}).Once()

	for range 2 {
		if _, err := c.ComputeLeaderboards(ctx, []time.Time{testutils.CrunchEnd}); err != nil {
			t.Fatalf("error computing leaderboards: %v", err)
		}
	}

	eth, err := tdb.DB.FindInstitutionByName(ctx, "university.eth-zurich")
	if err != nil {
		t.Fatalf("error finding institution: %v", err)
	}
	assertFatalf(t, eth.About != nil, "expected eth to have an about text")
	assertEquals(t, "eth.About", about, *eth.About)

	e.AssertExpectations(t)
	e.AssertNumberOfCalls(t, "Describe", 1)
}

func TestComputeLeaderboards_locked(t *testing.T) {
	tdb := testutils.NewTestDB("")
	locker := lock.NewLocal()
	c := newController(t, tdb, enrich.NewNop(), locker)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx)
	if err != nil {
		t.Fatalf("error acquiring lock: %v", err)
	}

	_, err = c.ComputeLeaderboards(ctx, []time.Time{testutils.CrunchEnd})
	if !errors.Is(err, lock.ErrLocked) {
		t.Errorf("expected lock.ErrLocked, got: %v", err)
	}

	lease.Release(ctx)
	if _, err := c.ComputeLeaderboards(ctx, []time.Time{testutils.CrunchEnd}); err != nil {
		t.Errorf("error computing leaderboards after release: %v", err)
	}
}

// lostLease is lost as soon as its channel is closed.
type lostLease struct {
	lost chan struct{}
}

func (l *lostLease) Done() <-chan struct{}              { return l.lost }
func (l *lostLease) Release(ctx context.Context) error { return nil }

type singleLeaseLocker struct {
	lease *lostLease
}

func (l *singleLeaseLocker) Acquire(ctx context.Context) (lock.Lease, error) {
	return l.lease, nil
}

// losesLeaseOnWrite loses the lease right after the first leaderboard is saved.
type losesLeaseOnWrite struct {
	db.DB
	lease  *lostLease
	writes int
}

func (d *losesLeaseOnWrite) ReplaceGlobalLeaderboard(ctx context.Context, s *model.GlobalLeaderboardSnapshot) error {
	d.writes++
	if err := d.DB.ReplaceGlobalLeaderboard(ctx, s); err != nil {
		return err
	}
	if d.writes == 1 {
		close(d.lease.lost)
	}
	return nil
}

func TestComputeLeaderboards_leaseLost(t *testing.T) {
	tdb := testutils.NewTestDB("")
	lease := &lostLease{lost: make(chan struct{})}
	losing := &losesLeaseOnWrite{DB: tdb.DB, lease: lease}
	tdb.DB = losing
	c := newController(t, tdb, enrich.NewNop(), &singleLeaseLocker{lease: lease})
	ctx := context.Background()

	dates := []time.Time{testutils.CrunchEnd, testutils.CrunchEnd.AddDate(0, 0, 1), testutils.CrunchEnd.AddDate(0, 0, 2)}
	_, err := c.ComputeLeaderboards(ctx, dates)
	if !errors.Is(err, lock.ErrLeaseLost) {
		t.Fatalf("expected lock.ErrLeaseLost, got: %v", err)
	}
	assertEquals(t, "writes", 1, losing.writes)

	list, err := tdb.DB.ListGlobalLeaderboards(ctx)
	assertFatalf(t, err == nil, "error listing leaderboards: %v", err)
	assertEquals(t, "leaderboards", 1, len(list))
	assertEquals(t, "date", "2024-03-01", list[0].FormattedDate())
}

func TestComputeLeaderboards_noDates(t *testing.T) {
	tdb := testutils.NewTestDB("")
	c := newController(t, tdb, enrich.NewNop(), lock.NewLocal())

	if _, err := c.ComputeLeaderboards(context.Background(), nil); err == nil {
		t.Errorf("expected an error")
	}
}

func TestComputeLeaderboards_invalidData(t *testing.T) {
	tests := map[string]struct {
		change   func(ds *db.Dataset)
		expected error
	}{
		"rank outside leaderboard": {
			change: func(ds *db.Dataset) {
				r := 5.0
				ds.Positions[1].RewardRank = &r
			},
		},
		"no default definition": {
			change: func(ds *db.Dataset) {
				ds.Definitions = ds.Definitions[1:]
			},
			expected: db.ErrDefinitionNotFound,
		},
		"duplicate crunch target": {
			change: func(ds *db.Dataset) {
				ds.CrunchTargets = append(ds.CrunchTargets, model.CrunchTarget{ID: 9, CrunchID: 2, TargetID: 1})
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tdb := testutils.NewTestDB("")
			ds := testutils.Fixture("")
			tc.change(ds)
			tdb.DB = db.NewMemory(ds, tdb.Clock, scoring.DefaultParameters())

			c := newController(t, tdb, enrich.NewNop(), lock.NewLocal())
			_, err := c.ComputeLeaderboards(context.Background(), []time.Time{testutils.CrunchEnd})
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tc.expected != nil && !errors.Is(err, tc.expected) {
				t.Errorf("expected %v, got: %v", tc.expected, err)
			}

			_, err = c.GetGlobalLeaderboard(context.Background(), testutils.CrunchEnd)
			if !errors.Is(err, db.ErrGlobalLeaderboardNotFound) {
				t.Errorf("expected no leaderboard to be written, got: %v", err)
			}
		})
	}
}

func TestComputeLeaderboards_loadErrorReleasesLock(t *testing.T) {
	d := &mockdb.DB{}
	tdb := &testutils.TestDB{DB: d, Clock: testCtrl.Clock}
	c := newController(t, tdb, enrich.NewNop(), lock.NewLocal())

	loadErr := errors.New("connection refused")
	d.On("Load", mock.Anything).Return(loadErr).Twice()

	for range 2 {
		_, err := c.ComputeLeaderboards(context.Background(), []time.Time{testutils.CrunchEnd})
		if !errors.Is(err, loadErr) {
			t.Errorf("expected the load error, got: %v", err)
		}
	}

	d.AssertExpectations(t)
}

func TestRunPeriodicLeaderboardUpdates(t *testing.T) {
	d := &mockdb.DB{}
	tdb := &testutils.TestDB{DB: d, Clock: testCtrl.Clock}
	c := newController(t, tdb, enrich.NewNop(), lock.NewLocal())

	d.On("Load", mock.Anything).Return(errors.New("stop here")).Times(3)

	shutdown := make(chan bool, 1)
	go func() {
		time.Sleep(160 * time.Millisecond) // enough time to run 3 times, but not 4
		close(shutdown)
	}()
	var wg sync.WaitGroup

	wg.Add(1)
	c.RunPeriodicLeaderboardUpdates(50*time.Millisecond, shutdown, &wg)
	wg.Wait()

	d.AssertExpectations(t)
}

func TestNormalizeDates(t *testing.T) {
	tests := map[string]struct {
		dates    []time.Time
		expected []time.Time
	}{
		"empty": {
			dates:    nil,
			expected: []time.Time{},
		},
		"sorted and deduplicated": {
			dates:    []time.Time{testutils.Day("2024-03-02"), testutils.Day("2024-03-01"), testutils.Day("2024-03-02")},
			expected: []time.Time{testutils.Day("2024-03-01"), testutils.Day("2024-03-02")},
		},
		"truncated to days": {
			dates:    []time.Time{time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC), testutils.Day("2024-03-01")},
			expected: []time.Time{testutils.Day("2024-03-01")},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assertEquals(t, "dates", tc.expected, normalizeDates(tc.dates))
		})
	}
}

func assertFatalf(t *testing.T, c bool, f string, args ...any) {
	t.Helper()
	if !c {
		t.Fatalf(f, args...)
	}
}

func assertEquals(t *testing.T, field string, expected, actual any) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("%s not as expected. wanted: %v, got: %v", field, expected, actual)
	}
}

func assertTrue(t *testing.T, field string, cond bool) {
	t.Helper()
	if !cond {
		t.Errorf("%s was not true", field)
	}
}
