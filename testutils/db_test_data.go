package testutils

import (
	"context"
	"log"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/mww/global_leaderboard/db"
	"github.com/mww/global_leaderboard/model"
	"github.com/mww/global_leaderboard/scoring"
)

const (
	AliceID int64 = 1
	BobID   int64 = 2
	CarolID int64 = 3

	EthZurich = "ETH Zurich"

	AdialabID int64 = 1
	LegacyID  int64 = 2
	FalconID  int64 = 3
)

var (
	// The day the last crunch of adialab ends.
	CrunchEnd = Day("2024-03-01")
	// The day falcon pays its first checkpoint.
	PayoutDate = Day("2024-03-10")
)

func Day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr[T any](v T) *T {
	return &v
}

// Fixture returns a small data set:
//   - adialab, an offline competition with one out of sample phase of two crunches.
//     Alice and Bob are 1st and 2nd of the last crunch, Carol is 1st of the first one.
//   - the legacy competition, where Bob has one entry.
//   - falcon, a real time competition paying Carol 1st on PayoutDate.
//
// Alice studies at ETH Zurich, whose web site is universityURL + "/eth".
func Fixture(universityURL string) *db.Dataset {
	return &db.Dataset{
		Universities: []model.University{
			{ID: 1, Name: EthZurich, URL: universityURL + "/eth", CountryAlpha3: "CHE"},
			{ID: 2, Name: "Unmapped University", URL: universityURL + "/none"},
		},
		Competitions: []model.Competition{
			{ID: AdialabID, Name: "adialab", Mode: model.MODE_OFFLINE, Start: Day("2024-01-01"), PrizePoolUSD: 10000, Visibility: model.VISIBILITY_PUBLIC},
			{ID: LegacyID, Name: model.LegacyCompetitionName, Mode: model.MODE_OFFLINE, Start: Day("2020-01-01"), Visibility: model.VISIBILITY_PUBLIC},
			{ID: FalconID, Name: "falcon", Mode: model.MODE_REAL_TIME, Start: Day("2024-03-01"), PrizePoolUSD: 5200, Visibility: model.VISIBILITY_PUBLIC},
			{ID: 4, Name: "hidden", Mode: model.MODE_OFFLINE, Start: Day("2024-01-01"), PrizePoolUSD: 1000000, Visibility: "PRIVATE"},
		},
		Users: []model.User{
			{ID: AliceID, Login: "alice", University: EthZurich},
			{ID: BobID, Login: "bob", University: model.SelfTaught},
			{ID: CarolID, Login: "carol", University: "Some Old Name"},
			{ID: 4, Login: "dave"},
		},
		Definitions: []model.LeaderboardDefinition{
			{ID: 1, CompetitionID: AdialabID, Default: true},
			{ID: 2, CompetitionID: AdialabID},
		},
		Targets: []model.Target{
			{ID: 1, CompetitionID: AdialabID, Name: "global", Weight: 1.0},
		},
		Rounds: []model.Round{
			{ID: 1, CompetitionID: AdialabID, End: CrunchEnd},
		},
		Phases: []model.Phase{
			{ID: 1, RoundID: 1, Type: model.PHASE_OUT_OF_SAMPLE, PerCrunchWeight: model.LegacyPhaseWeight},
		},
		Crunches: []model.Crunch{
			{ID: 1, PhaseID: 1, Number: 1, End: Day("2024-02-01")},
			{ID: 2, PhaseID: 1, Number: 2, End: CrunchEnd},
		},
		CrunchTargets: []model.CrunchTarget{
			{ID: 1, CrunchID: 1, TargetID: 1},
			{ID: 2, CrunchID: 2, TargetID: 1},
		},
		Leaderboards: []model.Leaderboard{
			{ID: 1, CrunchTargetID: 1, DefinitionID: 1, Size: 2},
			{ID: 2, CrunchTargetID: 2, DefinitionID: 1, Size: 2},
			// same crunch under the non default definition, never used
			{ID: 3, CrunchTargetID: 2, DefinitionID: 2, Size: 2},
		},
		Positions: []model.Position{
			{LeaderboardID: 1, UserID: CarolID, Rank: 1, RewardRank: ptr(1.0)},
			{LeaderboardID: 2, UserID: AliceID, Rank: 1, RewardRank: ptr(1.0)},
			{LeaderboardID: 2, UserID: BobID, Rank: 2, RewardRank: ptr(2.0)},
			{LeaderboardID: 3, UserID: BobID, Rank: 1, RewardRank: ptr(1.0)},
		},
		Payouts: []model.Payout{
			{ID: 1, CompetitionID: FalconID, Date: PayoutDate, Size: 10, Type: model.PAYOUT_CHECKPOINT, Status: model.PAYOUT_PAID},
			{ID: 2, CompetitionID: FalconID, Date: Day("2024-03-17"), Size: 10, Type: model.PAYOUT_CHECKPOINT, Status: "PENDING"},
		},
		PayoutRecipients: []model.PayoutRecipient{
			{ID: 1, PayoutID: 1, UserID: CarolID, Rank: 1},
			{ID: 2, PayoutID: 2, UserID: CarolID, Rank: 1},
		},
		LegacyEntries: []model.LegacyLeaderboardEntry{
			{UserID: BobID, CrunchDate: Day("2024-01-15"), CrunchNumber: 7, CrunchSize: 100, Rank: 3},
		},
		Participants: []model.Participant{
			{UserID: AliceID, CreatedAt: ptr(time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC))},
			{UserID: BobID},
			{UserID: CarolID, CreatedAt: ptr(time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC))},
		},
		SubmissionCounts: []model.DailySubmissionCount{
			{UserID: AliceID, Date: Day("2024-02-20"), Count: 3},
			{UserID: AliceID, Date: Day("2024-03-02"), Count: 1},
			{UserID: CarolID, Date: Day("2024-03-08"), Count: 5},
		},
	}
}

type TestDB struct {
	DB    db.DB
	Clock *clock.Mock
}

// NewTestDB returns an in-memory db holding Fixture(universityURL), with a clock
// set to noon of CrunchEnd.
func NewTestDB(universityURL string) *TestDB {
	clock := clock.NewMock()
	clock.Set(CrunchEnd.Add(12 * time.Hour))

	db := db.NewMemory(Fixture(universityURL), clock, scoring.DefaultParameters())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Load(ctx); err != nil {
		log.Fatalf("error loading test data set: %v", err)
	}

	return &TestDB{
		DB:    db,
		Clock: clock,
	}
}
