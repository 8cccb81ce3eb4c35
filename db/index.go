package db

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mww/global_leaderboard/model"
)

type pair [2]int64

type dayCount struct {
	day        time.Time
	cumulative int
}

type index struct {
	universityByDisplayName map[string]*model.University
	competitions            []model.Competition
	users                   []model.User
	userByID                map[int64]*model.User
	definitionByCompetition map[int64]*model.LeaderboardDefinition
	targetsByCompetition    map[int64][]model.Target
	roundsByCompetition     map[int64][]model.Round
	phasesByRound           map[int64][]model.Phase
	crunchesByPhase         map[int64][]model.Crunch
	payoutsByCompetition    map[int64][]model.Payout
	legacyByUser            map[int64][]model.LegacyLeaderboardEntry
	participantsByUser      map[int64][]model.Participant
	submissionsByUser       map[int64][]dayCount

	// keyed by (crunch, target)
	crunchTargetByPair map[pair]*model.CrunchTarget
	// keyed by (crunch target, definition)
	leaderboardByPair map[pair]*model.Leaderboard
	// keyed by (leaderboard, user)
	positionByPair map[pair]*model.Position
	// keyed by (leaderboard, team)
	teamBestRank map[pair]float64
	// keyed by (competition, user)
	teamByCompetitionUser map[pair]*model.Team
	// keyed by (payout, user)
	recipientByPair map[pair]*model.PayoutRecipient

	// Institutions are the only part written during a run.
	instMu               sync.RWMutex
	institutionByID      map[int64]*model.Institution
	institutionByName    map[string]*model.Institution
	membersByInstitution map[int64]map[int64]bool
}

func buildIndex(ds *Dataset, maxRewardRank int) (*index, error) {
	idx := &index{}
	var err error

	idx.universityByDisplayName, err = toMap("university", ds.Universities,
		func(u *model.University) string { return u.Name }, ptr[model.University], keepFirst[*model.University])
	if err != nil {
		return nil, err
	}

	idx.competitions = listedCompetitions(ds.Competitions)

	idx.users = activeUsers(ds)
	idx.userByID, err = toMap("user", idx.users, func(u *model.User) int64 { return u.ID }, ptr[model.User], nil)
	if err != nil {
		return nil, err
	}
	if _, err := toMap("user login", idx.users, func(u *model.User) string { return u.Login }, ptr[model.User], nil); err != nil {
		return nil, err
	}

	defaults := filter(ds.Definitions, func(d *model.LeaderboardDefinition) bool { return d.Default })
	idx.definitionByCompetition, err = toMap("default leaderboard definition", defaults,
		func(d *model.LeaderboardDefinition) int64 { return d.CompetitionID }, ptr[model.LeaderboardDefinition], nil)
	if err != nil {
		return nil, err
	}

	idx.targetsByCompetition = groupBy(ds.Targets, func(t *model.Target) int64 { return t.CompetitionID })
	for id, targets := range idx.targetsByCompetition {
		if virtual := filter(targets, func(t *model.Target) bool { return t.Virtual }); len(virtual) > 0 {
			idx.targetsByCompetition[id] = virtual
		}
	}

	idx.roundsByCompetition = groupBy(ds.Rounds, func(r *model.Round) int64 { return r.CompetitionID })
	idx.phasesByRound = groupBy(ds.Phases, func(p *model.Phase) int64 { return p.RoundID })
	idx.crunchesByPhase = groupBy(ds.Crunches, func(c *model.Crunch) int64 { return c.PhaseID })
	for _, crunches := range idx.crunchesByPhase {
		slices.SortStableFunc(crunches, func(a, b model.Crunch) int { return cmp.Compare(a.Number, b.Number) })
	}

	idx.crunchTargetByPair, err = toMap("crunch target", ds.CrunchTargets,
		func(c *model.CrunchTarget) pair { return pair{c.CrunchID, c.TargetID} }, ptr[model.CrunchTarget], nil)
	if err != nil {
		return nil, err
	}

	idx.leaderboardByPair, err = toMap("leaderboard", ds.Leaderboards,
		func(l *model.Leaderboard) pair { return pair{l.CrunchTargetID, l.DefinitionID} }, ptr[model.Leaderboard], nil)
	if err != nil {
		return nil, err
	}

	if err := idx.indexPositions(ds.Positions); err != nil {
		return nil, err
	}
	if err := idx.indexTeams(ds.Teams, ds.TeamMembers); err != nil {
		return nil, err
	}
	if err := idx.indexPayouts(ds.Payouts, ds.PayoutRecipients, maxRewardRank); err != nil {
		return nil, err
	}

	idx.legacyByUser = groupBy(ds.LegacyEntries, func(e *model.LegacyLeaderboardEntry) int64 { return e.UserID })
	idx.participantsByUser = groupBy(ds.Participants, func(p *model.Participant) int64 { return p.UserID })
	idx.indexSubmissions(ds.SubmissionCounts)

	if err := idx.indexInstitutions(ds.Institutions, ds.InstitutionMembers); err != nil {
		return nil, err
	}

	return idx, nil
}

// The legacy competition goes first, whatever its visibility.
func listedCompetitions(all []model.Competition) []model.Competition {
	result := make([]model.Competition, 0, len(all))
	for _, c := range all {
		if c.Name == model.LegacyCompetitionName {
			result = append([]model.Competition{c}, result...)
			continue
		}
		if c.IsListed() {
			result = append(result, c)
		}
	}
	return result
}

func activeUsers(ds *Dataset) []model.User {
	seen := make(map[int64]bool)
	for _, p := range ds.Positions {
		seen[p.UserID] = true
	}
	for _, m := range ds.TeamMembers {
		seen[m.UserID] = true
	}
	for _, r := range ds.PayoutRecipients {
		seen[r.UserID] = true
	}
	return filter(ds.Users, func(u *model.User) bool { return seen[u.ID] })
}

func (idx *index) indexPositions(positions []model.Position) error {
	var err error
	idx.positionByPair, err = toMap("position", positions,
		func(p *model.Position) pair { return pair{p.LeaderboardID, p.UserID} }, ptr[model.Position],
		func(a, b *model.Position) *model.Position {
			if a.Rank < b.Rank {
				return a
			}
			return b
		})
	if err != nil {
		return err
	}

	ranked := filter(positions, func(p *model.Position) bool { return p.TeamID != nil && p.RewardRank != nil })
	idx.teamBestRank, err = toMap("team best rank", ranked,
		func(p *model.Position) pair { return pair{p.LeaderboardID, *p.TeamID} },
		func(p *model.Position) float64 { return float64(int(*p.RewardRank)) },
		func(a, b float64) float64 { return min(a, b) })
	return err
}

func (idx *index) indexTeams(teams []model.Team, members []model.TeamMember) error {
	teamByID, err := toMap("team", teams, func(t *model.Team) int64 { return t.ID }, ptr[model.Team], nil)
	if err != nil {
		return err
	}

	active := make([]model.TeamMember, 0, len(members))
	for _, m := range members {
		team, found := teamByID[m.TeamID]
		if !found {
			return fmt.Errorf("team member %d references unknown team %d", m.ID, m.TeamID)
		}
		if !team.Deleted {
			active = append(active, m)
		}
	}

	idx.teamByCompetitionUser, err = toMap("team member", active,
		func(m *model.TeamMember) pair { return pair{teamByID[m.TeamID].CompetitionID, m.UserID} },
		func(m *model.TeamMember) *model.Team { return teamByID[m.TeamID] }, nil)
	return err
}

func (idx *index) indexPayouts(payouts []model.Payout, recipients []model.PayoutRecipient, maxRewardRank int) error {
	paid := filter(payouts, func(p *model.Payout) bool { return p.IsPaidCheckpoint() })
	idx.payoutsByCompetition = groupBy(paid, func(p *model.Payout) int64 { return p.CompetitionID })

	paidIDs := make(map[int64]bool, len(paid))
	for _, p := range paid {
		paidIDs[p.ID] = true
	}

	rewarded := filter(recipients, func(r *model.PayoutRecipient) bool {
		return paidIDs[r.PayoutID] && r.Rank <= maxRewardRank
	})
	var err error
	idx.recipientByPair, err = toMap("payout recipient", rewarded,
		func(r *model.PayoutRecipient) pair { return pair{r.PayoutID, r.UserID} }, ptr[model.PayoutRecipient], nil)
	return err
}

func (idx *index) indexSubmissions(counts []model.DailySubmissionCount) {
	perDay := make(map[int64]map[time.Time]int)
	for _, c := range counts {
		days, ok := perDay[c.UserID]
		if !ok {
			days = make(map[time.Time]int)
			perDay[c.UserID] = days
		}
		days[model.Day(c.Date)] += c.Count
	}

	idx.submissionsByUser = make(map[int64][]dayCount, len(perDay))
	for userID, days := range perDay {
		series := make([]dayCount, 0, len(days))
		for day, count := range days {
			series = append(series, dayCount{day: day, cumulative: count})
		}
		slices.SortFunc(series, func(a, b dayCount) int { return a.day.Compare(b.day) })
		for i := 1; i < len(series); i++ {
			series[i].cumulative += series[i-1].cumulative
		}
		idx.submissionsByUser[userID] = series
	}
}

func (idx *index) submissionsUpTo(date time.Time) map[int64]int {
	date = model.Day(date)
	result := make(map[int64]int)
	for userID, series := range idx.submissionsByUser {
		n := sort.Search(len(series), func(i int) bool { return series[i].day.After(date) })
		if n > 0 {
			result[userID] = series[n-1].cumulative
		}
	}
	return result
}

func (idx *index) indexInstitutions(institutions []model.Institution, members []model.InstitutionMember) error {
	var err error
	idx.institutionByName, err = toMap("institution name", institutions,
		func(i *model.Institution) string { return i.Name }, ptr[model.Institution], nil)
	if err != nil {
		return err
	}
	idx.institutionByID, err = toMap("institution", institutions,
		func(i *model.Institution) int64 { return i.ID }, ptr[model.Institution], nil)
	if err != nil {
		return err
	}

	idx.membersByInstitution = make(map[int64]map[int64]bool)
	for _, m := range members {
		idx.addMember(m.InstitutionID, m.UserID)
	}
	return nil
}

func (idx *index) addInstitution(i *model.Institution) {
	idx.instMu.Lock()
	defer idx.instMu.Unlock()

	cp := *i
	idx.institutionByName[cp.Name] = &cp
	idx.institutionByID[cp.ID] = &cp
}

func (idx *index) addMember(institutionID, userID int64) {
	users, ok := idx.membersByInstitution[institutionID]
	if !ok {
		users = make(map[int64]bool)
		idx.membersByInstitution[institutionID] = users
	}
	users[userID] = true
}

// toMap indexes items by key. Without a merge function a repeated key is an error.
func toMap[K comparable, T any, V any](name string, items []T, key func(*T) K, value func(*T) V, merge func(a, b V) V) (map[K]V, error) {
	m := make(map[K]V, len(items))
	for i := range items {
		k := key(&items[i])
		v := value(&items[i])
		if prev, ok := m[k]; ok {
			if merge == nil {
				return nil, &DuplicateKeyError{Index: name, Key: k}
			}
			v = merge(prev, v)
		}
		m[k] = v
	}
	return m, nil
}

func groupBy[K comparable, T any](items []T, key func(*T) K) map[K][]T {
	m := make(map[K][]T)
	for i := range items {
		k := key(&items[i])
		m[k] = append(m[k], items[i])
	}
	return m
}

func filter[T any](items []T, keep func(*T) bool) []T {
	var result []T
	for i := range items {
		if keep(&items[i]) {
			result = append(result, items[i])
		}
	}
	return result
}

func ptr[T any](t *T) *T {
	cp := *t
	return &cp
}

func keepFirst[V any](a, _ V) V {
	return a
}
