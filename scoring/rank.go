package scoring

import (
	"cmp"
	"slices"
)

type Item[K cmp.Ordered] struct {
	ID     K
	Points int64
}

type Ranked[K cmp.Ordered] struct {
	ID     K
	Points int64
	Rank   int
}

// RankByPoints sorts by points then id, both descending, assigns positional
// ranks and lets equal points share the rank of the first of their run.
// The result is in rank order.
func RankByPoints[K cmp.Ordered](items []Item[K]) []Ranked[K] {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b Item[K]) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	ranked := make([]Ranked[K], len(sorted))
	for i, item := range sorted {
		ranked[i] = Ranked[K]{ID: item.ID, Points: item.Points, Rank: i + 1}
	}

	ApplyTies(ranked,
		func(r *Ranked[K]) int64 { return r.Points },
		func(r *Ranked[K]) int { return r.Rank },
		func(r *Ranked[K], rank int) { r.Rank = rank })
	return ranked
}

// ApplyTies walks seq in rank order and gives every element whose points equal
// its predecessor's the predecessor's rank.
func ApplyTies[T any](seq []T, points func(*T) int64, rank func(*T) int, setRank func(*T, int)) {
	for i := 1; i < len(seq); i++ {
		prev, cur := &seq[i-1], &seq[i]
		if points(cur) == points(prev) {
			setRank(cur, rank(prev))
		}
	}
}

func Index[K cmp.Ordered](ranked []Ranked[K]) map[K]Ranked[K] {
	m := make(map[K]Ranked[K], len(ranked))
	for _, r := range ranked {
		m[r.ID] = r
	}
	return m
}
