package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/mww/global_leaderboard/db"
	"github.com/mww/global_leaderboard/model"
)

// resolveInstitutions maps every user with at least one event and a known
// university to an institution, creating institutions and memberships that do
// not exist yet. Users whose university is unknown are left out.
// Returns the institution of each mapped user and the number of institutions created.
func (c *controller) resolveInstitutions(ctx context.Context, users []model.User, events map[int64][]model.ScoredEvent) (map[int64]*model.Institution, int, error) {
	start := c.clock.Now()

	usersByName := make(map[string][]*model.User)
	universityByName := make(map[string]model.University)

	for i := range users {
		u := &users[i]
		if len(events[u.ID]) == 0 || !u.HasUniversity() {
			continue
		}

		university, err := c.db.FindUniversityByDisplayName(ctx, u.University)
		if errors.Is(err, db.ErrUniversityNotFound) {
			continue
		} else if err != nil {
			return nil, 0, fmt.Errorf("error finding university '%s': %w", u.University, err)
		}

		name := model.InstitutionName(u.University)
		usersByName[name] = append(usersByName[name], u)
		universityByName[name] = *university
	}

	names := make([]string, 0, len(usersByName))
	for name := range usersByName {
		names = append(names, name)
	}
	slices.Sort(names)

	existing := make(map[string]*model.Institution)
	missing := make(map[string]model.University)
	for _, name := range names {
		i, err := c.db.FindInstitutionByName(ctx, name)
		if errors.Is(err, db.ErrInstitutionNotFound) {
			missing[name] = universityByName[name]
			continue
		} else if err != nil {
			return nil, 0, fmt.Errorf("error finding institution %s: %w", name, err)
		}
		existing[name] = i
	}

	var descriptions map[string]*string
	if len(missing) > 0 {
		descriptions = c.enrich.Describe(ctx, missing)
	}

	now := c.clock.Now()
	created := 0
	result := make(map[int64]*model.Institution)

	for _, name := range names {
		members := usersByName[name]

		institution, found := existing[name]
		if !found {
			university := universityByName[name]
			institution = model.NewInstitution(name, &university, len(members), descriptions[name], now)
			if err := c.db.AddInstitution(ctx, institution); err != nil {
				return nil, 0, fmt.Errorf("error creating institution %s: %w", name, err)
			}
			created++
		}

		for _, u := range members {
			isMember, err := c.db.IsInstitutionMember(ctx, institution.ID, u.ID)
			if err != nil {
				return nil, 0, fmt.Errorf("error checking membership of user %d in institution %d: %w", u.ID, institution.ID, err)
			}
			if !isMember {
				m := &model.InstitutionMember{
					InstitutionID: institution.ID,
					UserID:        u.ID,
					CreatedAt:     now,
					UpdatedAt:     now,
				}
				if err := c.db.AddInstitutionMember(ctx, m); err != nil {
					return nil, 0, fmt.Errorf("error adding user %d to institution %d: %w", u.ID, institution.ID, err)
				}
			}
			result[u.ID] = institution
		}
	}

	log.Printf("resolved %d institutions (%d created) for %d users in %v", len(names), created, len(result), c.clock.Now().Sub(start))
	return result, created, nil
}
