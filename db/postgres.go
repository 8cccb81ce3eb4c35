package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mww/global_leaderboard/model"
	"github.com/mww/global_leaderboard/scoring"
)

const uniqueViolation = "23505"

func New(ctx context.Context, connString string, clock clock.Clock, params scoring.Parameters) (DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &postgresDB{pool: pool, clock: clock, params: params}, nil
}

type postgresDB struct {
	indexed

	pool   *pgxpool.Pool
	clock  clock.Clock
	params scoring.Parameters
}

func (db *postgresDB) Load(ctx context.Context) error {
	start := db.clock.Now()

	ds, err := db.readDataset(ctx)
	if err != nil {
		return fmt.Errorf("error reading data set: %w", err)
	}

	idx, err := buildIndex(ds, db.params.MaxRewardRank)
	if err != nil {
		return fmt.Errorf("error indexing data set: %w", err)
	}
	db.idx.Store(idx)

	log.Printf("loaded %d users, %d competitions and %d positions in %v",
		len(idx.users), len(idx.competitions), len(ds.Positions), db.clock.Now().Sub(start))
	return nil
}

// readDataset reads every table in one batch inside a read-only transaction so
// the rows are consistent with each other.
func (db *postgresDB) readDataset(ctx context.Context) (*Dataset, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ds := &Dataset{}
	b := &pgx.Batch{}

	queue(b, `SELECT id, name, url, country_alpha3 FROM universities ORDER BY id`, &ds.Universities,
		func(row pgx.CollectableRow) (model.University, error) {
			var u model.University
			var url, country pgtype.Text
			err := row.Scan(&u.ID, &u.Name, &url, &country)
			u.URL = url.String
			u.CountryAlpha3 = country.String
			return u, err
		})

	queue(b, `SELECT id, name, mode, start_at, prize_pool_usd, visibility, external FROM competitions ORDER BY id`, &ds.Competitions,
		func(row pgx.CollectableRow) (model.Competition, error) {
			var c model.Competition
			var mode string
			err := row.Scan(&c.ID, &c.Name, &mode, &c.Start, &c.PrizePoolUSD, &c.Visibility, &c.External)
			c.Mode = model.ParseMode(mode)
			c.Start = c.Start.UTC()
			return c, err
		})

	queue(b, `SELECT id, login, university FROM users ORDER BY id`, &ds.Users,
		func(row pgx.CollectableRow) (model.User, error) {
			var u model.User
			var university pgtype.Text
			err := row.Scan(&u.ID, &u.Login, &university)
			u.University = university.String
			return u, err
		})

	queue(b, `SELECT id, competition_id, is_default FROM leaderboard_definitions ORDER BY id`, &ds.Definitions,
		func(row pgx.CollectableRow) (model.LeaderboardDefinition, error) {
			var d model.LeaderboardDefinition
			err := row.Scan(&d.ID, &d.CompetitionID, &d.Default)
			return d, err
		})

	queue(b, `SELECT id, competition_id, name, weight, virtual FROM targets ORDER BY id`, &ds.Targets,
		func(row pgx.CollectableRow) (model.Target, error) {
			var t model.Target
			err := row.Scan(&t.ID, &t.CompetitionID, &t.Name, &t.Weight, &t.Virtual)
			return t, err
		})

	queue(b, `SELECT id, competition_id, end_at FROM rounds ORDER BY id`, &ds.Rounds,
		func(row pgx.CollectableRow) (model.Round, error) {
			var r model.Round
			err := row.Scan(&r.ID, &r.CompetitionID, &r.End)
			r.End = r.End.UTC()
			return r, err
		})

	queue(b, `SELECT id, round_id, type, per_crunch_weight FROM phases ORDER BY id`, &ds.Phases,
		func(row pgx.CollectableRow) (model.Phase, error) {
			var p model.Phase
			var phaseType string
			err := row.Scan(&p.ID, &p.RoundID, &phaseType, &p.PerCrunchWeight)
			p.Type = model.ParsePhaseType(phaseType)
			return p, err
		})

	queue(b, `SELECT id, phase_id, number, end_at FROM crunches ORDER BY phase_id, number`, &ds.Crunches,
		func(row pgx.CollectableRow) (model.Crunch, error) {
			var c model.Crunch
			err := row.Scan(&c.ID, &c.PhaseID, &c.Number, &c.End)
			c.End = c.End.UTC()
			return c, err
		})

	queue(b, `SELECT id, crunch_id, target_id FROM crunch_targets`, &ds.CrunchTargets,
		func(row pgx.CollectableRow) (model.CrunchTarget, error) {
			var c model.CrunchTarget
			err := row.Scan(&c.ID, &c.CrunchID, &c.TargetID)
			return c, err
		})

	queue(b, `SELECT id, crunch_target_id, definition_id, size FROM leaderboards`, &ds.Leaderboards,
		func(row pgx.CollectableRow) (model.Leaderboard, error) {
			var l model.Leaderboard
			err := row.Scan(&l.ID, &l.CrunchTargetID, &l.DefinitionID, &l.Size)
			return l, err
		})

	queue(b, `SELECT leaderboard_id, user_id, team_id, rank, reward_rank FROM positions ORDER BY id`, &ds.Positions,
		func(row pgx.CollectableRow) (model.Position, error) {
			var p model.Position
			err := row.Scan(&p.LeaderboardID, &p.UserID, &p.TeamID, &p.Rank, &p.RewardRank)
			return p, err
		})

	queue(b, `SELECT id, competition_id, deleted FROM teams`, &ds.Teams,
		func(row pgx.CollectableRow) (model.Team, error) {
			var t model.Team
			err := row.Scan(&t.ID, &t.CompetitionID, &t.Deleted)
			return t, err
		})

	queue(b, `SELECT id, team_id, user_id FROM team_members`, &ds.TeamMembers,
		func(row pgx.CollectableRow) (model.TeamMember, error) {
			var m model.TeamMember
			err := row.Scan(&m.ID, &m.TeamID, &m.UserID)
			return m, err
		})

	queue(b, `SELECT id, competition_id, date, size, type, status FROM payouts ORDER BY date, id`, &ds.Payouts,
		func(row pgx.CollectableRow) (model.Payout, error) {
			var p model.Payout
			err := row.Scan(&p.ID, &p.CompetitionID, &p.Date, &p.Size, &p.Type, &p.Status)
			return p, err
		})

	queue(b, `SELECT id, payout_id, user_id, rank FROM payout_recipients`, &ds.PayoutRecipients,
		func(row pgx.CollectableRow) (model.PayoutRecipient, error) {
			var r model.PayoutRecipient
			err := row.Scan(&r.ID, &r.PayoutID, &r.UserID, &r.Rank)
			return r, err
		})

	queue(b, `SELECT user_id, crunch_date, crunch_number, crunch_size, rank FROM legacy_leaderboard_entries ORDER BY crunch_date, id`, &ds.LegacyEntries,
		func(row pgx.CollectableRow) (model.LegacyLeaderboardEntry, error) {
			var e model.LegacyLeaderboardEntry
			err := row.Scan(&e.UserID, &e.CrunchDate, &e.CrunchNumber, &e.CrunchSize, &e.Rank)
			return e, err
		})

	queue(b, `SELECT user_id, created_at FROM participants`, &ds.Participants,
		func(row pgx.CollectableRow) (model.Participant, error) {
			var p model.Participant
			var createdAt pgtype.Timestamptz
			err := row.Scan(&p.UserID, &createdAt)
			if createdAt.Valid {
				t := createdAt.Time.UTC()
				p.CreatedAt = &t
			}
			return p, err
		})

	queue(b, `SELECT user_id, date, SUM(count)::int FROM (
				SELECT user_id, CAST(created_at AS DATE) AS date, COUNT(*) AS count FROM submissions GROUP BY user_id, date
				UNION ALL
				SELECT user_id, CAST(uploaded_at AS DATE) AS date, COUNT(*) AS count FROM legacy_submissions GROUP BY user_id, date
			) AS daily GROUP BY user_id, date`, &ds.SubmissionCounts,
		func(row pgx.CollectableRow) (model.DailySubmissionCount, error) {
			var c model.DailySubmissionCount
			err := row.Scan(&c.UserID, &c.Date, &c.Count)
			return c, err
		})

	queue(b, `SELECT id, name, display_name, country, total_points, member_count, global_rank,
				about, website_url, twitter_url, linked_in_url, created_at, updated_at
			FROM institutions`, &ds.Institutions, scanInstitution)

	queue(b, `SELECT id, institution_id, user_id, rank, created_at, updated_at FROM institution_members`, &ds.InstitutionMembers,
		func(row pgx.CollectableRow) (model.InstitutionMember, error) {
			var m model.InstitutionMember
			err := row.Scan(&m.ID, &m.InstitutionID, &m.UserID, &m.Rank, &m.CreatedAt, &m.UpdatedAt)
			return m, err
		})

	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return nil, err
	}
	return ds, nil
}

func queue[T any](b *pgx.Batch, query string, dst *[]T, scan pgx.RowToFunc[T]) {
	b.Queue(query).Query(func(rows pgx.Rows) error {
		result, err := pgx.CollectRows(rows, scan)
		if err != nil {
			return fmt.Errorf("error scanning '%.40s': %w", query, err)
		}
		*dst = result
		return nil
	})
}

func scanInstitution(row pgx.CollectableRow) (model.Institution, error) {
	var i model.Institution
	err := row.Scan(&i.ID, &i.Name, &i.DisplayName, &i.Country, &i.TotalPoints, &i.MemberCount, &i.GlobalRank,
		&i.About, &i.WebsiteURL, &i.TwitterURL, &i.LinkedInURL, &i.CreatedAt, &i.UpdatedAt)
	i.CreatedAt = i.CreatedAt.UTC()
	i.UpdatedAt = i.UpdatedAt.UTC()
	return i, err
}

func (db *postgresDB) AddInstitution(ctx context.Context, i *model.Institution) error {
	const query = `INSERT INTO institutions (name, display_name, country, total_points, member_count, global_rank,
						about, website_url, twitter_url, linked_in_url, created_at, updated_at)
					VALUES (@name, @displayName, @country, @totalPoints, @memberCount, @globalRank,
						@about, @websiteURL, @twitterURL, @linkedInURL, @createdAt, @updatedAt)
					RETURNING id`

	args := pgx.NamedArgs{
		"name":        i.Name,
		"displayName": i.DisplayName,
		"country":     i.Country,
		"totalPoints": i.TotalPoints,
		"memberCount": i.MemberCount,
		"globalRank":  i.GlobalRank,
		"about":       i.About,
		"websiteURL":  i.WebsiteURL,
		"twitterURL":  i.TwitterURL,
		"linkedInURL": i.LinkedInURL,
		"createdAt":   i.CreatedAt,
		"updatedAt":   i.UpdatedAt,
	}

	if err := db.pool.QueryRow(ctx, query, args).Scan(&i.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return &DuplicateKeyError{Index: "institution name", Key: i.Name}
		}
		return fmt.Errorf("error inserting institution %s: %w", i.Name, err)
	}

	db.recordInstitution(i)
	return nil
}

func (db *postgresDB) AddInstitutionMember(ctx context.Context, m *model.InstitutionMember) error {
	const query = `INSERT INTO institution_members (institution_id, user_id, rank, created_at, updated_at)
					VALUES (@institutionID, @userID, @rank, @createdAt, @updatedAt)
					ON CONFLICT (institution_id, user_id) DO NOTHING
					RETURNING id`

	args := pgx.NamedArgs{
		"institutionID": m.InstitutionID,
		"userID":        m.UserID,
		"rank":          m.Rank,
		"createdAt":     m.CreatedAt,
		"updatedAt":     m.UpdatedAt,
	}

	err := db.pool.QueryRow(ctx, query, args).Scan(&m.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("error inserting member %d of institution %d: %w", m.UserID, m.InstitutionID, err)
	}

	db.recordMember(m)
	return nil
}

func (db *postgresDB) GetBestRankPerUserBefore(ctx context.Context, date time.Time) (map[int64]int, error) {
	const query = `SELECT user_id, best_rank FROM global_user_positions
					WHERE leaderboard_id = (SELECT id FROM global_leaderboards WHERE date < @date ORDER BY date DESC LIMIT 1)`

	rows, err := db.pool.Query(ctx, query, pgx.NamedArgs{"date": model.Day(date)})
	if err != nil {
		return nil, fmt.Errorf("error querying best ranks before %s: %w", date.Format(time.DateOnly), err)
	}
	defer rows.Close()

	result := make(map[int64]int)
	var userID int64
	var bestRank int
	_, err = pgx.ForEachRow(rows, []any{&userID, &bestRank}, func() error {
		result[userID] = bestRank
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning best ranks: %w", err)
	}
	return result, nil
}

const globalLeaderboardColumns = `id, date, user_count, institution_count, published, created_at, updated_at`

func scanGlobalLeaderboard(row pgx.CollectableRow) (model.GlobalLeaderboard, error) {
	var g model.GlobalLeaderboard
	err := row.Scan(&g.ID, &g.Date, &g.UserCount, &g.InstitutionCount, &g.Published, &g.CreatedAt, &g.UpdatedAt)
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return g, err
}

func (db *postgresDB) ListGlobalLeaderboards(ctx context.Context) ([]model.GlobalLeaderboard, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+globalLeaderboardColumns+` FROM global_leaderboards ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("error listing global leaderboards: %w", err)
	}
	return pgx.CollectRows(rows, scanGlobalLeaderboard)
}

func (db *postgresDB) GetGlobalLeaderboard(ctx context.Context, date time.Time) (*model.GlobalLeaderboardSnapshot, error) {
	args := pgx.NamedArgs{"date": model.Day(date)}

	rows, err := db.pool.Query(ctx, `SELECT `+globalLeaderboardColumns+` FROM global_leaderboards WHERE date=@date`, args)
	if err != nil {
		return nil, fmt.Errorf("error querying global leaderboard: %w", err)
	}
	header, err := pgx.CollectExactlyOneRow(rows, scanGlobalLeaderboard)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGlobalLeaderboardNotFound
		}
		return nil, fmt.Errorf("error scanning global leaderboard: %w", err)
	}

	s := &model.GlobalLeaderboardSnapshot{Leaderboard: header}
	idArgs := pgx.NamedArgs{"id": header.ID}

	rows, err = db.pool.Query(ctx, `SELECT leaderboard_id, user_id, institution_id, rank, institution_member_rank,
						points, best_rank, participation_count, submission_count
					FROM global_user_positions WHERE leaderboard_id=@id ORDER BY rank, user_id DESC`, idArgs)
	if err != nil {
		return nil, fmt.Errorf("error querying user positions: %w", err)
	}
	s.Users, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.GlobalUserPosition, error) {
		var p model.GlobalUserPosition
		err := row.Scan(&p.LeaderboardID, &p.UserID, &p.InstitutionID, &p.Rank, &p.InstitutionMemberRank,
			&p.Points, &p.BestRank, &p.ParticipationCount, &p.SubmissionCount)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning user positions: %w", err)
	}

	rows, err = db.pool.Query(ctx, `SELECT leaderboard_id, institution_id, rank, total_points, user_count,
						top_user_1_id, top_user_2_id, top_user_3_id, average_points_per_user
					FROM global_institution_positions WHERE leaderboard_id=@id ORDER BY rank, institution_id DESC`, idArgs)
	if err != nil {
		return nil, fmt.Errorf("error querying institution positions: %w", err)
	}
	s.Institutions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.GlobalInstitutionPosition, error) {
		var p model.GlobalInstitutionPosition
		err := row.Scan(&p.LeaderboardID, &p.InstitutionID, &p.Rank, &p.TotalPoints, &p.UserCount,
			&p.TopUser1ID, &p.TopUser2ID, &p.TopUser3ID, &p.AveragePointsPerUser)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning institution positions: %w", err)
	}

	rows, err = db.pool.Query(ctx, `SELECT leaderboard_id, institution_id, competition_id, best_user_id,
						best_user_leaderboard_rank, member_count, total_points, created_at
					FROM institution_participations WHERE leaderboard_id=@id ORDER BY institution_id, competition_id`, idArgs)
	if err != nil {
		return nil, fmt.Errorf("error querying institution participations: %w", err)
	}
	s.Participations, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.InstitutionParticipation, error) {
		var p model.InstitutionParticipation
		err := row.Scan(&p.LeaderboardID, &p.InstitutionID, &p.CompetitionID, &p.BestUserID,
			&p.BestUserLeaderboardRank, &p.MemberCount, &p.TotalPoints, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning institution participations: %w", err)
	}

	return s, nil
}

func (db *postgresDB) ReplaceGlobalLeaderboard(ctx context.Context, s *model.GlobalLeaderboardSnapshot) error {
	const deleteChildren = `DELETE FROM %s WHERE leaderboard_id IN (SELECT id FROM global_leaderboards WHERE date=@date)`
	const insertHeader = `INSERT INTO global_leaderboards (date, user_count, institution_count, published, created_at, updated_at)
						VALUES (@date, @userCount, @institutionCount, @published, @createdAt, @updatedAt)
						RETURNING id`

	s.Leaderboard.Date = model.Day(s.Leaderboard.Date)
	args := pgx.NamedArgs{
		"date":             s.Leaderboard.Date,
		"userCount":        s.Leaderboard.UserCount,
		"institutionCount": s.Leaderboard.InstitutionCount,
		"published":        s.Leaderboard.Published,
		"createdAt":        s.Leaderboard.CreatedAt,
		"updatedAt":        s.Leaderboard.UpdatedAt,
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"global_user_positions", "global_institution_positions", "institution_participations"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(deleteChildren, table), args); err != nil {
			return fmt.Errorf("error deleting %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM global_leaderboards WHERE date=@date`, args); err != nil {
		return fmt.Errorf("error deleting global leaderboard: %w", err)
	}

	if err := tx.QueryRow(ctx, insertHeader, args).Scan(&s.Leaderboard.ID); err != nil {
		return fmt.Errorf("error inserting global leaderboard: %w", err)
	}
	setLeaderboardID(s)

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"global_user_positions"},
		[]string{"leaderboard_id", "user_id", "institution_id", "rank", "institution_member_rank",
			"points", "best_rank", "participation_count", "submission_count"},
		pgx.CopyFromSlice(len(s.Users), func(i int) ([]any, error) {
			p := &s.Users[i]
			return []any{p.LeaderboardID, p.UserID, p.InstitutionID, p.Rank, p.InstitutionMemberRank,
				p.Points, p.BestRank, p.ParticipationCount, p.SubmissionCount}, nil
		}))
	if err != nil {
		return fmt.Errorf("error copying user positions: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"global_institution_positions"},
		[]string{"leaderboard_id", "institution_id", "rank", "total_points", "user_count",
			"top_user_1_id", "top_user_2_id", "top_user_3_id", "average_points_per_user"},
		pgx.CopyFromSlice(len(s.Institutions), func(i int) ([]any, error) {
			p := &s.Institutions[i]
			return []any{p.LeaderboardID, p.InstitutionID, p.Rank, p.TotalPoints, p.UserCount,
				p.TopUser1ID, p.TopUser2ID, p.TopUser3ID, p.AveragePointsPerUser}, nil
		}))
	if err != nil {
		return fmt.Errorf("error copying institution positions: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"institution_participations"},
		[]string{"leaderboard_id", "institution_id", "competition_id", "best_user_id",
			"best_user_leaderboard_rank", "member_count", "total_points", "created_at"},
		pgx.CopyFromSlice(len(s.Participations), func(i int) ([]any, error) {
			p := &s.Participations[i]
			return []any{p.LeaderboardID, p.InstitutionID, p.CompetitionID, p.BestUserID,
				p.BestUserLeaderboardRank, p.MemberCount, p.TotalPoints, p.CreatedAt}, nil
		}))
	if err != nil {
		return fmt.Errorf("error copying institution participations: %w", err)
	}

	return tx.Commit(ctx)
}
