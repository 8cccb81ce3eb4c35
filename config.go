package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mww/global_leaderboard/model"
	"github.com/mww/global_leaderboard/scoring"
)

type config struct {
	connString                string
	redisAddr                 string
	runLockTTL                time.Duration
	openAIKey                 string
	skipUniversityDescription bool
	maxRewardRank             int
	decayDays                 float64
	port                      int
	adminUser                 string
	adminPassword             string
}

func loadConfig(getenv func(string) string) (*config, error) {
	cfg := &config{
		connString:    getenv("POSTGRES_CONN_STR"),
		redisAddr:     getenv("REDIS_ADDR"),
		runLockTTL:    10 * time.Minute,
		openAIKey:     getenv("OPENAI_API_KEY"),
		maxRewardRank: scoring.DefaultMaxRewardRank,
		decayDays:     scoring.DefaultDecayConstant,
		port:          3000, // 3000 is the default
		adminUser:     getenv("ADMIN_USER"),
		adminPassword: getenv("ADMIN_PASSWORD"),
	}
	if cfg.connString == "" {
		return nil, errors.New("POSTGRES_CONN_STR is required")
	}

	var err error
	if v := getenv("RUN_LOCK_TTL"); v != "" {
		if cfg.runLockTTL, err = time.ParseDuration(v); err != nil || cfg.runLockTTL <= 0 {
			return nil, fmt.Errorf("invalid RUN_LOCK_TTL '%s'", v)
		}
	}
	if v := getenv("SKIP_UNIVERSITY_DESCRIPTION"); v != "" {
		if cfg.skipUniversityDescription, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid SKIP_UNIVERSITY_DESCRIPTION '%s': %w", v, err)
		}
	}
	if v := getenv("POINTS_MAX_REWARD_RANK"); v != "" {
		if cfg.maxRewardRank, err = strconv.Atoi(v); err != nil || cfg.maxRewardRank < 1 {
			return nil, fmt.Errorf("invalid POINTS_MAX_REWARD_RANK '%s'", v)
		}
	}
	if v := getenv("POINTS_DECAY_DAYS"); v != "" {
		if cfg.decayDays, err = strconv.ParseFloat(v, 64); err != nil || cfg.decayDays <= 0 {
			return nil, fmt.Errorf("invalid POINTS_DECAY_DAYS '%s'", v)
		}
	}
	if v := getenv("PORT"); v != "" {
		if cfg.port, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("error parsing port number: %w", err)
		}
	}
	return cfg, nil
}

// dateList collects repeated -date flags.
type dateList []time.Time

func (d *dateList) String() string {
	s := make([]string, len(*d))
	for i, t := range *d {
		s[i] = t.Format(time.DateOnly)
	}
	return strings.Join(s, ",")
}

func (d *dateList) Set(v string) error {
	t, err := model.ParseDate(v)
	if err != nil {
		return err
	}
	*d = append(*d, t)
	return nil
}
