package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/joho/godotenv"
	"github.com/mww/global_leaderboard/controller"
	"github.com/mww/global_leaderboard/db"
	"github.com/mww/global_leaderboard/enrich"
	"github.com/mww/global_leaderboard/lock"
	"github.com/mww/global_leaderboard/model"
	"github.com/mww/global_leaderboard/scoring"
	"github.com/mww/global_leaderboard/web"
	"github.com/redis/go-redis/v9"
)

const runLockKey = "global-leaderboard:compute"

func main() {
	var dates dateList
	from := flag.String("from", "", "first date to compute, YYYY-MM-DD")
	to := flag.String("to", "", "last date to compute, YYYY-MM-DD, defaults to -from")
	flag.Var(&dates, "date", "a date to compute, YYYY-MM-DD, can be repeated")
	serve := flag.Bool("serve", false, "serve the API and recompute the current day periodically")
	flag.Parse()

	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("error reading configuration: %v", err)
	}

	if *from != "" {
		r, err := dateRange(*from, *to)
		if err != nil {
			log.Fatalf("%v", err)
		}
		dates = append(dates, r...)
	} else if *to != "" {
		log.Fatalf("-to requires -from")
	}
	if len(dates) == 0 && !*serve {
		log.Fatalf("nothing to do: give -from/-to, -date or -serve")
	}

	clock := clock.New()
	params := scoring.Parameters{MaxRewardRank: cfg.maxRewardRank, DecayConstant: cfg.decayDays}

	db, err := db.New(context.Background(), cfg.connString, clock, params)
	if err != nil {
		log.Fatalf("cannot connect to DB: %v", err)
	}

	locker, err := newLocker(cfg)
	if err != nil {
		log.Fatalf("error creating run lock: %v", err)
	}

	ctrl, err := controller.New(clock, db, newEnrichClient(cfg), locker, scoring.NewScorer(params, nil))
	if err != nil {
		log.Fatalf("error creating a new controller: %v", err)
	}

	if len(dates) > 0 {
		summary, err := ctrl.ComputeLeaderboards(context.Background(), dates)
		if err != nil {
			log.Fatalf("error computing leaderboards: %v", err)
		}
		log.Printf("computed %d leaderboards for %d users (%d events, %d institutions created) in %v",
			len(summary.Leaderboards), summary.UserCount, summary.EventCount, summary.CreatedInstitutionCount, summary.Duration)
	}

	if !*serve {
		return
	}

	server, err := web.NewServer(cfg.port, ctrl, web.Admin{User: cfg.adminUser, Password: cfg.adminPassword})
	if err != nil {
		log.Fatalf("error creating new web server: %v", err)
	}

	shutdown := make(chan bool)
	wg := &sync.WaitGroup{}

	// Setup a handler to catch ctrl-c signals and properly shutdown everything.
	intChannel := make(chan os.Signal, 2)
	signal.Notify(intChannel, os.Interrupt)
	go func() {
		<-intChannel
		close(shutdown)

		if err := waitTimeout(wg, 10*time.Second); err != nil {
			log.Printf("timed out waiting for proper shutdown")
			os.Exit(255)
		}
	}()

	// Setup a job that recomputes the leaderboard of the current day every 24-hours
	wg.Add(1)
	go ctrl.RunPeriodicLeaderboardUpdates(24*time.Hour, shutdown, wg)

	// Start the web server
	wg.Add(1)
	go server.ListenAndServe(shutdown, wg)

	// Wait for everything to stop.
	wg.Wait()
	log.Printf("server shutdown")
}

func newLocker(cfg *config) (lock.Locker, error) {
	if cfg.redisAddr == "" {
		log.Printf("REDIS_ADDR not set, runs are only exclusive within this process")
		return lock.NewLocal(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return lock.NewRedis(client, runLockKey, cfg.runLockTTL), nil
}

func newEnrichClient(cfg *config) enrich.Client {
	if cfg.skipUniversityDescription {
		return enrich.NewNop()
	}
	if cfg.openAIKey == "" {
		return enrich.New(nil)
	}
	return enrich.New(enrich.NewOpenAIRephraser(cfg.openAIKey))
}

func dateRange(from, to string) ([]time.Time, error) {
	start, err := model.ParseDate(from)
	if err != nil {
		return nil, err
	}
	end := start
	if to != "" {
		if end, err = model.ParseDate(to); err != nil {
			return nil, err
		}
	}
	if end.Before(start) {
		return nil, errors.New("-to must not be before -from")
	}
	return model.DailyDateRange(start, end), nil
}

func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) error {
	c := make(chan any)
	go func() {
		defer close(c)
		wg.Wait()
	}()

	select {
	case <-c:
		return nil // completed normally
	case <-time.After(timeout):
		return errors.New("timed out waiting")
	}
}
