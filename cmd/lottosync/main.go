// cmd/lottosync/main.go
// Runs one sync job and exits. Meant to be started by an external scheduler.
//
// Usage:
//
//	lottosync draw [-number 1150]   poll for the next draw (or fetch one) and its winners
//	lottosync directory             reconcile the full retailer directory
//	lottosync community             fill in the latest draw's detail from the forum post
//	lottosync wins -draw 1150       re-collect the winning retailers of a stored draw
//	lottosync recount               rebuild every retailer's win counters
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/community"
	"github.com/padraicbc/lottosync/config"
	"github.com/padraicbc/lottosync/db"
	"github.com/padraicbc/lottosync/directory"
	"github.com/padraicbc/lottosync/drawpage"
	"github.com/padraicbc/lottosync/events"
	"github.com/padraicbc/lottosync/jobs"
	applog "github.com/padraicbc/lottosync/logger"
	"github.com/padraicbc/lottosync/poll"
	"github.com/padraicbc/lottosync/runlock"
	"github.com/padraicbc/lottosync/source"
	"github.com/padraicbc/lottosync/syncstate"
	"github.com/padraicbc/lottosync/winners"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lottosync <draw|directory|community|wins|recount> [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	job := os.Args[1]

	fs := flag.NewFlagSet(job, flag.ExitOnError)
	number := fs.Int("number", 0, "draw: fetch this draw instead of polling for the next one")
	drawNo := fs.Int("draw", 0, "wins: draw number to re-collect (required)")
	_ = fs.Parse(os.Args[2:])

	switch job {
	case "draw", "directory", "community", "recount":
	case "wins":
		if *drawNo <= 0 {
			fmt.Fprintln(os.Stderr, "wins: -draw is required")
			os.Exit(2)
		}
	default:
		usage()
	}

	cfg := config.LoadSync()
	logger, err := applog.New(cfg.Debug, "lottosync")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("job", job))

	if err := run(job, *number, *drawNo, cfg, logger); err != nil {
		logger.Error("job failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("job finished")
}

func run(job string, number, drawNo int, cfg *config.SyncConfig, logger *zap.Logger) error {
	// A signal stops the next poll iteration; in-flight requests finish.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		lock, err := runlock.New(rdb, cfg.LockTTL, logger).Acquire(ctx, job)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("run lock release failed", zap.Error(err))
			}
		}()
	}

	bdb := db.Setup(&cfg.DBConfig, cfg.Debug)
	defer bdb.Close()
	if err := db.CreateTables(ctx, bdb); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	notifier := events.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("notifier close failed", zap.Error(err))
		}
	}()

	client := source.New(cfg, logger)
	runner := &jobs.Runner{
		Store:         db.NewStore(bdb),
		Results:       drawpage.New(client, cfg.Draw, logger),
		Retailers:     directory.NewFetcher(client, cfg.Directory, logger),
		Winners:       winners.NewCollector(client, cfg.Winners, logger),
		Posts:         community.NewClient(client, cfg.Community, logger),
		DrawPoll:      poll.New(cfg.DrawPoll, logger),
		CommunityPoll: poll.New(cfg.CommunityPoll, logger),
		Reconcile: directory.Options{
			GeoTolerance: cfg.GeoTolerance,
			SentinelID:   cfg.SentinelStoreID,
		},
		Cursor:   syncstate.New(cfg.CursorFile),
		Notifier: notifier,
		Logger:   logger,
	}

	switch job {
	case "draw":
		return runner.Draw(ctx, number)
	case "directory":
		return runner.Directory(ctx)
	case "community":
		return runner.Community(ctx)
	case "wins":
		return runner.Wins(ctx, drawNo)
	case "recount":
		return runner.Recount(ctx)
	}
	return errors.New("unknown job " + job)
}
