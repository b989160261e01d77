// Package jobs runs the sync tasks: each job fetches from one source,
// reconciles against the store and signals downstream consumers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/community"
	"github.com/padraicbc/lottosync/db"
	"github.com/padraicbc/lottosync/directory"
	"github.com/padraicbc/lottosync/events"
	"github.com/padraicbc/lottosync/models"
	"github.com/padraicbc/lottosync/poll"
	"github.com/padraicbc/lottosync/syncerr"
	"github.com/padraicbc/lottosync/syncstate"
	"github.com/padraicbc/lottosync/winners"
)

// Store is the persistence the jobs need. *db.Store implements it.
type Store interface {
	GetDraw(ctx context.Context, drawNo int) (*models.Draw, error)
	GetLastDraw(ctx context.Context) (*models.Draw, error)
	UpsertDraw(ctx context.Context, d *models.Draw) error
	UpdateDrawDetail(ctx context.Context, d *models.Draw) error
	ListRetailers(ctx context.Context) ([]models.Retailer, error)
	GetRetailer(ctx context.Context, id int64) (*models.Retailer, error)
	BulkCreateRetailers(ctx context.Context, rows []models.Retailer) error
	BulkUpdateRetailers(ctx context.Context, rows []models.Retailer, fields []string) error
	BulkCreateWinRecords(ctx context.Context, rows []models.WinRecord) error
	GetWinRecordsFor(ctx context.Context, drawNo int) ([]models.WinRecord, error)
	ApplyDirectoryPlan(ctx context.Context, plan directory.Plan) error
	ApplyWins(ctx context.Context, m winners.Mutations) error
	RecountWins(ctx context.Context) (int64, error)
}

type DrawSource interface {
	FetchLatest(ctx context.Context) (*models.Draw, error)
	FetchByNumber(ctx context.Context, drawNo int) (*models.Draw, error)
}

type DirectorySource interface {
	FetchAll(ctx context.Context) (map[int64]directory.Candidate, error)
}

type WinnerSource interface {
	Collect(ctx context.Context, drawNo int) ([]winners.Scraped, error)
}

type PostSource interface {
	Login(ctx context.Context) error
	Latest(ctx context.Context) (title, body string, err error)
}

// Runner holds everything the jobs share.
type Runner struct {
	Store     Store
	Results   DrawSource
	Retailers DirectorySource
	Winners   WinnerSource
	Posts     PostSource

	DrawPoll      *poll.Poller
	CommunityPoll *poll.Poller
	Reconcile     directory.Options

	Cursor   *syncstate.File
	Notifier events.Notifier
	Logger   *zap.Logger
}

// Draw waits for the draw after the last stored one, stores it and its
// winning retailers. With number > 0 that draw is fetched directly instead.
// The draw is committed before its wins are collected; when collecting fails
// the next run moves on to the following draw, so the missed wins are
// recovered with `lottosync wins -draw N`.
func (r *Runner) Draw(ctx context.Context, number int) error {
	var d *models.Draw
	var err error

	if number > 0 {
		if d, err = r.Results.FetchByNumber(ctx, number); err != nil {
			return err
		}
	} else {
		target := 0
		last, err := r.Store.GetLastDraw(ctx)
		switch {
		case err == nil:
			target = last.DrawNo + 1
		case !errors.Is(err, db.ErrNotFound):
			return err
		}
		r.Logger.Info("polling for draw", zap.Int("target", target))

		err = r.DrawPoll.Run(ctx, "draw", func(ctx context.Context) error {
			latest, err := r.Results.FetchLatest(ctx)
			if err != nil {
				return err
			}
			switch {
			case target == 0 || latest.DrawNo == target:
				d = latest
			case latest.DrawNo < target:
				return poll.ErrNotYetAvailable
			default:
				r.Logger.Info("source is ahead, fetching target directly",
					zap.Int("target", target), zap.Int("latest", latest.DrawNo))
				if d, err = r.Results.FetchByNumber(ctx, target); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := r.Store.UpsertDraw(ctx, d); err != nil {
		return err
	}
	r.Logger.Info("stored draw", zap.Int("draw_no", d.DrawNo), zap.String("draw_date", d.DrawDate))

	m, err := r.syncWins(ctx, d.DrawNo)
	if err != nil {
		r.Logger.Error("draw stored without its wins",
			zap.Int("draw_no", d.DrawNo),
			zap.String("recover_with", fmt.Sprintf("lottosync wins -draw %d", d.DrawNo)),
			zap.Error(err),
		)
		return fmt.Errorf("draw %d stored, wins not synced: %w", d.DrawNo, err)
	}

	key := strconv.Itoa(d.DrawNo)
	r.mark(syncstate.KeyDraw, key)
	r.publish(ctx, events.NewCompleted("draw", key, map[string]int{
		"wins":  len(m.Wins),
		"stubs": len(m.Stubs),
	}))
	return nil
}

// Wins re-collects the winning retailers of a stored draw.
func (r *Runner) Wins(ctx context.Context, drawNo int) error {
	if _, err := r.Store.GetDraw(ctx, drawNo); err != nil {
		return err
	}
	m, err := r.syncWins(ctx, drawNo)
	if err != nil {
		return err
	}
	r.publish(ctx, events.NewCompleted("wins", strconv.Itoa(drawNo), map[string]int{
		"wins":  len(m.Wins),
		"stubs": len(m.Stubs),
	}))
	return nil
}

func (r *Runner) syncWins(ctx context.Context, drawNo int) (winners.Mutations, error) {
	scraped, err := r.Winners.Collect(ctx, drawNo)
	if err != nil {
		return winners.Mutations{}, err
	}
	existing, err := r.Store.GetWinRecordsFor(ctx, drawNo)
	if err != nil {
		return winners.Mutations{}, err
	}

	known := make(map[int64]bool)
	for _, s := range scraped {
		if _, ok := known[s.RetailerID]; ok {
			continue
		}
		_, err := r.Store.GetRetailer(ctx, s.RetailerID)
		switch {
		case err == nil:
			known[s.RetailerID] = true
		case errors.Is(err, db.ErrNotFound):
			known[s.RetailerID] = false
		default:
			return winners.Mutations{}, err
		}
	}

	m := winners.Apply(scraped, existing, known)
	if m.Empty() {
		r.Logger.Info("no new wins", zap.Int("draw_no", drawNo), zap.Int("scraped", len(scraped)))
		return m, nil
	}
	if err := r.Store.ApplyWins(ctx, m); err != nil {
		return winners.Mutations{}, err
	}
	r.Logger.Info("recorded wins",
		zap.Int("draw_no", drawNo),
		zap.Int("wins", len(m.Wins)),
		zap.Int("stubs", len(m.Stubs)),
		zap.Int("retailers", len(m.Deltas)),
	)
	return m, nil
}

// Directory fetches the full retailer directory and reconciles it.
func (r *Runner) Directory(ctx context.Context) error {
	candidates, err := r.Retailers.FetchAll(ctx)
	if err != nil {
		return err
	}
	existing, err := r.Store.ListRetailers(ctx)
	if err != nil {
		return err
	}

	plan := directory.Reconcile(candidates, existing, r.Reconcile)
	if err := r.Store.ApplyDirectoryPlan(ctx, plan); err != nil {
		return err
	}
	r.Logger.Info("reconciled directory",
		zap.Int("fetched", len(candidates)),
		zap.Int("created", len(plan.Create)),
		zap.Int("updated", len(plan.Update)),
		zap.Int("disabled", len(plan.Disable)),
		zap.Int("unchanged", plan.Unchanged),
	)

	key := strconv.Itoa(len(candidates))
	r.mark(syncstate.KeyDirectory, key)
	r.publish(ctx, events.NewCompleted("directory", key, map[string]int{
		"created":  len(plan.Create),
		"updated":  len(plan.Update),
		"disabled": len(plan.Disable),
	}))
	return nil
}

// Community waits for the forum post of the last stored draw and stores its
// detail block. A post whose winning numbers disagree with the stored draw
// aborts the run.
func (r *Runner) Community(ctx context.Context) error {
	draw, err := r.Store.GetLastDraw(ctx)
	if err != nil {
		return fmt.Errorf("community sync needs a stored draw: %w", err)
	}
	if draw.HasDetail() {
		r.Logger.Info("draw already has detail", zap.Int("draw_no", draw.DrawNo))
		return nil
	}

	var detail community.Detail
	err = r.CommunityPoll.Run(ctx, "community", func(ctx context.Context) error {
		if err := r.Posts.Login(ctx); err != nil {
			return err
		}
		title, body, err := r.Posts.Latest(ctx)
		if err != nil {
			return err
		}
		postNo, _, err := community.ParseTitle(title)
		if err != nil {
			r.Logger.Warn("latest post is not a draw post", zap.String("title", title), zap.Error(err))
			return poll.ErrNotYetAvailable
		}
		if postNo != draw.DrawNo {
			return poll.ErrNotYetAvailable
		}
		if detail, err = community.Extract(title, body); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !slices.Equal(detail.PrimaryOrder, draw.AllNumbers()) {
		r.Logger.Error("post numbers disagree with stored draw",
			zap.Int("draw_no", draw.DrawNo),
			zap.Ints("stored", draw.AllNumbers()),
			zap.Ints("post", detail.PrimaryOrder),
		)
		return syncerr.Conflict(strconv.Itoa(draw.DrawNo), "post numbers %v, stored %v", detail.PrimaryOrder, draw.AllNumbers())
	}

	detail.ApplyTo(draw)
	if err := draw.Validate(); err != nil {
		return err
	}
	if err := r.Store.UpdateDrawDetail(ctx, draw); err != nil {
		return err
	}
	r.Logger.Info("stored draw detail",
		zap.Int("draw_no", draw.DrawNo),
		zap.Int("machine", draw.Machine),
		zap.Int("ball_set", draw.BallSet),
	)

	key := strconv.Itoa(draw.DrawNo)
	r.mark(syncstate.KeyCommunity, key)
	r.publish(ctx, events.NewCompleted("community", key, nil))
	return nil
}

// Recount rebuilds every retailer's win counters from the win records.
func (r *Runner) Recount(ctx context.Context) error {
	n, err := r.Store.RecountWins(ctx)
	if err != nil {
		return err
	}
	r.Logger.Info("recounted wins", zap.Int64("retailers", n))
	r.publish(ctx, events.NewCompleted("recount", "", map[string]int{"retailers": int(n)}))
	return nil
}

// mark and publish run after the data is committed; their failures are
// logged and do not fail the job.
func (r *Runner) mark(source, key string) {
	if r.Cursor == nil {
		return
	}
	if err := r.Cursor.Mark(source, key); err != nil {
		r.Logger.Warn("cursor file not updated", zap.String("source", source), zap.Error(err))
	}
}

func (r *Runner) publish(ctx context.Context, e events.Completed) {
	if r.Notifier == nil {
		return
	}
	if err := r.Notifier.Publish(context.WithoutCancel(ctx), e); err != nil {
		r.Logger.Error("sync event not published", zap.String("job", e.Job), zap.Error(err))
	}
}
