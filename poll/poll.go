// Package poll retries an attempt at a fixed interval until it reports that
// the data it waits for has been published.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/lottosync/config"
	"github.com/padraicbc/lottosync/source"
)

// ErrNotYetAvailable is returned by an attempt when the data is not out yet.
// Any other error stops the poller immediately.
var ErrNotYetAvailable = errors.New("not yet available")

// ErrAttemptsExhausted means every attempt reported ErrNotYetAvailable.
var ErrAttemptsExhausted = errors.New("poll attempts exhausted")

type Poller struct {
	cfg    config.PollConfig
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

func New(cfg config.PollConfig, logger *zap.Logger) *Poller {
	return &Poller{cfg: cfg, logger: logger, sleep: source.Sleep}
}

// Run calls attempt up to MaxAttempts times, waiting Interval between calls.
func (p *Poller) Run(ctx context.Context, name string, attempt func(ctx context.Context) error) error {
	max := p.cfg.MaxAttempts
	if max < 1 {
		max = 1
	}
	for i := 1; i <= max; i++ {
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotYetAvailable) {
			return err
		}
		p.logger.Info("waiting for source",
			zap.String("poll", name),
			zap.Int("attempt", i),
			zap.Int("max_attempts", max),
			zap.Duration("interval", p.cfg.Interval),
		)
		if i == max {
			break
		}
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %w after %d attempts", name, ErrAttemptsExhausted, max)
}
