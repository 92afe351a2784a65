// Package coord runs the Momentum background loops.
package coord

import (
	"context"
	"sync"
	"time"

	"github.com/abelbrown/momentum/internal/dispatch"
	"github.com/abelbrown/momentum/internal/logging"
	"github.com/abelbrown/momentum/internal/sweep"
)

// sweepInterval is the time between reminder sweeps. Tied to the sweep's
// 30-60 minute bracket: hourly runs cover each deferral exactly once.
const sweepInterval = time.Hour

// reweightInterval is the time between weekly topic reweights.
const reweightInterval = 7 * 24 * time.Hour

// tickTimeout bounds one dispatch or sweep cycle.
const tickTimeout = 2 * time.Minute

// dispatcher interface for dependency injection (testing).
type dispatcher interface {
	Execute(ctx context.Context, now time.Time, force bool) (dispatch.Result, error)
}

// sweeper interface for dependency injection (testing).
type sweeper interface {
	Run(ctx context.Context, now time.Time) (sweep.Stats, error)
}

// reweighter interface for dependency injection (testing).
type reweighter interface {
	Reweight(now time.Time) error
}

// Coordinator owns the dispatch, sweep, and reweight loops.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	dispatcher    dispatcher
	sweeper       sweeper
	reweighter    reweighter
	checkInterval time.Duration
	wg            sync.WaitGroup
}

// New creates a Coordinator. checkInterval is the opportunity tick spacing.
func New(d dispatcher, s sweeper, r reweighter, checkInterval time.Duration) *Coordinator {
	if checkInterval <= 0 {
		checkInterval = 30 * time.Minute
	}
	return &Coordinator{
		dispatcher:    d,
		sweeper:       s,
		reweighter:    r,
		checkInterval: checkInterval,
	}
}

// Start launches the background loops. Call with a cancellable context; a
// failed tick is logged and the loop keeps running.
func (c *Coordinator) Start(ctx context.Context) {
	c.loop(ctx, c.checkInterval, true, c.dispatchTick)
	c.loop(ctx, sweepInterval, false, c.sweepTick)
	c.loop(ctx, reweightInterval, false, c.reweightTick)
}

// Wait blocks until all background loops exit.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// loop runs tick on every interval until the context is canceled.
// immediate fires one tick before the first interval elapses.
func (c *Coordinator) loop(ctx context.Context, interval time.Duration, immediate bool, tick func(context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if immediate {
			tick(ctx)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx)
			}
		}
	}()
}

func (c *Coordinator) dispatchTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	res, err := c.dispatcher.Execute(tickCtx, time.Now(), false)
	if err != nil {
		logging.Error("dispatch tick failed", "error", err)
		return
	}
	if !res.Dispatched {
		logging.Debug("dispatch tick skipped", "reason", string(res.Reason))
	}
}

func (c *Coordinator) sweepTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	if _, err := c.sweeper.Run(tickCtx, time.Now()); err != nil {
		logging.Error("sweep tick failed", "error", err)
	}
}

func (c *Coordinator) reweightTick(context.Context) {
	if err := c.reweighter.Reweight(time.Now()); err != nil {
		logging.Error("reweight tick failed", "error", err)
	}
}
