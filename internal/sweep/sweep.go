// Package sweep resolves deferred alerts.
//
// The creator can answer an alert with "remind me later". The sweep runs
// hourly and revisits those alerts once, 30 to 60 minutes after the
// deferral, deciding whether the moment is still worth a reminder.
package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/abelbrown/momentum/internal/gate"
	"github.com/abelbrown/momentum/internal/logging"
	"github.com/abelbrown/momentum/internal/store"
)

const (
	// bracket bounds relative to responded_at. Each deferred alert falls
	// inside the bracket for exactly one hourly run.
	bracketOldest = 60 * time.Minute
	bracketNewest = 30 * time.Minute

	// expiryGrace extends the freshness window before a deferred alert is
	// written off as stale.
	expiryGrace = 2 * time.Hour
)

// Redeliverer resends an existing alert with a fresh suggestion.
type Redeliverer interface {
	Redeliver(ctx context.Context, rec store.AlertRecord, prefix string) (string, error)
}

// Stats counts the outcomes of one sweep run.
type Stats struct {
	Examined     int
	Reminded     int
	Expired      int
	PostedAnyway int
	Failed       int
}

// Sweeper revisits remind_later alerts.
type Sweeper struct {
	store     *store.Store
	keeper    *gate.Keeper
	redeliver Redeliverer
	freshness time.Duration
}

func New(s *store.Store, k *gate.Keeper, r Redeliverer, freshnessHours int) *Sweeper {
	return &Sweeper{
		store:     s,
		keeper:    k,
		redeliver: r,
		freshness: time.Duration(freshnessHours) * time.Hour,
	}
}

// Run processes every deferred alert in the current bracket. Errors on one
// alert never stop the rest of the sweep.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (Stats, error) {
	recs, err := s.store.RemindLaterBetween(now.Add(-bracketOldest), now.Add(-bracketNewest))
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	stats.Examined = len(recs)
	for _, rec := range recs {
		s.resolve(ctx, now, rec, &stats)
	}

	if stats.Examined > 0 {
		logging.Info("reminder sweep complete",
			"examined", stats.Examined, "reminded", stats.Reminded,
			"expired", stats.Expired, "posted_anyway", stats.PostedAnyway,
			"failed", stats.Failed)
	}
	return stats, nil
}

func (s *Sweeper) resolve(ctx context.Context, now time.Time, rec store.AlertRecord, stats *Stats) {
	// A zero discovery time is a corrupt record; expiring it keeps the sweep
	// from reminding about an event of unknown age forever.
	if rec.DiscoveredAt.IsZero() || now.Sub(rec.DiscoveredAt) > s.freshness+expiryGrace {
		if !s.transition(rec.ID, store.ResponseExpired, now, stats) {
			return
		}
		logging.Debug("sweep: alert expired", "alert", rec.ID)
		stats.Expired++
		return
	}

	satisfied, err := s.keeper.AlreadySatisfied(now)
	if err != nil {
		logging.Error("sweep: already-satisfied check failed", "alert", rec.ID, "error", err)
		stats.Failed++
		return
	}
	if satisfied {
		if !s.transition(rec.ID, store.ResponsePostedAnyway, now, stats) {
			return
		}
		logging.Debug("sweep: creator posted on their own", "alert", rec.ID)
		stats.PostedAnyway++
		return
	}

	if _, err := s.redeliver.Redeliver(ctx, rec, "⏰ Reminder, this one is still hot:"); err != nil {
		// Leave the record in remind_later; the next bracket has moved past
		// it, so it will age out through the expiry path instead of looping.
		logging.Warn("sweep: reminder delivery failed", "alert", rec.ID, "error", err)
		stats.Failed++
		return
	}
	if !s.transition(rec.ID, store.ResponseReminded, now, stats) {
		return
	}
	stats.Reminded++
}

// transition applies one state change and reports whether it won. A record
// the creator resolved between the bracket query and the write is left
// alone and counted as neither an outcome nor a failure.
func (s *Sweeper) transition(id string, resp store.Response, now time.Time, stats *Stats) bool {
	err := s.store.SetResponse(id, resp, now)
	if errors.Is(err, store.ErrAlreadyResolved) {
		logging.Debug("sweep: alert resolved elsewhere", "alert", id, "wanted", string(resp))
		return false
	}
	if err != nil {
		logging.Error("sweep: transition failed", "alert", id, "wanted", string(resp), "error", err)
		stats.Failed++
		return false
	}
	return true
}
