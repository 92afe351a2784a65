// Package gate decides whether the creator may be interrupted right now.
//
// Every counter the gate consults is a derived query over the alert audit
// log, so restarts never reset the daily cap or the cooldown clock.
package gate

import (
	"fmt"
	"time"

	"github.com/abelbrown/momentum/internal/store"
)

// Reason explains why dispatch was allowed or blocked.
type Reason string

const (
	ReasonOK               Reason = ""
	ReasonNotOptimalTime   Reason = "not_optimal_time"
	ReasonCooldownActive   Reason = "cooldown_active"
	ReasonAlreadySatisfied Reason = "already_satisfied"
)

// Config holds the gating rules.
type Config struct {
	Location     *time.Location
	WindowHours  []int          // hours of day alerts may fire
	WindowDays   []time.Weekday // weekdays alerts may fire
	MaxPerDay    int            // trailing-24h cap
	MinGap       time.Duration  // minimum spacing between dispatches
	NoPostWindow time.Duration  // suppress if the creator posted this recently
}

// Keeper enforces the dispatch gating rules.
type Keeper struct {
	store *store.Store
	cfg   Config
	hours map[int]bool
	days  map[time.Weekday]bool
}

// New creates a Keeper. A nil Location defaults to the local time zone.
func New(s *store.Store, cfg Config) *Keeper {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	hours := make(map[int]bool, len(cfg.WindowHours))
	for _, h := range cfg.WindowHours {
		hours[h] = true
	}
	days := make(map[time.Weekday]bool, len(cfg.WindowDays))
	for _, d := range cfg.WindowDays {
		days[d] = true
	}
	return &Keeper{store: s, cfg: cfg, hours: hours, days: days}
}

// InWindow reports whether now falls inside the configured active hours.
func (k *Keeper) InWindow(now time.Time) bool {
	local := now.In(k.cfg.Location)
	return k.hours[local.Hour()] && k.days[local.Weekday()]
}

// CanDispatch checks the window, the trailing-24h cap, and the minimum gap.
// force skips the window and gap checks but still enforces the daily cap.
func (k *Keeper) CanDispatch(now time.Time, force bool) (bool, Reason, error) {
	if !force && !k.InWindow(now) {
		return false, ReasonNotOptimalTime, nil
	}

	count, err := k.store.CountAlertsSince(now.Add(-24 * time.Hour))
	if err != nil {
		return false, ReasonOK, fmt.Errorf("count alerts: %w", err)
	}
	if count >= k.cfg.MaxPerDay {
		return false, ReasonCooldownActive, nil
	}

	if !force {
		last, err := k.store.LastDispatchTime()
		if err != nil {
			return false, ReasonOK, fmt.Errorf("last dispatch: %w", err)
		}
		if !last.IsZero() && now.Sub(last) < k.cfg.MinGap {
			return false, ReasonCooldownActive, nil
		}
	}

	return true, ReasonOK, nil
}

// AlreadySatisfied reports whether the creator already posted within the
// no-post window, in which case an alert would just be nagging.
func (k *Keeper) AlreadySatisfied(now time.Time) (bool, error) {
	last, err := k.store.LastPostTime()
	if err != nil {
		return false, fmt.Errorf("last post: %w", err)
	}
	if last.IsZero() {
		return false, nil
	}
	return now.Sub(last) < k.cfg.NoPostWindow, nil
}
