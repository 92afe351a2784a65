package main

import (
	"log"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/abelbrown/momentum/internal/config"
	"github.com/abelbrown/momentum/internal/delivery"
	"github.com/abelbrown/momentum/internal/dispatch"
	"github.com/abelbrown/momentum/internal/gate"
	"github.com/abelbrown/momentum/internal/ideas"
	"github.com/abelbrown/momentum/internal/learn"
	"github.com/abelbrown/momentum/internal/logging"
	"github.com/abelbrown/momentum/internal/score"
	"github.com/abelbrown/momentum/internal/store"
	"github.com/abelbrown/momentum/internal/trend"
)

// loadConfig loads the shared config or fatals.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// openDB opens the store or fatals.
func openDB(cfg *config.Config) *store.Store {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	return st
}

// pipeline is the fully wired alert pipeline, shared by reply and now.
type pipeline struct {
	store      *store.Store
	keeper     *gate.Keeper
	learner    *learn.Learner
	messenger  *delivery.TwilioMessenger
	dispatcher *dispatch.Dispatcher
}

// buildPipeline wires the pipeline exactly the way the daemon does, so a
// momctl action is indistinguishable from a daemon tick in the audit log.
func buildPipeline(cfg *config.Config, st *store.Store) *pipeline {
	logging.InitWriter(os.Stderr, charmlog.WarnLevel)

	loc, err := time.LoadLocation(cfg.Alerts.Timezone)
	if err != nil {
		loc = time.Local
	}
	days := make([]time.Weekday, len(cfg.Alerts.WindowDays))
	for i, d := range cfg.Alerts.WindowDays {
		days[i] = time.Weekday(d)
	}
	keeper := gate.New(st, gate.Config{
		Location:     loc,
		WindowHours:  cfg.Alerts.WindowHours,
		WindowDays:   days,
		MaxPerDay:    cfg.Alerts.MaxPerDay,
		MinGap:       time.Duration(cfg.Alerts.MinGapHours) * time.Hour,
		NoPostWindow: time.Duration(cfg.Alerts.NoPostHours) * time.Hour,
	})

	sources := make([]trend.Source, 0, len(cfg.Feeds))
	for _, feed := range cfg.Feeds {
		sources = append(sources, trend.NewRSSSource(feed.Name, feed.URL, cfg.ProfileKeywords, 30*time.Second))
	}
	radar := trend.NewRadar(sources, cfg.Alerts.FreshnessHours)

	var generator ideas.Generator = ideas.StaticGenerator{}
	claude := ideas.NewClaudeGenerator(cfg.Ideas.APIKey, cfg.Ideas.Model)
	if claude.Available() {
		generator = ideas.Fallback{Primary: claude, Secondary: ideas.StaticGenerator{}}
	}

	messenger := delivery.NewTwilioMessenger(
		cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From, cfg.Twilio.To)

	learner := learn.New(st)
	scorer := score.NewScorer(nil, cfg.Alerts.FreshnessHours, cfg.Alerts.GoldenThreshold)
	dispatcher := dispatch.New(st, keeper, radar, scorer, generator, messenger, learner)

	return &pipeline{
		store:      st,
		keeper:     keeper,
		learner:    learner,
		messenger:  messenger,
		dispatcher: dispatcher,
	}
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
