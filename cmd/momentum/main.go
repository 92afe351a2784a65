// Command momentum is the golden moment agent daemon.
//
// It watches trend feeds, scores candidates against learned topic weights,
// and pings the creator over WhatsApp when a moment is worth interrupting
// their evening for. State lives in ~/.momentum/.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelbrown/momentum/internal/config"
	"github.com/abelbrown/momentum/internal/coord"
	"github.com/abelbrown/momentum/internal/delivery"
	"github.com/abelbrown/momentum/internal/dispatch"
	"github.com/abelbrown/momentum/internal/gate"
	"github.com/abelbrown/momentum/internal/ideas"
	"github.com/abelbrown/momentum/internal/learn"
	"github.com/abelbrown/momentum/internal/logging"
	"github.com/abelbrown/momentum/internal/score"
	"github.com/abelbrown/momentum/internal/store"
	"github.com/abelbrown/momentum/internal/sweep"
	"github.com/abelbrown/momentum/internal/trend"
)

func main() {
	if err := logging.Init(); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	loc, err := time.LoadLocation(cfg.Alerts.Timezone)
	if err != nil {
		logging.Warn("unknown timezone, falling back to local", "timezone", cfg.Alerts.Timezone)
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

	scorer := score.NewScorer(nil, cfg.Alerts.FreshnessHours, cfg.Alerts.GoldenThreshold)
	learner := learn.New(st)

	// Claude when configured, with the static generator as a safety net so
	// an API outage never silently eats a golden moment.
	var generator ideas.Generator = ideas.StaticGenerator{}
	claude := ideas.NewClaudeGenerator(cfg.Ideas.APIKey, cfg.Ideas.Model)
	if claude.Available() {
		generator = ideas.Fallback{Primary: claude, Secondary: ideas.StaticGenerator{}}
	} else {
		logging.Warn("ANTHROPIC_API_KEY not set, using static suggestions")
	}

	messenger := delivery.NewTwilioMessenger(
		cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From, cfg.Twilio.To)
	if !messenger.Available() {
		// Keep running: the gate and sweep state stay correct, delivery
		// attempts fail with a log line until credentials appear in config.
		logging.Warn("Twilio credentials missing, alerts cannot be delivered",
			"need", "TWILIO_ACCOUNT_SID TWILIO_AUTH_TOKEN MOMENTUM_WHATSAPP_FROM MOMENTUM_WHATSAPP_TO")
	}

	dispatcher := dispatch.New(st, keeper, radar, scorer, generator, messenger, learner)
	sweeper := sweep.New(st, keeper, dispatcher, cfg.Alerts.FreshnessHours)

	ctx, cancel := context.WithCancel(context.Background())

	coordinator := coord.New(dispatcher, sweeper, learner,
		time.Duration(cfg.Alerts.CheckIntervalMin)*time.Minute)
	coordinator.Start(ctx)

	logging.Info("momentum daemon running",
		"feeds", len(sources),
		"check_interval_min", cfg.Alerts.CheckIntervalMin,
		"timezone", cfg.Alerts.Timezone)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logging.Info("shutdown signal received")
	cancel()
	coordinator.Wait()
}
