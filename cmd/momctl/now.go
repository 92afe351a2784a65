package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
)

func runNow() {
	fs := flag.NewFlagSet("now", flag.ExitOnError)
	force := fs.Bool("force", false, "Skip the time window and minimum gap (daily cap still applies)")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	p := buildPipeline(cfg, st)
	if !p.messenger.Available() {
		fmt.Fprintln(os.Stderr, "error: Twilio credentials missing")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := p.dispatcher.Execute(ctx, time.Now(), *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if res.Dispatched {
		fmt.Printf("Dispatched %q (score %.0f), alert %s, message %s.\n",
			res.Topic, res.Score, res.AlertID, res.MessageID)
		return
	}
	fmt.Printf("No dispatch: %s\n", string(res.Reason))
}
