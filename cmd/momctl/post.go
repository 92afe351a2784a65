package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func runPost() {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	platform := fs.String("platform", "instagram", "Platform the creator posted on")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	if err := st.RecordPost(*platform, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Recorded %s post. Alerts suppressed for the next %dh.\n",
		*platform, cfg.Alerts.NoPostHours)
}
