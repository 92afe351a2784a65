package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 20, "Number of alerts to show")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	recs, err := st.RecentAlerts(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("No alerts yet.")
		return
	}

	fmt.Printf("%-17s %6s %-14s %s\n", "DISPATCHED", "SCORE", "RESPONSE", "TOPIC")
	for _, rec := range recs {
		fmt.Printf("%-17s %6.0f %-14s %s\n",
			rec.DispatchedAt.Local().Format("2006-01-02 15:04"),
			rec.WeightedScore,
			string(rec.Response),
			truncate(rec.TopicText, 50))
		if rec.Response == "remind_later" && !rec.RespondedAt.IsZero() {
			fmt.Printf("%-17s        deferred %s\n", "", ago(rec.RespondedAt, time.Now()))
		}
	}
}
