package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
)

func runWeights() {
	fs := flag.NewFlagSet("weights", flag.ExitOnError)
	byWeight := fs.Bool("sort", false, "Sort by weight instead of topic name")
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	weights, err := st.AllTopicWeights()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(weights) == 0 {
		fmt.Println("No topics learned yet.")
		return
	}

	if *byWeight {
		sort.Slice(weights, func(i, j int) bool {
			return weights[i].Weight > weights[j].Weight
		})
	}

	fmt.Printf("%-25s %7s %8s %6s %8s\n", "TOPIC", "WEIGHT", "ALERTED", "USED", "IGNORED")
	for _, w := range weights {
		fmt.Printf("%-25s %7.2f %8d %6d %8d\n",
			truncate(w.Topic, 25), w.Weight, w.TimesAlerted, w.TimesUsed, w.TimesIgnored)
	}
}
