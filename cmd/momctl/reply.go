package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abelbrown/momentum/internal/reply"
)

func runReply() {
	fs := flag.NewFlagSet("reply", flag.ExitOnError)
	fs.Parse(os.Args[1:])

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "usage: momctl reply <text>")
		os.Exit(1)
	}

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	p := buildPipeline(cfg, st)
	handler := reply.NewHandler(st, nil, p.learner, p.dispatcher, p.messenger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	out, err := handler.Process(ctx, text, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case out.Handled:
		fmt.Printf("Applied %s to alert %s.\n", out.Kind, out.AlertID)
	case out.Kind == reply.KindUnmatched:
		fmt.Println("Could not classify that reply. Try: used / more / not interested / remind me later.")
	default:
		fmt.Printf("Understood %q, but no alert is awaiting a response.\n", out.Kind.String())
	}
}
