package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/momentum/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Width(22).Foreground(lipgloss.Color("245"))
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(os.Args[1:])

	cfg := loadConfig()
	st := openDB(cfg)
	defer st.Close()

	now := time.Now()

	fmt.Println(headerStyle.Render("Alert pipeline"))

	counts, err := st.ResponseCounts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	row("Total alerts", fmt.Sprintf("%d", total))

	last24, _ := st.CountAlertsSince(now.Add(-24 * time.Hour))
	row("Last 24h", fmt.Sprintf("%d / %d cap", last24, cfg.Alerts.MaxPerDay))

	lastDispatch, _ := st.LastDispatchTime()
	row("Last dispatch", ago(lastDispatch, now))

	lastPost, _ := st.LastPostTime()
	row("Last creator post", ago(lastPost, now))

	fmt.Println()
	fmt.Println(headerStyle.Render("Responses"))
	order := []store.Response{
		store.ResponseNone, store.ResponseUsed, store.ResponseNotInterested,
		store.ResponseRemindLater, store.ResponseReminded,
		store.ResponseExpired, store.ResponsePostedAnyway,
	}
	for _, resp := range order {
		n := counts[resp]
		if n == 0 {
			continue
		}
		value := fmt.Sprintf("%d", n)
		switch resp {
		case store.ResponseUsed:
			value = goodStyle.Render(value)
		case store.ResponseNotInterested, store.ResponseExpired:
			value = badStyle.Render(value)
		}
		row(string(resp), value)
	}
	if total > 0 {
		used := counts[store.ResponseUsed]
		row("Hit rate", fmt.Sprintf("%.0f%%", float64(used)/float64(total)*100))
	}

	weights, _ := st.AllTopicWeights()
	fmt.Println()
	fmt.Println(headerStyle.Render("Learning"))
	row("Tracked topics", fmt.Sprintf("%d", len(weights)))
	var hi, lo *store.TopicWeight
	for i := range weights {
		w := &weights[i]
		if hi == nil || w.Weight > hi.Weight {
			hi = w
		}
		if lo == nil || w.Weight < lo.Weight {
			lo = w
		}
	}
	if hi != nil {
		row("Hottest topic", fmt.Sprintf("%s (%.2f)", hi.Topic, hi.Weight))
		row("Coldest topic", fmt.Sprintf("%s (%.2f)", lo.Topic, lo.Weight))
	}
}

func row(label, value string) {
	fmt.Printf("%s %s\n", labelStyle.Render(label), value)
}

func ago(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%.1fh ago", d.Hours())
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}
