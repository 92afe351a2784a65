// Command momctl is the CLI for inspecting and driving the momentum daemon.
//
// Usage:
//
//	momctl                  Show help
//	momctl stats            Alert pipeline statistics
//	momctl weights          Learned topic weights
//	momctl history          Recent alerts and their outcomes
//	momctl post             Record a creator post (suppresses alerts)
//	momctl reply <text>     Apply a creator reply to the latest open alert
//	momctl now              Run one dispatch cycle immediately
package main

import (
	"fmt"
	"os"
)

const usage = `momctl - momentum control CLI

Usage:
  momctl <command> [flags]

Commands:
  stats       Alert pipeline statistics and response breakdown
  weights     Learned topic weights
  history     Recent alerts and their outcomes
  post        Record a creator post (suppresses alerts for the no-post window)
  reply       Apply a creator reply to the latest open alert
  now         Run one dispatch cycle immediately (-force to skip the window)

Environment:
  ANTHROPIC_API_KEY     Claude API key for idea generation
  TWILIO_ACCOUNT_SID    Twilio credentials for WhatsApp delivery
  TWILIO_AUTH_TOKEN
  MOMENTUM_WHATSAPP_FROM
  MOMENTUM_WHATSAPP_TO

Run 'momctl <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "stats":
		runStats()
	case "weights":
		runWeights()
	case "history":
		runHistory()
	case "post":
		runPost()
	case "reply":
		runReply()
	case "now":
		runNow()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "momctl: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
