package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/storage"
)

func runJournalNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		printJournalHelp()
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "tail":
		return runJournalTail(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown journal action: %s\n\n", args[0])
		printJournalHelp()
		return 1
	}
}

func printJournalHelp() {
	fmt.Print(`Usage:
  enginehost journal tail [--config PATH] [--limit N] [--engine classical|neural] [--json]

Lists the most recently dispatched commands, newest first.
Requires journal.path in the configuration.
`)
}

type journalEntry struct {
	ID          string    `json:"id"`
	Engine      string    `json:"engine,omitempty"`
	Kind        string    `json:"kind"`
	Payload     string    `json:"payload,omitempty"`
	Bytes       int       `json:"payload_bytes,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
}

func runJournalTail(args []string) int {
	fs := flag.NewFlagSet("journal tail", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	limit := fs.Int("limit", 20, "Number of entries to show")
	engineName := fs.String("engine", "", "Only show commands for this engine")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be positive")
		return 1
	}

	filter := ""
	if *engineName != "" {
		e, err := command.ParseEngine(*engineName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		filter = string(e)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if cfg.Journal.Path == "" {
		fmt.Fprintln(os.Stderr, "Journal disabled: journal.path is not set")
		return 1
	}
	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		fmt.Fprintf(os.Stderr, "Journal not found: %v\n", err)
		return 1
	}

	ctx := context.Background()
	j, err := storage.OpenJournal(ctx, cfg.Journal.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer j.Close()

	recs, err := j.Recent(ctx, filter, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read journal: %v\n", err)
		return 1
	}

	entries := make([]journalEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, journalEntry{
			ID:          r.ID,
			Engine:      r.Engine,
			Kind:        r.Kind,
			Payload:     r.Payload,
			Bytes:       r.PayloadBytes,
			EnqueuedAt:  r.EnqueuedAt,
			CompletedAt: r.CompletedAt,
			DurationMS:  r.Duration().Milliseconds(),
		})
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(entries) == 0 {
		fmt.Println("No commands recorded.")
		return 0
	}
	fmt.Printf("%-20s  %-9s  %-8s  %6s  %s\n", "COMPLETED", "ENGINE", "KIND", "MS", "PAYLOAD")
	for _, e := range entries {
		payload := e.Payload
		if e.Kind == "weights" {
			payload = fmt.Sprintf("<%d bytes>", e.Bytes)
		}
		fmt.Printf("%-20s  %-9s  %-8s  %6d  %s\n",
			e.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			dash(e.Engine), e.Kind, e.DurationMS, truncate(payload, 60))
	}
	return 0
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
