package cmd

import (
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/chaossec-io/chaossec/brain"
	"github.com/chaossec-io/chaossec/cli/render"
	"github.com/chaossec-io/chaossec/history"
	"github.com/chaossec-io/chaossec/types"
)

// HistoryCommand returns the history command with subcommands.
// All subcommands are read-only views over the run journal.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past validation runs",
		Subcommands: []*cli.Command{
			historyListCommand(),
			historyStatsCommand(),
		},
	}
}

func historyListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List past runs, newest first",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to return (0 = no limit)",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Filter by outcome (success_detected, success_simulated, inconclusive, failed, cancelled)",
			},
		),
		Action: historyListAction,
	}
}

func historyListAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list views
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for history list", 1)
	}

	store, err := openHistoryStore(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	entries, err := store.All(c.Context)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	// Newest first for browsing.
	reverse(entries)
	if outcome := c.String("outcome"); outcome != "" {
		entries = filterByOutcome(entries, outcome)
	}
	if limit := c.Int("limit"); limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return r.Render(historyRows(entries))
}

// historyRows renders the journal as a table with domain columns while
// staying a plain entry slice for json and yaml output.
type historyRows []types.HistoryEntry

func (historyRows) TableHeader() []string {
	return []string{"WHEN", "CORRELATION", "ACTION", "TARGET", "OUTCOME", "FINDINGS", "EVIDENCE"}
}

func (rows historyRows) TableRows() [][]string {
	out := make([][]string, 0, len(rows))
	for _, e := range rows {
		out = append(out, []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.CorrelationID,
			string(e.Action),
			e.Target,
			e.Outcome,
			strconv.Itoa(e.FindingCount),
			strconv.Itoa(e.EvidenceCount),
		})
	}
	return out
}

func historyStatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show aggregated run statistics",
		Flags:  append(TUIReadOnlyFlags(), ConfigFlag),
		Action: historyStatsAction,
	}
}

func historyStatsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	store, err := openHistoryStore(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	entries, err := store.Recent(c.Context, 0)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	analysis := brain.AnalyzeHistory(entries)

	if c.Bool("tui") {
		return r.RenderTUI("stats_history", &analysis)
	}
	return r.Render(&analysis)
}

// openHistoryStore opens the journal at the configured or default path.
func openHistoryStore(c *cli.Context) (*history.FileStore, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	path := cfg.History.Path
	if path == "" {
		path = defaultHistoryPath
	}
	return history.NewFileStore(path, nil)
}

func filterByOutcome(entries []types.HistoryEntry, outcome string) []types.HistoryEntry {
	var out []types.HistoryEntry
	for _, e := range entries {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

func reverse(entries []types.HistoryEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}
