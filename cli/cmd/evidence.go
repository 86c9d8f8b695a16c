package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/chaossec-io/chaossec/cli/render"
	"github.com/chaossec-io/chaossec/evidence"
)

// EvidenceCommand returns the evidence command.
// Summarizes locally persisted evidence records per day and control.
func EvidenceCommand() *cli.Command {
	return &cli.Command{
		Name:   "evidence",
		Usage:  "Summarize locally stored compliance evidence",
		Flags:  append(ReadOnlyFlags(), ConfigFlag),
		Action: evidenceAction,
	}
}

func evidenceAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for evidence summaries
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for evidence", 1)
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	dir := cfg.Report.EvidenceDir
	if dir == "" {
		dir = defaultEvidenceDir
	}

	store, err := evidence.NewStore(dir)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	summary, err := store.Summary()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return r.Render(summary)
}
