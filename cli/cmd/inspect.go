package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/chaossec-io/chaossec/cli/render"
	"github.com/chaossec-io/chaossec/history"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single archived run.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect an archived run snapshot",
		Subcommands: []*cli.Command{
			inspectRunCommand(),
			inspectListCommand(),
		},
	}
}

func inspectRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Inspect a run by correlation ID",
		ArgsUsage: "<correlation-id>",
		Flags:     append(TUIReadOnlyFlags(), ConfigFlag),
		Action:    inspectRunAction,
	}
}

func inspectRunAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("correlation-id required", 1)
	}
	correlationID := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	archive, err := openSnapshotArchive(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	result, err := archive.Load(correlationID)
	if err != nil {
		return cli.Exit(fmt.Sprintf("run not found: %s", correlationID), 1)
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_run", result)
	}
	return r.Render(result)
}

func inspectListCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "List archived run snapshots",
		Flags:  append(ReadOnlyFlags(), ConfigFlag),
		Action: inspectListAction,
	}
}

func inspectListAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list views
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for inspect list", 1)
	}

	archive, err := openSnapshotArchive(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ids, err := archive.List()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	rows := make([]SnapshotRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, SnapshotRow{CorrelationID: id})
	}
	return r.Render(rows)
}

// SnapshotRow is one archived snapshot in the inspect list output.
type SnapshotRow struct {
	CorrelationID string `json:"correlation_id"`
}

// openSnapshotArchive opens the archive at the configured or default dir.
func openSnapshotArchive(c *cli.Context) (*history.SnapshotArchive, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	dir := cfg.History.SnapshotDir
	if dir == "" {
		dir = defaultSnapshotDir
	}
	return history.NewSnapshotArchive(dir)
}
