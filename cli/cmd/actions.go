package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/chaossec-io/chaossec/cli/render"
	"github.com/chaossec-io/chaossec/types"
)

// ActionInfo describes one permitted experiment for display.
type ActionInfo struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Default     bool   `json:"default,omitempty"`
}

// actionDescriptions maps each permitted experiment to a summary of what
// it exercises.
var actionDescriptions = map[types.ActionID]string{
	types.ActionMakeS3Public:    "Remove the public access block from an S3 bucket",
	types.ActionRestrictS3:      "Apply a full public access block to an S3 bucket",
	types.ActionStopEC2Instance: "Stop an EC2 instance to test availability monitoring",
	types.ActionNetworkLatency:  "Inject network latency to test latency alerting",
}

// ActionsCommand returns the actions command.
// Lists the bounded experiment set the decision engine chooses from.
func ActionsCommand() *cli.Command {
	return &cli.Command{
		Name:   "actions",
		Usage:  "List the permitted chaos experiments",
		Flags:  ReadOnlyFlags(),
		Action: actionsAction,
	}
}

func actionsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for actions
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for actions", 1)
	}

	var infos []ActionInfo
	for _, a := range types.PermittedActions() {
		infos = append(infos, ActionInfo{
			Action:      string(a),
			Description: actionDescriptions[a],
			Default:     a == types.DefaultAction,
		})
	}
	return r.Render(infos)
}
