package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/chaossec-io/chaossec/metrics"
	"github.com/chaossec-io/chaossec/types"
)

// Exit codes for the run command.
const (
	exitSuccess      = 0
	exitRunFailed    = 1
	exitInvalidInput = 2
	exitPersistence  = 3
)

// defaultInterval is the pause between iterations of a multi-run invocation.
const defaultInterval = 5 * time.Second

// RunCommand returns the run command.
// This is the only command that executes validation work.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute autonomous validation cycles (the only execution entrypoint)",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{
				Name:  "target",
				Usage: "Target resource (S3 bucket or instance identifier)",
			},
			&cli.BoolFlag{
				Name:  "live",
				Usage: "Disable safety mode and mutate real infrastructure",
			},
			&cli.IntFlag{
				Name:  "iterations",
				Usage: "Number of validation cycles to run",
				Value: 1,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Pause between iterations",
				Value: defaultInterval,
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitInvalidInput)
	}

	target := c.String("target")
	if target == "" {
		target = cfg.Target
	}
	if target == "" {
		return cli.Exit("--target is required (flag or config file)", exitInvalidInput)
	}

	safety := cfg.SafetyEnabled()
	if c.Bool("live") {
		safety = false
	}

	iterations := c.Int("iterations")
	if iterations < 1 {
		return cli.Exit("--iterations must be at least 1", exitInvalidInput)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	exitCode := exitSuccess
	for i := 1; i <= iterations; i++ {
		run := types.NewRunContext(target, safety)

		o, collector, err := buildOrchestrator(ctx, cfg, run)
		if err != nil {
			return cli.Exit(fmt.Sprintf("setup failed: %v", err), exitInvalidInput)
		}

		started := time.Now()
		result, err := o.Execute(ctx)
		if err != nil {
			return cli.Exit(fmt.Sprintf("execution failed: %v", err), exitRunFailed)
		}

		if !c.Bool("quiet") {
			printRunResult(result, collector.Snapshot(), i, iterations, time.Since(started))
		}

		if code := exitCodeFor(result); code > exitCode {
			exitCode = code
		}
		if result.Status == types.RunCancelled {
			break
		}
		if i < iterations {
			select {
			case <-ctx.Done():
			case <-time.After(c.Duration("interval")):
			}
		}
	}

	return cli.Exit("", exitCode)
}

// exitCodeFor maps a run result onto the run command's exit codes.
// Persistence failures (history journal or snapshot archive) are
// distinguished so schedulers can alert on storage problems.
func exitCodeFor(result *types.RunResult) int {
	if result.Status == types.RunSuccess {
		return exitSuccess
	}
	if learn := result.Step(types.StepLearn); learn != nil && learn.Status == types.StepFailed {
		return exitPersistence
	}
	if strings.HasPrefix(result.Message, "snapshot persistence") {
		return exitPersistence
	}
	return exitRunFailed
}

func printRunResult(result *types.RunResult, snap metrics.Snapshot, iteration, iterations int, duration time.Duration) {
	if iterations > 1 {
		fmt.Printf("\n=== Cycle %d/%d ===\n", iteration, iterations)
	} else {
		fmt.Printf("\n=== Run Result ===\n")
	}
	fmt.Printf("Correlation ID: %s\n", result.CorrelationID)
	fmt.Printf("Target:         %s\n", result.Target)
	fmt.Printf("Safety Mode:    %s\n", safetyLabel(result.SafetyMode))
	fmt.Printf("Status:         %s\n", result.Status)
	if result.Message != "" {
		fmt.Printf("Message:        %s\n", result.Message)
	}
	fmt.Printf("Duration:       %s\n", duration.Round(time.Millisecond))
	if v := result.Step(types.StepValidate); v != nil {
		if level, ok := v.Payload["risk_level"].(string); ok && level != "" {
			fmt.Printf("Risk:           %s (score %v)\n", level, v.Payload["risk_score"])
		}
	}

	fmt.Printf("\n=== Steps ===\n")
	for _, step := range result.Steps {
		line := fmt.Sprintf("%-10s %-10s %6dms", step.Step, step.Status, step.ElapsedMs)
		if step.Err != "" {
			line += "  " + step.Err
		}
		fmt.Println(line)
	}

	fmt.Printf("\n=== Metrics ===\n")
	fmt.Printf("Oracle Calls:       %d (fallbacks: %d)\n", snap.OracleCalls, snap.OracleFallbacks)
	fmt.Printf("Evidence Submitted: %d (local fallback: %d)\n", snap.EvidenceSubmitted, snap.EvidenceFallback)
	fmt.Printf("History Appends:    %d (errors: %d)\n", snap.HistoryAppends, snap.HistoryAppendErrors)
	if snap.TokenRefreshes > 0 || snap.TokenCacheHits > 0 {
		fmt.Printf("Token Refreshes:    %d (cache hits: %d)\n", snap.TokenRefreshes, snap.TokenCacheHits)
	}
}

func safetyLabel(on bool) string {
	if on {
		return "on (simulated)"
	}
	return "OFF (live)"
}
