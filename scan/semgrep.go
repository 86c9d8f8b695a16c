package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chaossec-io/chaossec/types"
)

// Semgrep invocation defaults.
const (
	defaultBinary  = "semgrep"
	defaultRules   = "auto"
	defaultTimeout = 5 * time.Minute
)

// SemgrepConfig configures the semgrep scanner.
type SemgrepConfig struct {
	// Binary is the semgrep executable (default "semgrep", resolved via PATH).
	Binary string
	// Rules is the semgrep --config value (default "auto").
	Rules string
	// Paths are the scan roots (required).
	Paths []string
	// Timeout bounds one scanner invocation (default 5m).
	Timeout time.Duration
}

// Semgrep is a Scanner that shells out to the semgrep CLI.
type Semgrep struct {
	config SemgrepConfig

	// runCommand is injected for tests; defaults to executing the binary.
	runCommand func(ctx context.Context, binary string, args []string) ([]byte, error)
}

// NewSemgrep creates a semgrep scanner.
func NewSemgrep(cfg SemgrepConfig) (*Semgrep, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("scan: at least one scan path is required")
	}
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.Rules == "" {
		cfg.Rules = defaultRules
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Semgrep{config: cfg, runCommand: execCommand}, nil
}

// semgrepOutput mirrors the subset of semgrep's JSON report we consume.
type semgrepOutput struct {
	Results []struct {
		CheckID string `json:"check_id"`
		Path    string `json:"path"`
		Start   struct {
			Line int `json:"line"`
		} `json:"start"`
		Extra struct {
			Severity string `json:"severity"`
			Message  string `json:"message"`
		} `json:"extra"`
	} `json:"results"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Scan implements Scanner by invoking semgrep --json over the configured
// paths. Exit status 1 means findings were reported and is not an error.
func (s *Semgrep) Scan(ctx context.Context) (*types.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	args := []string{"--json", "--quiet", "--config", s.config.Rules}
	args = append(args, s.config.Paths...)

	out, err := s.runCommand(ctx, s.config.Binary, args)
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
			// Findings present; output still carries the report.
		case errors.Is(err, exec.ErrNotFound):
			return nil, types.NewFault(types.ErrAdapterUnavailable, "scan",
				fmt.Errorf("scanner binary %q not found", s.config.Binary))
		case ctx.Err() != nil:
			return nil, types.NewFault(types.ErrAdapterTimeout, "scan", ctx.Err())
		default:
			return nil, types.NewFault(types.ErrAdapterUnavailable, "scan", err)
		}
	}

	return parseReport(out, s.config.Paths)
}

// parseReport normalizes a semgrep JSON report into a ScanResult.
func parseReport(out []byte, paths []string) (*types.ScanResult, error) {
	var report semgrepOutput
	if err := json.Unmarshal(bytes.TrimSpace(out), &report); err != nil {
		return nil, types.NewFault(types.ErrAdapterUnavailable, "scan",
			fmt.Errorf("unparseable scanner output: %w", err))
	}

	result := &types.ScanResult{ScannedPaths: paths}
	for _, r := range report.Results {
		result.Findings = append(result.Findings, types.Finding{
			RuleID:   r.CheckID,
			Severity: normalizeSeverity(r.Extra.Severity),
			Path:     r.Path,
			Line:     r.Start.Line,
			Message:  r.Extra.Message,
		})
	}
	return result, nil
}

// normalizeSeverity maps semgrep severities onto the finding scale.
// Unknown values rank as INFO rather than being dropped.
func normalizeSeverity(s string) types.Severity {
	switch strings.ToUpper(s) {
	case "ERROR", "CRITICAL", "HIGH":
		return types.SeverityError
	case "WARNING", "MEDIUM":
		return types.SeverityWarning
	default:
		return types.SeverityInfo
	}
}

// execCommand runs the scanner binary, returning its combined stdout.
func execCommand(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	return stdout.Bytes(), err
}

// Verify Semgrep implements Scanner.
var _ Scanner = (*Semgrep)(nil)
