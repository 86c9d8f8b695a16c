package cmd

import (
	"context"
	"fmt"

	"github.com/chaossec-io/chaossec/adapter"
	"github.com/chaossec-io/chaossec/adapter/redis"
	"github.com/chaossec-io/chaossec/adapter/webhook"
	"github.com/chaossec-io/chaossec/auth"
	"github.com/chaossec-io/chaossec/brain"
	"github.com/chaossec-io/chaossec/chaos"
	"github.com/chaossec-io/chaossec/cli/config"
	"github.com/chaossec-io/chaossec/evidence"
	"github.com/chaossec-io/chaossec/history"
	"github.com/chaossec-io/chaossec/log"
	"github.com/chaossec-io/chaossec/metrics"
	"github.com/chaossec-io/chaossec/monitor"
	"github.com/chaossec-io/chaossec/orchestrator"
	"github.com/chaossec-io/chaossec/report"
	"github.com/chaossec-io/chaossec/scan"
	"github.com/chaossec-io/chaossec/twin"
	"github.com/chaossec-io/chaossec/types"
)

// Default storage locations relative to the working directory.
const (
	defaultHistoryPath = "chaossec_history.ndjson"
	defaultSnapshotDir = "snapshots"
	defaultEvidenceDir = "evidence"
)

// loadConfig reads the config file when --config is set, otherwise
// returns an empty config. Flags override config values downstream.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// buildOrchestrator wires every collaborator the config file names into
// one orchestrator for one run. Unconfigured optional collaborators are
// left nil; the corresponding steps degrade at execution time.
func buildOrchestrator(ctx context.Context, cfg *config.Config, run *types.RunContext) (*orchestrator.Orchestrator, *metrics.Collector, error) {
	logger := log.NewLogger(run)
	collector := metrics.NewCollector(run.CorrelationID, run.Target, run.SafetyMode)

	ocfg := &orchestrator.Config{
		Run:           run,
		Logger:        logger,
		Collector:     collector,
		MonitorWindow: cfg.Monitor.Window.Duration,
	}

	var oracle brain.Oracle
	if cfg.Oracle.APIKey != "" {
		o, err := brain.NewOpenAIOracle(brain.OpenAIConfig{
			APIKey:  cfg.Oracle.APIKey,
			BaseURL: cfg.Oracle.BaseURL,
			Model:   cfg.Oracle.Model,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("oracle: %w", err)
		}
		oracle = o
	}
	ocfg.Engine = brain.NewEngine(oracle, logger, collector)

	injector, err := chaos.NewS3Injector(ctx, cfg.Chaos.Region, cfg.Chaos.Profile, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("chaos injector: %w", err)
	}
	ocfg.Injector = injector

	if cfg.Twin.URL != "" {
		if !cfg.Twin.Auth.Configured() {
			return nil, nil, fmt.Errorf("twin service %s requires auth credentials", cfg.Twin.URL)
		}
		tokens, err := auth.NewManager(auth.Config{
			TokenURL:     cfg.Twin.Auth.TokenURL,
			ClientID:     cfg.Twin.Auth.ClientID,
			ClientSecret: cfg.Twin.Auth.ClientSecret,
			Scope:        cfg.Twin.Auth.Scope,
		}, collector)
		if err != nil {
			return nil, nil, fmt.Errorf("twin auth: %w", err)
		}
		sim, err := twin.NewClient(cfg.Twin.URL, tokens, cfg.Twin.Timeout.Duration)
		if err != nil {
			return nil, nil, fmt.Errorf("twin client: %w", err)
		}
		ocfg.Simulator = sim
	}

	if len(cfg.Scanner.Paths) > 0 {
		scanner, err := scan.NewSemgrep(scan.SemgrepConfig{
			Binary:  cfg.Scanner.Binary,
			Rules:   cfg.Scanner.Rules,
			Paths:   cfg.Scanner.Paths,
			Timeout: cfg.Scanner.Timeout.Duration,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("scanner: %w", err)
		}
		ocfg.Scanner = scanner
	}

	if cfg.Monitor.Region != "" {
		mon, err := monitor.NewAWSCollector(ctx, cfg.Monitor.Region, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("monitor: %w", err)
		}
		ocfg.Monitor = mon
	}

	if cfg.Report.URL != "" {
		if !cfg.Report.Auth.Configured() {
			return nil, nil, fmt.Errorf("report endpoint %s requires auth credentials", cfg.Report.URL)
		}
		tokens, err := auth.NewManager(auth.Config{
			TokenURL:     cfg.Report.Auth.TokenURL,
			ClientID:     cfg.Report.Auth.ClientID,
			ClientSecret: cfg.Report.Auth.ClientSecret,
			Scope:        cfg.Report.Auth.Scope,
		}, collector)
		if err != nil {
			return nil, nil, fmt.Errorf("report auth: %w", err)
		}
		rcfg := report.Config{URL: cfg.Report.URL, Timeout: cfg.Report.Timeout.Duration}
		if cfg.Report.Retries != nil {
			rcfg.Retries = *cfg.Report.Retries
		}
		reporter, err := report.NewClient(rcfg, tokens)
		if err != nil {
			return nil, nil, fmt.Errorf("report client: %w", err)
		}
		ocfg.Reporter = reporter
	}

	evidenceDir := cfg.Report.EvidenceDir
	if evidenceDir == "" {
		evidenceDir = defaultEvidenceDir
	}
	evStore, err := evidence.NewStore(evidenceDir)
	if err != nil {
		return nil, nil, fmt.Errorf("evidence store: %w", err)
	}
	ocfg.Evidence = evStore

	store, archive, err := openHistory(cfg, collector)
	if err != nil {
		return nil, nil, err
	}
	ocfg.History = store
	ocfg.Snapshots = archive

	publisher, err := buildPublisher(cfg.Adapter)
	if err != nil {
		return nil, nil, err
	}
	ocfg.Publisher = publisher

	o, err := orchestrator.New(ocfg)
	if err != nil {
		return nil, nil, err
	}
	return o, collector, nil
}

// openHistory opens the run journal and snapshot archive at their
// configured or default paths.
func openHistory(cfg *config.Config, collector *metrics.Collector) (*history.FileStore, *history.SnapshotArchive, error) {
	path := cfg.History.Path
	if path == "" {
		path = defaultHistoryPath
	}
	store, err := history.NewFileStore(path, collector)
	if err != nil {
		return nil, nil, fmt.Errorf("history store: %w", err)
	}

	dir := cfg.History.SnapshotDir
	if dir == "" {
		dir = defaultSnapshotDir
	}
	archive, err := history.NewSnapshotArchive(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot archive: %w", err)
	}
	return store, archive, nil
}

// buildPublisher creates the configured event bus adapter, or nil when
// no adapter is configured.
func buildPublisher(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := 0
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case "":
		return nil, nil
	case "redis":
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Secret:  cfg.Secret,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be redis or webhook)", cfg.Type)
	}
}
