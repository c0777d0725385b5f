// Command autoqa runs one autocorrection cycle over a project: execute the
// test suite, ask the configured provider chain for fixes, apply them, and
// repeat until the suite passes or the iteration budget runs out.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autoqa/pkg/code"
	"autoqa/pkg/config"
	"autoqa/pkg/cycle"
	"autoqa/pkg/fixer"
	"autoqa/pkg/llm"
	"autoqa/pkg/llm/anthropic"
	"autoqa/pkg/llm/gemini"
	"autoqa/pkg/llm/ollama"
	"autoqa/pkg/llm/openai"
	"autoqa/pkg/logx"
	"autoqa/pkg/metrics"
	"autoqa/pkg/persistence"
	"autoqa/pkg/runner"
)

func main() {
	var (
		configPath string
		projectDir string
		language   string
		workDir    string
	)
	flag.StringVar(&configPath, "config", "autoqa.yaml", "Path to config file")
	flag.StringVar(&projectDir, "project", "", "Path to the project to correct")
	flag.StringVar(&language, "language", "", "Project language (go, rust, python, typescript, javascript)")
	flag.StringVar(&workDir, "workdir", "", "Working directory for staged versions (default: temp dir)")
	flag.Parse()

	if projectDir == "" || language == "" {
		fmt.Fprintln(os.Stderr, "usage: autoqa -project <dir> -language <lang> [-config autoqa.yaml]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := realMain(ctx, configPath, projectDir, language, workDir); err != nil {
		logx.Errorf("autoqa failed: %v", err)
		os.Exit(1)
	}
}

func realMain(ctx context.Context, configPath, projectDir, language, workDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if workDir == "" {
		if workDir = cfg.Runner.Workdir; workDir == "" {
			workDir, err = os.MkdirTemp("", "autoqa-*")
			if err != nil {
				return fmt.Errorf("failed to create working directory: %w", err)
			}
			defer func() { _ = os.RemoveAll(workDir) }()
		}
	}

	framework, err := runner.DetectFramework(projectDir, language)
	if err != nil {
		return err
	}
	logx.Infof("detected framework %s for %s project", framework, language)

	snap, err := code.LoadDir(projectDir, language, string(framework))
	if err != nil {
		return err
	}

	providers, err := buildProviders(cfg.Providers)
	if err != nil {
		return err
	}

	var recorder *metrics.PrometheusRecorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder()
		if cfg.Metrics.ListenAddr != "" {
			go serveMetrics(cfg.Metrics.ListenAddr)
		}
	}

	callTimeout := llm.WithCallTimeout(cfg.LLM.CallTimeout())
	var orchestrator *llm.Orchestrator
	if recorder != nil {
		orchestrator = llm.NewOrchestratorWithRecorder(providers, recorder, callTimeout)
	} else {
		orchestrator = llm.NewOrchestrator(providers, callTimeout)
	}
	logx.Infof("provider chain: %v", orchestrator.Providers())

	fix, err := fixer.New(orchestrator)
	if err != nil {
		return err
	}

	policy := cycle.Policy{
		MaxIterations: cfg.Cycle.MaxIterations,
		Stagnation: cycle.StagnationPolicy{
			Enabled:               cfg.Cycle.Stagnation.Enabled,
			Window:                cfg.Cycle.Stagnation.Window,
			MinImprovementPercent: cfg.Cycle.Stagnation.MinImprovementPercent,
		},
	}
	opts := []cycle.Option{}
	if recorder != nil {
		opts = append(opts, cycle.WithRecorder(recorder))
	}
	driver, err := cycle.New(runner.NewRunnerWithTimeout(cfg.Runner.Timeout()), fix, policy, workDir, opts...)
	if err != nil {
		return err
	}

	result, runErr := driver.Run(ctx, snap)
	if result != nil {
		if err := persistResult(cfg.Storage.DBPath, snap, result); err != nil {
			logx.Warnf("failed to persist audit trail: %v", err)
		}
		printSummary(result)
		if cfg.Metrics.PrometheusURL != "" {
			printProviderUsage(ctx, cfg.Metrics.PrometheusURL)
		}
	}
	if runErr != nil {
		return runErr
	}
	if !result.Success {
		return fmt.Errorf("cycle did not converge: %s", result.Termination)
	}
	return nil
}

// buildProviders turns config entries into clients, preserving chain order.
func buildProviders(entries []config.ProviderConfig) ([]llm.Provider, error) {
	providers := make([]llm.Provider, 0, len(entries))
	for _, entry := range entries {
		model := entry.Model
		switch entry.Vendor {
		case config.VendorAnthropic:
			if model == "" {
				model = anthropic.DefaultModel
			}
			providers = append(providers, anthropic.NewWithModel(entry.APIKey(), model))
		case config.VendorOpenAI:
			if model == "" {
				model = openai.DefaultModel
			}
			providers = append(providers, openai.NewWithModel(entry.APIKey(), model))
		case config.VendorGemini:
			if model == "" {
				model = gemini.DefaultModel
			}
			providers = append(providers, gemini.NewWithModel(entry.APIKey(), model))
		case config.VendorOllama:
			host := entry.Host
			if host == "" {
				host = ollama.DefaultHost
			}
			if model == "" {
				model = ollama.DefaultModel
			}
			providers = append(providers, ollama.NewWithModel(host, model))
		default:
			return nil, fmt.Errorf("unknown vendor %q", entry.Vendor)
		}
	}
	return providers, nil
}

// persistResult writes the finished cycle's audit trail to the store.
func persistResult(dbPath string, snap *code.Snapshot, result *cycle.Result) error {
	store, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	initialFailures := 0
	if len(result.History) > 0 {
		initialFailures = result.History[0].FailuresBefore
	}
	if err := store.RecordCycleStart(result.CycleID, snap.Language(), snap.Framework(),
		result.StartedAt, initialFailures); err != nil {
		return err
	}

	parentID := snap.VersionID()
	for _, it := range result.History {
		passed := it.Total - it.FailuresAfter
		if passed < 0 {
			passed = 0
		}
		if err := store.RecordIteration(&persistence.IterationRecord{
			CycleID:         result.CycleID,
			Num:             it.Num,
			VersionID:       it.VersionID,
			ParentVersionID: parentID,
			Total:           it.Total,
			Passed:          passed,
			Failed:          it.FailuresAfter,
			ImprovementPct:  it.ImprovementPercent,
			Duration:        it.TestDuration,
		}); err != nil {
			return err
		}
		parentID = it.VersionID

		for _, fix := range it.Applied {
			if err := store.RecordFix(&persistence.FixRecord{
				CycleID: result.CycleID, Iteration: it.Num,
				TargetFile: fix.TargetFile, Strategy: string(fix.Strategy),
				Confidence: fix.Confidence, Applied: true, Rationale: fix.Rationale,
			}); err != nil {
				return err
			}
		}
		for _, rej := range it.Rejected {
			if err := store.RecordFix(&persistence.FixRecord{
				CycleID: result.CycleID, Iteration: it.Num,
				TargetFile: rej.Fix.TargetFile, Strategy: string(rej.Fix.Strategy),
				Confidence: rej.Fix.Confidence, Applied: false, Reason: rej.Reason,
			}); err != nil {
				return err
			}
		}
	}

	return store.RecordCycleEnd(result.CycleID, string(result.Termination),
		result.Final.VersionID(), result.Iterations, result.FinalResults.FailureCount())
}

func printSummary(result *cycle.Result) {
	status := "FAILED"
	if result.Success {
		status = "OK"
	}
	fmt.Printf("%s  %s after %d iteration(s) in %s\n",
		status, result.Termination, result.Iterations, result.Duration.Round(time.Millisecond))
	for _, it := range result.History {
		fmt.Printf("  iteration %d: %d -> %d failure(s), %d fix(es) applied, %d rejected\n",
			it.Num, it.FailuresBefore, it.FailuresAfter, len(it.Applied), len(it.Rejected))
	}
}

// printProviderUsage reports aggregated per-provider token figures from the
// configured Prometheus server. Best effort; a failed query only warns.
func printProviderUsage(ctx context.Context, prometheusURL string) {
	qs, err := metrics.NewQueryService(prometheusURL)
	if err != nil {
		logx.Warnf("metrics query service unavailable: %v", err)
		return
	}
	usage, err := qs.GetProviderUsage(ctx)
	if err != nil {
		logx.Warnf("provider usage query failed: %v", err)
		return
	}
	for _, u := range usage {
		fmt.Printf("  provider %s: %d request(s), %d prompt + %d completion tokens\n",
			u.Provider, u.Requests, u.PromptTokens, u.CompletionTokens)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logx.Warnf("metrics server stopped: %v", err)
	}
}
