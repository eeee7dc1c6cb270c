// Package orchestrator sequences the configured stage list (C13) for one
// provider run: extract, license, modality, fuse, sync, mapping, compare.
// It mirrors the shape of the Python "run A to H" drivers it replaces —
// a flat execution log, a before-running confirmation gate, an
// ask-to-continue gate on stage failure — but expressed as in-process
// stage functions instead of subprocess invocations, since every stage
// here already lives in this module rather than a separate script file.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/metrics"
	"github.com/aicatalog/cpe/internal/runid"
)

// State is one node of the provider-refresh state machine.
type State string

const (
	StateIdle               State = "Idle"
	StateExtractingExternal State = "ExtractingExternal"
	StateResolving          State = "Resolving"
	StateFusing             State = "Fusing"
	StateBackingUp          State = "Backing-Up"
	StateDeleting           State = "Deleting"
	StateInserting          State = "Inserting"
	StateVerifying          State = "Verifying"
	StateRateLimitsUpsert   State = "RateLimitsUpsert"
	StateDone               State = "Done"

	// Terminal error states. AbortedNoMutation is reached from any state
	// up through Backing-Up, before the working slice has been touched.
	// RestoredFromBackup means a later failure triggered a successful
	// rollback. InconsistentRequiresManual means the rollback itself
	// failed and the working slice no longer matches either the old or
	// new data.
	StateAbortedNoMutation          State = "AbortedNoMutation"
	StateRestoredFromBackup         State = "RestoredFromBackup"
	StateInconsistentRequiresManual State = "InconsistentRequiresManual"
)

// Stage is one named unit of work in a provider run. Fn receives the
// provider and returns an error on failure; it is responsible for its own
// internal retries, artifact writes, and metric recording.
type Stage struct {
	config.StageConfig
	Fn func(ctx context.Context, provider string) error
}

// StageResult records the outcome of running one stage.
type StageResult struct {
	Name      string
	Required  bool
	Succeeded bool
	Skipped   bool // true when the run was aborted before this stage ran
	Duration  time.Duration
	Err       error
}

// Report is the run-level summary the orchestrator always produces,
// regardless of outcome.
type Report struct {
	Provider string
	Started  time.Time
	Total    time.Duration
	Stages   []StageResult
	Aborted  bool // ConfirmRun was declined, a required stage failed, or continuing after an optional failure was declined
}

// Failed reports whether the run was aborted or a required stage failed,
// for a caller deciding the process exit code.
func (r Report) Failed() bool {
	if r.Aborted {
		return true
	}
	for _, s := range r.Stages {
		if s.Required && !s.Succeeded && !s.Skipped {
			return true
		}
	}
	return false
}

// WriteReport renders the same "stage by stage results" shape the
// pipeline's Python drivers wrote to their execution report files.
func WriteReport(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PIPELINE EXECUTION REPORT: %s\n", r.Provider)
	fmt.Fprintf(&b, "Started: %s\n", r.Started.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total time: %s\n\n", r.Total)

	succeeded, failed, skipped := 0, 0, 0
	for i, s := range r.Stages {
		status := "SUCCESS"
		switch {
		case s.Skipped:
			status, skipped = "SKIPPED", skipped+1
		case !s.Succeeded:
			status, failed = "FAILED", failed+1
		default:
			succeeded++
		}
		fmt.Fprintf(&b, "Stage %d: %s (required=%v)\n  Status: %s\n  Duration: %s\n", i+1, s.Name, s.Required, status, s.Duration)
		if s.Err != nil {
			fmt.Fprintf(&b, "  Detail: %s\n", tail(s.Err.Error(), 500))
		}
	}

	fmt.Fprintf(&b, "\nSummary: %d succeeded, %d failed, %d skipped\n", succeeded, failed, skipped)
	if r.Aborted {
		b.WriteString("Run aborted: a required stage failed.\n")
	} else {
		b.WriteString("Run completed; no required stage failed.\n")
	}
	return b.String()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// Confirmer decides whether the orchestrator should pause for an operator
// decision. AutoConfirmer always says yes, for CI and --auto-all runs;
// TTYConfirmer prompts on stdin.
type Confirmer interface {
	ConfirmRun(provider string, stages []Stage) bool
	ConfirmContinueAfterFailure(stage string) bool
}

// AutoConfirmer approves every gate without prompting.
type AutoConfirmer struct{}

func (AutoConfirmer) ConfirmRun(string, []Stage) bool         { return true }
func (AutoConfirmer) ConfirmContinueAfterFailure(string) bool { return true }

// NonInteractive reports whether any of envNames is set, matching the
// GITHUB_ACTIONS / CI / AUTOMATED_EXECUTION detection the pipeline's
// Python drivers use to skip their interactive prompts.
func NonInteractive(envNames []string) bool {
	for _, name := range envNames {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// SelectConfirmer returns an AutoConfirmer when running non-interactively
// or when the caller passed --auto-all, and a TTYConfirmer otherwise.
func SelectConfirmer(cfg config.OrchestratorConfig, autoAll bool, prompt *TTYConfirmer) Confirmer {
	if autoAll || NonInteractive(cfg.NonInteractiveEnvs) {
		return AutoConfirmer{}
	}
	return prompt
}

// Run executes stages in order for provider. A required stage's failure
// sets Report.Aborted and skips every remaining stage; an optional
// stage's failure is recorded and the run continues unless the confirmer
// declines to continue, which also sets Report.Aborted. Each stage gets its
// own watchdog derived from cfg.StageWatchdogMinutes.
func Run(ctx context.Context, logger *slog.Logger, collector *metrics.Collector, confirmer Confirmer, provider string, stages []Stage, cfg config.OrchestratorConfig) Report {
	ctx, runID := runid.Ensure(ctx)
	logger = logger.With("run_id", runID, "provider", provider)

	report := Report{Provider: provider, Started: time.Now()}

	if !confirmer.ConfirmRun(provider, stages) {
		logger.Info("run cancelled before execution")
		report.Aborted = true
		return report
	}

	watchdog := time.Duration(cfg.StageWatchdogMinutes) * time.Minute
	if watchdog <= 0 {
		watchdog = 15 * time.Minute
	}

	for _, stage := range stages {
		if report.Aborted {
			report.Stages = append(report.Stages, StageResult{Name: stage.Name, Required: stage.Required, Skipped: true})
			continue
		}

		logger.Info("stage starting", "stage", stage.Name, "required", stage.Required)
		start := time.Now()
		err := runStageWithWatchdog(ctx, stage, provider, watchdog)
		duration := time.Since(start)
		if collector != nil {
			collector.RecordStageDuration(provider, stage.Name, duration)
		}

		result := StageResult{Name: stage.Name, Required: stage.Required, Succeeded: err == nil, Duration: duration, Err: err}
		report.Stages = append(report.Stages, result)

		if err != nil {
			logger.Error("stage failed", "stage", stage.Name, "required", stage.Required, "err", err)
			if stage.Required {
				report.Aborted = true
				continue
			}
			if !confirmer.ConfirmContinueAfterFailure(stage.Name) {
				report.Aborted = true
			}
			continue
		}
		logger.Info("stage completed", "stage", stage.Name, "duration", duration)
	}

	report.Total = time.Since(report.Started)
	return report
}

func runStageWithWatchdog(ctx context.Context, stage Stage, provider string, watchdog time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, watchdog)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- stage.Fn(ctx, provider)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("orchestrator: stage %s exceeded watchdog of %s: %w", stage.Name, watchdog, ctx.Err())
	}
}
