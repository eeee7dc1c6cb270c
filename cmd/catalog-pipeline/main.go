// Command catalog-pipeline runs the configured stage sequence for one or
// more AI inference providers: extract each provider's model catalog,
// fuse it with license/modality/provider facts, sync it into the working
// table, refresh the aa_slug mapping, compare against the prior slice,
// and optionally promote the working slice to production.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aicatalog/cpe/internal/catalog"
	"github.com/aicatalog/cpe/internal/compare"
	"github.com/aicatalog/cpe/internal/config"
	"github.com/aicatalog/cpe/internal/credentials"
	"github.com/aicatalog/cpe/internal/extract"
	"github.com/aicatalog/cpe/internal/extract/google"
	"github.com/aicatalog/cpe/internal/extract/groq"
	"github.com/aicatalog/cpe/internal/extract/openrouter"
	"github.com/aicatalog/cpe/internal/fuse"
	"github.com/aicatalog/cpe/internal/httpfetch"
	"github.com/aicatalog/cpe/internal/license"
	"github.com/aicatalog/cpe/internal/mapping"
	"github.com/aicatalog/cpe/internal/metrics"
	"github.com/aicatalog/cpe/internal/orchestrator"
	"github.com/aicatalog/cpe/internal/promote"
	"github.com/aicatalog/cpe/internal/ratelimit"
	"github.com/aicatalog/cpe/internal/secret"
	"github.com/aicatalog/cpe/internal/secret/env"
	"github.com/aicatalog/cpe/internal/secret/vault"
	"github.com/aicatalog/cpe/internal/store"
	"github.com/aicatalog/cpe/internal/sync"
	"github.com/aicatalog/cpe/internal/synclock"
)

func main() {
	if err := run(); err != nil {
		slog.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/config.json", "path to configuration file")
	autoAll := flag.Bool("auto-all", false, "run every configured stage without confirmation prompts")
	noVenv := flag.Bool("no-venv", false, "accepted for compatibility with the prior CI invocation; this binary has no virtualenv step")
	metricsAddr := flag.String("metrics-addr", "", "if set, overrides the configured metrics listen address and serves /metrics")
	promoteFlag := flag.Bool("promote", false, "after sync/mapping/compare, promote the working slice to production")
	var scripts stageList
	flag.Var(&scripts, "scripts", "run only these stage names (repeatable, or space-separated)")
	var rng rangeFlag
	flag.Var(&rng, "range", "run the contiguous stage range START END, e.g. --range extract fuse")
	flag.Parse()
	_ = noVenv

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	secretManager := secret.NewManager()
	defer func() {
		if err := secretManager.Close(); err != nil {
			logger.Error("failed to close secret manager", "error", err)
		}
	}()
	secretManager.Register("env", env.New())

	cfgManager, err := config.NewManager(*configPath, logger)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer func() { _ = cfgManager.Close() }()
	cfg := cfgManager.Get()

	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		vProvider, vErr := vault.New(vault.Config{
			Address:    addr,
			AuthMethod: "approle",
			RoleID:     os.Getenv("VAULT_ROLE_ID"),
			SecretID:   os.Getenv("VAULT_SECRET_ID"),
		})
		if vErr != nil {
			return fmt.Errorf("initialize vault provider: %w", vErr)
		}
		secretManager.Register("vault", secret.NewCachedProvider(vProvider, 5*time.Minute))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutdown signal received, cancelling in-flight stage")
		cancel()
	}()

	creds, err := credentials.Resolve(ctx, secretManager, cfg)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	pg, err := store.NewPostgresStore(ctx, store.PostgresConfig{
		DSN:             creds.DatabaseDSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() { _ = pg.Close() }()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer func() { _ = redisClient.Close() }()

	collector := metrics.NewCollector()

	listenAddr := cfg.Metrics.ListenAddr
	if *metricsAddr != "" {
		listenAddr = *metricsAddr
	}
	if (cfg.Metrics.Enabled || *metricsAddr != "") && listenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		srv := &http.Server{Addr: listenAddr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "addr", listenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	providers := enabledProviders(cfg)
	if len(providers) == 0 {
		return fmt.Errorf("no providers enabled in configuration")
	}

	confirmer := orchestrator.SelectConfirmer(cfg.Orchestrator, *autoAll, orchestrator.NewTTYConfirmer(os.Stdin, os.Stdout))

	failed := false
	for _, provider := range providers {
		stages := buildStages(ctx, logger, collector, cfg, creds, pg, redisClient, provider, *promoteFlag)
		stages = filterStages(stages, []string(scripts), [2]string(rng))

		report := orchestrator.Run(ctx, logger, collector, confirmer, string(provider), stages, cfg.Orchestrator)
		fmt.Fprintln(os.Stdout, orchestrator.WriteReport(report))
		if report.Failed() {
			failed = true
		}
	}

	if failed {
		return fmt.Errorf("one or more required stages failed")
	}
	return nil
}

// enabledProviders returns the providers with Enabled set in configuration
// order: Google, Groq, OpenRouter.
func enabledProviders(cfg *config.Config) []catalog.Provider {
	var out []catalog.Provider
	if cfg.Providers.Google.Enabled {
		out = append(out, catalog.Google)
	}
	if cfg.Providers.Groq.Enabled {
		out = append(out, catalog.Groq)
	}
	if cfg.Providers.OpenRouter.Enabled {
		out = append(out, catalog.OpenRouter)
	}
	return out
}

// buildStages wires one orchestrator.Stage per configured stage name for
// provider, closing over the shared fetcher, store, lock, and credentials.
func buildStages(ctx context.Context, logger *slog.Logger, collector *metrics.Collector, cfg *config.Config, creds credentials.Credentials, st store.Store, redisClient *redis.Client, provider catalog.Provider, withPromote bool) []orchestrator.Stage {
	fetcher := httpfetch.New(logger)
	lock := synclock.New(redisClient, string(provider))

	var result *extract.Result
	var fuseOut fuse.Output

	hf := &license.HFHTTPClient{Fetcher: fetcher, APIKey: creds.HuggingFaceToken}
	resolver := license.NewResolver(cfg.License, hf)

	stages := []orchestrator.Stage{
		{
			StageConfig: stageConfig(cfg.Orchestrator, "extract"),
			Fn: func(ctx context.Context, p string) error {
				var err error
				switch provider {
				case catalog.Google:
					result, err = google.Extract(ctx, cfg.Providers.Google, creds.GoogleAPIKey, fetcher, cfg.Artifacts.OutputDir, logger)
				case catalog.Groq:
					result, err = groq.Extract(ctx, cfg.Providers.Groq, fetcher, logger)
				case catalog.OpenRouter:
					result, err = openrouter.Extract(ctx, cfg.Providers.OpenRouter, creds.OpenRouterAPIKey, fetcher)
				default:
					return fmt.Errorf("unknown provider %q", provider)
				}
				outcome := "success"
				if err != nil {
					outcome = "error"
				}
				collector.RecordFetch(string(provider), outcome)
				return err
			},
		},
		{
			// License and modality resolution happen inside Fuse against
			// result.Modalities and the license resolver; this stage is a
			// no-op placeholder kept in the configured sequence so its
			// required/optional flag and watchdog still apply uniformly,
			// and so a future split of fuse's internals has a stage to
			// attach to without reshaping the orchestrator config.
			StageConfig: stageConfig(cfg.Orchestrator, "license"),
			Fn:          func(ctx context.Context, p string) error { return nil },
		},
		{
			StageConfig: stageConfig(cfg.Orchestrator, "modality"),
			Fn:          func(ctx context.Context, p string) error { return nil },
		},
		{
			StageConfig: stageConfig(cfg.Orchestrator, "fuse"),
			Fn: func(ctx context.Context, p string) error {
				if result == nil {
					return fmt.Errorf("fuse: extract did not run")
				}
				operatorRemove := operatorRemoveFor(cfg, provider)
				fuseOut = fuse.Fuse(ctx, provider, result, resolver, cfg.ProviderFact, cfg.Slug, operatorRemove, time.Now())
				return nil
			},
		},
		{
			StageConfig: stageConfig(cfg.Orchestrator, "sync"),
			Fn: func(ctx context.Context, p string) error {
				rateLimits := rateLimitRows(result, string(provider))
				report, err := sync.Run(ctx, st, lock, string(provider), fuseOut.Rows, rateLimits, sync.Options{
					BatchSize: cfg.Sync.BatchSize,
					LockTTL:   cfg.Sync.AdvisoryLockTTL,
				})
				if err != nil {
					return err
				}
				collector.RecordRowsSynced(string(provider), report.FinalCount)
				if report.RolledBack {
					collector.RecordRollback(string(provider))
					return fmt.Errorf("sync rolled back for %s", provider)
				}
				return nil
			},
		},
		{
			StageConfig: stageConfig(cfg.Orchestrator, "mapping"),
			Fn: func(ctx context.Context, p string) error {
				_, err := mapping.Refresh(ctx, st, string(provider), cfg.Slug, time.Now())
				return err
			},
		},
		{
			StageConfig: stageConfig(cfg.Orchestrator, "compare"),
			Fn: func(ctx context.Context, p string) error {
				working, err := st.ReadWorkingSlice(ctx, string(provider))
				if err != nil {
					return err
				}
				report := compare.Compare(fuseOut.Rows, working)
				logger.Info("comparison complete", "provider", provider, "in_both", report.InBoth, "pipeline_only", len(report.PipelineOnly), "working_only", len(report.WorkingTableOnly))
				return nil
			},
		},
	}

	if withPromote {
		stages = append(stages, orchestrator.Stage{
			StageConfig: config.StageConfig{Name: "promote", Required: false},
			Fn: func(ctx context.Context, p string) error {
				report, _, err := promote.Run(ctx, st, string(provider), cfg.Promote)
				if err != nil {
					if report.RolledBack {
						collector.RecordRollback(string(provider))
					}
					return err
				}
				return nil
			},
		})
	}

	return stages
}

func stageConfig(oc config.OrchestratorConfig, name string) config.StageConfig {
	for _, s := range oc.Stages {
		if s.Name == name {
			return s
		}
	}
	return config.StageConfig{Name: name, Required: false}
}

func operatorRemoveFor(cfg *config.Config, provider catalog.Provider) []string {
	switch provider {
	case catalog.Google:
		return cfg.Providers.Google.OperatorRemove
	case catalog.Groq:
		return cfg.Providers.Groq.OperatorRemove
	case catalog.OpenRouter:
		return cfg.Providers.OpenRouter.OperatorRemove
	default:
		return nil
	}
}

func rateLimitRows(result *extract.Result, provider string) []catalog.RateLimitRow {
	if result == nil {
		return nil
	}
	rows := make([]catalog.RateLimitRow, 0, len(result.RateLimits))
	for slug, raw := range result.RateLimits {
		rows = append(rows, ratelimit.Parse(slug, provider, raw))
	}
	return rows
}

// filterStages applies --scripts/--range selection the same way the prior
// Python drivers filtered their script list, operating on stage names
// instead of lettered filenames.
func filterStages(stages []orchestrator.Stage, scripts []string, rng [2]string) []orchestrator.Stage {
	if len(scripts) > 0 {
		want := make(map[string]bool, len(scripts))
		for _, s := range scripts {
			want[strings.ToLower(s)] = true
		}
		var out []orchestrator.Stage
		for _, s := range stages {
			if want[strings.ToLower(s.Name)] {
				out = append(out, s)
			}
		}
		return out
	}

	if rng[0] != "" && rng[1] != "" {
		startIdx, endIdx := -1, -1
		for i, s := range stages {
			if strings.EqualFold(s.Name, rng[0]) {
				startIdx = i
			}
			if strings.EqualFold(s.Name, rng[1]) {
				endIdx = i
			}
		}
		if startIdx >= 0 && endIdx >= startIdx {
			return stages[startIdx : endIdx+1]
		}
	}

	return stages
}

// stageList implements flag.Value, accumulating one or more --scripts
// values across repeated flags or a single space-separated value.
type stageList []string

func (s *stageList) String() string { return strings.Join(*s, " ") }
func (s *stageList) Set(v string) error {
	*s = append(*s, strings.Fields(v)...)
	return nil
}

// rangeFlag implements flag.Value for --range START END passed as one
// space-separated argument.
type rangeFlag [2]string

func (r *rangeFlag) String() string { return strings.Join(r[:], " ") }
func (r *rangeFlag) Set(v string) error {
	parts := strings.Fields(v)
	if len(parts) != 2 {
		return fmt.Errorf("--range requires exactly two stage names, got %q", v)
	}
	r[0], r[1] = parts[0], parts[1]
	return nil
}
