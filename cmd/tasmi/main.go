// Command tasmi is the recitation recognition server: it listens for audio
// chunks, transcribes them, locates the recited verse in the corpus, and
// tracks per-session progress and mistakes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hifdhlab/tasmi/internal/config"
	"github.com/hifdhlab/tasmi/internal/corpus"
	"github.com/hifdhlab/tasmi/internal/dataset"
	"github.com/hifdhlab/tasmi/internal/health"
	"github.com/hifdhlab/tasmi/internal/observe"
	"github.com/hifdhlab/tasmi/internal/recite"
	"github.com/hifdhlab/tasmi/internal/session"
	sessionpg "github.com/hifdhlab/tasmi/internal/session/postgres"
	"github.com/hifdhlab/tasmi/pkg/asr"
	asrmock "github.com/hifdhlab/tasmi/pkg/asr/mock"
	asropenai "github.com/hifdhlab/tasmi/pkg/asr/openai"
	asrwhisper "github.com/hifdhlab/tasmi/pkg/asr/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "tasmi: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "tasmi: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a SIGHUP config reload can adjust it
	// without rebuilding the handler.
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Server.LogLevel.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("tasmi starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "tasmi"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Corpus ────────────────────────────────────────────────────────────────
	index := corpus.NewIndex()
	if err := index.Reload(cfg.Corpus.CorpusSources()...); err != nil {
		slog.Error("failed to load corpus", "err", err)
		return 1
	}
	slog.Info("corpus loaded",
		"chapters", len(index.Corpus().Chapters()),
		"verses", index.Corpus().VerseCount(),
	)

	// ── Session store ─────────────────────────────────────────────────────────
	var (
		store   session.Store
		pgStore *sessionpg.Store
	)
	switch cfg.SessionStore.Type {
	case config.StorePostgres:
		pgStore, err = sessionpg.New(ctx, cfg.SessionStore.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect session store", "err", err)
			return 1
		}
		defer pgStore.Close()
		store = pgStore
		slog.Info("session store connected", "type", "postgres")
	default:
		store = session.NewMemStore()
		slog.Info("session store ready", "type", "memory")
	}

	// ── Transcriber ───────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	transcriber, err := reg.Create(cfg.ASR)
	if err != nil {
		slog.Error("failed to create transcriber", "provider", cfg.ASR.Provider, "err", err)
		return 1
	}
	slog.Info("transcriber created", "provider", cfg.ASR.Provider, "model", cfg.ASR.Model)

	// ── Reference dataset (optional) ──────────────────────────────────────────
	var refs dataset.Dataset
	if cfg.Dataset.Path != "" {
		fs, err := dataset.LoadDir(cfg.Dataset.Path)
		if err != nil {
			slog.Error("failed to load reference dataset", "path", cfg.Dataset.Path, "err", err)
			return 1
		}
		refs = fs
	}

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch := recite.New(index, store, transcriber, recognitionOptions(cfg, refs)...)

	// ── HTTP surface: health probes + metrics ─────────────────────────────────
	checkers := []health.Checker{
		health.ReadyChecker("corpus", index.Ready),
	}
	if pgStore != nil {
		checkers = append(checkers, health.PingChecker("session_store", pgStore.Ping))
	}
	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ── SIGHUP config reload ──────────────────────────────────────────────────
	go watchReload(ctx, *configPath, cfg, logLevel, index)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, index.Corpus().VerseCount())
	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-serveErr:
		slog.Error("http server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if n := orch.ActiveSessions(); n > 0 {
		slog.Warn("shutting down with active sessions; snapshots persist on next start", "count", n)
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the transcriber factories that ship with
// tasmi into reg. Each factory builds a provider from its config.ASRConfig
// block.
func registerBuiltinProviders(reg *config.Registry) {
	reg.Register("mock", func(config.ASRConfig) (asr.Transcriber, error) {
		return &asrmock.Transcriber{}, nil
	})

	reg.Register("whisper", func(entry config.ASRConfig) (asr.Transcriber, error) {
		if entry.BaseURL == "" {
			return nil, errors.New("asr.base_url is required for the whisper provider")
		}
		var opts []asrwhisper.Option
		if entry.Model != "" {
			opts = append(opts, asrwhisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, asrwhisper.WithLanguage(entry.Language))
		}
		return asrwhisper.NewClient(entry.BaseURL, opts...)
	})

	reg.Register("whisper-native", func(entry config.ASRConfig) (asr.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []asrwhisper.NativeOption
		if entry.Language != "" {
			opts = append(opts, asrwhisper.WithNativeLanguage(entry.Language))
		}
		return asrwhisper.NewNative(modelPath, opts...)
	})

	reg.Register("openai", func(entry config.ASRConfig) (asr.Transcriber, error) {
		apiKey := entry.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		var opts []asropenai.Option
		if entry.Model != "" {
			opts = append(opts, asropenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, asropenai.WithBaseURL(entry.BaseURL))
		}
		if entry.Language != "" {
			opts = append(opts, asropenai.WithLanguage(entry.Language))
		}
		return asropenai.New(apiKey, opts...)
	})
}

// recognitionOptions translates the recognition config block into orchestrator
// options, leaving engine defaults in place for zero values.
func recognitionOptions(cfg *config.Config, refs dataset.Dataset) []recite.Option {
	opts := []recite.Option{
		recite.WithProviderName(cfg.ASR.Provider),
	}
	if cfg.ASR.Language != "" {
		opts = append(opts, recite.WithLanguage(cfg.ASR.Language))
	}
	if refs != nil {
		opts = append(opts, recite.WithDataset(refs))
	}
	rec := cfg.Recognition
	if rec.MaxConcurrentTranscriptions > 0 {
		opts = append(opts, recite.WithMaxConcurrent(rec.MaxConcurrentTranscriptions))
	}
	if rec.PersistEveryChunks > 0 {
		opts = append(opts, recite.WithPersistInterval(rec.PersistEveryChunks))
	}
	if rec.SearchWindow > 0 {
		opts = append(opts, recite.WithSearchWindow(rec.SearchWindow))
	}
	if rec.MatchThreshold > 0 {
		opts = append(opts, recite.WithMatchThreshold(rec.MatchThreshold))
	}
	if rec.Weights != nil {
		opts = append(opts, recite.WithWeights(rec.Weights.Weights()))
	}
	return opts
}

// ── SIGHUP config reload ──────────────────────────────────────────────────────

// watchReload re-reads the config file on every SIGHUP and applies the
// hot-reloadable parts: the log level and the corpus sources. Sections that
// need a restart are logged so the operator knows the signal was not enough.
func watchReload(ctx context.Context, path string, current *config.Config, logLevel *slog.LevelVar, index *corpus.Index) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
		}

		next, err := config.Load(path)
		if err != nil {
			slog.Error("config reload failed, keeping previous config", "path", path, "err", err)
			continue
		}
		diff := config.Compare(current, next)

		if diff.LogLevelChanged {
			logLevel.Set(diff.NewLogLevel.Level())
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.CorpusChanged || next.Corpus.ReloadOnSighup {
			if err := index.Reload(next.Corpus.CorpusSources()...); err != nil {
				slog.Error("corpus reload failed, keeping previous corpus", "err", err)
			} else {
				slog.Info("corpus reloaded",
					"chapters", len(index.Corpus().Chapters()),
					"verses", index.Corpus().VerseCount(),
				)
			}
		}
		if len(diff.RestartNeeded) > 0 {
			slog.Warn("config sections changed that need a restart to apply", "sections", diff.RestartNeeded)
		}
		if diff.Empty() {
			slog.Info("config unchanged")
		}
		current = next
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, verseCount int) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║           tasmi — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("ASR", summaryValue(cfg.ASR.Provider, cfg.ASR.Model))
	printRow("Corpus verses", fmt.Sprintf("%d", verseCount))
	printRow("Session store", string(cfg.SessionStore.Type))
	if cfg.Dataset.Path != "" {
		printRow("Dataset", cfg.Dataset.Path)
	} else {
		printRow("Dataset", "(disabled)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func summaryValue(name, model string) string {
	if name == "" {
		return "(not configured)"
	}
	if model != "" {
		return name + " / " + model
	}
	return name
}

func printRow(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-13s   : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from the asr Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a
// string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
