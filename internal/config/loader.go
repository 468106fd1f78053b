package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidASRProviders lists the provider names the server ships factories for.
// [Validate] rejects unknown names outright: a typo here means no transcriber
// and the server would be useless.
var ValidASRProviders = []string{"mock", "openai", "whisper", "whisper-native"}

// weightSumEpsilon is the tolerance for the weight components summing to 1.
const weightSumEpsilon = 1e-6

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills the fields a minimal config may omit.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.SessionStore.Type == "" {
		cfg.SessionStore.Type = StoreMemory
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all hard validation failures found; conditions the
// server can run with are logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Corpus
	if len(cfg.Corpus.Sources) == 0 {
		errs = append(errs, errors.New("corpus.sources: at least one source is required"))
	}
	for i, src := range cfg.Corpus.Sources {
		prefix := fmt.Sprintf("corpus.sources[%d]", i)
		if src.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required", prefix))
		}
		if !src.Format.IsValid() {
			errs = append(errs, fmt.Errorf("%s.format %q is invalid; valid values: flat, nested, canonical, tanzil-xml (or empty to sniff)", prefix, src.Format))
		}
	}

	// ASR
	switch {
	case cfg.ASR.Provider == "":
		errs = append(errs, fmt.Errorf("asr.provider is required; valid values: %v", ValidASRProviders))
	case !slices.Contains(ValidASRProviders, cfg.ASR.Provider):
		errs = append(errs, fmt.Errorf("asr.provider %q is unknown; valid values: %v", cfg.ASR.Provider, ValidASRProviders))
	case cfg.ASR.Provider == "openai" && cfg.ASR.APIKey == "":
		slog.Warn("asr.api_key is empty for the openai provider; relying on the OPENAI_API_KEY environment variable")
	case cfg.ASR.Provider == "mock":
		slog.Warn("asr.provider is mock; transcripts will be empty, intended for tests and wiring checks only")
	}

	// Session store
	if !cfg.SessionStore.Type.IsValid() {
		errs = append(errs, fmt.Errorf("session_store.type %q is invalid; valid values: memory, postgres", cfg.SessionStore.Type))
	}
	if cfg.SessionStore.Type == StorePostgres && cfg.SessionStore.PostgresDSN == "" {
		errs = append(errs, errors.New("session_store.postgres_dsn is required when type is postgres"))
	}
	if cfg.SessionStore.Type == StoreMemory {
		slog.Warn("session_store.type is memory; session snapshots will not survive a restart")
	}

	// Dataset
	if cfg.Dataset.Path == "" {
		slog.Warn("dataset.path is empty; reference cross-validation is disabled")
	}

	// Recognition
	rec := cfg.Recognition
	if rec.MaxConcurrentTranscriptions < 0 {
		errs = append(errs, fmt.Errorf("recognition.max_concurrent_transcriptions %d must not be negative", rec.MaxConcurrentTranscriptions))
	}
	if rec.PersistEveryChunks < 0 {
		errs = append(errs, fmt.Errorf("recognition.persist_every_chunks %d must not be negative", rec.PersistEveryChunks))
	}
	if rec.SearchWindow < 0 {
		errs = append(errs, fmt.Errorf("recognition.search_window %d must not be negative", rec.SearchWindow))
	}
	if rec.MatchThreshold < 0 || rec.MatchThreshold >= 1 {
		errs = append(errs, fmt.Errorf("recognition.match_threshold %.2f is out of range [0, 1)", rec.MatchThreshold))
	}
	if w := rec.Weights; w != nil {
		for _, c := range []struct {
			name  string
			value float64
		}{
			{"exact", w.Exact},
			{"fuzzy", w.Fuzzy},
			{"sequential", w.Sequential},
			{"length", w.Length},
		} {
			if c.value < 0 || c.value > 1 {
				errs = append(errs, fmt.Errorf("recognition.weights.%s %.2f is out of range [0, 1]", c.name, c.value))
			}
		}
		if sum := w.Weights().Sum(); math.Abs(sum-1) > weightSumEpsilon {
			errs = append(errs, fmt.Errorf("recognition.weights must sum to 1, got %.4f", sum))
		}
	}

	return errors.Join(errs...)
}
