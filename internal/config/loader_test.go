package config_test

import (
	"strings"
	"testing"

	"github.com/hifdhlab/tasmi/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_NoCorpusSources(t *testing.T) {
	t.Parallel()
	yaml := `
asr:
  provider: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing corpus sources, got nil")
	}
	if !strings.Contains(err.Error(), "corpus.sources") {
		t.Errorf("error should mention corpus.sources, got: %v", err)
	}
}

func TestValidate_CorpusSourceMissingPath(t *testing.T) {
	t.Parallel()
	yaml := `
corpus:
  sources:
    - format: flat
asr:
  provider: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for source without path, got nil")
	}
	if !strings.Contains(err.Error(), "corpus.sources[0].path") {
		t.Errorf("error should mention the source path, got: %v", err)
	}
}

func TestValidate_CorpusSourceBadFormat(t *testing.T) {
	t.Parallel()
	yaml := `
corpus:
  sources:
    - path: /data/corpus.csv
      format: csv
asr:
  provider: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown corpus format, got nil")
	}
	if !strings.Contains(err.Error(), "format") {
		t.Errorf("error should mention the format, got: %v", err)
	}
}

func TestValidate_MissingASRProvider(t *testing.T) {
	t.Parallel()
	yaml := `
corpus:
  sources:
    - path: /data/corpus.json
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing asr.provider, got nil")
	}
	if !strings.Contains(err.Error(), "asr.provider") {
		t.Errorf("error should mention asr.provider, got: %v", err)
	}
}

func TestValidate_UnknownASRProvider(t *testing.T) {
	t.Parallel()
	yaml := `
corpus:
  sources:
    - path: /data/corpus.json
asr:
  provider: deepgram
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown asr.provider, got nil")
	}
	if !strings.Contains(err.Error(), "deepgram") {
		t.Errorf("error should name the unknown provider, got: %v", err)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
session_store:
  type: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for postgres store without dsn, got nil")
	}
	if !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestValidate_InvalidStoreType(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
session_store:
  type: redis
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown store type, got nil")
	}
	if !strings.Contains(err.Error(), "session_store.type") {
		t.Errorf("error should mention session_store.type, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
server:
  tls:
    cert_file: /etc/tasmi/tls.crt
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for tls without key_file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_NegativeRecognitionKnobs(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
recognition:
  max_concurrent_transcriptions: -1
  persist_every_chunks: -5
  search_window: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for negative recognition values, got nil")
	}
	errStr := err.Error()
	for _, field := range []string{"max_concurrent_transcriptions", "persist_every_chunks", "search_window"} {
		if !strings.Contains(errStr, field) {
			t.Errorf("error should mention %s, got: %v", field, err)
		}
	}
}

func TestValidate_MatchThresholdRange(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
recognition:
  match_threshold: 1.0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for match_threshold of 1.0, got nil")
	}
	if !strings.Contains(err.Error(), "match_threshold") {
		t.Errorf("error should mention match_threshold, got: %v", err)
	}
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
recognition:
  weights:
    exact: 0.5
    fuzzy: 0.5
    sequential: 0.2
    length: 0.1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for weights summing to 1.3, got nil")
	}
	if !strings.Contains(err.Error(), "sum to 1") {
		t.Errorf("error should mention the weight sum, got: %v", err)
	}
}

func TestValidate_WeightComponentRange(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
recognition:
  weights:
    exact: 1.4
    fuzzy: -0.4
    sequential: 0
    length: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for out-of-range weight components, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "weights.exact") || !strings.Contains(errStr, "weights.fuzzy") {
		t.Errorf("error should mention both bad components, got: %v", err)
	}
}

func TestValidate_MultipleErrorsJoined(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
session_store:
  type: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"log_level", "corpus.sources", "asr.provider", "postgres_dsn"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidASRProviders(t *testing.T) {
	t.Parallel()
	if len(config.ValidASRProviders) == 0 {
		t.Fatal("ValidASRProviders should not be empty")
	}
	found := false
	for _, n := range config.ValidASRProviders {
		if n == "whisper" {
			found = true
			break
		}
	}
	if !found {
		t.Error(`ValidASRProviders should contain "whisper"`)
	}
}
