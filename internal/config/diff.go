package config

import (
	"reflect"
	"slices"
)

// Diff describes what changed between two loaded configs, split into changes
// a running server applies in place and changes that only take effect after
// a restart.
type Diff struct {
	// LogLevelChanged reports that server.log_level differs; NewLogLevel is
	// the value to apply.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CorpusChanged reports that the corpus source list differs, so the
	// index should be reloaded from the new sources.
	CorpusChanged bool

	// RestartNeeded lists config sections that differ but cannot be applied
	// to a running server.
	RestartNeeded []string
}

// Empty reports whether the two configs were effectively identical.
func (d Diff) Empty() bool {
	return !d.LogLevelChanged && !d.CorpusChanged && len(d.RestartNeeded) == 0
}

// Compare returns what changed between old and new. Only the log level and
// the corpus sources are hot-reloadable; everything else lands in
// RestartNeeded.
func Compare(old, new *Config) Diff {
	d := Diff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !slices.Equal(old.Corpus.Sources, new.Corpus.Sources) {
		d.CorpusChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || !tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartNeeded = append(d.RestartNeeded, "server")
	}
	if !asrEqual(old.ASR, new.ASR) {
		d.RestartNeeded = append(d.RestartNeeded, "asr")
	}
	if old.SessionStore != new.SessionStore {
		d.RestartNeeded = append(d.RestartNeeded, "session_store")
	}
	if old.Dataset != new.Dataset {
		d.RestartNeeded = append(d.RestartNeeded, "dataset")
	}
	if !recognitionEqual(old.Recognition, new.Recognition) {
		d.RestartNeeded = append(d.RestartNeeded, "recognition")
	}
	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func asrEqual(a, b ASRConfig) bool {
	return a.Provider == b.Provider &&
		a.Model == b.Model &&
		a.BaseURL == b.BaseURL &&
		a.APIKey == b.APIKey &&
		a.Language == b.Language &&
		reflect.DeepEqual(a.Options, b.Options)
}

func recognitionEqual(a, b RecognitionConfig) bool {
	if a.MaxConcurrentTranscriptions != b.MaxConcurrentTranscriptions ||
		a.PersistEveryChunks != b.PersistEveryChunks ||
		a.SearchWindow != b.SearchWindow ||
		a.MatchThreshold != b.MatchThreshold {
		return false
	}
	if a.Weights == nil || b.Weights == nil {
		return a.Weights == b.Weights
	}
	return *a.Weights == *b.Weights
}
