// This file contains the Native transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/hifdhlab/tasmi/pkg/asr"
	"github.com/hifdhlab/tasmi/pkg/audio"
)

// Compile-time assertion that Native satisfies asr.Transcriber.
var _ asr.Transcriber = (*Native)(nil)

// Native implements asr.Transcriber using the whisper.cpp Go bindings (CGO),
// eliminating HTTP overhead entirely. The model is loaded once at startup
// and shared across all transcriptions.
type Native struct {
	model      whisperlib.Model
	language   string
	silenceRMS float64
}

// NativeOption is a functional option for configuring a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the BCP-47 language code for transcription.
// Defaults to "ar". A non-empty Request.Language overrides it per call.
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// WithNativeSilenceThreshold sets the RMS energy below which chunks are
// treated as silent and skipped. Zero or negative disables the gate.
func WithNativeSilenceThreshold(rms float64) NativeOption {
	return func(n *Native) { n.silenceRMS = rms }
}

// NewNative creates a Native transcriber that loads the whisper.cpp model
// from the given file path. The model is loaded once and shared across all
// concurrent calls. The caller must call Close when the transcriber is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:      model,
		language:   defaultLanguage,
		silenceRMS: defaultRMSThreshold,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the whisper model. Must be called when the transcriber is
// no longer needed.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Transcribe runs one inference on the chunk. Each call creates a fresh
// whisper context; a context is NOT thread-safe, but the model can be shared
// across goroutines, so concurrent calls are safe.
//
// Only PCM payloads are accepted. The bindings have no container parser, so
// WAV and Opus must be unpacked by the caller first.
func (n *Native) Transcribe(ctx context.Context, req asr.Request) (*asr.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	switch req.Format {
	case asr.FormatPCM16, "":
	default:
		return nil, fmt.Errorf("whisper: format %q: %w", req.Format, asr.ErrUnsupportedFormat)
	}
	if n.silenceRMS > 0 && audio.RMS(req.Audio) < n.silenceRMS {
		return &asr.Result{}, nil
	}

	// The bindings expect float32 mono at the model's fixed sample rate.
	pcm := req.Audio
	rate := req.SampleRate
	if rate <= 0 {
		rate = asr.DefaultSampleRate
	}
	if rate != whisperlib.SampleRate {
		pcm = audio.ResampleMono16(pcm, rate, whisperlib.SampleRate)
	}
	samples := audio.PCMToFloat32(pcm)

	wctx, err := n.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = n.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var segments []asr.Segment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		segments = append(segments, asr.Segment{
			Text:  text,
			Start: segment.Start,
			End:   segment.End,
		})
	}
	return asr.JoinSegments(segments), nil
}
