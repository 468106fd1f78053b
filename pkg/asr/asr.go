// Package asr defines the Transcriber interface for speech recognition
// backends.
//
// A Transcriber wraps a transcription engine (a local whisper.cpp server,
// the in-process whisper.cpp bindings, or OpenAI's hosted audio API) behind
// a single batch call: one complete audio chunk in, ordered text segments
// out. Recitation chunks arrive as discrete buffers a few seconds long, so
// the contract is deliberately request/response; callers that need
// backpressure bound their own concurrency around Transcribe.
//
// Implementations must be safe for concurrent use. Multiple chunks may be in
// flight simultaneously (e.g., one per active session).
package asr

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultSampleRate is the PCM sample rate in Hz that providers assume when
// a request leaves SampleRate zero.
const DefaultSampleRate = 16000

// ErrUnsupportedFormat is returned by providers for payload encodings they
// cannot ingest.
var ErrUnsupportedFormat = errors.New("asr: unsupported audio format")

// Format identifies the encoding of a request's audio payload.
type Format string

const (
	// FormatWAV is a complete RIFF/WAV file, header included.
	FormatWAV Format = "wav"

	// FormatPCM16 is raw 16-bit signed little-endian mono PCM.
	FormatPCM16 Format = "pcm16"

	// FormatOpus is a sequence of length-prefixed Opus frames as produced
	// by DCA-style encoders. Providers do not decode Opus themselves;
	// callers convert to PCM first (see pkg/audio).
	FormatOpus Format = "opus"
)

// Request describes one transcription call. All fields are read-only for the
// provider; the Audio slice must not be retained past the call.
type Request struct {
	// Audio is the payload, encoded per Format.
	Audio []byte

	// Format declares the payload encoding. Providers return
	// [ErrUnsupportedFormat] for encodings they do not accept.
	Format Format

	// SampleRate is the sample rate in Hz for FormatPCM16 payloads; zero
	// means [DefaultSampleRate]. Ignored for self-describing formats.
	SampleRate int

	// Language is the recognition language hint (e.g. "ar"). Empty lets the
	// provider use its configured default.
	Language string
}

// Segment is one timed span of recognized speech within a chunk.
type Segment struct {
	Text string

	// Start and End are offsets from the beginning of the chunk.
	Start time.Duration
	End   time.Duration

	// Confidence is the engine's score in [0,1]; zero when unreported.
	Confidence float64
}

// Result is the transcription of one chunk. Segments are ordered by start
// time and may be empty for silent or unintelligible audio.
type Result struct {
	Text     string
	Segments []Segment
}

// JoinSegments builds a Result from ordered segments, deriving Text by
// joining the trimmed segment texts with single spaces.
func JoinSegments(segments []Segment) *Result {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return &Result{Text: strings.Join(parts, " "), Segments: segments}
}

// Transcriber is the abstraction over any speech recognition backend.
type Transcriber interface {
	// Transcribe converts one audio chunk to text. An empty Result is a
	// valid outcome for silent audio; errors are reserved for engine and
	// transport failures.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
