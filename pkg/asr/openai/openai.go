// Package openai provides an asr.Transcriber backed by the OpenAI audio
// transcription API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hifdhlab/tasmi/pkg/asr"
	"github.com/hifdhlab/tasmi/pkg/audio"
)

const (
	defaultModel    = "whisper-1"
	defaultLanguage = "ar"

	// defaultRMSThreshold mirrors the local whisper providers: chunks below
	// this energy level are not worth an API round trip.
	defaultRMSThreshold = 300.0
)

// Compile-time assertion that Transcriber implements asr.Transcriber.
var _ asr.Transcriber = (*Transcriber)(nil)

// config holds optional configuration for the transcriber.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	model        string
	language     string
	silenceRMS   float64
}

// Option is a functional option for Transcriber.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// OpenAI-compatible gateways and for tests.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithModel sets the transcription model. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithLanguage sets the default recognition language. Defaults to "ar".
// A non-empty Request.Language overrides it per call.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithSilenceThreshold sets the RMS energy below which PCM chunks are
// treated as silent and skipped. Zero or negative disables the gate.
func WithSilenceThreshold(rms float64) Option {
	return func(c *config) {
		c.silenceRMS = rms
	}
}

// Transcriber implements asr.Transcriber using the OpenAI audio API.
type Transcriber struct {
	client     oai.Client
	model      string
	language   string
	silenceRMS float64
}

// New constructs an OpenAI-backed Transcriber.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{
		model:      defaultModel,
		language:   defaultLanguage,
		silenceRMS: defaultRMSThreshold,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Transcriber{
		client:     client,
		model:      cfg.model,
		language:   cfg.language,
		silenceRMS: cfg.silenceRMS,
	}, nil
}

// Transcribe uploads one chunk to the audio transcription endpoint. PCM
// payloads below the silence threshold short-circuit to an empty result
// without an API call.
func (t *Transcriber) Transcribe(ctx context.Context, req asr.Request) (*asr.Result, error) {
	var wav []byte
	switch req.Format {
	case asr.FormatWAV:
		wav = req.Audio
	case asr.FormatPCM16, "":
		if t.silenceRMS > 0 && audio.RMS(req.Audio) < t.silenceRMS {
			return &asr.Result{}, nil
		}
		rate := req.SampleRate
		if rate <= 0 {
			rate = asr.DefaultSampleRate
		}
		wav = audio.EncodeWAV(req.Audio, rate, 1)
	default:
		return nil, fmt.Errorf("openai: format %q: %w", req.Format, asr.ErrUnsupportedFormat)
	}

	lang := req.Language
	if lang == "" {
		lang = t.language
	}

	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model:          oai.AudioModel(t.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
		Temperature:    oai.Float(0),
	}
	if lang != "" {
		params.Language = oai.String(lang)
	}

	tr, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: transcribe: %w", err)
	}

	res := &asr.Result{Text: strings.TrimSpace(tr.Text)}
	res.Segments = parseSegments(tr)
	return res, nil
}

// parseSegments extracts verbose-JSON segments from the response. The typed
// Transcription struct does not model them, so they are read from the raw
// JSON metadata. A response without segments yields nil.
func parseSegments(tr *oai.Transcription) []asr.Segment {
	field, ok := tr.JSON.ExtraFields["segments"]
	if !ok || !field.Valid() {
		return nil
	}

	var raw []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	}
	if err := json.Unmarshal([]byte(field.Raw()), &raw); err != nil {
		return nil
	}

	segments := make([]asr.Segment, 0, len(raw))
	for _, seg := range raw {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, asr.Segment{
			Text:  text,
			Start: time.Duration(seg.Start * float64(time.Second)),
			End:   time.Duration(seg.End * float64(time.Second)),
		})
	}
	if len(segments) == 0 {
		return nil
	}
	return segments
}
