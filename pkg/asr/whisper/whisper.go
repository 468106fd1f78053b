// Package whisper provides asr.Transcriber implementations backed by
// whisper.cpp: a Client for a running whisper-server binary (which exposes a
// REST API at POST /inference) and a Native runner using the in-process CGO
// bindings.
//
// whisper.cpp is a batch (non-streaming) transcription engine, which matches
// the chunk pipeline exactly: each recitation chunk is one inference. Both
// implementations apply an energy-based silence gate first, so near-silent
// chunks come back as empty results without spending an inference.
//
// Usage:
//
//	c, err := whisper.NewClient("http://localhost:8080",
//	    whisper.WithLanguage("ar"),
//	)
//	res, err := c.Transcribe(ctx, asr.Request{Audio: pcm, Format: asr.FormatPCM16})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hifdhlab/tasmi/pkg/asr"
	"github.com/hifdhlab/tasmi/pkg/audio"
)

const (
	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which a chunk is considered silent. The maximum possible
	// value for 16-bit audio is 32 767; 300 corresponds to near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage = "ar"
	defaultTimeout  = 30 * time.Second
)

// Compile-time assertion that Client implements asr.Transcriber.
var _ asr.Transcriber = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base", "small"). When empty the server uses whichever model it was
// started with — this is the default.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithLanguage sets the BCP-47 language code sent to the whisper.cpp server.
// Defaults to "ar". A non-empty Request.Language overrides it per call.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// WithTimeout sets the HTTP request timeout. Defaults to 30 s, which covers
// an inference on a chunk of a few seconds even on modest hardware.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSilenceThreshold sets the RMS energy below which PCM chunks are
// treated as silent and skipped. Zero or negative disables the gate.
func WithSilenceThreshold(rms float64) Option {
	return func(c *Client) {
		c.silenceRMS = rms
	}
}

// Client implements asr.Transcriber backed by a whisper.cpp HTTP server.
// It is safe for concurrent use; the server queues inferences internally.
type Client struct {
	serverURL  string
	model      string
	language   string
	silenceRMS float64
	httpClient *http.Client
}

// NewClient creates a Client that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimSuffix(serverURL, "/"),
		language:   defaultLanguage,
		silenceRMS: defaultRMSThreshold,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Transcribe submits one chunk as a batch inference request. PCM payloads
// below the silence threshold short-circuit to an empty result. Opus is not
// accepted; decode it first (see pkg/audio).
func (c *Client) Transcribe(ctx context.Context, req asr.Request) (*asr.Result, error) {
	var wav []byte
	switch req.Format {
	case asr.FormatWAV:
		wav = req.Audio
	case asr.FormatPCM16, "":
		if c.silenceRMS > 0 && audio.RMS(req.Audio) < c.silenceRMS {
			return &asr.Result{}, nil
		}
		rate := req.SampleRate
		if rate <= 0 {
			rate = asr.DefaultSampleRate
		}
		wav = audio.EncodeWAV(req.Audio, rate, 1)
	default:
		return nil, fmt.Errorf("whisper: format %q: %w", req.Format, asr.ErrUnsupportedFormat)
	}

	lang := req.Language
	if lang == "" {
		lang = c.language
	}
	return c.infer(ctx, wav, lang)
}

// infer POSTs a WAV file to the whisper.cpp /inference endpoint as
// multipart/form-data and parses the verbose JSON response.
func (c *Client) infer(ctx context.Context, wav []byte, language string) (*asr.Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// Primary audio field.
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisper: write wav data: %w", err)
	}

	// Verbose JSON carries per-segment timestamps.
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if err := mw.WriteField("temperature", "0.0"); err != nil {
		return nil, fmt.Errorf("whisper: write temperature field: %w", err)
	}

	// Optional hint fields.
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return nil, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if c.model != "" {
		if err := mw.WriteField("model", c.model); err != nil {
			return nil, fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := c.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text     string `json:"text"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	segments := make([]asr.Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
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
	return &asr.Result{Text: strings.TrimSpace(result.Text), Segments: segments}, nil
}
