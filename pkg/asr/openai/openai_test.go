package openai

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	oai "github.com/openai/openai-go"

	"github.com/hifdhlab/tasmi/pkg/asr"
)

const verboseBody = `{
	"task": "transcribe",
	"language": "arabic",
	"duration": 3.2,
	"text": " qul huwa allahu ahad ",
	"segments": [
		{"id": 0, "seek": 0, "start": 0.0, "end": 1.5, "text": " qul huwa"},
		{"id": 1, "seek": 0, "start": 1.5, "end": 3.2, "text": " allahu ahad"}
	]
}`

func TestNew_EmptyAPIKey_ReturnsError(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey, got nil")
	}
}

func TestParseSegments(t *testing.T) {
	var tr oai.Transcription
	if err := tr.UnmarshalJSON([]byte(verboseBody)); err != nil {
		t.Fatalf("unmarshal transcription: %v", err)
	}

	segs := parseSegments(&tr)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Text != "qul huwa" {
		t.Errorf("segment 0 text = %q, want %q", segs[0].Text, "qul huwa")
	}
	if segs[1].Start != 1500*time.Millisecond {
		t.Errorf("segment 1 start = %v, want 1.5s", segs[1].Start)
	}
	if segs[1].End != 3200*time.Millisecond {
		t.Errorf("segment 1 end = %v, want 3.2s", segs[1].End)
	}
}

func TestParseSegments_MissingField(t *testing.T) {
	var tr oai.Transcription
	if err := tr.UnmarshalJSON([]byte(`{"text": "plain"}`)); err != nil {
		t.Fatalf("unmarshal transcription: %v", err)
	}
	if segs := parseSegments(&tr); segs != nil {
		t.Errorf("expected nil segments, got %v", segs)
	}
}

// makeSpeechPCM generates a sine-wave PCM buffer whose RMS is well above the
// silence threshold.
func makeSpeechPCM(samples int) []byte {
	const amplitude = 10_000.0
	buf := make([]byte, samples*2)
	for i := range samples {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}
	return buf
}

// newAPIServer mimics POST /audio/transcriptions, recording call counts and
// the multipart fields of the last request.
func newAPIServer(t *testing.T, status int, body string, calls *atomic.Int32, fields *sync.Map) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if calls != nil {
			calls.Add(1)
		}
		if fields != nil {
			if err := r.ParseMultipartForm(32 << 20); err == nil {
				for k, v := range r.MultipartForm.Value {
					if len(v) > 0 {
						fields.Store(k, v[0])
					}
				}
				if _, hdr, err := r.FormFile("file"); err == nil {
					fields.Store("__filename", hdr.Filename)
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestTranscriber_Transcribe(t *testing.T) {
	var fields sync.Map
	srv := newAPIServer(t, http.StatusOK, verboseBody, nil, &fields)
	defer srv.Close()

	tr, err := New("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := tr.Transcribe(context.Background(), asr.Request{
		Audio:  makeSpeechPCM(16000),
		Format: asr.FormatPCM16,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "qul huwa allahu ahad" {
		t.Errorf("Text = %q, want %q", res.Text, "qul huwa allahu ahad")
	}
	if len(res.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(res.Segments))
	}

	if v, _ := fields.Load("model"); v != "whisper-1" {
		t.Errorf("model field = %v, want whisper-1", v)
	}
	if v, _ := fields.Load("response_format"); v != "verbose_json" {
		t.Errorf("response_format field = %v, want verbose_json", v)
	}
	if v, _ := fields.Load("language"); v != "ar" {
		t.Errorf("language field = %v, want ar", v)
	}
	if v, _ := fields.Load("__filename"); v != "audio.wav" {
		t.Errorf("uploaded filename = %v, want audio.wav", v)
	}
}

func TestTranscriber_SilentChunkSkipsAPI(t *testing.T) {
	var calls atomic.Int32
	srv := newAPIServer(t, http.StatusOK, verboseBody, &calls, nil)
	defer srv.Close()

	tr, _ := New("test-key", WithBaseURL(srv.URL))
	res, err := tr.Transcribe(context.Background(), asr.Request{
		Audio:  make([]byte, 32000),
		Format: asr.FormatPCM16,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "" {
		t.Errorf("expected empty result for silence, got %q", res.Text)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("API called %d time(s) for silent chunk; want 0", n)
	}
}

func TestTranscriber_OpusRejected(t *testing.T) {
	tr, _ := New("test-key")
	_, err := tr.Transcribe(context.Background(), asr.Request{
		Audio:  []byte{0x01},
		Format: asr.FormatOpus,
	})
	if !errors.Is(err, asr.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTranscriber_APIError(t *testing.T) {
	srv := newAPIServer(t, http.StatusBadRequest, `{"error": {"message": "bad request"}}`, nil, nil)
	defer srv.Close()

	tr, _ := New("test-key", WithBaseURL(srv.URL))
	if _, err := tr.Transcribe(context.Background(), asr.Request{
		Audio:  makeSpeechPCM(1600),
		Format: asr.FormatPCM16,
	}); err == nil {
		t.Fatal("expected error for HTTP 400, got nil")
	}
}
