package whisper_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/hifdhlab/tasmi/pkg/asr"
	"github.com/hifdhlab/tasmi/pkg/asr/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads from the WHISPER_MODEL_PATH environment variable. If unset the
// test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	_, err := whisper.NewNative("")
	if err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewNative_InvalidPath_ReturnsError(t *testing.T) {
	_, err := whisper.NewNative("/nonexistent/path/to/model.bin")
	if err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
}

func TestNative_SilentChunkSkipsInference(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	res, err := n.Transcribe(context.Background(), asr.Request{
		Audio:  makeSilencePCM(16000),
		Format: asr.FormatPCM16,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "" {
		t.Errorf("expected empty result for silence, got %q", res.Text)
	}
}

func TestNative_RejectsWAV(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	_, err = n.Transcribe(context.Background(), asr.Request{
		Audio:  []byte("RIFF"),
		Format: asr.FormatWAV,
	})
	if !errors.Is(err, asr.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNative_TranscribeSpeech(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t), whisper.WithNativeLanguage("en"))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	// One second of tone. The content of the transcript depends on the
	// model, so only verify the call completes.
	res, err := n.Transcribe(context.Background(), asr.Request{
		Audio:  makeSpeechPCM(16000),
		Format: asr.FormatPCM16,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	t.Logf("transcribed text: %q", res.Text)
}

func TestNative_CancelledContext_ReturnsError(t *testing.T) {
	n, err := whisper.NewNative(testModelPath(t))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer n.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := n.Transcribe(ctx, asr.Request{
		Audio:  makeSpeechPCM(1600),
		Format: asr.FormatPCM16,
	}); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}
