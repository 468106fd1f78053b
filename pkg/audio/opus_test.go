package audio_test

import (
	"encoding/binary"
	"math"
	"testing"

	"layeh.com/gopus"

	"github.com/hifdhlab/tasmi/pkg/audio"
)

// encodeTestStream produces a DCA-style stream of length-prefixed Opus
// frames carrying a 440Hz tone, stereo at 48kHz.
func encodeTestStream(t *testing.T, frames int) []byte {
	t.Helper()
	enc, err := gopus.NewEncoder(audio.OpusSampleRate, audio.OpusChannels, gopus.Voip)
	if err != nil {
		t.Fatalf("create encoder: %v", err)
	}

	var stream []byte
	for f := range frames {
		pcm := make([]int16, 960*2)
		for i := range 960 {
			v := int16(8000 * math.Sin(2*math.Pi*440*float64(f*960+i)/48000))
			pcm[i*2] = v
			pcm[i*2+1] = v
		}
		frame, err := enc.Encode(pcm, 960, 4000)
		if err != nil {
			t.Fatalf("encode frame %d: %v", f, err)
		}
		var hdr [2]byte
		binary.LittleEndian.PutUint16(hdr[:], uint16(len(frame)))
		stream = append(stream, hdr[:]...)
		stream = append(stream, frame...)
	}
	return stream
}

func TestDecodeOpusFrames_RoundTrip(t *testing.T) {
	stream := encodeTestStream(t, 5)

	decoded, err := audio.DecodeOpusFrames(stream)
	if err != nil {
		t.Fatalf("DecodeOpusFrames: %v", err)
	}
	// frames * samples per channel * channels * bytes per sample
	want := 5 * 960 * 2 * 2
	if len(decoded) != want {
		t.Fatalf("decoded %d bytes, want %d", len(decoded), want)
	}
	if rms := audio.RMS(audio.StereoToMono(decoded)); rms < 100 {
		t.Errorf("decoded audio is near-silent: RMS %.1f", rms)
	}
}

func TestDecodeOpusFrames_Empty(t *testing.T) {
	out, err := audio.DecodeOpusFrames(nil)
	if err != nil {
		t.Fatalf("DecodeOpusFrames: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d bytes, want 0", len(out))
	}
}

func TestDecodeOpusFrames_TruncatedHeader(t *testing.T) {
	if _, err := audio.DecodeOpusFrames([]byte{0x01}); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestDecodeOpusFrames_TruncatedFrame(t *testing.T) {
	// Header promises 10 bytes, only 3 follow.
	data := []byte{0x0a, 0x00, 0x01, 0x02, 0x03}
	if _, err := audio.DecodeOpusFrames(data); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

func TestOpusToPCM16_FoldsAndResamples(t *testing.T) {
	stream := encodeTestStream(t, 5)

	pcm, err := audio.OpusToPCM16(stream, 16000)
	if err != nil {
		t.Fatalf("OpusToPCM16: %v", err)
	}
	// 4800 stereo frames at 48kHz become 1600 mono samples at 16kHz.
	want := 1600 * 2
	if len(pcm) != want {
		t.Fatalf("got %d bytes, want %d", len(pcm), want)
	}
	if rms := audio.RMS(pcm); rms < 100 {
		t.Errorf("resampled audio is near-silent: RMS %.1f", rms)
	}
}
