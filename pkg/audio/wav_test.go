package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/hifdhlab/tasmi/pkg/audio"
)

func TestEncodeWAV(t *testing.T) {
	pcm := samplesToBytes([]int16{100, -100, 200, -200})
	wav := audio.EncodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("length: got %d, want %d", len(wav), 44+len(pcm))
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) {
		t.Errorf("missing RIFF magic: %q", wav[0:4])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("chunk size: got %d, want %d", got, 36+len(pcm))
	}
	if !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Errorf("missing WAVE magic: %q", wav[8:12])
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("audio format: got %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels: got %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate: got %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate: got %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 2 {
		t.Errorf("block align: got %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample: got %d, want 16", got)
	}
	if !bytes.Equal(wav[36:40], []byte("data")) {
		t.Errorf("missing data magic: %q", wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size: got %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Errorf("payload mismatch")
	}
}

func TestEncodeWAV_Stereo(t *testing.T) {
	pcm := samplesToBytes([]int16{1, 2, 3, 4})
	wav := audio.EncodeWAV(pcm, 48000, 2)

	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 2 {
		t.Errorf("channels: got %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 192000 {
		t.Errorf("byte rate: got %d, want 192000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 4 {
		t.Errorf("block align: got %d, want 4", got)
	}
}
