package audio

import (
	"encoding/binary"
	"fmt"

	"layeh.com/gopus"
)

// Opus stream parameters. Recording clients ship 20ms frames of 48kHz
// stereo, each preceded by a little-endian uint16 byte count (DCA framing).
const (
	OpusSampleRate = 48000
	OpusChannels   = 2
	opusFrameSize  = 960
)

// DecodeOpusFrames decodes a stream of length-prefixed Opus frames into
// interleaved stereo int16 PCM at 48kHz. A single decoder is carried across
// frames so packet-loss concealment state survives frame boundaries.
func DecodeOpusFrames(data []byte) ([]byte, error) {
	dec, err := gopus.NewDecoder(OpusSampleRate, OpusChannels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}

	var out []byte
	for off := 0; off < len(data); {
		if len(data)-off < 2 {
			return nil, fmt.Errorf("audio: truncated opus frame header at offset %d", off)
		}
		n := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if n == 0 {
			continue
		}
		if len(data)-off < n {
			return nil, fmt.Errorf("audio: truncated opus frame at offset %d: need %d bytes, have %d", off, n, len(data)-off)
		}
		pcm, err := dec.Decode(data[off:off+n], opusFrameSize, false)
		if err != nil {
			return nil, fmt.Errorf("audio: decode opus frame: %w", err)
		}
		out = append(out, int16sToBytes(pcm)...)
		off += n
	}
	return out, nil
}

// OpusToPCM16 decodes length-prefixed Opus frames and folds the result to
// mono int16 PCM at the given target sample rate.
func OpusToPCM16(data []byte, targetRate int) ([]byte, error) {
	stereo, err := DecodeOpusFrames(data)
	if err != nil {
		return nil, err
	}
	mono := StereoToMono(stereo)
	return ResampleMono16(mono, OpusSampleRate, targetRate), nil
}

// int16sToBytes converts int16 samples to little-endian PCM bytes.
func int16sToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
