// Package audio provides PCM helpers for the recitation chunk pipeline:
// Opus frame decoding, channel folding, resampling, WAV framing and level
// measurement.
//
// All PCM buffers are little-endian int16 samples unless stated otherwise.
package audio

import (
	"math"
	"time"
)

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	// Each stereo frame is 4 bytes (2 bytes L + 2 bytes R).
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		// Clamp to int16 range.
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// PCMToFloat32 converts mono int16 PCM to normalized float32 samples in
// [-1, 1), the layout whisper.cpp inference expects.
func PCMToFloat32(pcm []byte) []float32 {
	samples := len(pcm) / 2
	out := make([]float32, samples)
	for i := range samples {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}

// PCMToFloat32Mono converts interleaved int16 PCM with the given channel
// count to normalized mono float32 samples, averaging channels per frame.
func PCMToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		return PCMToFloat32(pcm)
	}
	frames := len(pcm) / 2 / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum int32
		for c := range channels {
			idx := (i*channels + c) * 2
			sum += int32(int16(pcm[idx]) | int16(pcm[idx+1])<<8)
		}
		out[i] = float32(sum/int32(channels)) / 32768.0
	}
	return out
}

// RMS returns the root mean square amplitude of mono int16 PCM, in raw
// sample units (0..32768). Silence detection compares this against a
// threshold before spending an inference on the chunk.
func RMS(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := range samples {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}

// Duration returns the playback time of an int16 PCM buffer.
func Duration(pcm []byte, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := len(pcm) / 2 / channels
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
