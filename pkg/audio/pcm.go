package audio

import (
	"encoding/base64"
	"errors"
	"math"
)

// ErrEmptyPayload is returned by [DecodeBuffer] when an inbound payload
// contains no complete sample. Callers drop the message and continue; a bad
// payload must never take down the playback pipeline.
var ErrEmptyPayload = errors.New("audio: empty PCM payload")

// levelGain scales raw RMS into a display volume before clamping to [0, 1].
const levelGain = 4.0

// EncodePCM16 converts float samples in [-1, 1] to little-endian int16 PCM.
// Each sample is clamped, scaled by 32767, and rounded to nearest.
// Out-of-range input is clamped, never rejected.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(float64(s) * 32767))
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// EncodeFrame encodes one capture frame into its wire form: int16 PCM,
// base64-wrapped, tagged with the fixed 16 kHz mime type. Pure function;
// no error paths for well-formed input.
func EncodeFrame(frame Frame) Blob {
	return Blob{
		MIMEType: MimeTypePCM16k,
		Data:     base64.StdEncoding.EncodeToString(EncodePCM16(frame.Samples)),
	}
}

// DecodePCM16 converts little-endian int16 PCM bytes to float samples by
// dividing by 32768. A trailing odd byte is truncated, so the result holds
// floor(len/2) samples. Never panics on short input.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := range n {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(v) / 32768
	}
	return out
}

// DecodeBuffer decodes inbound model audio into a playback buffer at
// [PlaybackRate]. A payload without a single complete sample returns
// [ErrEmptyPayload] so the caller can drop that message and keep the
// stream alive.
func DecodeBuffer(data []byte) (DecodedBuffer, error) {
	samples := DecodePCM16(data)
	if len(samples) == 0 {
		return DecodedBuffer{}, ErrEmptyPayload
	}
	return DecodedBuffer{Samples: samples, SampleRate: PlaybackRate}, nil
}

// RMS returns the root-mean-square of samples, an instantaneous loudness
// estimate. An empty slice yields 0.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Level converts a frame's samples into a display volume in [0, 1]: RMS
// scaled by a fixed gain, then clamped.
func Level(samples []float32) float64 {
	l := RMS(samples) * levelGain
	if l > 1 {
		l = 1
	}
	return l
}
