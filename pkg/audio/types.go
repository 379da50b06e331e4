package audio

// Sample-rate and framing constants for the voice pipeline. Both rates are
// fixed by the remote protocol: microphone audio is sent as 16 kHz mono PCM
// and model audio arrives as 24 kHz mono PCM.
const (
	// CaptureRate is the microphone sample rate in Hz.
	CaptureRate = 16000

	// PlaybackRate is the sample rate of inbound model audio in Hz.
	PlaybackRate = 24000

	// FrameSamples is the number of samples in one capture frame. At 16 kHz
	// this bounds capture latency to roughly 256 ms per frame.
	FrameSamples = 4096

	// MimeTypePCM16k is the mime type attached to every outbound audio blob.
	MimeTypePCM16k = "audio/pcm;rate=16000"
)

// Frame is one fixed-size block of microphone audio: float samples in
// [-1, 1] at [CaptureRate]. Frames are ephemeral; the capture pipeline owns
// each frame for the duration of one iteration and nothing retains it.
type Frame struct {
	Samples    []float32
	SampleRate int
}

// Blob is the over-the-wire form of one encoded audio frame: little-endian
// int16 PCM, base64-wrapped, plus its mime type. Blobs are created by
// [EncodeFrame] and consumed immediately by the network send path.
type Blob struct {
	MIMEType string
	Data     string
}

// DecodedBuffer is one block of model audio decoded for playback: float
// samples at [PlaybackRate]. The playback scheduler owns a buffer from the
// moment it is scheduled until its playback completes or is cut.
type DecodedBuffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer's playback duration in seconds.
func (b DecodedBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}
