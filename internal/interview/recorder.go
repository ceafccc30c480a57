package interview

import (
	"bytes"
	"encoding/binary"
	"strings"
	"sync"
	"time"
)

const (
	FormatWebMOpus = "audio/webm;codecs=opus"
	FormatWebM     = "audio/webm"
	FormatMP4      = "audio/mp4"
	FormatWAV      = "audio/wav"

	// MinUtteranceBytes is the noise floor; blobs of this size or smaller are dropped.
	MinUtteranceBytes = 5 * 1024
)

// PreferredFormats is the recording preference order. WAV is produced by
// wrapping raw PCM16 frames.
var PreferredFormats = []string{FormatWebMOpus, FormatWebM, FormatMP4, FormatWAV}

// Utterance is one finished recording.
type Utterance struct {
	MimeType string
	Data     []byte
	Started  time.Time
}

// Recorder buffers the chunks of at most one utterance at a time.
type Recorder struct {
	mu         sync.Mutex
	formats    []string
	attached   bool
	sampleRate int

	recording bool
	mimeType  string
	chunks    [][]byte
	started   time.Time
}

func NewRecorder(sampleRate int) *Recorder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Recorder{sampleRate: sampleRate}
}

// AttachStream registers the formats the client media stream can produce.
func (r *Recorder) AttachStream(formats []string, sampleRate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = append([]string(nil), formats...)
	r.attached = true
	if sampleRate > 0 {
		r.sampleRate = sampleRate
	}
}

func (r *Recorder) DetachStream() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = false
	r.formats = nil
	r.recording = false
	r.chunks = nil
}

func (r *Recorder) HasStream() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached
}

// Preferred returns the format Start would pick.
func (r *Recorder) Preferred() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return pickFormat(r.formats)
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins buffering. It returns false without error when a recording is
// already in progress.
func (r *Recorder) Start(now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.attached {
		return false, ErrNoMediaStream
	}
	if r.recording {
		return false, nil
	}
	mt, ok := pickFormat(r.formats)
	if !ok {
		return false, ErrUnsupportedFormat
	}

	r.recording = true
	r.mimeType = mt
	r.chunks = nil
	r.started = now
	return true, nil
}

// Write buffers a chunk while recording; otherwise the chunk is dropped.
func (r *Recorder) Write(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.chunks = append(r.chunks, append([]byte(nil), chunk...))
}

// Stop finalises the recording. ok is false when nothing was recording or the
// blob did not exceed MinUtteranceBytes.
func (r *Recorder) Stop() (u Utterance, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return Utterance{}, false
	}
	r.recording = false

	data := bytes.Join(r.chunks, nil)
	r.chunks = nil
	if r.mimeType == FormatWAV {
		data = buildWAV(data, r.sampleRate, 1, 16)
	}
	if len(data) <= MinUtteranceBytes {
		return Utterance{}, false
	}
	return Utterance{MimeType: r.mimeType, Data: data, Started: r.started}, true
}

// Discard drops any in-progress recording.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.chunks = nil
}

func pickFormat(supported []string) (string, bool) {
	for _, want := range PreferredFormats {
		for _, have := range supported {
			if strings.EqualFold(strings.ReplaceAll(have, " ", ""), want) {
				return want, true
			}
		}
	}
	return "", false
}

// buildWAV wraps PCM16LE samples in a RIFF/WAVE container.
func buildWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)
	dataLen := uint32(len(pcm))
	riffSize := uint32(4 + (8 + 16) + (8 + dataLen))

	buf := &bytes.Buffer{}
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, byteRate)
	_ = binary.Write(buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)
	return buf.Bytes()
}
