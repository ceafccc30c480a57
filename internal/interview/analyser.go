package interview

import (
	"encoding/binary"
	"math"
	"sync"
)

// Analyser exposes the current frequency-domain snapshot of the microphone,
// one byte per bin on the 0..255 scale. A nil result means no audio graph yet.
type Analyser interface {
	FrequencyData() []uint8
}

const (
	fftSize     = 256
	minDecibels = -100.0
	maxDecibels = -30.0
)

// PCMAnalyser derives frequency bins from raw PCM16LE mono frames.
type PCMAnalyser struct {
	mu     sync.Mutex
	window []float64
	filled int
	pos    int
	carry  []byte
}

func NewPCMAnalyser() *PCMAnalyser {
	return &PCMAnalyser{window: make([]float64, fftSize)}
}

// Write appends PCM16LE samples to the rolling analysis window.
func (a *PCMAnalyser) Write(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.carry) > 0 {
		pcm = append(a.carry, pcm...)
		a.carry = nil
	}
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		a.window[a.pos] = float64(s) / 32768.0
		a.pos = (a.pos + 1) % fftSize
		if a.filled < fftSize {
			a.filled++
		}
	}
	if len(pcm)%2 == 1 {
		a.carry = []byte{pcm[len(pcm)-1]}
	}
}

// FrequencyData returns fftSize/2 magnitude bins using a Blackman window and
// the decibel mapping of a browser AnalyserNode.
func (a *PCMAnalyser) FrequencyData() []uint8 {
	a.mu.Lock()
	if a.filled < fftSize {
		a.mu.Unlock()
		return nil
	}
	samples := make([]float64, fftSize)
	for i := 0; i < fftSize; i++ {
		samples[i] = a.window[(a.pos+i)%fftSize]
	}
	a.mu.Unlock()

	const n = float64(fftSize)
	for i := range samples {
		x := float64(i) / n
		w := 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
		samples[i] *= w
	}

	bins := make([]uint8, fftSize/2)
	for k := range bins {
		var re, im float64
		for i, s := range samples {
			angle := 2 * math.Pi * float64(k) * float64(i) / n
			re += s * math.Cos(angle)
			im -= s * math.Sin(angle)
		}
		mag := math.Hypot(re, im) / n
		bins[k] = scaleDecibels(mag)
	}
	return bins
}

func scaleDecibels(mag float64) uint8 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := 255 * (db - minDecibels) / (maxDecibels - minDecibels)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// LevelFeed holds bins computed by the client when the server only receives
// encoded audio.
type LevelFeed struct {
	mu   sync.Mutex
	bins []uint8
}

func (f *LevelFeed) Set(bins []uint8) {
	cp := make([]uint8, len(bins))
	copy(cp, bins)
	f.mu.Lock()
	f.bins = cp
	f.mu.Unlock()
}

func (f *LevelFeed) FrequencyData() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bins == nil {
		return nil
	}
	cp := make([]uint8, len(f.bins))
	copy(cp, f.bins)
	return cp
}
