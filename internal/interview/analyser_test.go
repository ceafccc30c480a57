package interview

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmFrame(samples int, amp float64, rng *rand.Rand) []byte {
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		var v float64
		if rng != nil {
			v = (rng.Float64()*2 - 1) * amp
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v*32767)))
	}
	return out
}

func TestPCMAnalyser_NeedsFullWindow(t *testing.T) {
	a := NewPCMAnalyser()
	a.Write(pcmFrame(100, 0, nil))
	assert.Nil(t, a.FrequencyData())

	a.Write(pcmFrame(156, 0, nil))
	assert.Len(t, a.FrequencyData(), 128)
}

func TestPCMAnalyser_SilenceAndNoise(t *testing.T) {
	a := NewPCMAnalyser()
	a.Write(pcmFrame(512, 0, nil))
	assert.Equal(t, 0.0, meanLevel(a.FrequencyData()))

	a.Write(pcmFrame(512, 0.3, rand.New(rand.NewSource(7))))
	bins := a.FrequencyData()
	require.Len(t, bins, 128)
	assert.Greater(t, meanLevel(bins), DefaultVADConfig().Threshold)
}

func TestPCMAnalyser_OddByteCarry(t *testing.T) {
	a := NewPCMAnalyser()
	frame := pcmFrame(256, 0.3, rand.New(rand.NewSource(3)))
	a.Write(frame[:101])
	a.Write(frame[101:])
	assert.NotNil(t, a.FrequencyData())
}

func TestScaleDecibels(t *testing.T) {
	assert.Equal(t, uint8(0), scaleDecibels(0))
	assert.Equal(t, uint8(0), scaleDecibels(1e-6))
	assert.Equal(t, uint8(255), scaleDecibels(1))
	assert.InDelta(t, 127, int(scaleDecibels(0.000562)), 2) // about -65 dB
}

func TestLevelFeed(t *testing.T) {
	var f LevelFeed
	assert.Nil(t, f.FrequencyData())

	in := []uint8{1, 2, 3}
	f.Set(in)
	in[0] = 99
	assert.Equal(t, []uint8{1, 2, 3}, f.FrequencyData())
}
