package interview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestVAD_StartsOnFirstLoudSampleAfterSilence(t *testing.T) {
	v := NewVAD(DefaultVADConfig())
	now := time.Now()

	var starts []int
	for i := 0; i < 25; i++ {
		bins := level(5)
		if i >= 20 {
			bins = level(90)
		}
		switch v.Observe(bins, now) {
		case SignalStart:
			starts = append(starts, i+1)
		case SignalStop:
			t.Fatalf("unexpected stop at sample %d", i+1)
		}
		now = now.Add(100 * time.Millisecond)
	}

	assert.Equal(t, []int{21}, starts)
	assert.True(t, v.Speaking())
}

func TestVAD_ThresholdIsExclusive(t *testing.T) {
	v := NewVAD(DefaultVADConfig())
	assert.Equal(t, SignalNone, v.Observe(level(30), time.Now()))
	assert.Equal(t, SignalStart, v.Observe(level(31), time.Now()))
}

func TestVAD_DebouncesShortDips(t *testing.T) {
	v := NewVAD(DefaultVADConfig())
	now := time.Now()
	step := func(b []uint8) Signal {
		now = now.Add(100 * time.Millisecond)
		return v.Observe(b, now)
	}

	assert.Equal(t, SignalStart, step(level(80)))
	for i := 0; i < 10; i++ {
		assert.Equal(t, SignalNone, step(level(0)), "dip %d", i)
	}
	assert.Equal(t, SignalNone, step(level(80)))

	quiet := 0
	for {
		quiet++
		if sig := step(level(0)); sig == SignalStop {
			break
		}
		if quiet > 50 {
			t.Fatal("never stopped")
		}
	}
	// armed on the first quiet tick, fires 1500ms later
	assert.Equal(t, 16, quiet)
	assert.False(t, v.Speaking())
}

func TestVAD_NilSnapshotIsNoop(t *testing.T) {
	v := NewVAD(DefaultVADConfig())
	now := time.Now()
	assert.Equal(t, SignalStart, v.Observe(level(200), now))
	for i := 0; i < 40; i++ {
		now = now.Add(100 * time.Millisecond)
		assert.Equal(t, SignalNone, v.Observe(nil, now))
	}
	assert.True(t, v.Speaking())
}

func TestVAD_NeverDoubleSignals(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := NewVAD(DefaultVADConfig())
		now := time.Unix(0, 0)
		recording := false

		n := rapid.IntRange(1, 300).Draw(rt, "ticks")
		for i := 0; i < n; i++ {
			lvl := uint8(rapid.IntRange(0, 255).Draw(rt, "level"))
			now = now.Add(time.Duration(rapid.IntRange(50, 400).Draw(rt, "gap_ms")) * time.Millisecond)

			switch v.Observe(level(lvl), now) {
			case SignalStart:
				if recording {
					rt.Fatalf("start while recording at tick %d", i)
				}
				recording = true
			case SignalStop:
				if !recording {
					rt.Fatalf("stop while idle at tick %d", i)
				}
				recording = false
			}
		}
	})
}
