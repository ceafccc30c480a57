package interview

import "time"

type Signal int

const (
	SignalNone Signal = iota
	SignalStart
	SignalStop
)

func (s Signal) String() string {
	switch s {
	case SignalStart:
		return "start"
	case SignalStop:
		return "stop"
	default:
		return "none"
	}
}

type VADConfig struct {
	Threshold       float64
	SilenceDuration time.Duration
	PollInterval    time.Duration
}

func DefaultVADConfig() VADConfig {
	return VADConfig{
		Threshold:       30,
		SilenceDuration: 1500 * time.Millisecond,
		PollInterval:    100 * time.Millisecond,
	}
}

// VAD classifies analyser snapshots as speech or silence. Start and stop are
// only signalled on transitions; dips shorter than SilenceDuration are ignored.
type VAD struct {
	cfg          VADConfig
	speaking     bool
	silenceArmed bool
	silenceAt    time.Time
}

func NewVAD(cfg VADConfig) *VAD {
	return &VAD{cfg: cfg}
}

func (v *VAD) Speaking() bool { return v.speaking }

// Observe consumes one poll tick. A nil snapshot is ignored.
func (v *VAD) Observe(bins []uint8, now time.Time) Signal {
	if bins == nil {
		return SignalNone
	}

	if meanLevel(bins) > v.cfg.Threshold {
		v.silenceArmed = false
		if !v.speaking {
			v.speaking = true
			return SignalStart
		}
		return SignalNone
	}

	if !v.speaking {
		return SignalNone
	}
	if !v.silenceArmed {
		v.silenceArmed = true
		v.silenceAt = now.Add(v.cfg.SilenceDuration)
		return SignalNone
	}
	if !now.Before(v.silenceAt) {
		v.speaking = false
		v.silenceArmed = false
		return SignalStop
	}
	return SignalNone
}

// Reset forgets the current utterance, e.g. after push-to-talk took over.
func (v *VAD) Reset() {
	v.speaking = false
	v.silenceArmed = false
}

func meanLevel(bins []uint8) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins))
}
