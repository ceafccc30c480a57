package interview

import (
	"context"
	"sync"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
)

type TimerConfig struct {
	Cap            time.Duration
	EarlyThreshold time.Duration
	Tick           time.Duration
}

func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		Cap:            10 * time.Minute,
		EarlyThreshold: 3 * time.Minute,
		Tick:           time.Second,
	}
}

// Outcome classifies how a session ended.
type Outcome struct {
	Active          bool
	StartedAt       time.Time
	Duration        time.Duration
	AutoEnded       bool
	EarlyDisconnect bool
	Refund          *models.RefundResult
	RefundErr       error
}

// SessionTimer bounds a session to Cap and refunds sessions that end before
// EarlyThreshold unless the cap fired first.
type SessionTimer struct {
	cfg    TimerConfig
	clock  Clock
	refund func(ctx context.Context) (models.RefundResult, error)

	onTick func(remaining time.Duration)
	onCap  func()

	mu         sync.Mutex
	active     bool
	startTime  time.Time
	remaining  time.Duration
	autoEnding bool
	ticker     Stopper
	capTimer   Stopper
}

func NewSessionTimer(cfg TimerConfig, clock Clock, refund func(ctx context.Context) (models.RefundResult, error)) *SessionTimer {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &SessionTimer{cfg: cfg, clock: clock, refund: refund, remaining: cfg.Cap}
}

// OnTick and OnCap must be set before Start.
func (t *SessionTimer) OnTick(f func(remaining time.Duration)) { t.onTick = f }

func (t *SessionTimer) OnCap(f func()) { t.onCap = f }

func (t *SessionTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return
	}
	t.active = true
	t.startTime = t.clock.Now()
	t.remaining = t.cfg.Cap
	t.autoEnding = false
	t.ticker = t.clock.Every(t.cfg.Tick, t.tick)
	t.capTimer = t.clock.AfterFunc(t.cfg.Cap, t.fire)
}

func (t *SessionTimer) tick() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	left := t.cfg.Cap - t.clock.Now().Sub(t.startTime)
	if left < 0 {
		left = 0
	}
	if left < t.remaining {
		t.remaining = left
	}
	r := t.remaining
	t.mu.Unlock()

	if t.onTick != nil {
		t.onTick(r)
	}
}

func (t *SessionTimer) fire() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.autoEnding = true
	t.remaining = 0
	t.mu.Unlock()

	if t.onCap != nil {
		t.onCap()
	}
}

// End stops both timers, resets the remaining time to the cap and classifies
// the session. Calling End on an inactive timer only does the reset.
func (t *SessionTimer) End(ctx context.Context) Outcome {
	t.mu.Lock()
	if !t.active {
		t.remaining = t.cfg.Cap
		t.mu.Unlock()
		return Outcome{}
	}
	if t.ticker != nil {
		t.ticker.Stop()
	}
	if t.capTimer != nil {
		t.capTimer.Stop()
	}
	out := Outcome{
		Active:    true,
		StartedAt: t.startTime,
		Duration:  t.clock.Now().Sub(t.startTime),
		AutoEnded: t.autoEnding,
	}
	out.EarlyDisconnect = out.Duration < t.cfg.EarlyThreshold && !t.autoEnding

	t.active = false
	t.startTime = time.Time{}
	t.remaining = t.cfg.Cap
	t.ticker = nil
	t.capTimer = nil
	t.mu.Unlock()

	if out.EarlyDisconnect && t.refund != nil {
		res, err := t.refund(ctx)
		if err != nil {
			out.RefundErr = err
		} else {
			out.Refund = &res
		}
	}
	return out
}

func (t *SessionTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

func (t *SessionTimer) AutoEnding() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.autoEnding
}

func (t *SessionTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// QuestionTimer counts down the time allotted to the current question. It is
// informational and never changes the pipeline state.
type QuestionTimer struct {
	limit time.Duration
	clock Clock

	onTick   func(remaining time.Duration)
	onExpire func()

	mu        sync.Mutex
	remaining time.Duration
	running   bool
	expired   bool
	ticker    Stopper
}

func NewQuestionTimer(limit time.Duration, clock Clock, onTick func(time.Duration), onExpire func()) *QuestionTimer {
	if clock == nil {
		clock = SystemClock()
	}
	return &QuestionTimer{limit: limit, clock: clock, onTick: onTick, onExpire: onExpire}
}

// Reset restarts the countdown for a new question.
func (q *QuestionTimer) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ticker != nil {
		q.ticker.Stop()
	}
	q.remaining = q.limit
	q.running = true
	q.expired = false
	q.ticker = q.clock.Every(time.Second, q.tick)
}

func (q *QuestionTimer) tick() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	if q.remaining > 0 {
		q.remaining -= time.Second
		if q.remaining < 0 {
			q.remaining = 0
		}
	}
	r := q.remaining
	fireExpire := r == 0 && !q.expired
	if fireExpire {
		q.expired = true
		q.running = false
		if q.ticker != nil {
			q.ticker.Stop()
			q.ticker = nil
		}
	}
	q.mu.Unlock()

	if q.onTick != nil {
		q.onTick(r)
	}
	if fireExpire && q.onExpire != nil {
		q.onExpire()
	}
}

func (q *QuestionTimer) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = false
	if q.ticker != nil {
		q.ticker.Stop()
		q.ticker = nil
	}
}

func (q *QuestionTimer) Remaining() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining
}
