package interview

import (
	"context"
	"sync"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/tts"
)

// fakeClock fires scheduled callbacks only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	every   time.Duration
	f       func()
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Stopper {
	return c.schedule(d, 0, f)
}

func (c *fakeClock) Every(d time.Duration, f func()) Stopper {
	return c.schedule(d, d, f)
}

func (c *fakeClock) schedule(d, every time.Duration, f func()) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), every: every, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// Advance moves time forward, running due callbacks in time order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		c.now = next.at
		if next.every > 0 {
			next.at = next.at.Add(next.every)
		} else {
			next.stopped = true
		}
		f := next.f
		c.mu.Unlock()
		f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

type fakeSTT struct {
	mu    sync.Mutex
	text  string
	conf  float64
	err   error
	calls int
	mimes []string
}

func (f *fakeSTT) Transcribe(_ context.Context, _ []byte, mimeType, _ string) (string, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.mimes = append(f.mimes, mimeType)
	return f.text, f.conf, f.err
}

func (f *fakeSTT) Name() string { return "fake-stt" }
func (f *fakeSTT) Close() error { return nil }

func (f *fakeSTT) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLLM struct {
	mu   sync.Mutex
	fn   func(req llm.Request) (llm.Response, error)
	reqs []llm.Request
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return llm.Response{Text: "Tell me about yourself.", ProviderUsed: "gemini"}, nil
	}
	return fn(req)
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.reqs...)
}

type fakeTTS struct {
	mu    sync.Mutex
	fn    func(req tts.Request) (tts.Audio, error)
	calls int
}

func (f *fakeTTS) Synthesize(_ context.Context, req tts.Request) (tts.Audio, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return tts.Audio{Data: []byte{'R', 'I', 'F', 'F', byte(n)}, MimeType: "audio/wav"}, nil
	}
	return fn(req)
}

func (f *fakeTTS) Name() string { return "fake-tts" }
func (f *fakeTTS) Close() error { return nil }

func (f *fakeTTS) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) Publish(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) emit(ev Event) { _ = s.Publish(context.Background(), ev) }

func (s *eventSink) ofType(typ string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (s *eventSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type journalCall struct {
	Kind   string
	Turn   int64
	Status string
}

type fakeJournal struct {
	mu    sync.Mutex
	calls []journalCall
}

func (j *fakeJournal) OpenTurn(_ context.Context, _ string, turn int64, source, _ string, _ int) error {
	j.record(journalCall{Kind: "open", Turn: turn, Status: source})
	return nil
}

func (j *fakeJournal) MarkSTT(_ context.Context, _ string, turn int64, _ string, _ float64, status string) error {
	j.record(journalCall{Kind: "stt", Turn: turn, Status: status})
	return nil
}

func (j *fakeJournal) MarkLLM(_ context.Context, _ string, turn int64, _, _, status string, _ int64) error {
	j.record(journalCall{Kind: "llm", Turn: turn, Status: status})
	return nil
}

func (j *fakeJournal) record(c journalCall) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, c)
}

type fakeRefunder struct {
	mu    sync.Mutex
	calls int
	users []string
}

func (r *fakeRefunder) RefundEarlyDisconnect(_ context.Context, userID string) (models.RefundResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.users = append(r.users, userID)
	return models.RefundResult{Refunded: 1, DisconnectCount: r.calls}, nil
}

func (r *fakeRefunder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []models.InterviewReport
}

func (r *fakeReporter) SaveReport(_ context.Context, rep models.InterviewReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return nil
}

func (r *fakeReporter) Reports() []models.InterviewReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.InterviewReport(nil), r.reports...)
}

func level(v uint8) []uint8 {
	bins := make([]uint8, 128)
	for i := range bins {
		bins[i] = v
	}
	return bins
}
