package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/providers/tts"
)

type Config struct {
	SessionID string
	UserID    string
	Plan      string
	Settings  models.InterviewSettings
	Candidate *models.Candidate

	VAD           VADConfig
	Timer         TimerConfig
	QuestionLimit time.Duration
	SampleRate    int
	LogCapacity   int

	// ClipURL builds the URL of a synthesized clip.
	ClipURL func(sessionID, clipID string) string
}

type Deps struct {
	STT stt.Provider
	LLM llm.Provider
	TTS tts.Provider

	Sink     EventSink
	Refunder Refunder
	Reporter Reporter
	Journal  Journal
	Observer Observer

	Clock  Clock
	Logger *logrus.Logger
}

// Session is the controller of one live interview. It owns the recorder, the
// VAD loop, the pipeline, the playback queue and both countdowns from Start
// until End.
type Session struct {
	cfg    Config
	deps   Deps
	logger *logrus.Entry

	log      *EventLog
	recorder *Recorder
	vad      *VAD
	pcm      *PCMAnalyser
	levels   *LevelFeed
	playback *PlaybackQueue
	pipeline *Pipeline
	timer    *SessionTimer
	question *QuestionTimer

	mu       sync.Mutex
	started  bool
	ended    bool
	analyser Analyser
	vadLoop  Stopper
	pttHeld  bool

	closed   atomic.Bool
	callCtx  context.Context
	inflight sync.WaitGroup

	endOnce sync.Once
	report  models.InterviewReport
	endErr  error
	done    chan struct{}
}

func NewSession(cfg Config, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if cfg.VAD.PollInterval <= 0 {
		cfg.VAD = DefaultVADConfig()
	}
	if cfg.Timer.Cap <= 0 {
		cfg.Timer = DefaultTimerConfig()
	}
	if cfg.QuestionLimit <= 0 {
		cfg.QuestionLimit = 2 * time.Minute
	}

	s := &Session{
		cfg:  cfg,
		deps: deps,
		logger: deps.Logger.WithFields(logrus.Fields{
			"session_id": cfg.SessionID,
			"user_id":    cfg.UserID,
		}),
		recorder: NewRecorder(cfg.SampleRate),
		vad:      NewVAD(cfg.VAD),
		pcm:      NewPCMAnalyser(),
		levels:   &LevelFeed{},
		callCtx:  context.Background(),
		done:     make(chan struct{}),
	}
	s.log = NewEventLog(cfg.LogCapacity, deps.Clock, s.logger)
	s.log.OnAppend(func(e LogEntry) { s.emit(EventLogEntry, e) })
	s.playback = NewPlaybackQueue(func(c Clip) { s.emit(EventPlay, c) })

	clipURL := func(id string) string { return "/session/" + cfg.SessionID + "/clips/" + id }
	if cfg.ClipURL != nil {
		clipURL = func(id string) string { return cfg.ClipURL(cfg.SessionID, id) }
	}
	s.pipeline = NewPipeline(PipelineConfig{
		SessionID:      cfg.SessionID,
		Plan:           cfg.Plan,
		Settings:       cfg.Settings,
		Candidate:      cfg.Candidate,
		SpeakerEnabled: true,
		ClipURL:        clipURL,
	}, PipelineDeps{
		STT:         deps.STT,
		LLM:         deps.LLM,
		TTS:         deps.TTS,
		Playback:    s.playback,
		Log:         s.log,
		Clock:       deps.Clock,
		Journal:     deps.Journal,
		Observer:    deps.Observer,
		Emit:        s.publish,
		OnAIMessage: func(models.Message) { s.resetQuestion() },
	})

	var refund func(ctx context.Context) (models.RefundResult, error)
	if deps.Refunder != nil {
		refund = func(ctx context.Context) (models.RefundResult, error) {
			return deps.Refunder.RefundEarlyDisconnect(ctx, cfg.UserID)
		}
	}
	s.timer = NewSessionTimer(cfg.Timer, deps.Clock, refund)
	s.timer.OnTick(func(r time.Duration) {
		s.emit(EventTimer, map[string]any{"remaining_ms": r.Milliseconds()})
	})
	s.timer.OnCap(func() {
		s.log.Info("session_cap_reached", "maximum session length reached", nil)
		_, _ = s.End(context.Background(), models.EndReasonAuto)
	})
	s.question = NewQuestionTimer(cfg.QuestionLimit, deps.Clock,
		func(r time.Duration) {
			s.emit(EventQuestionTimer, map[string]any{"remaining_ms": r.Milliseconds()})
		},
		func() {
			s.log.Info("question_time_up", "time for the current question is up", nil)
		},
	)
	return s
}

func (s *Session) ID() string { return s.cfg.SessionID }

func (s *Session) UserID() string { return s.cfg.UserID }

// Start acquires the session: arms the session timer, the VAD loop and asks
// for the opening question. Calling Start twice is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.timer.Start()
	s.vadLoop = s.deps.Clock.Every(s.cfg.VAD.PollInterval, s.pollVAD)
	s.mu.Unlock()

	s.log.Info("session_started", "interview started", logrus.Fields{"plan": s.cfg.Plan})
	s.emit(EventStatus, s.pipeline.Status())
	s.emit(EventTimer, map[string]any{"remaining_ms": s.timer.Remaining().Milliseconds()})
	s.dispatch("intro", s.pipeline.Initial)
	return nil
}

// AttachMedia registers the client's media stream and its recordable formats.
func (s *Session) AttachMedia(formats []string, sampleRate int) error {
	s.recorder.AttachStream(formats, sampleRate)
	mt, ok := s.recorder.Preferred()

	s.mu.Lock()
	if ok && mt == FormatWAV {
		s.analyser = s.pcm
	} else {
		s.analyser = s.levels
	}
	s.mu.Unlock()

	if !ok {
		s.log.Error("unsupported_format", "client offers no supported recording format", logrus.Fields{"formats": strings.Join(formats, ",")})
		s.emitError("unsupported_format", "Your browser cannot record in a supported audio format.", true)
		return ErrUnsupportedFormat
	}
	s.log.Info("media_ready", "media stream attached", logrus.Fields{"format": mt})
	return nil
}

// MediaError handles a failed microphone acquisition. It is fatal to the
// session.
func (s *Session) MediaError(ctx context.Context, code string) error {
	err, wire, msg := ErrNoMediaStream, "media_unavailable", "Microphone is unavailable."
	switch code {
	case "permission_denied", "NotAllowedError", "PermissionDeniedError", "SecurityError":
		err, wire, msg = ErrPermissionDenied, "permission_denied", "Microphone permission was denied."
	}
	s.log.Error("media_error", msg, logrus.Fields{"code": code})
	s.emitError(wire, msg, false)
	s.recorder.DetachStream()
	_, _ = s.End(ctx, models.EndReasonMediaError)
	return err
}

// HandleAudio consumes one binary frame from the client.
func (s *Session) HandleAudio(frame []byte) {
	s.mu.Lock()
	usePCM := s.analyser == Analyser(s.pcm)
	s.mu.Unlock()
	if usePCM {
		s.pcm.Write(frame)
	}
	s.recorder.Write(frame)
}

// HandleLevels stores client-computed frequency bins.
func (s *Session) HandleLevels(bins []uint8) {
	s.levels.Set(bins)
}

func (s *Session) pollVAD() {
	s.mu.Lock()
	if s.ended || s.pttHeld || s.analyser == nil {
		s.mu.Unlock()
		return
	}
	sig := s.vad.Observe(s.analyser.FrequencyData(), s.deps.Clock.Now())
	s.mu.Unlock()

	switch sig {
	case SignalStart:
		s.beginUtterance("vad")
	case SignalStop:
		s.endUtterance("vad")
	}
}

// PushToTalk starts (down) or finishes (up) an utterance explicitly. VAD
// signals are ignored while the button is held.
func (s *Session) PushToTalk(down bool) {
	s.mu.Lock()
	if s.ended || !s.started {
		s.mu.Unlock()
		return
	}
	if down == s.pttHeld {
		s.mu.Unlock()
		return
	}
	s.pttHeld = down
	s.vad.Reset()
	s.mu.Unlock()

	if down {
		s.beginUtterance("ptt")
	} else {
		s.endUtterance("ptt")
	}
}

func (s *Session) beginUtterance(trigger string) {
	started, err := s.recorder.Start(s.deps.Clock.Now())
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		s.log.Error("unsupported_format", "cannot start recording", logrus.Fields{"trigger": trigger})
		s.emitError("unsupported_format", "Recording format is not supported.", true)
		return
	case err != nil:
		s.log.Warn("record_failed", "cannot start recording", logrus.Fields{"trigger": trigger, "error": err})
		return
	case !started:
		return
	}
	s.pipeline.MarkRecording(true)
	s.log.Info("recording_started", "utterance recording started", logrus.Fields{"trigger": trigger})
}

func (s *Session) endUtterance(trigger string) {
	if !s.recorder.Recording() {
		return
	}
	u, ok := s.recorder.Stop()
	s.pipeline.MarkRecording(false)
	if !ok {
		s.log.Info("utterance_discarded", "utterance below noise floor discarded", logrus.Fields{"trigger": trigger})
		if s.deps.Observer != nil {
			s.deps.Observer.ObserveTurn(TurnDiscarded)
		}
		return
	}
	s.log.Info("recording_stopped", "utterance captured", logrus.Fields{"trigger": trigger, "bytes": len(u.Data), "mime_type": u.MimeType})
	s.dispatch("voice", func(ctx context.Context) error { return s.pipeline.SubmitAudio(ctx, u) })
}

// SubmitText sends a typed answer.
func (s *Session) SubmitText(text string) error {
	if s.Ended() {
		return ErrSessionClosed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	s.dispatch("text", func(ctx context.Context) error { return s.pipeline.SubmitText(ctx, text) })
	return nil
}

// Next asks for the next question.
func (s *Session) Next() error {
	if s.Ended() {
		return ErrSessionClosed
	}
	s.dispatch("next", s.pipeline.Next)
	return nil
}

// Repeat replays the last question's audio, if any.
func (s *Session) Repeat() bool {
	if s.Ended() {
		return false
	}
	return s.pipeline.Repeat()
}

func (s *Session) Flag() {
	if s.Ended() {
		return
	}
	s.pipeline.Flag()
}

func (s *Session) SetSpeaker(on bool) {
	s.pipeline.SetSpeaker(on)
	s.log.Info("speaker_toggled", "speaker output changed", logrus.Fields{"enabled": on})
}

// UpdateSettings replaces the interview settings.
func (s *Session) UpdateSettings(settings models.InterviewSettings) error {
	if err := s.pipeline.SetSettings(settings); err != nil {
		return err
	}
	s.log.Info("settings_updated", "interview settings replaced", logrus.Fields{"type": settings.Type, "difficulty": settings.Difficulty})
	return nil
}

// PlaybackDone acknowledges the end of a clip and starts the next one.
func (s *Session) PlaybackDone(clipID string) {
	if !s.playback.Done(clipID) {
		s.log.Warn("playback_ack_ignored", "acknowledged clip is not playing", logrus.Fields{"clip_id": clipID})
	}
}

func (s *Session) dispatch(op string, fn func(ctx context.Context) error) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := fn(s.callCtx); errors.Is(err, ErrBusy) {
			s.log.Warn("turn_dropped", "a turn is already in flight", logrus.Fields{"op": op})
		}
	}()
}

func (s *Session) resetQuestion() {
	if s.Ended() {
		return
	}
	s.question.Reset()
}

// End releases the session and classifies how it ended. Remote calls already
// in flight are not aborted; their results are no longer published. End is
// idempotent and returns the same report on every call.
func (s *Session) End(ctx context.Context, reason string) (models.InterviewReport, error) {
	s.endOnce.Do(func() {
		s.report, s.endErr = s.finish(ctx, reason)
		close(s.done)
	})
	return s.report, s.endErr
}

func (s *Session) finish(ctx context.Context, reason string) (models.InterviewReport, error) {
	s.mu.Lock()
	s.ended = true
	loop := s.vadLoop
	s.vadLoop = nil
	s.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
	s.question.Stop()
	s.recorder.Discard()
	s.playback.Reset()
	outcome := s.timer.End(ctx)

	now := s.deps.Clock.Now()
	report := models.InterviewReport{
		SessionID:       s.cfg.SessionID,
		UserID:          s.cfg.UserID,
		Plan:            s.cfg.Plan,
		Settings:        s.pipeline.Settings(),
		Messages:        s.pipeline.Messages(),
		Transcript:      s.pipeline.Transcript(),
		StartedAt:       outcome.StartedAt,
		EndedAt:         now,
		DurationSeconds: int64(outcome.Duration / time.Second),
		EndReason:       reason,
		AutoEnded:       outcome.AutoEnded,
		EarlyDisconnect: outcome.EarlyDisconnect,
		Refund:          outcome.Refund,
	}
	if !outcome.Active {
		report.StartedAt = now
	}

	fields := logrus.Fields{
		"reason":           reason,
		"duration_seconds": report.DurationSeconds,
		"auto_ended":       report.AutoEnded,
		"early_disconnect": report.EarlyDisconnect,
	}
	if outcome.RefundErr != nil {
		s.log.Error("refund_failed", "early disconnect refund failed", logrus.Fields{"error": outcome.RefundErr})
	}
	refunded := 0
	if outcome.Refund != nil {
		refunded = outcome.Refund.Refunded
		fields["refunded"] = outcome.Refund.Refunded
		fields["disconnect_count"] = outcome.Refund.DisconnectCount
	}
	s.log.Info("session_ended", "interview ended", fields)
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveSessionEnd(reason, report.EarlyDisconnect, refunded)
	}

	var saveErr error
	if outcome.Active && s.deps.Reporter != nil {
		if saveErr = s.deps.Reporter.SaveReport(ctx, report); saveErr != nil {
			s.log.Error("report_failed", "failed to save interview report", logrus.Fields{"error": saveErr})
		}
	}

	s.emit(EventSessionEnded, map[string]any{
		"reason":           reason,
		"duration_seconds": report.DurationSeconds,
		"auto_ended":       report.AutoEnded,
		"early_disconnect": report.EarlyDisconnect,
		"refund":           report.Refund,
	})
	s.closed.Store(true)
	return report, saveErr
}

// Wait blocks until every dispatched turn has returned.
func (s *Session) Wait() { s.inflight.Wait() }

// Done is closed once End has completed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Session) Messages() []models.Message { return s.pipeline.Messages() }

func (s *Session) Transcript() []models.TranscriptChunk { return s.pipeline.Transcript() }

func (s *Session) Status() ConnectionStatus { return s.pipeline.Status() }

func (s *Session) Latency() LatencyStats { return s.pipeline.Latency() }

func (s *Session) State() State { return s.pipeline.State() }

func (s *Session) Remaining() time.Duration { return s.timer.Remaining() }

func (s *Session) Log() []LogEntry { return s.log.Entries() }

func (s *Session) Clip(id string) (Clip, bool) { return s.pipeline.Clip(id) }

func (s *Session) emit(typ string, data any) {
	s.publish(Event{Type: typ, SessionID: s.cfg.SessionID, At: s.deps.Clock.Now(), Data: data})
}

// publish drops events once the session is closed.
func (s *Session) publish(ev Event) {
	if s.closed.Load() || s.deps.Sink == nil {
		return
	}
	if err := s.deps.Sink.Publish(context.Background(), ev); err != nil {
		s.logger.WithError(err).WithField("event", ev.Type).Warn("publish failed")
	}
}

func (s *Session) emitError(code, msg string, recoverable bool) {
	s.emit(EventError, ErrorEvent{Code: code, Message: msg, Recoverable: recoverable})
}
