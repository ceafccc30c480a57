package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/llm"
	"github.com/yoockh/yoointerview/internal/providers/stt"
	"github.com/yoockh/yoointerview/internal/providers/tts"
)

type PipelineConfig struct {
	SessionID      string
	Plan           string
	Settings       models.InterviewSettings
	Candidate      *models.Candidate
	SpeakerEnabled bool
	// ClipURL maps a clip id to the URL stored on the voiced message.
	ClipURL func(clipID string) string
}

type PipelineDeps struct {
	STT      stt.Provider
	LLM      llm.Provider
	TTS      tts.Provider
	Playback *PlaybackQueue
	Log      *EventLog
	Clock    Clock

	Journal  Journal
	Observer Observer
	Emit     func(Event)

	// OnAIMessage runs after each AI message is appended.
	OnAIMessage func(models.Message)
}

// Pipeline drives STT -> LLM -> TTS for one turn at a time and owns the
// conversation state of a session.
type Pipeline struct {
	cfg  PipelineConfig
	deps PipelineDeps

	busy  atomic.Bool
	turns atomic.Int64

	mu         sync.Mutex
	state      State
	messages   []models.Message
	transcript []models.TranscriptChunk
	status     ConnectionStatus
	latency    LatencyStats
	settings   models.InterviewSettings
	speaker    bool
	clips      map[string]Clip
}

func NewPipeline(cfg PipelineConfig, deps PipelineDeps) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Log == nil {
		deps.Log = NewEventLog(EventLogCapacity, deps.Clock, nil)
	}
	if deps.Playback == nil {
		deps.Playback = NewPlaybackQueue(func(Clip) {})
	}
	if cfg.ClipURL == nil {
		sid := cfg.SessionID
		cfg.ClipURL = func(id string) string { return "/session/" + sid + "/clips/" + id }
	}
	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		state:    StateIdle,
		status:   initialStatus(),
		settings: cfg.Settings,
		speaker:  cfg.SpeakerEnabled,
		clips:    map[string]Clip{},
	}
}

// Busy reports whether a turn is in flight.
func (p *Pipeline) Busy() bool { return p.busy.Load() }

func (p *Pipeline) acquire() bool {
	if !p.busy.CompareAndSwap(false, true) {
		p.observeTurn(TurnBusy)
		return false
	}
	return true
}

func (p *Pipeline) release() {
	p.setState(StateIdle)
	p.busy.Store(false)
}

// MarkRecording moves between Idle and Recording while no turn is in flight.
func (p *Pipeline) MarkRecording(on bool) {
	p.mu.Lock()
	changed := false
	switch {
	case on && p.state == StateIdle && !p.busy.Load():
		p.state, changed = StateRecording, true
	case !on && p.state == StateRecording:
		p.state, changed = StateIdle, true
	}
	st := p.state
	p.mu.Unlock()
	if changed {
		p.emit(EventState, map[string]any{"state": st})
	}
}

// SubmitAudio runs a full voice turn for one utterance.
func (p *Pipeline) SubmitAudio(ctx context.Context, u Utterance) error {
	if !p.acquire() {
		return ErrBusy
	}
	defer p.release()

	turn := p.turns.Add(1)
	p.journalOpen(ctx, turn, models.TurnSourceVoice, u.MimeType, len(u.Data))

	text, ok, err := p.transcribe(ctx, turn, u)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	now := p.deps.Clock.Now()
	chunk := models.TranscriptChunk{
		ID:         uuid.NewString(),
		Text:       text.text,
		IsFinal:    true,
		Confidence: text.confidence,
		Timestamp:  now,
	}
	p.mu.Lock()
	p.transcript = append(p.transcript, chunk)
	p.mu.Unlock()
	p.emit(EventTranscript, chunk)
	p.appendMessage(models.RoleUser, text.text)

	return p.respond(ctx, turn, false)
}

// SubmitText injects a typed answer, skipping recording and transcription.
func (p *Pipeline) SubmitText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if !p.acquire() {
		return ErrBusy
	}
	defer p.release()

	turn := p.turns.Add(1)
	p.journalOpen(ctx, turn, models.TurnSourceText, "", 0)
	p.journalSTT(ctx, turn, text, 1, models.StatusSkipped)
	p.appendMessage(models.RoleUser, text)
	return p.respond(ctx, turn, false)
}

// Next asks the model for another question using the existing history.
func (p *Pipeline) Next(ctx context.Context) error {
	if !p.acquire() {
		return ErrBusy
	}
	defer p.release()

	turn := p.turns.Add(1)
	p.journalOpen(ctx, turn, models.TurnSourceNext, "", 0)
	return p.respond(ctx, turn, false)
}

// Initial requests the opening question.
func (p *Pipeline) Initial(ctx context.Context) error {
	if !p.acquire() {
		return ErrBusy
	}
	defer p.release()

	turn := p.turns.Add(1)
	p.journalOpen(ctx, turn, models.TurnSourceIntro, "", 0)
	return p.respond(ctx, turn, true)
}

// Repeat re-queues the stored audio of the last AI message. It returns false
// when that message has no audio.
func (p *Pipeline) Repeat() bool {
	p.mu.Lock()
	var clip Clip
	var ok bool
	for i := len(p.messages) - 1; i >= 0; i-- {
		if p.messages[i].Role == models.RoleAI {
			clip, ok = p.clips[p.messages[i].ID]
			break
		}
	}
	p.mu.Unlock()

	if !ok {
		p.deps.Log.Info("repeat_unavailable", "no audio stored for the last question", nil)
		return false
	}
	p.deps.Log.Info("repeat", "replaying last question", logrus.Fields{"clip_id": clip.ID})
	p.deps.Playback.Enqueue(clip)
	return true
}

// Flag records that the candidate flagged the current question.
func (p *Pipeline) Flag() {
	fields := logrus.Fields{}
	if m, ok := p.lastAI(); ok {
		fields["message_id"] = m.ID
		fields["question"] = m.Text
	}
	p.deps.Log.Info("question_flagged", "question flagged by candidate", fields)
}

type transcription struct {
	text       string
	confidence float64
}

// transcribe returns ok=false when the utterance held no speech.
func (p *Pipeline) transcribe(ctx context.Context, turn int64, u Utterance) (transcription, bool, error) {
	p.setState(StateTranscribing)
	p.setStatus(func(s *ConnectionStatus) { s.STT = STTConnecting })
	p.journalSTT(ctx, turn, "", 0, models.StatusProcessing)

	settings := p.Settings()
	start := p.deps.Clock.Now()
	text, conf, err := p.deps.STT.Transcribe(ctx, u.Data, u.MimeType, settings.Language)
	elapsed := p.deps.Clock.Now().Sub(start)
	p.observeCall("stt", p.deps.STT.Name(), elapsed, err)

	if err != nil {
		p.setStatus(func(s *ConnectionStatus) { s.STT = STTDisconnected })
		p.journalSTT(ctx, turn, "", 0, models.StatusFailed)
		p.deps.Log.Error("stt_failed", "speech-to-text call failed", logrus.Fields{"turn": turn, "error": err})
		p.emitError("stt_failed", "Could not transcribe your answer. Please try again.", true)
		p.observeTurn(TurnSTTFailed)
		return transcription{}, false, fmt.Errorf("transcribe: %w", err)
	}

	p.setStatus(func(s *ConnectionStatus) { s.STT = STTConnected })
	p.setLatency(func(l *LatencyStats) { l.STT = elapsed.Milliseconds() })

	text = strings.TrimSpace(text)
	p.journalSTT(ctx, turn, text, conf, models.StatusDone)
	if text == "" {
		p.deps.Log.Info("empty_transcript", "no speech recognised, waiting for next utterance", logrus.Fields{"turn": turn})
		p.observeTurn(TurnEmptyTranscript)
		return transcription{}, false, nil
	}
	return transcription{text: text, confidence: conf}, true, nil
}

func (p *Pipeline) respond(ctx context.Context, turn int64, initial bool) error {
	p.setState(StateAwaitingModel)
	p.journalLLM(ctx, turn, "", "", models.StatusProcessing, 0)

	p.mu.Lock()
	req := llm.Request{
		Messages:  chatHistory(p.messages),
		Settings:  p.settings,
		Plan:      p.cfg.Plan,
		IsInitial: initial,
		Candidate: p.cfg.Candidate,
	}
	p.mu.Unlock()

	start := p.deps.Clock.Now()
	resp, err := p.deps.LLM.Generate(ctx, req)
	elapsed := p.deps.Clock.Now().Sub(start)
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = ErrEmptyResponse
	}
	provider := resp.ProviderUsed
	if provider == "" {
		provider = "unknown"
	}
	p.observeCall("llm", provider, elapsed, err)

	if err != nil {
		p.setStatus(func(s *ConnectionStatus) { s.LLM = LLMDisconnected })
		p.journalLLM(ctx, turn, "", "", models.StatusFailed, elapsed.Milliseconds())
		p.deps.Log.Error("llm_failed", "language model call failed, turn abandoned", logrus.Fields{"turn": turn, "error": err})
		p.emitError("llm_failed", "The interviewer could not respond. Please try again.", true)
		p.observeTurn(TurnLLMFailed)
		return fmt.Errorf("generate: %w", err)
	}

	p.setStatus(func(s *ConnectionStatus) { s.LLM = provider })
	p.setLatency(func(l *LatencyStats) { l.LLM = elapsed.Milliseconds() })

	msg := p.appendMessage(models.RoleAI, strings.TrimSpace(resp.Text))
	p.journalLLM(ctx, turn, msg.Text, provider, models.StatusDone, elapsed.Milliseconds())
	if p.deps.OnAIMessage != nil {
		p.deps.OnAIMessage(msg)
	}

	if p.Speaker() && p.deps.TTS != nil {
		p.synthesize(ctx, turn, msg)
	}
	p.observeTurn(TurnCompleted)
	return nil
}

// synthesize voices msg. Failures leave the conversation in text mode.
func (p *Pipeline) synthesize(ctx context.Context, turn int64, msg models.Message) {
	p.setState(StateSynthesizing)
	p.setStatus(func(s *ConnectionStatus) { s.TTS = TTSLoading })

	settings := p.Settings()
	start := p.deps.Clock.Now()
	audio, err := p.deps.TTS.Synthesize(ctx, tts.Request{
		Text:               msg.Text,
		Voice:              settings.Voice,
		TargetLanguageCode: settings.TargetLanguageCode,
		Pace:               settings.Pace,
		Pitch:              settings.Pitch,
	})
	elapsed := p.deps.Clock.Now().Sub(start)
	if err == nil && len(audio.Data) == 0 {
		err = errors.New("empty audio")
	}
	p.observeCall("tts", p.deps.TTS.Name(), elapsed, err)

	if err != nil {
		p.setStatus(func(s *ConnectionStatus) { s.TTS = TTSError })
		p.deps.Log.Warn("tts_failed", "speech synthesis failed, continuing in text mode", logrus.Fields{"turn": turn, "error": err})
		return
	}

	p.setStatus(func(s *ConnectionStatus) { s.TTS = TTSReady })
	p.setLatency(func(l *LatencyStats) { l.TTS = elapsed.Milliseconds() })

	clip := Clip{ID: msg.ID, MimeType: audio.MimeType, Data: audio.Data, URL: p.cfg.ClipURL(msg.ID)}
	p.mu.Lock()
	p.clips[clip.ID] = clip
	for i := range p.messages {
		if p.messages[i].ID == msg.ID {
			p.messages[i].AudioURL = clip.URL
			break
		}
	}
	p.mu.Unlock()

	p.emit(EventMessageAudio, map[string]any{"id": msg.ID, "audioUrl": clip.URL})
	p.deps.Playback.Enqueue(clip)
}

func (p *Pipeline) appendMessage(role models.MessageRole, text string) models.Message {
	msg := models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: p.deps.Clock.Now(),
	}
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	p.emit(EventMessage, msg)
	return msg
}

func (p *Pipeline) lastAI() (models.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.messages) - 1; i >= 0; i-- {
		if p.messages[i].Role == models.RoleAI {
			return p.messages[i], true
		}
	}
	return models.Message{}, false
}

func chatHistory(msgs []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := llm.RoleUser
		if m.Role == models.RoleAI {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Text})
	}
	return out
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	changed := p.state != s
	p.state = s
	p.mu.Unlock()
	if changed {
		p.emit(EventState, map[string]any{"state": s})
	}
}

func (p *Pipeline) setStatus(f func(*ConnectionStatus)) {
	p.mu.Lock()
	f(&p.status)
	st := p.status
	p.mu.Unlock()
	p.emit(EventStatus, st)
}

func (p *Pipeline) setLatency(f func(*LatencyStats)) {
	p.mu.Lock()
	f(&p.latency)
	l := p.latency
	p.mu.Unlock()
	p.emit(EventLatency, l)
}

func (p *Pipeline) emit(typ string, data any) {
	if p.deps.Emit == nil {
		return
	}
	p.deps.Emit(Event{Type: typ, SessionID: p.cfg.SessionID, At: p.deps.Clock.Now(), Data: data})
}

func (p *Pipeline) emitError(code, msg string, recoverable bool) {
	p.emit(EventError, ErrorEvent{Code: code, Message: msg, Recoverable: recoverable})
}

func (p *Pipeline) observeCall(kind, provider string, d time.Duration, err error) {
	if p.deps.Observer != nil {
		p.deps.Observer.ObserveCall(kind, provider, d, err)
	}
}

func (p *Pipeline) observeTurn(outcome string) {
	if p.deps.Observer != nil {
		p.deps.Observer.ObserveTurn(outcome)
	}
}

func (p *Pipeline) journalOpen(ctx context.Context, turn int64, source, mimeType string, size int) {
	if p.deps.Journal == nil {
		return
	}
	if err := p.deps.Journal.OpenTurn(ctx, p.cfg.SessionID, turn, source, mimeType, size); err != nil {
		p.deps.Log.Warn("journal_failed", "failed to open turn record", logrus.Fields{"turn": turn, "error": err})
	}
}

func (p *Pipeline) journalSTT(ctx context.Context, turn int64, text string, conf float64, status string) {
	if p.deps.Journal == nil {
		return
	}
	if err := p.deps.Journal.MarkSTT(ctx, p.cfg.SessionID, turn, text, conf, status); err != nil {
		p.deps.Log.Warn("journal_failed", "failed to update stt status", logrus.Fields{"turn": turn, "error": err})
	}
}

func (p *Pipeline) journalLLM(ctx context.Context, turn int64, response, provider, status string, ms int64) {
	if p.deps.Journal == nil {
		return
	}
	if err := p.deps.Journal.MarkLLM(ctx, p.cfg.SessionID, turn, response, provider, status, ms); err != nil {
		p.deps.Log.Warn("journal_failed", "failed to update llm status", logrus.Fields{"turn": turn, "error": err})
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Messages() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

func (p *Pipeline) Transcript() []models.TranscriptChunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.TranscriptChunk, len(p.transcript))
	copy(out, p.transcript)
	return out
}

func (p *Pipeline) Status() ConnectionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) Latency() LatencyStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latency
}

func (p *Pipeline) Settings() models.InterviewSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// SetSettings replaces the settings wholesale.
func (p *Pipeline) SetSettings(s models.InterviewSettings) error {
	if err := ValidateSettings(s); err != nil {
		return err
	}
	p.mu.Lock()
	p.settings = s
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) Speaker() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaker
}

func (p *Pipeline) SetSpeaker(on bool) {
	p.mu.Lock()
	p.speaker = on
	p.mu.Unlock()
}

func (p *Pipeline) Clip(id string) (Clip, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clips[id]
	return c, ok
}
