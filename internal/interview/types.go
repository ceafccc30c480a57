package interview

import (
	"context"
	"fmt"
	"time"

	"github.com/yoockh/yoointerview/internal/models"
)

type State string

const (
	StateIdle          State = "idle"
	StateRecording     State = "recording"
	StateTranscribing  State = "transcribing"
	StateAwaitingModel State = "awaiting_model"
	StateSynthesizing  State = "synthesizing"
)

const (
	STTConnected    = "connected"
	STTConnecting   = "connecting"
	STTDisconnected = "disconnected"

	TTSReady   = "ready"
	TTSLoading = "loading"
	TTSError   = "error"

	LLMDisconnected = "disconnected"
)

// ConnectionStatus mirrors the lifecycle of the most recent call of each kind.
type ConnectionStatus struct {
	STT string `json:"stt"`
	TTS string `json:"tts"`
	LLM string `json:"llm"`
}

func initialStatus() ConnectionStatus {
	return ConnectionStatus{STT: STTDisconnected, TTS: TTSReady, LLM: LLMDisconnected}
}

// LatencyStats holds the latency of the most recent call of each kind in ms.
type LatencyStats struct {
	STT int64 `json:"stt"`
	LLM int64 `json:"llm"`
	TTS int64 `json:"tts"`
}

const (
	EventMessage       = "message"
	EventMessageAudio  = "message_audio"
	EventTranscript    = "transcript"
	EventStatus        = "status"
	EventLatency       = "latency"
	EventPlay          = "play"
	EventTimer         = "timer"
	EventQuestionTimer = "question_timer"
	EventState         = "state"
	EventLogEntry      = "log"
	EventError         = "error"
	EventSessionEnded  = "session_ended"
)

// Event is pushed to the client of a session.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Data      any       `json:"data,omitempty"`
}

type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// ErrorEvent is the payload of EventError.
type ErrorEvent struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// Observer receives per-call and per-turn measurements.
type Observer interface {
	ObserveCall(kind, provider string, d time.Duration, err error)
	ObserveTurn(outcome string)
	ObserveSessionEnd(reason string, earlyDisconnect bool, refunded int)
}

const (
	TurnCompleted       = "completed"
	TurnEmptyTranscript = "empty_transcript"
	TurnSTTFailed       = "stt_failed"
	TurnLLMFailed       = "llm_failed"
	TurnDiscarded       = "discarded"
	TurnBusy            = "busy"
)

// Journal records each turn for later inspection.
type Journal interface {
	OpenTurn(ctx context.Context, sessionID string, turn int64, source, mimeType string, audioBytes int) error
	MarkSTT(ctx context.Context, sessionID string, turn int64, rawText string, confidence float64, status string) error
	MarkLLM(ctx context.Context, sessionID string, turn int64, response, provider, status string, processingMS int64) error
}

// Refunder is the partial-credit collaborator for early disconnects.
type Refunder interface {
	RefundEarlyDisconnect(ctx context.Context, userID string) (models.RefundResult, error)
}

// Reporter persists the end-of-session report.
type Reporter interface {
	SaveReport(ctx context.Context, r models.InterviewReport) error
}

// ValidateSettings checks enum membership of type and difficulty.
func ValidateSettings(s models.InterviewSettings) error {
	if !models.ValidInterviewType(s.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSettings, s.Type)
	}
	if !models.ValidDifficulty(s.Difficulty) {
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidSettings, s.Difficulty)
	}
	return nil
}
