package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TurnSourceVoice = "voice"
	TurnSourceText  = "text"
	TurnSourceNext  = "next"
	TurnSourceIntro = "intro"
)

// TurnRecord journals one pass through the STT -> LLM -> TTS chain.
type TurnRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	TurnIndex int64              `bson:"turn_index" json:"turn_index"`
	Source    string             `bson:"source" json:"source"` // voice|text|next|intro

	MimeType   string `bson:"mime_type,omitempty" json:"mime_type,omitempty"`
	AudioBytes int    `bson:"audio_bytes,omitempty" json:"audio_bytes,omitempty"`

	RawText       string  `bson:"raw_text,omitempty" json:"raw_text,omitempty"`
	STTStatus     string  `bson:"stt_status" json:"stt_status"` // pending|processing|done|failed|skipped
	STTConfidence float64 `bson:"stt_confidence,omitempty" json:"stt_confidence,omitempty"`

	LLMStatus   string `bson:"llm_status" json:"llm_status"` // pending|processing|done|failed
	LLMResponse string `bson:"llm_response,omitempty" json:"llm_response,omitempty"`
	LLMProvider string `bson:"llm_provider,omitempty" json:"llm_provider,omitempty"`

	ProcessingTimeMS int64     `bson:"processing_time_ms,omitempty" json:"processing_time_ms,omitempty"`
	Timestamp        time.Time `bson:"timestamp" json:"timestamp"`

	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)
