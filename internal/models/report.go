package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EndReasonUser       = "user"
	EndReasonAuto       = "auto"
	EndReasonDisconnect = "disconnect"
	EndReasonMediaError = "media_error"
)

// InterviewReport is the end-of-session snapshot handed to persistence.
type InterviewReport struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID string             `bson:"session_id" json:"session_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Plan      string             `bson:"plan" json:"plan"`

	Settings   InterviewSettings `bson:"settings" json:"settings"`
	Messages   []Message         `bson:"messages" json:"messages"`
	Transcript []TranscriptChunk `bson:"transcript" json:"transcript"`

	StartedAt       time.Time `bson:"started_at" json:"started_at"`
	EndedAt         time.Time `bson:"ended_at" json:"ended_at"`
	DurationSeconds int64     `bson:"duration_seconds" json:"duration_seconds"`

	EndReason       string        `bson:"end_reason" json:"end_reason"`
	AutoEnded       bool          `bson:"auto_ended" json:"auto_ended"`
	EarlyDisconnect bool          `bson:"early_disconnect" json:"early_disconnect"`
	Refund          *RefundResult `bson:"refund,omitempty" json:"refund,omitempty"`
}
