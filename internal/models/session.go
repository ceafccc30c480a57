package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`       // uuid from Supabase Auth

	Plan     string            `bson:"plan" json:"plan"`
	Status   string            `bson:"status" json:"status"` // active|ended
	Settings InterviewSettings `bson:"settings" json:"settings"`

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`

	DurationSeconds int64         `bson:"duration_seconds" json:"duration_seconds"`
	EndReason       string        `bson:"end_reason,omitempty" json:"end_reason,omitempty"`
	Refund          *RefundResult `bson:"refund,omitempty" json:"refund,omitempty"`
}
