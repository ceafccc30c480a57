package llm

import (
	"context"

	"github.com/yoockh/yoointerview/internal/models"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages  []Message
	Settings  models.InterviewSettings
	Plan      string
	IsInitial bool
	Candidate *models.Candidate
}

type Response struct {
	Text         string
	ProviderUsed string
}

type Provider interface {
	// Generate returns the interviewer's next reply for the conversation.
	Generate(ctx context.Context, req Request) (Response, error)
	Close() error
}
