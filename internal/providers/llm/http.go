package llm

import (
	"context"
	"errors"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/providers/remote"
)

// HTTPProvider calls a chat function that picks the vendor itself and reports
// which one answered.
type HTTPProvider struct {
	client *remote.Client
	path   string
}

func NewHTTPProvider(client *remote.Client, path string) *HTTPProvider {
	if path == "" {
		path = "/ai-interview-chat"
	}
	return &HTTPProvider{client: client, path: path}
}

type httpRequest struct {
	Messages          []Message                `json:"messages"`
	InterviewSettings models.InterviewSettings `json:"interview_settings"`
	UserPlan          string                   `json:"user_plan"`
	IsInitial         bool                     `json:"is_initial"`
	Candidate         *models.Candidate        `json:"candidate,omitempty"`
}

type httpResponse struct {
	AIText       string `json:"ai_text"`
	ProviderUsed string `json:"provider_used"`
}

func (p *HTTPProvider) Close() error { return nil }

func (p *HTTPProvider) Generate(ctx context.Context, req Request) (Response, error) {
	msgs := req.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	var out httpResponse
	err := p.client.PostJSON(ctx, p.path, httpRequest{
		Messages:          msgs,
		InterviewSettings: req.Settings,
		UserPlan:          req.Plan,
		IsInitial:         req.IsInitial,
		Candidate:         req.Candidate,
	}, &out)
	if err != nil {
		return Response{}, err
	}
	if out.AIText == "" {
		return Response{}, errors.New("llm: empty ai_text")
	}
	return Response{Text: out.AIText, ProviderUsed: out.ProviderUsed}, nil
}
