package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) Generate(ctx context.Context, req Request) (Response, error) {
	m := v.client.GenerativeModel(v.modelName)
	m.SystemInstruction = &vertexgenai.Content{
		Parts: []vertexgenai.Part{vertexgenai.Text(SystemPrompt(req.Settings, req.Candidate))},
	}

	history, last := geminiHistory(req)
	cs := m.StartChat()
	cs.History = history

	it := cs.SendMessageStream(ctx, vertexgenai.Text(last))
	var full strings.Builder
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return Response{}, err
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
					full.WriteString(string(t))
				}
			}
		}
	}

	text := strings.TrimSpace(full.String())
	if text == "" {
		return Response{}, errors.New("gemini: empty response")
	}
	return Response{Text: text, ProviderUsed: "gemini"}, nil
}

// geminiHistory splits the conversation into chat history and the message to
// send now.
func geminiHistory(req Request) ([]*vertexgenai.Content, string) {
	msgs := req.Messages
	var last string
	if needsInstruction(req) {
		last = TurnInstruction(req)
	} else {
		last = msgs[len(msgs)-1].Content
		msgs = msgs[:len(msgs)-1]
	}

	history := make([]*vertexgenai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &vertexgenai.Content{
			Role:  role,
			Parts: []vertexgenai.Part{vertexgenai.Text(m.Content)},
		})
	}
	return history, last
}
