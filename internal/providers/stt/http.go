package stt

import (
	"context"
	"encoding/base64"

	"github.com/yoockh/yoointerview/internal/providers/remote"
)

// HTTPProvider calls a speech-to-text function that accepts base64 audio.
type HTTPProvider struct {
	client *remote.Client
	path   string
	name   string
}

func NewHTTPProvider(client *remote.Client, path, name string) *HTTPProvider {
	if path == "" {
		path = "/speech-to-text"
	}
	if name == "" {
		name = "deepgram"
	}
	return &HTTPProvider{client: client, path: path, name: name}
}

type httpRequest struct {
	AudioData string `json:"audioData"`
	MimeType  string `json:"mimeType"`
	Language  string `json:"language,omitempty"`
}

type httpResponse struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Close() error { return nil }

func (p *HTTPProvider) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, float64, error) {
	var out httpResponse
	err := p.client.PostJSON(ctx, p.path, httpRequest{
		AudioData: base64.StdEncoding.EncodeToString(audio),
		MimeType:  mimeType,
		Language:  language,
	}, &out)
	if err != nil {
		return "", 0, err
	}
	return out.Transcript, out.Confidence, nil
}
