package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/yoockh/yoointerview/internal/providers/remote"
)

// HTTPProvider calls a text-to-speech function returning base64 audio.
type HTTPProvider struct {
	client   *remote.Client
	path     string
	name     string
	mimeType string
}

func NewHTTPProvider(client *remote.Client, path, name string) *HTTPProvider {
	if path == "" {
		path = "/text-to-speech"
	}
	if name == "" {
		name = "sarvam"
	}
	return &HTTPProvider{client: client, path: path, name: name, mimeType: "audio/wav"}
}

type httpRequest struct {
	Text               string  `json:"text"`
	Voice              string  `json:"voice"`
	TargetLanguageCode string  `json:"target_language_code"`
	Pace               float64 `json:"pace"`
	Pitch              float64 `json:"pitch"`
}

type httpResponse struct {
	AudioData string `json:"audioData"`
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Close() error { return nil }

func (p *HTTPProvider) Synthesize(ctx context.Context, req Request) (Audio, error) {
	var out httpResponse
	err := p.client.PostJSON(ctx, p.path, httpRequest{
		Text:               req.Text,
		Voice:              req.Voice,
		TargetLanguageCode: req.TargetLanguageCode,
		Pace:               req.Pace,
		Pitch:              req.Pitch,
	}, &out)
	if err != nil {
		return Audio{}, err
	}
	if out.AudioData == "" {
		return Audio{}, errors.New("tts: empty audioData")
	}
	data, err := base64.StdEncoding.DecodeString(remote.StripDataURL(out.AudioData))
	if err != nil {
		return Audio{}, fmt.Errorf("tts: decode audio: %w", err)
	}
	return Audio{Data: data, MimeType: p.mimeType}, nil
}
