package tts

import "context"

type Request struct {
	Text               string
	Voice              string
	TargetLanguageCode string
	Pace               float64
	Pitch              float64
}

type Audio struct {
	Data     []byte
	MimeType string
}

type Provider interface {
	Synthesize(ctx context.Context, req Request) (Audio, error)
	Name() string
	Close() error
}
