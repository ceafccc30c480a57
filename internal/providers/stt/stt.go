package stt

import "context"

type Provider interface {
	// Transcribe returns the best transcript of one utterance.
	Transcribe(ctx context.Context, audio []byte, mimeType, language string) (text string, confidence float64, err error)
	Name() string
	Close() error
}
