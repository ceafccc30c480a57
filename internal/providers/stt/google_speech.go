package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	// SampleRateHz applies to LINEAR16 input.
	SampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context, sampleRate int32) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &GoogleSpeech{c: c, SampleRateHz: sampleRate}, nil
}

func (g *GoogleSpeech) Name() string { return "google-speech" }

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// language example: "en-US", "hi-IN"
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, mimeType, language string) (string, float64, error) {
	if language == "" {
		language = "en-US"
	}

	cfg, err := recognitionConfig(mimeType, g.SampleRateHz)
	if err != nil {
		return "", 0, err
	}
	cfg.LanguageCode = language
	cfg.EnableAutomaticPunctuation = true

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", 0, err
	}

	var bestText string
	var bestConf float64
	for _, r := range resp.Results {
		for _, alt := range r.Alternatives {
			if alt.Transcript != "" && float64(alt.Confidence) >= bestConf {
				bestText = alt.Transcript
				bestConf = float64(alt.Confidence)
			}
		}
	}

	return bestText, bestConf, nil
}

func recognitionConfig(mimeType string, pcmRate int32) (*speechpb.RecognitionConfig, error) {
	mt := strings.ToLower(strings.ReplaceAll(mimeType, " ", ""))
	switch {
	case strings.HasPrefix(mt, "audio/webm"):
		return &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_WEBM_OPUS,
			SampleRateHertz: 48000,
		}, nil
	case strings.HasPrefix(mt, "audio/ogg"):
		return &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_OGG_OPUS,
			SampleRateHertz: 48000,
		}, nil
	case mt == "audio/wav", mt == "audio/x-wav", mt == "audio/l16", mt == "":
		return &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: pcmRate,
		}, nil
	default:
		return nil, fmt.Errorf("google speech: unsupported mime type %q", mimeType)
	}
}
