package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/providers/remote"
)

func TestHTTPProvider_Synthesize(t *testing.T) {
	wav := []byte("RIFF....WAVE")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in httpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Tell me about a hard bug.", in.Text)
		assert.Equal(t, "anushka", in.Voice)
		assert.Equal(t, "en-IN", in.TargetLanguageCode)
		assert.Equal(t, 1.2, in.Pace)
		_ = json.NewEncoder(w).Encode(httpResponse{AudioData: "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav)})
	}))
	defer srv.Close()

	p := NewHTTPProvider(remote.New(srv.URL, "", time.Second), "", "")
	out, err := p.Synthesize(context.Background(), Request{
		Text:               "Tell me about a hard bug.",
		Voice:              "anushka",
		TargetLanguageCode: "en-IN",
		Pace:               1.2,
	})
	require.NoError(t, err)
	assert.Equal(t, wav, out.Data)
	assert.Equal(t, "audio/wav", out.MimeType)
}

func TestHTTPProvider_SynthesizeEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"audioData":""}`))
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(remote.New(srv.URL, "", time.Second), "", "").
		Synthesize(context.Background(), Request{Text: "hi"})
	require.Error(t, err)
}
