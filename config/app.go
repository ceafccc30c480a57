package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// App holds the settings read from the environment at startup.
type App struct {
	Port     string
	LogLevel string

	MongoURI         string
	MongoDB          string
	MongoMaxPool     uint64
	PostgresURI      string
	PostgresMaxConns int
	RedisAddr        string // host:port or redis:// URL

	SessionCap      time.Duration
	EarlyDisconnect time.Duration
	QuestionLimit   time.Duration
	StartTimeout    time.Duration

	VADThreshold float64
	VADSilence   time.Duration
	VADPoll      time.Duration
	SampleRate   int

	StartingCredits int
	MaxEarlyRefunds int

	STTProvider   string // google|http
	STTURL        string
	STTToken      string
	LLMProvider   string // router|http
	LLMURL        string
	LLMToken      string
	TTSURL        string
	TTSToken      string
	RemoteTimeout time.Duration

	VertexProject  string
	VertexLocation string
	VertexModel    string
	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIModel    string

	GCSBucket string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	ReportWorkers int
	JournalTTL    time.Duration
	WSMessageRate float64
	WSBurst       int
	WSOrigins     []string
}

// Load reads the environment, applies defaults and validates the result.
func Load() (*App, error) {
	var errs []error
	d := func(key string, def time.Duration, unit time.Duration) time.Duration {
		v, err := envNumber(key, float64(def/unit))
		if err != nil {
			errs = append(errs, err)
		}
		return time.Duration(v * float64(unit))
	}
	n := func(key string, def int) int {
		v, err := envNumber(key, float64(def))
		if err != nil {
			errs = append(errs, err)
		}
		return int(v)
	}
	f := func(key string, def float64) float64 {
		v, err := envNumber(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	a := &App{
		Port:     env("PORT", "8080"),
		LogLevel: env("LOG_LEVEL", "info"),

		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          env("MONGO_DB", "yoointerview"),
		MongoMaxPool:     uint64(max(n("MONGO_MAX_POOL_SIZE", 20), 1)),
		PostgresURI:      os.Getenv("POSTGRES_URI"),
		PostgresMaxConns: max(n("POSTGRES_MAX_CONNS", 50), 1),
		RedisAddr:        env("REDIS_ADDR", env("REDIS_URI", os.Getenv("REDIS_URL"))),

		SessionCap:      d("SESSION_MAX_MINUTES", 10*time.Minute, time.Minute),
		EarlyDisconnect: d("EARLY_DISCONNECT_MINUTES", 3*time.Minute, time.Minute),
		QuestionLimit:   d("QUESTION_SECONDS", 120*time.Second, time.Second),
		StartTimeout:    d("SESSION_START_TIMEOUT_SECONDS", 120*time.Second, time.Second),

		VADThreshold: f("VAD_SILENCE_THRESHOLD", 30),
		VADSilence:   d("VAD_SILENCE_MS", 1500*time.Millisecond, time.Millisecond),
		VADPoll:      d("VAD_POLL_MS", 100*time.Millisecond, time.Millisecond),
		SampleRate:   n("PCM_SAMPLE_RATE", 16000),

		StartingCredits: n("STARTING_CREDITS", 3),
		MaxEarlyRefunds: n("MAX_EARLY_REFUNDS", 3),

		STTProvider:   strings.ToLower(env("STT_PROVIDER", "http")),
		STTURL:        os.Getenv("STT_URL"),
		STTToken:      os.Getenv("STT_TOKEN"),
		LLMProvider:   strings.ToLower(env("LLM_PROVIDER", "router")),
		LLMURL:        os.Getenv("LLM_URL"),
		LLMToken:      os.Getenv("LLM_TOKEN"),
		TTSURL:        os.Getenv("TTS_URL"),
		TTSToken:      os.Getenv("TTS_TOKEN"),
		RemoteTimeout: d("REMOTE_TIMEOUT_SECONDS", 30*time.Second, time.Second),

		VertexProject:  os.Getenv("VERTEX_PROJECT_ID"),
		VertexLocation: env("VERTEX_LOCATION", "us-central1"),
		VertexModel:    env("VERTEX_MODEL", "gemini-1.5-flash"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),

		GCSBucket: os.Getenv("GCS_BUCKET"),

		JWTSecret:   os.Getenv("SUPABASE_JWT_SECRET"),
		JWTIssuer:   os.Getenv("SUPABASE_JWT_ISSUER"),
		JWTAudience: os.Getenv("SUPABASE_JWT_AUDIENCE"),

		ReportWorkers: n("REPORT_WORKERS", 2),
		JournalTTL:    d("JOURNAL_TTL_HOURS", 24*time.Hour, time.Hour),
		WSMessageRate: f("WS_MESSAGES_PER_SECOND", 50),
		WSBurst:       n("WS_MESSAGE_BURST", 100),
		WSOrigins:     list("WS_ALLOWED_ORIGINS"),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) Validate() error {
	var errs []error
	for k, v := range map[string]string{
		"MONGO_URI":    a.MongoURI,
		"POSTGRES_URI": a.PostgresURI,
		"REDIS_ADDR":   a.RedisAddr,
	} {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", k))
		}
	}
	positive := map[string]time.Duration{
		"SESSION_MAX_MINUTES":      a.SessionCap,
		"EARLY_DISCONNECT_MINUTES": a.EarlyDisconnect,
		"QUESTION_SECONDS":         a.QuestionLimit,
		"VAD_SILENCE_MS":           a.VADSilence,
		"VAD_POLL_MS":              a.VADPoll,
		"REMOTE_TIMEOUT_SECONDS":   a.RemoteTimeout,
	}
	for k, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", k))
		}
	}
	if a.EarlyDisconnect >= a.SessionCap {
		errs = append(errs, errors.New("EARLY_DISCONNECT_MINUTES must be below SESSION_MAX_MINUTES"))
	}
	if a.VADThreshold < 0 || a.VADThreshold > 255 {
		errs = append(errs, errors.New("VAD_SILENCE_THRESHOLD must be within 0..255"))
	}
	switch a.STTProvider {
	case "google":
	case "http":
		if a.STTURL == "" {
			errs = append(errs, errors.New("STT_URL is required when STT_PROVIDER=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STT_PROVIDER %q", a.STTProvider))
	}
	switch a.LLMProvider {
	case "router":
		if a.VertexProject == "" {
			errs = append(errs, errors.New("VERTEX_PROJECT_ID is required when LLM_PROVIDER=router"))
		}
	case "http":
		if a.LLMURL == "" {
			errs = append(errs, errors.New("LLM_URL is required when LLM_PROVIDER=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", a.LLMProvider))
	}
	if a.TTSURL == "" {
		errs = append(errs, errors.New("TTS_URL is required"))
	}
	if a.JWTSecret == "" {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required"))
	}
	return errors.Join(errs...)
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func list(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envNumber(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
