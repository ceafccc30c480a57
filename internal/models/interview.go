package models

import "time"

type MessageRole string

const (
	RoleAI   MessageRole = "ai"
	RoleUser MessageRole = "user"
)

// Message is one entry of the interview conversation. AudioURL is set after
// speech synthesis for AI messages.
type Message struct {
	ID        string      `bson:"id" json:"id"`
	Role      MessageRole `bson:"role" json:"role"`
	Text      string      `bson:"text" json:"text"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	AudioURL  string      `bson:"audio_url,omitempty" json:"audioUrl,omitempty"`
}

type TranscriptChunk struct {
	ID         string    `bson:"id" json:"id"`
	Text       string    `bson:"text" json:"text"`
	IsFinal    bool      `bson:"is_final" json:"isFinal"`
	Confidence float64   `bson:"confidence" json:"confidence"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}

const (
	InterviewTechnical  = "technical"
	InterviewBehavioral = "behavioral"
	InterviewHR         = "hr"
	InterviewMixed      = "mixed"

	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// InterviewSettings is replaced wholesale on every update.
type InterviewSettings struct {
	Role               string  `bson:"role" json:"role"`
	Type               string  `bson:"type" json:"type"`
	Difficulty         string  `bson:"difficulty" json:"difficulty"`
	Duration           int     `bson:"duration" json:"duration"` // minutes
	Language           string  `bson:"language" json:"language"`
	Voice              string  `bson:"voice" json:"voice"`
	Pace               float64 `bson:"pace" json:"pace"`
	Pitch              float64 `bson:"pitch" json:"pitch"`
	TargetLanguageCode string  `bson:"target_language_code" json:"targetLanguageCode"`
}

func DefaultInterviewSettings() InterviewSettings {
	return InterviewSettings{
		Role:               "Software Engineer",
		Type:               InterviewTechnical,
		Difficulty:         DifficultyMedium,
		Duration:           10,
		Language:           "en-US",
		Voice:              "anushka",
		Pace:               1.0,
		Pitch:              0,
		TargetLanguageCode: "en-IN",
	}
}

func ValidInterviewType(t string) bool {
	switch t {
	case InterviewTechnical, InterviewBehavioral, InterviewHR, InterviewMixed:
		return true
	}
	return false
}

func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Candidate is the profile context forwarded to the language model.
type Candidate struct {
	Name   string   `json:"name,omitempty"`
	CVText string   `json:"cv_text,omitempty"`
	Skills []string `json:"skills,omitempty"`
}
