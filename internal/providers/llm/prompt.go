package llm

import (
	"fmt"
	"strings"

	"github.com/yoockh/yoointerview/internal/models"
)

// SystemPrompt renders the interviewer persona for the given settings.
func SystemPrompt(s models.InterviewSettings, c *models.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional interviewer running a %s mock interview", orDefault(s.Type, models.InterviewTechnical))
	if s.Role != "" {
		fmt.Fprintf(&b, " for a %s position", s.Role)
	}
	fmt.Fprintf(&b, ". Difficulty: %s.", orDefault(s.Difficulty, models.DifficultyMedium))
	if s.Duration > 0 {
		fmt.Fprintf(&b, " The interview lasts about %d minutes.", s.Duration)
	}
	b.WriteString(" Ask one question at a time, keep each reply under 80 words, and react briefly to the candidate's previous answer before moving on.")
	b.WriteString(" Your replies are spoken aloud, so avoid markdown, lists and code blocks.")
	if s.Language != "" && !strings.HasPrefix(strings.ToLower(s.Language), "en") {
		fmt.Fprintf(&b, " Conduct the interview in the language with code %s.", s.Language)
	}

	if c != nil {
		if c.Name != "" {
			fmt.Fprintf(&b, "\n\nCandidate name: %s.", c.Name)
		}
		if len(c.Skills) > 0 {
			fmt.Fprintf(&b, "\nListed skills: %s.", strings.Join(c.Skills, ", "))
		}
		if cv := strings.TrimSpace(c.CVText); cv != "" {
			if len(cv) > 4000 {
				cv = cv[:4000]
			}
			b.WriteString("\nResume:\n")
			b.WriteString(cv)
		}
	}
	return b.String()
}

// TurnInstruction is sent when the model must speak without a fresh candidate
// answer: the opening question, or an explicit request for the next one.
func TurnInstruction(req Request) string {
	if req.IsInitial || len(req.Messages) == 0 {
		return "Greet the candidate in one sentence and ask the first interview question."
	}
	return "Ask the next interview question."
}

// needsInstruction reports whether the history ends without a user turn.
func needsInstruction(req Request) bool {
	return req.IsInitial || len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Role != RoleUser
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
