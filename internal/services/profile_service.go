package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/yoockh/yoointerview/internal/cache"
	"github.com/yoockh/yoointerview/internal/models"
	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/utils"
)

type ProfileService interface {
	GetMe(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, p *models.Profile) error
	// Update applies a partial edit, creating the profile when the user has
	// none yet.
	Update(ctx context.Context, userID string, patch ProfilePatch) (*models.Profile, error)
	// CandidateContext returns the CV summary handed to the interviewer
	// model. A user without a profile gets nil.
	CandidateContext(ctx context.Context, userID string) (*models.Candidate, error)
}

type profileService struct {
	profiles pgrepo.ProfileRepository
	cache    cache.Cache
	ttl      time.Duration
}

func NewProfileService(profiles pgrepo.ProfileRepository, c cache.Cache, ttl time.Duration) ProfileService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &profileService{profiles: profiles, cache: c, ttl: ttl}
}

func candidateKey(userID string) string { return "candidate:" + userID }

const (
	// maxCVChars bounds the CV text sent with every model call.
	maxCVChars = 4000

	maxStoredCVChars = 20000
	maxSkills        = 50
	maxSkillChars    = 64
)

// ProfilePatch is a partial profile edit. Nil fields are left untouched.
type ProfilePatch struct {
	FullName    *string          `json:"full_name,omitempty"`
	PhoneNumber *string          `json:"phone_number,omitempty"`
	CVText      *string          `json:"cv_text,omitempty"`
	Skills      *[]string        `json:"skills,omitempty"`
	Experience  *json.RawMessage `json:"experience,omitempty"`
	Education   *json.RawMessage `json:"education,omitempty"`
	Preferences *json.RawMessage `json:"preferences,omitempty"`
}

// normalizeSkills trims, drops blanks and removes case-insensitive duplicates.
func normalizeSkills(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if len([]rune(s)) > maxSkillChars {
			return nil, fmt.Errorf("skill %q is longer than %d characters", s, maxSkillChars)
		}
		k := strings.ToLower(s)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	if len(out) > maxSkills {
		return nil, fmt.Errorf("at most %d skills are allowed", maxSkills)
	}
	return out, nil
}

func jsonField(name string, raw *json.RawMessage) (datatypes.JSON, error) {
	if len(*raw) == 0 || !json.Valid(*raw) {
		return nil, fmt.Errorf("%s must be valid JSON", name)
	}
	return datatypes.JSON(*raw), nil
}

func (p ProfilePatch) apply(dst *models.Profile) error {
	if p.FullName != nil {
		dst.FullName = strings.TrimSpace(*p.FullName)
	}
	if p.PhoneNumber != nil {
		dst.PhoneNumber = strings.TrimSpace(*p.PhoneNumber)
	}
	if p.CVText != nil {
		if len([]rune(*p.CVText)) > maxStoredCVChars {
			return fmt.Errorf("cv_text is longer than %d characters", maxStoredCVChars)
		}
		dst.CVText = *p.CVText
	}
	if p.Skills != nil {
		skills, err := normalizeSkills(*p.Skills)
		if err != nil {
			return err
		}
		dst.Skills = skills
	}
	for _, f := range []struct {
		name string
		raw  *json.RawMessage
		dst  *datatypes.JSON
	}{
		{"experience", p.Experience, &dst.Experience},
		{"education", p.Education, &dst.Education},
		{"preferences", p.Preferences, &dst.Preferences},
	} {
		if f.raw == nil {
			continue
		}
		v, err := jsonField(f.name, f.raw)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

func (s *profileService) GetMe(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "ProfileService.GetMe"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}
	return p, nil
}

func (s *profileService) Upsert(ctx context.Context, p *models.Profile) error {
	const op = "ProfileService.Upsert"

	if p == nil || p.UserID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "profile.user_id is required", nil)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to upsert profile", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, candidateKey(p.UserID))
	}
	return nil
}

func (s *profileService) Update(ctx context.Context, userID string, patch ProfilePatch) (*models.Profile, error) {
	const op = "ProfileService.Update"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	p, err := s.profiles.GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		p = &models.Profile{UserID: userID}
	case err != nil:
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}

	if err := patch.apply(p); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.Upsert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *profileService) CandidateContext(ctx context.Context, userID string) (*models.Candidate, error) {
	const op = "ProfileService.CandidateContext"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	if s.cache != nil {
		var cached models.Candidate
		if hit, err := s.cache.GetJSON(ctx, candidateKey(userID), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	p, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}

	cv := p.CVText
	if r := []rune(cv); len(r) > maxCVChars {
		cv = string(r[:maxCVChars])
	}
	out := &models.Candidate{
		Name:   p.FullName,
		CVText: cv,
		Skills: []string(p.Skills),
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, candidateKey(userID), out, s.ttl)
	}
	return out, nil
}
