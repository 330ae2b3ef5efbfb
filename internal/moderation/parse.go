package moderation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/models"
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type rawAnalysis struct {
	Emotion     string   `json:"emotion"`
	Sentiment   string   `json:"sentiment"`
	Urgency     string   `json:"urgency"`
	SupportType string   `json:"supportType"`
	Confidence  *float64 `json:"confidence"`
}

type rawCrisis struct {
	IsCrisis                   bool     `json:"isCrisis"`
	CrisisLevel                string   `json:"crisisLevel"`
	Recommendations            []string `json:"recommendations"`
	RequiresImmediateAttention bool     `json:"requiresImmediateAttention"`
}

// extractJSON pulls the first {...} block out of a model reply, which is
// often wrapped in prose or a code fence.
func extractJSON(reply string) ([]byte, error) {
	match := jsonObject.FindString(reply)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", chaterr.ErrClassifierUnavailable)
	}
	return []byte(match), nil
}

// ParseAnalysis converts a classifier reply into an Analysis. Labels outside
// the closed sets fall back to their neutral value.
func ParseAnalysis(reply string) (models.Analysis, error) {
	body, err := extractJSON(reply)
	if err != nil {
		return models.Analysis{}, err
	}
	var raw rawAnalysis
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.Analysis{}, fmt.Errorf("%w: decode analysis: %v", chaterr.ErrClassifierUnavailable, err)
	}

	a := models.NeutralAnalysis()
	a.Emotion, _ = models.ParseEmotion(raw.Emotion)
	a.Sentiment, _ = models.ParseSentiment(raw.Sentiment)
	a.Urgency, _ = models.ParseUrgency(raw.Urgency)
	a.SupportType, _ = models.ParseSupportType(raw.SupportType)
	if raw.Confidence != nil {
		a.Confidence = clamp01(*raw.Confidence)
	}
	return a, nil
}

// ParseCrisis converts a crisis-detection reply into a CrisisAssessment.
func ParseCrisis(reply string) (models.CrisisAssessment, error) {
	body, err := extractJSON(reply)
	if err != nil {
		return models.CrisisAssessment{}, err
	}
	var raw rawCrisis
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.CrisisAssessment{}, fmt.Errorf("%w: decode crisis: %v", chaterr.ErrClassifierUnavailable, err)
	}

	level, ok := models.ParseCrisisLevel(raw.CrisisLevel)
	if !ok && raw.IsCrisis {
		level = models.CrisisHigh
	}

	recs := make([]string, 0, len(raw.Recommendations))
	for _, r := range raw.Recommendations {
		if r = strings.TrimSpace(r); r != "" {
			recs = append(recs, r)
		}
	}

	return models.CrisisAssessment{
		IsCrisis:                   raw.IsCrisis,
		Level:                      level,
		Recommendations:            recs,
		RequiresImmediateAttention: raw.RequiresImmediateAttention,
	}, nil
}

// maxSuggestions caps how many drafted replies are passed on.
const maxSuggestions = 3

// ParseSuggestions extracts the reply list from a suggestion reply. Blank
// entries are dropped; a reply with none left is an error.
func ParseSuggestions(reply string) ([]string, error) {
	body, err := extractJSON(reply)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode suggestions: %v", chaterr.ErrClassifierUnavailable, err)
	}

	out := make([]string, 0, maxSuggestions)
	for _, s := range raw.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxSuggestions {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no suggestions in reply", chaterr.ErrClassifierUnavailable)
	}
	return out, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
