// Package moderation labels message text and detects crisis content. Every
// classifier result is validated into the closed label sets before use, and
// the Guard never lets a slow or failing classifier hold up delivery.
package moderation

import (
	"context"
	"fmt"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/models"
)

// Classifier is the external labelling service.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Analysis, error)
	DetectCrisis(ctx context.Context, text string) (models.CrisisAssessment, error)
}

// Assistant drafts text for participants: conversation summaries and reply
// suggestions. Nothing it returns is stored.
type Assistant interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	Suggest(ctx context.Context, text string, emotion models.Emotion, supportType models.SupportType) ([]string, error)
}

// Unavailable is used when no classifier is configured. Every call fails, so
// the Guard always takes the neutral path.
type Unavailable struct{}

func (Unavailable) Classify(context.Context, string) (models.Analysis, error) {
	return models.Analysis{}, fmt.Errorf("%w: not configured", chaterr.ErrClassifierUnavailable)
}

func (Unavailable) DetectCrisis(context.Context, string) (models.CrisisAssessment, error) {
	return models.CrisisAssessment{}, fmt.Errorf("%w: not configured", chaterr.ErrClassifierUnavailable)
}

func (Unavailable) Summarize(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: not configured", chaterr.ErrClassifierUnavailable)
}

func (Unavailable) Suggest(context.Context, string, models.Emotion, models.SupportType) ([]string, error) {
	return nil, fmt.Errorf("%w: not configured", chaterr.ErrClassifierUnavailable)
}
