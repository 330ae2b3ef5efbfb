package moderation

import (
	"context"
	"fmt"
	"time"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/config"
	"supportchat/backend/internal/metrics"
	"supportchat/backend/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Guard runs both classifier calls in parallel under a fixed timeout and
// replaces any failed half with its neutral default. Classify never fails.
type Guard struct {
	classifier Classifier
	assistant  Assistant
	timeout    time.Duration
	log        *zap.Logger
	now        func() time.Time
}

func NewGuard(c Classifier, timeout time.Duration, log *zap.Logger) *Guard {
	if c == nil {
		c = Unavailable{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	a, ok := c.(Assistant)
	if !ok {
		a = Unavailable{}
	}
	return &Guard{
		classifier: c,
		assistant:  a,
		timeout:    timeout,
		log:        log.Named("moderation"),
		now:        time.Now,
	}
}

// Classify labels text. A crisis result forces urgency to crisis.
func (g *Guard) Classify(ctx context.Context, text string) models.Classification {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var (
		analysis   models.Analysis
		assessment models.CrisisAssessment
		analysisOK bool
		crisisOK   bool
		eg         errgroup.Group
	)

	eg.Go(func() error {
		a, err := bounded(ctx, "classify", g.classifier.Classify, text)
		if err != nil {
			g.fallback("classify", err)
			return nil
		}
		analysis, analysisOK = a, true
		return nil
	})
	eg.Go(func() error {
		c, err := bounded(ctx, "detect_crisis", g.classifier.DetectCrisis, text)
		if err != nil {
			g.fallback("detect_crisis", err)
			return nil
		}
		assessment, crisisOK = c, true
		return nil
	})
	_ = eg.Wait()

	out := models.Classification{
		Analysis:   analysis,
		Crisis:     assessment,
		AnalyzedAt: g.now().UTC(),
	}
	if !analysisOK {
		out.Analysis = models.NeutralAnalysis()
		out.Fallback = true
	}
	if !crisisOK {
		out.Crisis = models.NoCrisis()
		out.Fallback = true
	}
	if out.Crisis.IsCrisis {
		out.Analysis.Urgency = models.UrgencyCrisis
	}
	return out
}

// Summarize condenses a transcript. A failed or slow call yields a generic
// summary.
func (g *Guard) Summarize(ctx context.Context, transcript string) string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	summary, err := bounded(ctx, "summarize", g.assistant.Summarize, transcript)
	if err != nil {
		g.fallback("summarize", err)
		return config.FallbackSummary
	}
	return summary
}

// Suggest drafts replies to text. A failed or slow call yields the stock
// replies.
func (g *Guard) Suggest(ctx context.Context, text string, emotion models.Emotion, supportType models.SupportType) []string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	suggest := func(ctx context.Context, text string) ([]string, error) {
		return g.assistant.Suggest(ctx, text, emotion, supportType)
	}
	suggestions, err := bounded(ctx, "suggest", suggest, text)
	if err != nil {
		g.fallback("suggest", err)
		return append([]string(nil), config.FallbackSuggestions...)
	}
	return suggestions
}

func (g *Guard) fallback(call string, err error) {
	metrics.ClassifierFallbacks.WithLabelValues(call).Inc()
	g.log.Warn("classifier call failed, using neutral fallback", zap.String("call", call), zap.Error(err))
}

type outcome[T any] struct {
	value T
	err   error
}

// bounded returns when fn does or when ctx expires, whichever is first. A
// classifier that ignores its context is abandoned, not waited on.
func bounded[T any](ctx context.Context, call string, fn func(context.Context, string) (T, error), text string) (T, error) {
	start := time.Now()
	defer func() {
		metrics.ClassifierDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
	}()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- outcome[T]{zero, fmt.Errorf("%w: panic: %v", chaterr.ErrClassifierUnavailable, r)}
			}
		}()
		v, err := fn(ctx, text)
		done <- outcome[T]{v, err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", chaterr.ErrClassifierUnavailable, ctx.Err())
	}
}
