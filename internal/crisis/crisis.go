// Package crisis turns classifier output into urgent events for the sender.
package crisis

import (
	"time"

	"supportchat/backend/internal/config"
	"supportchat/backend/internal/metrics"
	"supportchat/backend/internal/models"

	"go.uber.org/zap"
)

// Evaluate derives a crisis event from a classification. It returns false when
// neither the crisis flag nor crisis urgency is set.
func Evaluate(c models.Classification) (*models.CrisisEvent, bool) {
	if !c.Crisis.IsCrisis && c.Analysis.Urgency != models.UrgencyCrisis {
		return nil, false
	}

	level := c.Crisis.Level
	if !c.Crisis.IsCrisis || level == "" {
		// Urgency alone flagged it, or the detector gave no level.
		level = models.CrisisHigh
	}

	recs := c.Crisis.Recommendations
	if len(recs) == 0 {
		recs = config.FallbackCrisisRecommendations
	}
	recs = append([]string(nil), recs...)

	return &models.CrisisEvent{
		Level:                      level,
		Recommendations:            recs,
		RequiresImmediateAttention: c.Crisis.RequiresImmediateAttention || level == models.CrisisCritical,
		DetectedAt:                 c.AnalyzedAt,
	}, true
}

// Deliverer pushes an event to every live connection of a user.
type Deliverer interface {
	SendToUser(userID string, ev models.Event) int
}

// Escalator delivers crisis events. It has no persistence and no retries.
type Escalator struct {
	deliverer Deliverer
	log       *zap.Logger
}

func NewEscalator(d Deliverer, log *zap.Logger) *Escalator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Escalator{deliverer: d, log: log.Named("crisis")}
}

// Escalate evaluates c and, on a crisis, sends crisis_detected to userID's
// connections. It reports whether an event was produced.
func (e *Escalator) Escalate(userID, roomID string, c models.Classification) bool {
	ev, ok := Evaluate(c)
	if !ok {
		return false
	}
	ev.RoomID = roomID
	if ev.DetectedAt.IsZero() {
		ev.DetectedAt = time.Now().UTC()
	}

	delivered := e.deliverer.SendToUser(userID, models.NewEvent(models.EvtCrisisDetected, ev))
	metrics.CrisisEvents.WithLabelValues(string(ev.Level)).Inc()

	e.log.Warn("crisis detected",
		zap.String("user_id", userID),
		zap.String("room_id", roomID),
		zap.String("level", string(ev.Level)),
		zap.Int("connections", delivered),
	)
	return true
}
