package models

import (
	"strings"
	"time"
)

type Emotion string

const (
	EmotionAnxiety    Emotion = "anxiety"
	EmotionDepression Emotion = "depression"
	EmotionStress     Emotion = "stress"
	EmotionLoneliness Emotion = "loneliness"
	EmotionGrief      Emotion = "grief"
	EmotionAnger      Emotion = "anger"
	EmotionFear       Emotion = "fear"
	EmotionSadness    Emotion = "sadness"
	EmotionJoy        Emotion = "joy"
	EmotionHope       Emotion = "hope"
	EmotionGratitude  Emotion = "gratitude"
	EmotionConfusion  Emotion = "confusion"
	EmotionOverwhelm  Emotion = "overwhelm"
	EmotionPeace      Emotion = "peace"
	EmotionExcitement Emotion = "excitement"
	EmotionCalm       Emotion = "calm"
	EmotionNeutral    Emotion = "neutral"
)

var emotions = setOf(
	EmotionAnxiety, EmotionDepression, EmotionStress, EmotionLoneliness,
	EmotionGrief, EmotionAnger, EmotionFear, EmotionSadness, EmotionJoy,
	EmotionHope, EmotionGratitude, EmotionConfusion, EmotionOverwhelm,
	EmotionPeace, EmotionExcitement, EmotionCalm, EmotionNeutral,
)

// ParseEmotion maps free-form classifier output onto the closed set.
// Unknown values come back as EmotionNeutral with ok=false.
func ParseEmotion(s string) (Emotion, bool) {
	return parse(s, emotions, EmotionNeutral)
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

var sentiments = setOf(SentimentPositive, SentimentNegative, SentimentNeutral)

func ParseSentiment(s string) (Sentiment, bool) {
	return parse(s, sentiments, SentimentNeutral)
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyCrisis Urgency = "crisis"
)

var urgencies = setOf(UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCrisis)

func ParseUrgency(s string) (Urgency, bool) {
	return parse(s, urgencies, UrgencyLow)
}

type SupportType string

const (
	SupportListening        SupportType = "listening"
	SupportAdvice           SupportType = "advice"
	SupportEncouragement    SupportType = "encouragement"
	SupportSharedExperience SupportType = "shared_experience"
	SupportGeneral          SupportType = "general"
)

var supportTypes = setOf(SupportListening, SupportAdvice, SupportEncouragement, SupportSharedExperience, SupportGeneral)

func ParseSupportType(s string) (SupportType, bool) {
	return parse(s, supportTypes, SupportGeneral)
}

type CrisisLevel string

const (
	CrisisLow      CrisisLevel = "low"
	CrisisMedium   CrisisLevel = "medium"
	CrisisHigh     CrisisLevel = "high"
	CrisisCritical CrisisLevel = "critical"
)

var crisisLevels = setOf(CrisisLow, CrisisMedium, CrisisHigh, CrisisCritical)

func ParseCrisisLevel(s string) (CrisisLevel, bool) {
	return parse(s, crisisLevels, CrisisLow)
}

type Reaction string

const (
	ReactionHeart     Reaction = "heart"
	ReactionThumbsUp  Reaction = "thumbsup"
	ReactionHug       Reaction = "hug"
	ReactionPray      Reaction = "pray"
	ReactionLightbulb Reaction = "lightbulb"
)

var reactions = setOf(ReactionHeart, ReactionThumbsUp, ReactionHug, ReactionPray, ReactionLightbulb)

// ParseReaction is strict: there is no fallback reaction.
func ParseReaction(s string) (Reaction, bool) {
	r := Reaction(strings.ToLower(strings.TrimSpace(s)))
	_, ok := reactions[r]
	return r, ok
}

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

var messageTypes = setOf(MessageText, MessageImage, MessageFile, MessageSystem)

// ParseMessageType defaults an empty value to text and rejects anything else
// outside the set.
func ParseMessageType(s string) (MessageType, bool) {
	if strings.TrimSpace(s) == "" {
		return MessageText, true
	}
	t := MessageType(strings.ToLower(strings.TrimSpace(s)))
	_, ok := messageTypes[t]
	return t, ok
}

// Analysis is the classify() half of a classification.
type Analysis struct {
	Emotion     Emotion     `json:"emotion"`
	Sentiment   Sentiment   `json:"sentiment"`
	Urgency     Urgency     `json:"urgency"`
	SupportType SupportType `json:"supportType"`
	Confidence  float64     `json:"confidence"`
}

// NeutralAnalysis is substituted whenever the classifier fails or times out.
func NeutralAnalysis() Analysis {
	return Analysis{
		Emotion:     EmotionNeutral,
		Sentiment:   SentimentNeutral,
		Urgency:     UrgencyLow,
		SupportType: SupportGeneral,
		Confidence:  0.5,
	}
}

// CrisisAssessment is the detectCrisis() half of a classification.
type CrisisAssessment struct {
	IsCrisis                   bool        `json:"isCrisis"`
	Level                      CrisisLevel `json:"crisisLevel"`
	Recommendations            []string    `json:"recommendations"`
	RequiresImmediateAttention bool        `json:"requiresImmediateAttention"`
}

func NoCrisis() CrisisAssessment {
	return CrisisAssessment{Level: CrisisLow}
}

// Classification is the combined, already-validated moderation result.
type Classification struct {
	Analysis   Analysis
	Crisis     CrisisAssessment
	AnalyzedAt time.Time
	// Fallback is set when either half was replaced by its default.
	Fallback bool
}

// Meta returns the persisted label set.
func (c Classification) Meta() ModerationMeta {
	return ModerationMeta{
		Emotion:     c.Analysis.Emotion,
		Sentiment:   c.Analysis.Sentiment,
		Urgency:     c.Analysis.Urgency,
		SupportType: c.Analysis.SupportType,
	}
}

// AnalysisMeta returns the persisted classifier metadata.
func (c Classification) AnalysisMeta() AnalysisMeta {
	return AnalysisMeta{
		DetectedEmotion: c.Analysis.Emotion,
		SentimentScore:  c.Analysis.Confidence,
		UrgencyLevel:    c.Analysis.Urgency,
		CrisisLevel:     c.Crisis.Level,
		AnalyzedAt:      c.AnalyzedAt,
	}
}

// CrisisEvent is derived per message and pushed to the sender only.
type CrisisEvent struct {
	RoomID                     string      `json:"roomId"`
	Level                      CrisisLevel `json:"level"`
	Recommendations            []string    `json:"recommendations"`
	RequiresImmediateAttention bool        `json:"requiresImmediateAttention"`
	DetectedAt                 time.Time   `json:"detectedAt"`
}

type enum interface {
	~string
}

func setOf[T enum](values ...T) map[T]struct{} {
	m := make(map[T]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func parse[T enum](s string, set map[T]struct{}, fallback T) (T, bool) {
	v := T(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := set[v]; ok {
		return v, true
	}
	return fallback, false
}
