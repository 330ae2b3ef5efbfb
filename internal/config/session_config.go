package config

import "time"

const (
	// Messages
	MaxContentLength     = 2000
	DeletedPlaceholder   = "[Message deleted]"
	DefaultHistoryLimit  = 50
	MaxHistoryLimit      = 100
	DefaultEditWindow    = 24 * time.Hour
	DefaultClassifierTTL = 5 * time.Second

	// Rooms
	DefaultArchiveAfterHours = 24

	// Typing
	DefaultTypingTTL = 10 * time.Second
)

// SuggestionsBySupportType are the canned prompts offered to the other
// participants when a message asks for a specific kind of support.
var SuggestionsBySupportType = map[string][]string{
	"listening": {
		"I hear you and I'm here to listen.",
		"Do you want to tell me more about how you're feeling?",
	},
	"advice": {
		"Would it help to break this into smaller steps?",
		"What have you already tried so far?",
	},
	"encouragement": {
		"You're not alone in this.",
		"It takes courage to share this. I'm glad you did.",
	},
	"shared_experience": {
		"I've been through something similar. Would it help to hear about it?",
		"That sounds really challenging. How are you feeling right now?",
	},
}

// FallbackSuggestions are offered when drafted replies are unavailable.
var FallbackSuggestions = []string{
	"I hear you and I'm here to listen.",
	"That sounds really challenging. How are you feeling right now?",
	"You're not alone in this. Would you like to talk more about it?",
}

const (
	// FallbackSummary stands in for a summary the assistant could not write.
	FallbackSummary = "A supportive conversation took place between peers."
	// EmptySummary is returned for rooms with nothing to summarize.
	EmptySummary = "No messages to summarize"
)

// FallbackCrisisRecommendations are sent when the classifier flags a crisis
// without recommending anything.
var FallbackCrisisRecommendations = []string{
	"Consider reaching out to a crisis line or emergency services",
	"Talk to someone you trust about how you are feeling",
	"You are not alone, support is available right now",
}
