package moderation

import (
	"context"
	"fmt"
	"strings"

	"supportchat/backend/internal/chaterr"
	"supportchat/backend/internal/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const analyzePrompt = `You label messages from an anonymous peer-support chat.
Reply with a single JSON object and nothing else:
{"emotion": one of anxiety, depression, stress, loneliness, grief, anger, fear, sadness, joy, hope, gratitude, confusion, overwhelm, peace, excitement, calm, neutral,
 "sentiment": one of positive, negative, neutral,
 "urgency": one of low, medium, high, crisis,
 "supportType": one of listening, advice, encouragement, shared_experience, general,
 "confidence": number between 0 and 1}`

const crisisPrompt = `You screen messages from an anonymous peer-support chat for crisis indicators:
suicidal thoughts or self-harm, severe distress, immediate danger, emergency situations.
Reply with a single JSON object and nothing else:
{"isCrisis": true or false,
 "crisisLevel": one of low, medium, high, critical,
 "recommendations": [short strings],
 "requiresImmediateAttention": true or false}`

const summarizePrompt = `You summarize conversations from an anonymous peer-support chat in 2-3 sentences.
Cover the main topics, the emotional themes, the support given and the overall tone.
Be concise and empathetic. Reply with the summary only.`

const suggestPrompt = `You help a peer supporter reply in an anonymous peer-support chat.
Offer 3 supportive replies, each under 100 words. Be empathetic and hopeful,
give no medical advice, and encourage professional help when it is needed.
Reply with a single JSON object and nothing else:
{"suggestions": ["...", "...", "..."]}`

// LLMClassifier talks to an OpenAI-compatible chat completions endpoint.
type LLMClassifier struct {
	client openai.Client
	model  string
}

// NewLLMClassifier builds a classifier. baseURL may be empty for the default
// endpoint. Retries are disabled; the Guard owns the time budget.
func NewLLMClassifier(baseURL, apiKey, model string) *LLMClassifier {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &LLMClassifier{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (models.Analysis, error) {
	reply, err := c.complete(ctx, analyzePrompt, text)
	if err != nil {
		return models.Analysis{}, err
	}
	return ParseAnalysis(reply)
}

func (c *LLMClassifier) DetectCrisis(ctx context.Context, text string) (models.CrisisAssessment, error) {
	reply, err := c.complete(ctx, crisisPrompt, text)
	if err != nil {
		return models.CrisisAssessment{}, err
	}
	return ParseCrisis(reply)
}

func (c *LLMClassifier) Summarize(ctx context.Context, transcript string) (string, error) {
	reply, err := c.complete(ctx, summarizePrompt, transcript)
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(reply)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", chaterr.ErrClassifierUnavailable)
	}
	return summary, nil
}

func (c *LLMClassifier) Suggest(ctx context.Context, text string, emotion models.Emotion, supportType models.SupportType) ([]string, error) {
	prompt := fmt.Sprintf("Context: %q\nEmotion: %s\nSupport type: %s", text, emotion, supportType)
	reply, err := c.complete(ctx, suggestPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return ParseSuggestions(reply)
}

func (c *LLMClassifier) complete(ctx context.Context, system, text string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", chaterr.ErrClassifierUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", chaterr.ErrClassifierUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
