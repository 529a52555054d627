// Package ai polishes raw speech-to-text output with an LLM.
package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Refiner cleans raw transcripts: punctuation, casing, and filler removal,
// without changing what was said.
type Refiner struct {
	client *openai.Client
	model  string
}

// NewRefiner creates a transcript refiner backed by an OpenAI chat model.
func NewRefiner(apiKey string) (*Refiner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return &Refiner{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}, nil
}

// RefineTranscript returns a cleaned version of the transcript.
func (r *Refiner) RefineTranscript(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("empty transcript")
	}

	systemPrompt, userPrompt := buildRefinePrompt(transcript)

	res, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("refine transcript: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("refine transcript: empty completion")
	}

	refined := strings.TrimSpace(res.Choices[0].Message.Content)
	if refined == "" {
		return "", fmt.Errorf("refine transcript: empty result")
	}
	return refined, nil
}
