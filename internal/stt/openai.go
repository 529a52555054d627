package stt

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type openAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a Whisper-backed STT provider
func NewOpenAIProvider(apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	return &openAIProvider{client: openai.NewClient(apiKey)}, nil
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	res, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	return &Result{
		Transcript: res.Text,
		Language:   res.Language,
	}, nil
}
