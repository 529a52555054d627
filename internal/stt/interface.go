package stt

import "context"

// Result holds a completed transcription.
type Result struct {
	Transcript string
	Language   string
}

// Provider defines the interface for speech-to-text providers
type Provider interface {
	// Transcribe transcribes an assembled audio file and returns the result.
	// filename carries the extension the provider uses to pick a decoder.
	Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error)

	// Name returns the name of the provider (e.g., "openai")
	Name() string
}
