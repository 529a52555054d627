package stt

import (
	"context"
	"testing"
)

func TestNewProviderSelection(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, ProviderConfig{Name: "openai", OpenAIKey: "sk-test"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "openai" {
		t.Errorf("provider = %q, want openai", p.Name())
	}

	p, err = NewProvider(ctx, ProviderConfig{Name: "", OpenAIKey: "sk-test"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "openai" {
		t.Errorf("empty name must default to openai, got %q", p.Name())
	}

	p, err = NewProvider(ctx, ProviderConfig{Name: "google", GoogleAPIKey: "key"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "google" {
		t.Errorf("provider = %q, want google", p.Name())
	}

	if _, err := NewProvider(ctx, ProviderConfig{Name: "whisperx"}); err == nil {
		t.Error("unknown provider name must fail")
	}
}

func TestNewProviderMissingCredentials(t *testing.T) {
	ctx := context.Background()
	if _, err := NewProvider(ctx, ProviderConfig{Name: "openai"}); err == nil {
		t.Error("openai without a key must fail")
	}
	if _, err := NewProvider(ctx, ProviderConfig{Name: "google"}); err == nil {
		t.Error("google without credentials must fail")
	}
}

func TestEncodingForFile(t *testing.T) {
	cases := []struct {
		file string
		want string
	}{
		{"audio.wav", "LINEAR16"},
		{"audio.webm", "WEBM_OPUS"},
		{"take.FLAC", "FLAC"},
		{"audio.mp3", ""},
		{"noext", ""},
	}
	for _, tc := range cases {
		if got := encodingForFile(tc.file); got != tc.want {
			t.Errorf("encodingForFile(%q) = %q, want %q", tc.file, got, tc.want)
		}
	}
}
