package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
)

const googleSpeechEndpoint = "https://speech.googleapis.com/v1/speech:recognize"

// googleProvider implements STT using the Google Cloud Speech-to-Text REST
// API. It authenticates with either a plain API key or a service-account key
// file; the key file wins when both are configured.
type googleProvider struct {
	apiKey     string
	httpClient *http.Client
}

// NewGoogleProvider creates a Google STT provider. keyFile is the path to a
// service-account JSON key; apiKey is a plain API key. At least one must be
// set.
func NewGoogleProvider(ctx context.Context, apiKey, keyFile string) (Provider, error) {
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read service account key: %w", err)
		}
		conf, err := google.JWTConfigFromJSON(data, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return nil, fmt.Errorf("parse service account key: %w", err)
		}
		return &googleProvider{httpClient: conf.Client(ctx)}, nil
	}
	if apiKey == "" {
		return nil, fmt.Errorf("google STT needs an API key or a service account key file")
	}
	return &googleProvider{apiKey: apiKey, httpClient: &http.Client{Timeout: 60 * time.Second}}, nil
}

func (p *googleProvider) Name() string {
	return "google"
}

type googleRecognizeRequest struct {
	Config googleRecognitionConfig `json:"config"`
	Audio  googleRecognitionAudio  `json:"audio"`
}

type googleRecognitionConfig struct {
	Encoding        string `json:"encoding,omitempty"`
	SampleRateHertz int    `json:"sampleRateHertz,omitempty"`
	LanguageCode    string `json:"languageCode"`
}

type googleRecognitionAudio struct {
	Content string `json:"content"`
}

type googleRecognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
		LanguageCode string `json:"languageCode"`
	} `json:"results"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *googleProvider) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	reqBody := googleRecognizeRequest{
		Config: googleRecognitionConfig{
			Encoding:     encodingForFile(filename),
			LanguageCode: "en-US",
		},
		Audio: googleRecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audio),
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal recognize request: %w", err)
	}

	url := googleSpeechEndpoint
	if p.apiKey != "" {
		url += "?key=" + p.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google STT request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read google STT response: %w", err)
	}

	var parsed googleRecognizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse google STT response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("google STT: %s (code %d)", parsed.Error.Message, parsed.Error.Code)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google STT: status %d", res.StatusCode)
	}

	var parts []string
	language := ""
	for _, r := range parsed.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, r.Alternatives[0].Transcript)
		}
		if language == "" && r.LanguageCode != "" {
			language = r.LanguageCode
		}
	}

	return &Result{
		Transcript: strings.Join(parts, " "),
		Language:   language,
	}, nil
}

// encodingForFile maps an assembled media file name to a recognizer encoding.
// Unknown extensions are left empty so the service sniffs the header itself.
func encodingForFile(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "LINEAR16"
	case ".webm":
		return "WEBM_OPUS"
	case ".flac":
		return "FLAC"
	default:
		return ""
	}
}
