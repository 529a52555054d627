package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// revokeEndpoint invalidates a Google OAuth token.
const revokeEndpoint = "https://oauth2.googleapis.com/revoke"

// NewOAuthClient builds an authenticated HTTP client from an installed-app
// client secret file and a stored token file.
func NewOAuthClient(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	secret, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read drive credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(secret, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}

	token, err := loadToken(tokenFile)
	if err != nil {
		return nil, err
	}

	return cfg.Client(ctx, token), nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drive token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse drive token: %w", err)
	}
	return &token, nil
}

// TokenAuthenticator tracks the stored Drive credential and can revoke it so
// an identity change does not re-trigger without explicit user action.
type TokenAuthenticator struct {
	tokenFile string
	client    *http.Client
}

func NewTokenAuthenticator(tokenFile string) *TokenAuthenticator {
	return &TokenAuthenticator{tokenFile: tokenFile, client: http.DefaultClient}
}

// IsAuthenticated reports whether a stored credential is present.
func (a *TokenAuthenticator) IsAuthenticated() bool {
	_, err := os.Stat(a.tokenFile)
	return err == nil
}

// Revoke invalidates the stored token upstream and removes it locally.
func (a *TokenAuthenticator) Revoke(ctx context.Context) error {
	token, err := loadToken(a.tokenFile)
	if err != nil {
		return err
	}

	form := url.Values{"token": {token.AccessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke token: unexpected status %d", res.StatusCode)
	}

	if err := os.Remove(a.tokenFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stored token: %w", err)
	}
	return nil
}
