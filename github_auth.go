package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-github/v58/github"
	"golang.org/x/oauth2"
)

// GitHub rejects App JWTs that expire more than 10 minutes in the future.
const (
	maxAppJWTDuration = 10 * time.Minute
	appJWTDuration    = 9 * time.Minute
)

// GitHubAuthConfig selects how the Action authenticates. A token wins over
// App credentials when both are present.
type GitHubAuthConfig struct {
	Token             string
	AppID             string
	AppPrivateKey     string
	AppInstallationID int64
	BaseURL           string
}

func (c GitHubAuthConfig) hasToken() bool {
	return strings.TrimSpace(c.Token) != ""
}

func (c GitHubAuthConfig) hasApp() bool {
	return strings.TrimSpace(c.AppID) != "" && strings.TrimSpace(c.AppPrivateKey) != "" && c.AppInstallationID > 0
}

// NewGitHubClient returns a go-github client authenticated with a token, or
// with an installation token minted from the App credentials.
func NewGitHubClient(ctx context.Context, cfg GitHubAuthConfig) (*github.Client, error) {
	if cfg.hasToken() {
		return newTokenClient(ctx, cfg.Token, cfg.BaseURL)
	}
	if !cfg.hasApp() {
		return nil, ValidationError{Field: "github_token", Message: "a token or app_id, app_private_key and app_installation_id are required"}
	}

	jwtToken, err := GenerateAppJWT(cfg.AppID, []byte(cfg.AppPrivateKey), appJWTDuration)
	if err != nil {
		return nil, fmt.Errorf("generating app JWT: %w", err)
	}

	appClient, err := newTokenClient(ctx, jwtToken, cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	installToken, _, err := appClient.Apps.CreateInstallationToken(ctx, cfg.AppInstallationID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating installation token for installation %d: %w", cfg.AppInstallationID, err)
	}

	GetLogger().Debug("Minted installation token for installation %d, expires %s",
		cfg.AppInstallationID, installToken.GetExpiresAt().Format(time.RFC3339))

	return newTokenClient(ctx, installToken.GetToken(), cfg.BaseURL)
}

func newTokenClient(ctx context.Context, token, baseURL string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	client := github.NewClient(tc)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, ValidationError{Field: "github_api_url", Message: err.Error()}
		}
		client.BaseURL = u
	}
	return client, nil
}

// GenerateAppJWT signs an RS256 JWT identifying the GitHub App appID.
func GenerateAppJWT(appID string, privateKeyPEM []byte, duration time.Duration) (string, error) {
	if appID == "" {
		return "", fmt.Errorf("app ID cannot be empty")
	}
	if duration <= 0 {
		return "", fmt.Errorf("duration must be positive")
	}
	if duration > maxAppJWTDuration {
		return "", fmt.Errorf("duration %v exceeds maximum allowed %v", duration, maxAppJWTDuration)
	}

	privateKey, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	// Backdated to tolerate clock drift between the runner and GitHub.
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func parsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}
