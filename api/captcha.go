package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// ErrVerificationRejected marks a token the scoring service judged invalid
// or too risky, as opposed to a transport failure reaching the service.
var ErrVerificationRejected = errors.New("verification rejected")

const (
	defaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	scoreThreshold   = 0.5
)

// ScoreVerifier checks abuse-scoring tokens against the scoring service.
// Tokens pass when the service reports success, the expected action, and a
// risk score at or above the threshold.
type ScoreVerifier struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

// NewScoreVerifier creates a verifier. An empty verifyURL uses the scoring
// service's public endpoint.
func NewScoreVerifier(secret, verifyURL string) *ScoreVerifier {
	if verifyURL == "" {
		verifyURL = defaultVerifyURL
	}
	return &ScoreVerifier{
		secret:     secret,
		verifyURL:  verifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyResponse struct {
	Success bool     `json:"success"`
	Score   float64  `json:"score"`
	Action  string   `json:"action"`
	Errors  []string `json:"error-codes"`
}

// Verify checks one token for the expected action. A rejection wraps
// ErrVerificationRejected; anything else is a transport failure.
func (v *ScoreVerifier) Verify(ctx context.Context, token, action string) error {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verify token: status %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("verify token: decode: %w", err)
	}

	switch {
	case !result.Success:
		return fmt.Errorf("%w: token invalid: %s", ErrVerificationRejected, strings.Join(result.Errors, ","))
	case result.Action != action:
		return fmt.Errorf("%w: action %q does not match %q", ErrVerificationRejected, result.Action, action)
	case result.Score < scoreThreshold:
		return fmt.Errorf("%w: score %.2f below threshold", ErrVerificationRejected, result.Score)
	}
	return nil
}
