// Package telephony integrates with the Twilio voice API: outbound call
// origination, SMS, webhook signature verification, and TwiML response
// construction.
package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Config holds Twilio credentials and numbers.
type Config struct {
	// AccountSID is the Twilio account SID (required).
	AccountSID string `yaml:"account_sid"`

	// AuthToken is the Twilio auth token (required).
	AuthToken string `yaml:"auth_token"`

	// FromNumber is the E.164 number calls and SMS originate from
	// (required).
	FromNumber string `yaml:"from_number"`

	// VerifySignatures enables X-Twilio-Signature checking on inbound
	// webhooks. Off by default so local tunnels keep working.
	VerifySignatures bool `yaml:"verify_signatures"`

	// TimeoutSeconds bounds each REST API call. Default: 15.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.AccountSID == "" {
		return errors.New("telephony: account SID is required")
	}
	if c.AuthToken == "" {
		return errors.New("telephony: auth token is required")
	}
	if c.FromNumber == "" {
		return errors.New("telephony: from number is required")
	}
	return nil
}

// Twilio is a client for the Twilio REST API.
//
// Twilio is safe for concurrent use.
type Twilio struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
}

// New creates a Twilio client.
func New(cfg Config) (*Twilio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.TimeoutSeconds <= 0 {
		timeout = 15 * time.Second
	}
	return &Twilio{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s", cfg.AccountSID),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Originate places an outbound call. The provider will POST to
// callbackURL when the callee answers. Returns the provider call SID.
func (t *Twilio) Originate(ctx context.Context, to, callbackURL string) (string, error) {
	if callbackURL == "" {
		return "", errors.New("telephony: callback URL is required")
	}

	params := url.Values{
		"To":      {to},
		"From":    {t.fromNumber},
		"Url":     {callbackURL},
		"Method":  {"POST"},
		"Timeout": {"30"},
	}

	resp, err := t.apiRequest(ctx, "/Calls.json", params)
	if err != nil {
		return "", fmt.Errorf("telephony: originate call: %w", err)
	}

	var result struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", fmt.Errorf("telephony: parse originate response: %w", err)
	}
	if result.SID == "" {
		return "", errors.New("telephony: originate response missing call SID")
	}
	return result.SID, nil
}

// SendSMS sends a text message from the configured number.
func (t *Twilio) SendSMS(ctx context.Context, to, body string) error {
	params := url.Values{
		"To":   {to},
		"From": {t.fromNumber},
		"Body": {body},
	}
	if _, err := t.apiRequest(ctx, "/Messages.json", params); err != nil {
		return fmt.Errorf("telephony: send sms: %w", err)
	}
	return nil
}

// VerifySignature validates an inbound webhook against the
// X-Twilio-Signature header: HMAC-SHA1 over the full request URL plus
// the form parameters concatenated in sorted key order.
func (t *Twilio) VerifySignature(fullURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range form[k] {
			sb.WriteString(k)
			sb.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(t.authToken))
	mac.Write([]byte(sb.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// apiRequest makes an authenticated form POST to the Twilio API.
func (t *Twilio) apiRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, (1<<20)+1))
	if err != nil {
		return nil, err
	}
	if len(body) > 1<<20 {
		return nil, fmt.Errorf("API response too large (%d bytes)", len(body))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
