// Package delivery sends alerts to the creator over WhatsApp.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/momentum/internal/logging"
)

// Messenger delivers one message to the creator. A non-empty id is the only
// proof of delivery; callers must not record an alert without one.
type Messenger interface {
	Name() string
	Send(ctx context.Context, body string) (id string, err error)
}

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioMessenger sends WhatsApp messages through the Twilio REST API.
// Outbound requests are rate limited so a misbehaving sweep cannot flood
// the creator's phone.
type TwilioMessenger struct {
	accountSID string
	authToken  string
	from       string
	to         string
	apiBase    string
	client     *http.Client
	limiter    *rate.Limiter
}

// NewTwilioMessenger creates a Twilio WhatsApp messenger.
func NewTwilioMessenger(accountSID, authToken, from, to string) *TwilioMessenger {
	return &TwilioMessenger{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		apiBase:    twilioAPIBase,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		// 1 message per 10s, small burst. Normal traffic is 2/day.
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
}

// SetAPIBase overrides the API endpoint. Used by tests.
func (m *TwilioMessenger) SetAPIBase(base string) {
	m.apiBase = base
}

func (m *TwilioMessenger) Name() string { return "twilio" }

// Available reports whether the messenger has full credentials.
func (m *TwilioMessenger) Available() bool {
	return m.accountSID != "" && m.authToken != "" && m.from != "" && m.to != ""
}

func (m *TwilioMessenger) Send(ctx context.Context, body string) (string, error) {
	if !m.Available() {
		return "", fmt.Errorf("twilio messenger not configured")
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("To", m.to)
	form.Set("From", m.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", m.apiBase, m.accountSID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.accountSID, m.authToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Error("Twilio API error", "status", resp.StatusCode, "body", string(respBody))
		return "", fmt.Errorf("twilio error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if result.SID == "" {
		return "", fmt.Errorf("twilio response missing message sid")
	}

	logging.Info("message delivered", "sid", result.SID)
	return result.SID, nil
}
