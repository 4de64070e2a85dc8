// Package twilio provides the two Twilio REST interactions the pipeline
// needs: downloading message media with basic auth, and sending a WhatsApp
// reply through the Messages API.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// defaultBaseURL is the Twilio REST API base URL.
	defaultBaseURL = "https://api.twilio.com"

	// defaultTimeout bounds both the media GET and the message POST.
	defaultTimeout = 10 * time.Second
)

// Client talks to the Twilio REST API on behalf of one account.
type Client struct {
	httpClient *http.Client
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
}

// NewClient creates a Twilio client. fromNumber is the configured sender
// address used on every outbound reply.
func NewClient(accountSID, authToken, fromNumber string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    defaultBaseURL,
	}
}

// messageResponse is the subset of the Messages API response we consume.
type messageResponse struct {
	SID string `json:"sid"`
}

// FetchMedia downloads the media resource behind a webhook MediaUrl with
// basic auth. A single attempt: any transport error, timeout, or non-2xx
// status is returned to the caller, which treats it as fatal to the request.
func (c *Client) FetchMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("media request returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}

	log.Debug().Int("size", len(data)).Dur("duration", time.Since(start)).Msg("Media downloaded")
	return data, nil
}

// SendMessage posts a text message to the Messages API, addressed from the
// configured sender. Returns the message SID on success.
func (c *Client) SendMessage(ctx context.Context, to, body string) (string, error) {
	params := url.Values{
		"To":   {to},
		"From": {c.fromNumber},
		"Body": {body},
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return "", fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("message request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read message response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("message request returned status %d (body: %s)", resp.StatusCode, truncate(string(respBody), 200))
	}

	var msg messageResponse
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return "", fmt.Errorf("parse message response: %w", err)
	}
	return msg.SID, nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
