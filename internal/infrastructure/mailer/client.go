// Package mailer is the client for the external email delivery API. All
// sends in this system are best-effort from the request's point of view;
// callers log failures but never propagate them into the primary result.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Email is the outbound message payload.
type Email struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Sender delivers an email and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, email Email) (string, error)
}

// Client implements Sender against a JSON HTTP email API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type sendResponse struct {
	ID string `json:"id"`
}

func (c *Client) Send(ctx context.Context, email Email) (string, error) {
	body, err := json.Marshal(email)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("email API returned %d", resp.StatusCode)
	}

	var sr sendResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return "", err
	}
	return sr.ID, nil
}
