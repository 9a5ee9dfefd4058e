// Package ledger is the client for the external spreadsheet-style store of
// record. Rows are keyed by transaction id in the first column; the decision
// status lives in the last. The remote store offers no conditional writes,
// so correctness comes from retrying transient failures and re-reading
// primary writes to verify them.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrWriteVerification means a write was acknowledged but the re-read row
// did not match the expected identifier. Fatal for the primary booking
// append, a logged warning for secondary writes.
var ErrWriteVerification = errors.New("ledger write verification failed")

// AppendResult reports where an appended row landed.
type AppendResult struct {
	UpdatedRange string
	RowNumber    int
}

// Client talks to the remote tabular store with retry and verification.
type Client struct {
	baseURL    string
	sheetID    string
	httpClient *http.Client
	tokens     *tokenSource
	retry      RetryPolicy
	logger     zerolog.Logger
}

// Config for the ledger client.
type Config struct {
	BaseURL      string
	SheetID      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Retry        RetryPolicy
	HTTPClient   *http.Client
}

// NewClient builds a ledger client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		sheetID:    cfg.SheetID,
		httpClient: httpClient,
		tokens:     newTokenSource(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, httpClient),
		retry:      cfg.Retry.withDefaults(),
		logger:     logger.With().Str("client", "ledger").Logger(),
	}
}

type valuesPayload struct {
	Values [][]string `json:"values"`
}

type appendResponse struct {
	Updates struct {
		UpdatedRange string `json:"updatedRange"`
	} `json:"updates"`
}

type readResponse struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}

// Append adds a row after the last row of the given range.
func (c *Client) Append(ctx context.Context, rng string, row []string) (*AppendResult, error) {
	body, err := json.Marshal(valuesPayload{Values: [][]string{row}})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/sheets/%s/values/%s:append", c.baseURL, c.sheetID, rng)

	var resp appendResponse
	if err := c.doWithRetry(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, err
	}
	return &AppendResult{
		UpdatedRange: resp.Updates.UpdatedRange,
		RowNumber:    rowNumberFromRange(resp.Updates.UpdatedRange),
	}, nil
}

// Read returns the row matrix for a range. A missing range yields no rows,
// not an error.
func (c *Client) Read(ctx context.Context, rng string) ([][]string, error) {
	url := fmt.Sprintf("%s/sheets/%s/values/%s", c.baseURL, c.sheetID, rng)
	var resp readResponse
	if err := c.doWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Update overwrites the cells of a range.
func (c *Client) Update(ctx context.Context, rng string, values [][]string) error {
	body, err := json.Marshal(valuesPayload{Values: values})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/sheets/%s/values/%s", c.baseURL, c.sheetID, rng)
	return c.doWithRetry(ctx, http.MethodPut, url, body, nil)
}

// AppendVerified appends a row and re-reads it to confirm the first column
// holds the expected identifier.
func (c *Client) AppendVerified(ctx context.Context, rng string, row []string, expectID string) (*AppendResult, error) {
	res, err := c.Append(ctx, rng, row)
	if err != nil {
		return nil, err
	}
	if res.UpdatedRange == "" {
		return res, fmt.Errorf("%w: append reported no range", ErrWriteVerification)
	}
	rows, err := c.Read(ctx, res.UpdatedRange)
	if err != nil {
		return res, fmt.Errorf("%w: re-read failed: %v", ErrWriteVerification, err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 || rows[0][0] != expectID {
		return res, fmt.Errorf("%w: row %s does not carry id %s", ErrWriteVerification, res.UpdatedRange, expectID)
	}
	return res, nil
}

func (c *Client) doWithRetry(ctx context.Context, method, url string, body []byte, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retry.backoff(attempt)
			c.logger.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("url", url).
				Msg("retrying ledger call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := c.doOnce(ctx, method, url, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, url string, body []byte, out interface{}) error {
	accessToken, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("ledger auth: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Expired or revoked token; drop the cache so the next attempt
		// fetches a fresh one.
		c.tokens.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{status: resp.StatusCode, body: truncate(string(data), 256)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("ledger response decode: %w", err)
		}
	}
	return nil
}

// rowNumberFromRange extracts the row number from a range like
// "Bookings!A5:L5". Zero when it cannot be determined.
func rowNumberFromRange(rng string) int {
	if idx := strings.IndexByte(rng, '!'); idx >= 0 {
		rng = rng[idx+1:]
	}
	if idx := strings.IndexByte(rng, ':'); idx >= 0 {
		rng = rng[:idx]
	}
	start := 0
	for start < len(rng) && (rng[start] < '0' || rng[start] > '9') {
		start++
	}
	n, err := strconv.Atoi(rng[start:])
	if err != nil {
		return 0
	}
	return n
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
