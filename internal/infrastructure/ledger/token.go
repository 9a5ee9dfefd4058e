package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// expiryBuffer is subtracted from the token lifetime so a token is refreshed
// before the remote store would reject it mid-request.
const expiryBuffer = 60 * time.Second

// tokenSource fetches and caches the bearer token for the remote store.
type tokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func newTokenSource(tokenURL, clientID, clientSecret string, httpClient *http.Client) *tokenSource {
	return &tokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a cached token, refreshing it transparently when expired.
// Without a configured token endpoint it returns the static client secret,
// which lets tests and self-hosted ledgers skip the auth handshake.
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	if s.tokenURL == "" {
		return s.clientSecret, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	s.token = tr.AccessToken
	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime > 2*expiryBuffer {
		lifetime -= expiryBuffer
	} else {
		// Token shorter than the buffer allows: cache only half its life
		// so it cannot expire mid-request.
		lifetime /= 2
	}
	s.expiresAt = s.now().Add(lifetime)
	return s.token, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (s *tokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}
