package ledger

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps the backoff delays negligible in tests.
var fastRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxJitter: time.Millisecond}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL:      srv.URL,
		SheetID:      "sheet-1",
		ClientSecret: "static-token",
		Retry:        fastRetry,
		HTTPClient:   srv.Client(),
	}, zerolog.Nop())
}

func TestAppendRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"updates":{"updatedRange":"Bookings!A7:L7"}}`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Append(context.Background(), "Bookings!A2:L", []string{"txn-1"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "Bookings!A7:L7", res.UpdatedRange)
	assert.Equal(t, 7, res.RowNumber)
}

func TestAppendGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Append(context.Background(), "Bookings!A2:L", []string{"txn-1"})
	require.Error(t, err)
	assert.True(t, IsRemote(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAppendTerminalStatusIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Append(context.Background(), "Bookings!A2:L", []string{"txn-1"})
	require.Error(t, err)
	assert.True(t, IsRemote(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx other than 429 must not be retried")
}

func TestAppendVerified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
			fmt.Fprint(w, `{"updates":{"updatedRange":"Bookings!A5:L5"}}`)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "Bookings!A5:L5"):
			fmt.Fprint(w, `{"range":"Bookings!A5:L5","values":[["txn-9","2026-08-31T10:00:00Z"]]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	res, err := newTestClient(srv).AppendVerified(context.Background(), "Bookings!A2:L", []string{"txn-9"}, "txn-9")
	require.NoError(t, err)
	assert.Equal(t, 5, res.RowNumber)
}

func TestAppendVerifiedMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"updates":{"updatedRange":"Bookings!A5:L5"}}`)
			return
		}
		fmt.Fprint(w, `{"range":"Bookings!A5:L5","values":[["someone-else"]]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).AppendVerified(context.Background(), "Bookings!A2:L", []string{"txn-9"}, "txn-9")
	assert.ErrorIs(t, err, ErrWriteVerification)
}

func TestAppendVerifiedEmptyReadBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, `{"updates":{"updatedRange":"Bookings!A5:L5"}}`)
			return
		}
		fmt.Fprint(w, `{"range":"Bookings!A5:L5","values":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).AppendVerified(context.Background(), "Bookings!A2:L", []string{"txn-9"}, "txn-9")
	assert.ErrorIs(t, err, ErrWriteVerification)
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	var tokenFetches int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenFetches, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		fmt.Fprint(w, `{"access_token":"tok-1","expires_in":3600}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"range":"Bookings!A2:L","values":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:  srv.URL,
		SheetID:  "sheet-1",
		TokenURL: srv.URL + "/oauth/token",
		ClientID: "id",
		Retry:    fastRetry,
	}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := client.Read(context.Background(), "Bookings!A2:L")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenFetches))
}

func TestShortLivedTokenRefreshesEarly(t *testing.T) {
	var tokenFetches int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenFetches, 1)
		fmt.Fprint(w, `{"access_token":"tok-short","expires_in":10}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"range":"Bookings!A2:L","values":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:  srv.URL,
		SheetID:  "sheet-1",
		TokenURL: srv.URL + "/oauth/token",
		ClientID: "id",
		Retry:    fastRetry,
	}, zerolog.Nop())

	start := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	clock := start
	client.tokens.now = func() time.Time { return clock }

	_, err := client.Read(context.Background(), "Bookings!A2:L")
	require.NoError(t, err)

	// a 10s token is cached for half its life; at 4s it is still fresh
	clock = start.Add(4 * time.Second)
	_, err = client.Read(context.Background(), "Bookings!A2:L")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenFetches))

	// at 6s the cache entry is past its clamped lifetime
	clock = start.Add(6 * time.Second)
	_, err = client.Read(context.Background(), "Bookings!A2:L")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenFetches))
}

func TestUnauthorizedInvalidatesCachedToken(t *testing.T) {
	var tokenFetches, dataCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenFetches, 1)
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, n)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dataCalls, 1)
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			// simulate remote-side revocation of the first token
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"range":"Bookings!A2:L","values":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:  srv.URL,
		SheetID:  "sheet-1",
		TokenURL: srv.URL + "/oauth/token",
		ClientID: "id",
		Retry:    fastRetry,
	}, zerolog.Nop())

	_, err := client.Read(context.Background(), "Bookings!A2:L")
	require.Error(t, err, "first call fails with the revoked token")

	_, err = client.Read(context.Background(), "Bookings!A2:L")
	require.NoError(t, err, "second call must fetch a fresh token")
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokenFetches))
	assert.Equal(t, int32(2), atomic.LoadInt32(&dataCalls))
}

func TestRowNumberFromRange(t *testing.T) {
	cases := []struct {
		rng  string
		want int
	}{
		{"Bookings!A5:L5", 5},
		{"Bookings!A12", 12},
		{"A7:L7", 7},
		{"Bookings!A:L", 0},
		{"", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, rowNumberFromRange(tc.rng), tc.rng)
	}
}
