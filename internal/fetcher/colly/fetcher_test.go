package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/casaplaza/listing-scraper/internal/scraper"
)

func TestFetch(t *testing.T) {
	t.Run("returns body, status and headers", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "casaplaza-test/1.0", r.Header.Get("User-Agent"))
			require.Equal(t, "token-123", r.Header.Get("X-Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"content":[]}`))
		}))
		defer srv.Close()

		f := New(Config{UserAgent: "casaplaza-test/1.0", Timeout: 5 * time.Second})
		headers := http.Header{}
		headers.Set("X-Authorization", "token-123")

		resp, err := f.Fetch(context.Background(), scraper.FetchRequest{
			Source:  "easybroker",
			URL:     srv.URL,
			Headers: headers,
		})
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode)
		require.Equal(t, []byte(`{"content":[]}`), resp.Body)
		require.Equal(t, "application/json", resp.Headers.Get("Content-Type"))
		require.Greater(t, resp.Duration, time.Duration(0))
	})

	t.Run("non-2xx responses map to HTTPError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		f := New(Config{Timeout: 5 * time.Second})
		_, err := f.Fetch(context.Background(), scraper.FetchRequest{URL: srv.URL})

		var httpErr *scraper.HTTPError
		require.ErrorAs(t, err, &httpErr)
		require.Equal(t, 429, httpErr.StatusCode)
		require.Equal(t, srv.URL, httpErr.URL)
	})

	t.Run("unreachable hosts return a transport error", func(t *testing.T) {
		f := New(Config{Timeout: time.Second})
		_, err := f.Fetch(context.Background(), scraper.FetchRequest{URL: "http://127.0.0.1:1"})
		require.Error(t, err)

		var httpErr *scraper.HTTPError
		require.False(t, errors.As(err, &httpErr))
	})

	t.Run("a cancelled context aborts the fetch", func(t *testing.T) {
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-block
		}))
		defer srv.Close()
		defer close(block)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		f := New(Config{Timeout: 10 * time.Second})
		_, err := f.Fetch(ctx, scraper.FetchRequest{URL: srv.URL})
		require.Error(t, err)
		require.Contains(t, err.Error(), "fetch canceled")
	})
}
