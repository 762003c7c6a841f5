package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

func TestNewRequiresAPIURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestFetchSendsProxyParameters(t *testing.T) {
	t.Parallel()

	queries := make(chan url.Values, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f, err := New(Config{
		APIURL:  srv.URL + "/api/v1/",
		APIKey:  "secret",
		Options: crawler.FetchOptions{RenderJS: true, CountryCode: "de"},
		Timeout: time.Second,
	}, nil)
	require.NoError(t, err)

	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://www.stepstone.de/jobs?page=2"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<html>ok</html>", string(resp.Body))
	require.Equal(t, "https://www.stepstone.de/jobs?page=2", resp.URL)
	require.Equal(t, 1, resp.Attempts)

	got := <-queries
	require.Equal(t, "secret", got.Get("api_key"))
	require.Equal(t, "https://www.stepstone.de/jobs?page=2", got.Get("url"))
	require.Equal(t, "true", got.Get("render_js"))
	require.Equal(t, "false", got.Get("premium_proxy"))
	require.Equal(t, "de", got.Get("country_code"))
}

func TestFetchRequestOptionsOverrideDefaults(t *testing.T) {
	t.Parallel()

	queries := make(chan url.Values, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, err := New(Config{APIURL: srv.URL, Options: crawler.FetchOptions{RenderJS: true}}, nil)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{
		URL:     "https://example.com",
		Options: &crawler.FetchOptions{PremiumProxy: true},
	})
	require.NoError(t, err)
	got := <-queries
	require.Equal(t, "false", got.Get("render_js"))
	require.Equal(t, "true", got.Get("premium_proxy"))
	require.Empty(t, got.Get("country_code"))
}

func TestFetchReturnsStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		server bool
	}{
		{name: "server error", status: http.StatusInternalServerError, server: true},
		{name: "bad gateway", status: http.StatusBadGateway, server: true},
		{name: "not found", status: http.StatusNotFound, server: false},
		{name: "forbidden", status: http.StatusForbidden, server: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			f, err := New(Config{APIURL: srv.URL}, nil)
			require.NoError(t, err)

			_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://example.com"})
			require.Error(t, err)

			var statusErr *crawler.StatusError
			require.True(t, errors.As(err, &statusErr))
			require.Equal(t, tc.status, statusErr.Code)
			require.Equal(t, tc.server, crawler.IsServerError(err))
		})
	}
}

func TestFetchRevisitsSameTarget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, err := New(Config{APIURL: srv.URL}, nil)
	require.NoError(t, err)

	req := crawler.FetchRequest{URL: "https://example.com/same"}
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), req)
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, calls.Load())
}

func TestFetchConcurrentCallsShareNoState(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Query().Get("url")))
	}))
	defer srv.Close()

	f, err := New(Config{APIURL: srv.URL, Timeout: 2 * time.Second}, nil)
	require.NoError(t, err)

	const workers = 8
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		target := fmt.Sprintf("https://example.com/job-%d", i)
		g.Go(func() error {
			for j := 0; j < 5; j++ {
				resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: target})
				if err != nil {
					return err
				}
				if string(resp.Body) != target {
					return fmt.Errorf("body %q; want %q", resp.Body, target)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

type recordingWaiter struct {
	urls []string
	err  error
}

func (w *recordingWaiter) Wait(_ context.Context, u string) error {
	w.urls = append(w.urls, u)
	return w.err
}

func TestFetchWaitsOnLimiter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	waiter := &recordingWaiter{}
	f, err := New(Config{APIURL: srv.URL}, waiter)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://example.com/a"})
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/a"}, waiter.urls)

	waiter.err = errors.New("limited")
	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: "https://example.com/b"})
	require.ErrorContains(t, err, "limited")
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	f, err := New(Config{APIURL: srv.URL}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, crawler.FetchRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f, err := New(Config{APIURL: "https://proxy.example/api"}, nil)
	require.NoError(t, err)

	req := crawler.FetchRequest{URL: "https://example.com/job"}
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Request:    &colly.Request{URL: mustParseURL(t, "https://proxy.example/api?url=x")},
	})
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "https://example.com/job", result.URL)

	hooks.onError(&colly.Response{StatusCode: http.StatusServiceUnavailable}, errors.New("Service Unavailable"))
	var statusErr *crawler.StatusError
	require.True(t, errors.As(fetchErr, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Code)

	hooks.onError(nil, errors.New("dial failed"))
	require.EqualError(t, fetchErr, "dial failed")
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
