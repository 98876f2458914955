package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestFetcher(t *testing.T, srv *httptest.Server, cfg Config) (*Fetcher, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	f, err := New(cfg, WithSleep(rec.sleep), WithClients(srv.Client(), srv.Client()))
	require.NoError(t, err)
	return f, rec
}

type payload struct {
	OK bool `json:"ok"`
}

func TestGetJSONSuccessSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, srv, Config{})
	var out payload
	require.NoError(t, f.GetJSON(context.Background(), srv.URL, &out))
	assert.True(t, out.OK)
	assert.Empty(t, rec.delays)
}

func TestGetJSONFallsBackAfterServerErrors(t *testing.T) {
	var calls atomic.Int32
	var fallbackEncoding atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fallbackEncoding.Store(r.Header.Get("Accept-Encoding"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, srv, Config{})
	var out payload
	require.NoError(t, f.GetJSON(context.Background(), srv.URL, &out))
	assert.True(t, out.OK)
	assert.EqualValues(t, 4, calls.Load())
	assert.Equal(t, "identity", fallbackEncoding.Load())
	assert.Equal(t, []time.Duration{800 * time.Millisecond, 1600 * time.Millisecond, 2400 * time.Millisecond}, rec.delays)
}

func TestGetJSONRateLimitedUsesLongerBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, srv, Config{})
	err := f.GetJSON(context.Background(), srv.URL, &payload{})
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindRateLimited, fe.Kind)
	assert.Equal(t, http.StatusTooManyRequests, fe.Status)
	assert.Equal(t, "secondary", fe.Transport)
	assert.EqualValues(t, 4, calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}, rec.delays)
}

func TestGetJSONClientErrorsConsumeRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, srv, Config{})
	err := f.GetJSON(context.Background(), srv.URL, &payload{})
	assert.Equal(t, KindClient, KindOf(err))
	assert.EqualValues(t, 4, calls.Load())
}

func TestGetJSONParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":`))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, srv, Config{})
	err := f.GetJSON(context.Background(), srv.URL, &payload{})
	assert.Equal(t, KindParse, KindOf(err))
}

func TestGetJSONTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, srv, Config{Timeout: 20 * time.Millisecond})
	err := f.GetJSON(context.Background(), srv.URL, &payload{})
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Len(t, rec.delays, 3)
}

func TestGetJSONNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f, err := New(Config{}, WithSleep(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, err)
	err = f.GetJSON(context.Background(), url, &payload{})
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "primary: network_error")
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestGetJSONSecondaryTransportRescuesPrimary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	f, err := New(Config{},
		WithSleep(rec.sleep),
		WithClients(&http.Client{Transport: failingTransport{}}, srv.Client()),
	)
	require.NoError(t, err)

	var out payload
	require.NoError(t, f.GetJSON(context.Background(), srv.URL, &out))
	assert.True(t, out.OK)
	assert.Len(t, rec.delays, 3)
}

func TestGetJSONStopsWhenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f, err := New(Config{},
		WithClients(srv.Client(), srv.Client()),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)
	require.NoError(t, err)

	err = f.GetJSON(ctx, srv.URL, &payload{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadProxy(t *testing.T) {
	_, err := New(Config{ProxyURL: "://bad"})
	require.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "rate_limited", KindRateLimited.String())
	assert.Equal(t, "unknown", Kind(0).String())
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}
