package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

type fakeConn struct {
	index    int
	closed   int
	closeErr error
	panics   bool
}

func (c *fakeConn) Index() int { return c.index }

func (c *fakeConn) NewPage(context.Context) (crawler.Page, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) Close() error {
	c.closed++
	if c.panics {
		panic("boom")
	}
	return c.closeErr
}

type fakeDialer struct {
	mu     sync.Mutex
	conns  []*fakeConn
	failAt int
}

func (d *fakeDialer) dial(_ context.Context, _ Config, index int) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index == d.failAt {
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{index: index}
	d.conns = append(d.conns, c)
	return c, nil
}

func validConfig(sessions int) Config {
	return Config{WSURL: "wss://browser.example/", Token: "t0k", Sessions: sessions}
}

func TestNewOpensExactlyConfiguredSessions(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{failAt: -1}
	pool, err := newPool(context.Background(), validConfig(3), nil, d.dial)
	require.NoError(t, err)
	require.Equal(t, 3, pool.Size())
	require.Len(t, d.conns, 3)
}

func TestNewClosesOpenedSessionsOnFailure(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{failAt: 2}
	pool, err := newPool(context.Background(), validConfig(4), nil, d.dial)
	require.Error(t, err)
	require.Nil(t, pool)
	require.ErrorContains(t, err, "session 2")
	require.Len(t, d.conns, 2)
	for _, c := range d.conns {
		require.Equal(t, 1, c.closed)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{failAt: -1}

	_, err := newPool(context.Background(), validConfig(0), nil, d.dial)
	require.Error(t, err)

	cfg := validConfig(1)
	cfg.WSURL = "https://browser.example"
	_, err = newPool(context.Background(), cfg, nil, d.dial)
	require.Error(t, err)
	require.Empty(t, d.conns)
}

func TestSessionWrapsAround(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{failAt: -1}
	pool, err := newPool(context.Background(), validConfig(3), nil, d.dial)
	require.NoError(t, err)

	for i, want := range []int{0, 1, 2, 0, 1, 2, 0} {
		require.Equal(t, want, pool.Session(i).Index(), "index %d", i)
	}
}

func TestCloseIsBestEffortAndIdempotent(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{failAt: -1}
	pool, err := newPool(context.Background(), validConfig(3), nil, d.dial)
	require.NoError(t, err)

	d.conns[0].closeErr = errors.New("already gone")
	d.conns[1].panics = true

	require.NotPanics(t, func() {
		err = pool.Close()
	})
	require.Error(t, err)
	require.ErrorContains(t, err, "already gone")
	require.ErrorContains(t, err, "panic")
	for _, c := range d.conns {
		require.Equal(t, 1, c.closed)
	}

	require.Equal(t, err, pool.Close())
	for _, c := range d.conns {
		require.Equal(t, 1, c.closed)
	}
}

func TestConfigEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{
			name: "default token param",
			cfg:  Config{WSURL: "wss://chrome.example/", Token: "abc"},
			want: "wss://chrome.example/?token=abc",
		},
		{
			name: "custom token param keeps existing query",
			cfg:  Config{WSURL: "ws://chrome.example/ws?stealth=true", Token: "abc", TokenParam: "apiKey"},
			want: "ws://chrome.example/ws?apiKey=abc&stealth=true",
		},
		{
			name: "no token",
			cfg:  Config{WSURL: "ws://localhost:9222/devtools/browser/1"},
			want: "ws://localhost:9222/devtools/browser/1",
		},
		{
			name:    "wrong scheme",
			cfg:     Config{WSURL: "http://chrome.example"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.cfg.Endpoint()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	require.Equal(t, DefaultTokenParam, cfg.TokenParam)
	require.Equal(t, DefaultNavTimeout, cfg.NavTimeout)
	require.Equal(t, DefaultOpTimeout, cfg.OpTimeout)
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()

	cancelParent()
	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("expected child to be canceled")
	}
}

func TestForwardCancelStop(t *testing.T) {
	t.Parallel()

	// Cancelling the parent right after stop mirrors dial teardown.
	for i := 0; i < 200; i++ {
		parent, cancelParent := context.WithCancel(context.Background())
		child, cancelChild := context.WithCancel(context.Background())

		stop := forwardCancel(parent, cancelChild)
		stop()
		cancelParent()

		require.NoError(t, child.Err(), "child canceled after stop on iteration %d", i)
		cancelChild()
	}
}

func TestForwardCancelNilParent(t *testing.T) {
	t.Parallel()

	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(nil, cancelChild) //nolint:staticcheck // nil parent is guarded
	stop()
	require.NoError(t, child.Err())
}

func TestScriptsQuoteSelectors(t *testing.T) {
	t.Parallel()

	script := hideScript(`[data-at="x"]`)
	require.Contains(t, script, `"[data-at=\"x\"]"`)
	require.Contains(t, visibleScript(".a"), `document.querySelector(".a")`)
}
