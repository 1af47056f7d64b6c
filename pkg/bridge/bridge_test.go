package bridge

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sift-dev/sift/pkg/urlsync"
)

// dialPair upgrades one connection and returns both ends: the server-side
// bridge and the raw client connection playing the browser tab.
func dialPair(t *testing.T, opts ...Option) (*Bridge, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	bridgeCh := make(chan *Bridge, 1)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		all := append([]Option{
			WithLogger(quiet),
			WithInitialQuery(r.URL.Query()),
		}, opts...)
		b := New(conn, all...)
		b.Start()
		bridgeCh <- b
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?search=laptop"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case b := <-bridgeCh:
		t.Cleanup(func() { b.Close() })
		return b, client
	case <-time.After(2 * time.Second):
		t.Fatal("bridge never created")
		return nil, nil
	}
}

// awaitProcessed round-trips a ping so every frame written before it has been
// processed by the bridge's read loop.
func awaitProcessed(t *testing.T, client *websocket.Conn) {
	t.Helper()
	if err := client.WriteJSON(frame{Type: framePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f frame
		if err := client.ReadJSON(&f); err != nil {
			t.Fatalf("read pong: %v", err)
		}
		if f.Type == framePong {
			return
		}
	}
}

func TestBridge_InitialQueryFromUpgradeRequest(t *testing.T) {
	b, _ := dialPair(t)

	if got := b.Query().Get("search"); got != "laptop" {
		t.Fatalf("search = %q, want laptop", got)
	}
}

func TestBridge_NavigateSendsFrameAndCachesQuery(t *testing.T) {
	b, client := dialPair(t)

	b.Navigate(url.Values{"search": {"phone"}}, urlsync.ModePush)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := client.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Type != frameNavigate {
		t.Fatalf("frame type = %q, want %q", f.Type, frameNavigate)
	}
	if f.Mode != "push" {
		t.Fatalf("mode = %q, want push", f.Mode)
	}
	q, err := url.ParseQuery(f.Query)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	if got := q.Get("search"); got != "phone" {
		t.Fatalf("frame search = %q, want phone", got)
	}
	if got := b.Query().Get("search"); got != "phone" {
		t.Fatalf("cached search = %q, want phone", got)
	}
}

func TestBridge_ReplaceModeOnTheWire(t *testing.T) {
	b, client := dialPair(t)

	b.Navigate(url.Values{"search": {"x"}}, urlsync.ModeReplace)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := client.ReadJSON(&f); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Mode != "replace" {
		t.Fatalf("mode = %q, want replace", f.Mode)
	}
}

func TestBridge_PopFiresListeners(t *testing.T) {
	b, client := dialPair(t)

	got := make(chan url.Values, 1)
	remove := b.Listen(func(q url.Values) { got <- q })
	defer remove()

	if err := client.WriteJSON(frame{Type: framePop, Query: "search=books"}); err != nil {
		t.Fatalf("write pop: %v", err)
	}

	select {
	case q := <-got:
		if q.Get("search") != "books" {
			t.Fatalf("listener query = %v, want search=books", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener never fired")
	}
	if got := b.Query().Get("search"); got != "books" {
		t.Fatalf("cached search = %q, want books", got)
	}
}

func TestBridge_QueryAnnouncementIsSilent(t *testing.T) {
	b, client := dialPair(t)

	var fires atomic.Int64
	remove := b.Listen(func(url.Values) { fires.Add(1) })
	defer remove()

	if err := client.WriteJSON(frame{Type: frameQuery, Query: "page=3"}); err != nil {
		t.Fatalf("write query: %v", err)
	}
	awaitProcessed(t, client)

	if got := b.Query().Get("page"); got != "3" {
		t.Fatalf("cached page = %q, want 3", got)
	}
	if fires.Load() != 0 {
		t.Fatalf("listener fires = %d for an announcement, want 0", fires.Load())
	}
}

func TestBridge_RateLimitDropsExcessPops(t *testing.T) {
	b, client := dialPair(t, WithRateLimit(1, 1))

	var fires atomic.Int64
	remove := b.Listen(func(url.Values) { fires.Add(1) })
	defer remove()

	for i := 0; i < 3; i++ {
		if err := client.WriteJSON(frame{Type: framePop, Query: "n=1"}); err != nil {
			t.Fatalf("write pop: %v", err)
		}
	}
	awaitProcessed(t, client)

	if fires.Load() != 1 {
		t.Fatalf("listener fires = %d, want 1 (burst of 1)", fires.Load())
	}
}

func TestBridge_CloseRunsHandlerOnce(t *testing.T) {
	var closes atomic.Int64
	b, _ := dialPair(t, WithCloseHandler(func(err error) {
		if err != nil {
			t.Errorf("close cause = %v, want nil for a clean close", err)
		}
		closes.Add(1)
	}))

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	b.Close()

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed")
	}
	if closes.Load() != 1 {
		t.Fatalf("close handler ran %d times, want 1", closes.Load())
	}
}

func TestBridge_ClientDisconnectEndsSession(t *testing.T) {
	causeCh := make(chan error, 1)
	b, client := dialPair(t, WithCloseHandler(func(err error) { causeCh <- err }))

	client.Close()

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done never closed after client disconnect")
	}
	select {
	case cause := <-causeCh:
		if cause == nil {
			t.Fatal("close cause = nil, want the read error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close handler never ran")
	}
}
