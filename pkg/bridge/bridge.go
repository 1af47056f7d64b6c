// Package bridge connects an engine to a live browser tab over a
// WebSocket. Outbound frames carry URL updates for the tab to apply with
// pushState or replaceState; inbound frames carry the tab's popstate
// events and query announcements. Bridge implements urlsync.Navigator, so
// an engine drives a real address bar exactly the way it drives the
// in-memory navigator.
//
// The wire format is JSON text frames:
//
//	{"type":"navigate","query":"search=laptop","mode":"push"}  server -> tab
//	{"type":"pop","query":"search=phone"}                      tab -> server
//	{"type":"query","query":"search=phone"}                    tab -> server
//	{"type":"ping"} / {"type":"pong"}                          either way
package bridge

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/urlsync"
)

const (
	frameNavigate = "navigate"
	framePop      = "pop"
	frameQuery    = "query"
	framePing     = "ping"
	framePong     = "pong"
)

type frame struct {
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
	Mode  string `json:"mode,omitempty"`
}

// Bridge is a Navigator backed by one WebSocket connection. Create it from
// an upgraded connection, then call Start to launch the read and heartbeat
// loops.
type Bridge struct {
	conn *websocket.Conn
	log  *slog.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration
	heartbeat    time.Duration
	limiter      *rate.Limiter
	onClose      func(error)

	// writeMu serializes writes; gorilla connections allow only one
	// concurrent writer.
	writeMu sync.Mutex

	mu        sync.Mutex
	query     url.Values
	listeners map[int]func(url.Values)
	nextID    int

	done   chan struct{}
	closed atomic.Bool
}

type options struct {
	log          *slog.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration
	heartbeat    time.Duration
	events       rate.Limit
	burst        int
	initial      url.Values
	onClose      func(error)
}

// Option configures a Bridge.
type Option func(*options)

// WithLogger sets the diagnostics logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithReadTimeout bounds how long the tab may stay silent; heartbeats keep
// healthy connections inside it. Default: 60s.
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { o.readTimeout = d }
}

// WithWriteTimeout bounds each frame write. Default: 10s.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithHeartbeat sets the ping interval. Default: 30s.
func WithHeartbeat(d time.Duration) Option {
	return func(o *options) { o.heartbeat = d }
}

// WithRateLimit bounds inbound navigation events; excess frames are
// dropped and logged. Default: 20 events/s with a burst of 40.
func WithRateLimit(eventsPerSecond float64, burst int) Option {
	return func(o *options) {
		o.events = rate.Limit(eventsPerSecond)
		o.burst = burst
	}
}

// WithInitialQuery seeds the cached query, typically from the upgrade
// request's URL, so engines hydrating before the tab's first announcement
// see the real query.
func WithInitialQuery(q url.Values) Option {
	return func(o *options) { o.initial = q }
}

// WithCloseHandler registers fn to run once when the bridge shuts down.
// The error is the read failure that ended the session, nil for a clean
// Close.
func WithCloseHandler(fn func(error)) Option {
	return func(o *options) { o.onClose = fn }
}

// New wraps an upgraded connection. Call Start before handing the bridge
// to an engine.
func New(conn *websocket.Conn, opts ...Option) *Bridge {
	o := options{
		log:          slog.Default(),
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		heartbeat:    30 * time.Second,
		events:       rate.Limit(20),
		burst:        40,
	}
	for _, opt := range opts {
		opt(&o)
	}

	query := url.Values{}
	for k, vs := range o.initial {
		query[k] = append([]string(nil), vs...)
	}

	return &Bridge{
		conn:         conn,
		log:          o.log,
		readTimeout:  o.readTimeout,
		writeTimeout: o.writeTimeout,
		heartbeat:    o.heartbeat,
		limiter:      rate.NewLimiter(o.events, o.burst),
		onClose:      o.onClose,
		query:        query,
		listeners:    make(map[int]func(url.Values)),
		done:         make(chan struct{}),
	}
}

// Start launches the read and heartbeat loops.
func (b *Bridge) Start() {
	go b.readLoop()
	go b.heartbeatLoop()
}

// Query implements urlsync.Navigator. It returns the last query the tab
// announced or the engine wrote, without a network round trip.
func (b *Bridge) Query() url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneQuery(b.query)
}

// Navigate implements urlsync.Navigator. The frame tells the tab to apply
// the query with pushState or replaceState; the cached query updates
// immediately so subsequent reads are consistent even before the tab
// confirms.
func (b *Bridge) Navigate(q url.Values, mode urlsync.Mode) {
	b.mu.Lock()
	b.query = cloneQuery(q)
	b.mu.Unlock()

	m := "push"
	if mode == urlsync.ModeReplace {
		m = "replace"
	}
	if err := b.writeFrame(frame{Type: frameNavigate, Query: q.Encode(), Mode: m}); err != nil {
		b.log.Error("bridge navigate failed", "error", err)
	}
}

// Listen implements urlsync.Navigator. Listeners fire for pop frames only.
func (b *Bridge) Listen(fn func(url.Values)) (remove func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Close shuts the bridge down and closes the connection. Safe to call more
// than once.
func (b *Bridge) Close() error {
	return b.shutdown(nil)
}

// Done is closed when the session ends, however it ends.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) readLoop() {
	for {
		b.conn.SetReadDeadline(time.Now().Add(b.readTimeout))
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				b.log.Error("bridge read error", "error", err)
			}
			b.shutdown(sifterrors.FromError(err, "E100"))
			return
		}

		var f frame
		if err := json.Unmarshal(msg, &f); err != nil {
			b.log.Error("bridge frame decode error", "error", err)
			continue
		}

		switch f.Type {
		case framePop:
			if !b.limiter.Allow() {
				b.log.Warn("bridge frame dropped",
					"code", "E101", "type", f.Type)
				continue
			}
			q, err := url.ParseQuery(f.Query)
			if err != nil {
				b.log.Error("bridge pop query unparsable", "error", err)
				continue
			}
			b.mu.Lock()
			b.query = cloneQuery(q)
			fns := make([]func(url.Values), 0, len(b.listeners))
			for _, fn := range b.listeners {
				fns = append(fns, fn)
			}
			b.mu.Unlock()
			for _, fn := range fns {
				fn(cloneQuery(q))
			}

		case frameQuery:
			// The tab announcing where it is; no listener fires, the
			// navigation was not external.
			q, err := url.ParseQuery(f.Query)
			if err != nil {
				b.log.Error("bridge query unparsable", "error", err)
				continue
			}
			b.mu.Lock()
			b.query = cloneQuery(q)
			b.mu.Unlock()

		case framePing:
			if err := b.writeFrame(frame{Type: framePong}); err != nil {
				b.log.Error("bridge pong failed", "error", err)
			}

		case framePong:
			b.log.Debug("bridge pong received")

		default:
			b.log.Warn("unknown bridge frame", "type", f.Type)
		}
	}
}

func (b *Bridge) heartbeatLoop() {
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.writeFrame(frame{Type: framePing}); err != nil {
				b.shutdown(sifterrors.FromError(err, "E100"))
				return
			}
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) writeFrame(f frame) error {
	if b.closed.Load() {
		return sifterrors.New("E100")
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	return b.conn.WriteMessage(websocket.TextMessage, payload)
}

func (b *Bridge) shutdown(cause error) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.done)

	b.writeMu.Lock()
	b.conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	b.writeMu.Unlock()

	err := b.conn.Close()
	if b.onClose != nil {
		b.onClose(cause)
	}
	return err
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, vs := range q {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

var _ urlsync.Navigator = (*Bridge)(nil)
