// Package urlsync synchronizes filter state with a URL query string
// through a pluggable Navigator. The engine writes on every filter change
// and re-hydrates when the navigator reports an externally triggered
// navigation (the back/forward equivalent of its transport).
package urlsync

import (
	"net/url"
	"strings"
)

// Mode determines how a URL update lands in history.
type Mode int

const (
	// ModePush adds a new history entry.
	ModePush Mode = iota

	// ModeReplace overwrites the current entry. Use for high-frequency
	// updates like search-as-you-type so back does not walk keystrokes.
	ModeReplace
)

// Navigator abstracts the history surface the engine writes to: a browser
// bridge, a test double, or an HTTP layer echoing canonical URLs.
//
// Navigate must not invoke listeners; listeners fire only for navigations
// the program did not initiate (back/forward), mirroring how pushState
// and popstate relate in a browser.
type Navigator interface {
	// Query returns the current query parameters.
	Query() url.Values

	// Navigate replaces the query parameters, pushing or replacing a
	// history entry per mode.
	Navigate(q url.Values, mode Mode)

	// Listen registers fn for externally triggered navigation events.
	// The returned function removes the listener.
	Listen(fn func(url.Values)) (remove func())
}

// Params describes where filter state lives inside a query string.
type Params struct {
	// Param is the single parameter holding the Base64 payload when
	// Encoded is true.
	Param string

	// Namespace prefixes each filter key in flat mode, keeping filter
	// params out of the way of foreign ones ("f_search=laptop").
	Namespace string

	// Keys lists the filter keys owned by the engine. Flat-mode writes
	// clear stale params by these names; reads accept only them when no
	// Namespace is set.
	Keys []string

	// Encoded selects the single Base64 JSON param over flat params.
	Encoded bool
}

// Read extracts the filter payload from a query. For encoded params the
// payload is the Base64 string; for flat params it is a re-encoded query
// string of just the filter params with the namespace stripped. ok is
// false when the query carries no filter state at all.
func (p Params) Read(q url.Values) (payload string, ok bool) {
	if p.Encoded {
		payload = q.Get(p.Param)
		return payload, payload != ""
	}

	own := url.Values{}
	for key, vs := range q {
		bare, mine := p.ownKey(key)
		if !mine {
			continue
		}
		for _, v := range vs {
			own.Add(bare, v)
		}
	}
	if len(own) == 0 {
		return "", false
	}
	return own.Encode(), true
}

// Write merges payload into a copy of q, clearing whatever filter state
// was there before. An empty payload removes the filter params entirely
// instead of writing an empty placeholder.
func (p Params) Write(q url.Values, payload string) url.Values {
	out := cloneValues(q)

	if p.Encoded {
		if payload == "" {
			out.Del(p.Param)
		} else {
			out.Set(p.Param, payload)
		}
		return out
	}

	// Flat: wipe every param this engine owns, then set the new ones.
	for key := range out {
		if _, mine := p.ownKey(key); mine {
			out.Del(key)
		}
	}
	for _, k := range p.Keys {
		out.Del(p.Namespace + k)
	}

	if payload == "" {
		return out
	}
	pairs, err := url.ParseQuery(payload)
	if err != nil {
		return out
	}
	for key, vs := range pairs {
		for _, v := range vs {
			out.Add(p.Namespace+key, v)
		}
	}
	return out
}

// ownKey reports whether a query key belongs to this engine's filter
// state, and returns it with the namespace stripped.
func (p Params) ownKey(key string) (bare string, mine bool) {
	if p.Namespace != "" {
		if !strings.HasPrefix(key, p.Namespace) {
			return "", false
		}
		return key[len(p.Namespace):], true
	}
	for _, k := range p.Keys {
		if key == k {
			return key, true
		}
	}
	return "", false
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for key, vs := range q {
		copied := make([]string, len(vs))
		copy(copied, vs)
		out[key] = copied
	}
	return out
}
