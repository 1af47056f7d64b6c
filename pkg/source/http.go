package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/codec"
	"github.com/sift-dev/sift/pkg/filter"
)

// HTTP fetches JSON from a GET endpoint. Filters travel as flat query
// parameters by default, or as one Base64 parameter with WithEncodedParam,
// mirroring the two URL synchronization encodings. T is the decoded
// response shape.
type HTTP[T any] struct {
	endpoint string
	client   *http.Client
	header   http.Header
	param    string
}

type httpConfig struct {
	client *http.Client
	header http.Header
	param  string
}

// HTTPOption configures an HTTP fetcher.
type HTTPOption func(*httpConfig)

// WithClient replaces the default 30 second timeout client.
func WithClient(c *http.Client) HTTPOption {
	return func(cfg *httpConfig) { cfg.client = c }
}

// WithHeader adds a header to every request, e.g. an Authorization token.
func WithHeader(key, value string) HTTPOption {
	return func(cfg *httpConfig) { cfg.header.Add(key, value) }
}

// WithEncodedParam sends the whole snapshot as one Base64 JSON parameter
// of the given name instead of flat parameters.
func WithEncodedParam(name string) HTTPOption {
	return func(cfg *httpConfig) { cfg.param = name }
}

// NewHTTP builds a fetcher for the endpoint. The endpoint may already
// carry query parameters; filter parameters are merged over them.
func NewHTTP[T any](endpoint string, opts ...HTTPOption) *HTTP[T] {
	cfg := httpConfig{
		client: &http.Client{Timeout: 30 * time.Second},
		header: http.Header{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HTTP[T]{
		endpoint: endpoint,
		client:   cfg.client,
		header:   cfg.header,
		param:    cfg.param,
	}
}

// Fetch implements fetch.Fetcher.
func (h *HTTP[T]) Fetch(ctx context.Context, values filter.Values) (T, error) {
	var out T

	u, err := url.Parse(h.endpoint)
	if err != nil {
		return out, sifterrors.New("E063").
			WithDetail("Invalid endpoint URL: " + err.Error())
	}

	q := u.Query()
	if h.param != "" {
		payload, err := codec.Encode(values, true)
		if err != nil {
			return out, err
		}
		if payload == "" {
			q.Del(h.param)
		} else {
			q.Set(h.param, payload)
		}
	} else {
		payload, err := codec.Encode(values, false)
		if err != nil {
			return out, err
		}
		flat, err := url.ParseQuery(payload)
		if err != nil {
			return out, sifterrors.FromError(err, "E063")
		}
		for key, vals := range flat {
			q[key] = vals
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return out, sifterrors.New("E063").Wrap(err)
	}
	for key, vals := range h.header {
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return out, sifterrors.New("E063").
			WithDetail("Could not reach the data source: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, sifterrors.New("E063").
			WithDetail(fmt.Sprintf("Source returned status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, sifterrors.New("E063").
			WithDetail("Invalid response body: " + err.Error())
	}
	return out, nil
}
