package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/codec"
	"github.com/sift-dev/sift/pkg/filter"
)

type product struct {
	Name string `json:"name"`
}

func productServer(t *testing.T, seen *url.Values) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/products", func(w http.ResponseWriter, req *http.Request) {
		*seen = req.URL.Query()
		json.NewEncoder(w).Encode([]product{{Name: "laptop"}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTP_FlatQueryParams(t *testing.T) {
	var seen url.Values
	srv := productServer(t, &seen)

	f := NewHTTP[[]product](srv.URL + "/products")
	rows, err := f.Fetch(context.Background(), filter.Values{
		"search": "laptop",
		"count":  float64(3),
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "laptop" {
		t.Fatalf("rows = %v, want [{laptop}]", rows)
	}
	if got := seen.Get("search"); got != "laptop" {
		t.Fatalf("search param = %q, want laptop", got)
	}
	if got := seen.Get("count"); got != "3" {
		t.Fatalf("count param = %q, want 3", got)
	}
}

func TestHTTP_MergesEndpointParams(t *testing.T) {
	var seen url.Values
	srv := productServer(t, &seen)

	f := NewHTTP[[]product](srv.URL + "/products?limit=10")
	if _, err := f.Fetch(context.Background(), filter.Values{"search": "x"}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := seen.Get("limit"); got != "10" {
		t.Fatalf("limit param = %q, want 10", got)
	}
	if got := seen.Get("search"); got != "x" {
		t.Fatalf("search param = %q, want x", got)
	}
}

func TestHTTP_EncodedParam(t *testing.T) {
	var seen url.Values
	srv := productServer(t, &seen)

	f := NewHTTP[[]product](srv.URL+"/products", WithEncodedParam("filters"))
	if _, err := f.Fetch(context.Background(), filter.Values{"search": "laptop"}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	payload := seen.Get("filters")
	if payload == "" {
		t.Fatal("filters param not sent")
	}
	decoded, err := codec.Decode(payload, true, nil)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got := decoded["search"]; got != "laptop" {
		t.Fatalf("decoded search = %v, want laptop", got)
	}
}

func TestHTTP_SendsConfiguredHeaders(t *testing.T) {
	var auth, accept string
	r := chi.NewRouter()
	r.Get("/items", func(w http.ResponseWriter, req *http.Request) {
		auth = req.Header.Get("Authorization")
		accept = req.Header.Get("Accept")
		json.NewEncoder(w).Encode([]product{})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	f := NewHTTP[[]product](srv.URL+"/items", WithHeader("Authorization", "Bearer token-1"))
	if _, err := f.Fetch(context.Background(), filter.Values{}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if auth != "Bearer token-1" {
		t.Fatalf("Authorization = %q, want Bearer token-1", auth)
	}
	if accept != "application/json" {
		t.Fatalf("Accept = %q, want application/json", accept)
	}
}

func TestHTTP_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTP[[]product](srv.URL)
	_, err := f.Fetch(context.Background(), filter.Values{"search": "x"})
	if err == nil {
		t.Fatal("expected an error for a 502 response")
	}
	if code := sifterrors.CodeOf(err); code != "E063" {
		t.Fatalf("CodeOf = %q, want E063", code)
	}
}

func TestHTTP_InvalidBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	f := NewHTTP[[]product](srv.URL)
	_, err := f.Fetch(context.Background(), filter.Values{"search": "x"})
	if err == nil {
		t.Fatal("expected an error for a non-JSON body")
	}
	if code := sifterrors.CodeOf(err); code != "E063" {
		t.Fatalf("CodeOf = %q, want E063", code)
	}
}
