package urlsync

import (
	"net/url"
	"reflect"
	"testing"
)

func TestParamsEncodedReadWrite(t *testing.T) {
	p := Params{Param: "filters", Encoded: true}

	q := url.Values{"page": {"2"}}
	out := p.Write(q, "eyJzZWFyY2giOiJsYXB0b3AifQ==")

	if got := out.Get("filters"); got != "eyJzZWFyY2giOiJsYXB0b3AifQ==" {
		t.Errorf("filters = %q", got)
	}
	if got := out.Get("page"); got != "2" {
		t.Errorf("foreign param lost: page = %q", got)
	}
	// The input was not mutated.
	if q.Get("filters") != "" {
		t.Error("Write mutated its input")
	}

	payload, ok := p.Read(out)
	if !ok || payload != "eyJzZWFyY2giOiJsYXB0b3AifQ==" {
		t.Errorf("Read = %q, %v", payload, ok)
	}
}

func TestParamsEncodedEmptyPayloadRemovesParam(t *testing.T) {
	p := Params{Param: "filters", Encoded: true}
	q := url.Values{"filters": {"stale"}, "page": {"2"}}

	out := p.Write(q, "")
	if _, present := out["filters"]; present {
		t.Error("empty payload should remove the param, not write a placeholder")
	}
	if out.Get("page") != "2" {
		t.Error("foreign param lost")
	}
	if _, ok := p.Read(out); ok {
		t.Error("Read reported filter state on an empty query")
	}
}

func TestParamsFlatWithNamespace(t *testing.T) {
	p := Params{Namespace: "f_", Keys: []string{"search", "tags"}}
	q := url.Values{"utm_source": {"mail"}, "f_stale": {"old"}}

	out := p.Write(q, "search=laptop&tags=new&tags=sale")

	if got := out.Get("f_search"); got != "laptop" {
		t.Errorf("f_search = %q", got)
	}
	if got := out["f_tags"]; !reflect.DeepEqual(got, []string{"new", "sale"}) {
		t.Errorf("f_tags = %v", got)
	}
	if _, present := out["f_stale"]; present {
		t.Error("stale namespaced param not cleared")
	}
	if out.Get("utm_source") != "mail" {
		t.Error("foreign param lost")
	}

	payload, ok := p.Read(out)
	if !ok {
		t.Fatal("Read found no filter state")
	}
	back, err := url.ParseQuery(payload)
	if err != nil {
		t.Fatalf("payload is not a query string: %v", err)
	}
	if back.Get("search") != "laptop" || len(back["tags"]) != 2 {
		t.Errorf("payload = %q", payload)
	}
	if _, present := back["utm_source"]; present {
		t.Error("foreign param leaked into the payload")
	}
}

func TestParamsFlatWithoutNamespaceUsesKeys(t *testing.T) {
	p := Params{Keys: []string{"search", "price"}}
	q := url.Values{"search": {"old"}, "page": {"3"}}

	out := p.Write(q, "price=42")
	if _, present := out["search"]; present {
		t.Error("stale owned key not cleared")
	}
	if out.Get("price") != "42" {
		t.Errorf("price = %q", out.Get("price"))
	}
	if out.Get("page") != "3" {
		t.Error("unowned key cleared")
	}

	payload, ok := p.Read(out)
	if !ok || payload != "price=42" {
		t.Errorf("Read = %q, %v", payload, ok)
	}
}

func TestParamsFlatEmptyPayloadClears(t *testing.T) {
	p := Params{Namespace: "f_", Keys: []string{"search"}}
	q := url.Values{"f_search": {"laptop"}, "page": {"1"}}

	out := p.Write(q, "")
	if _, present := out["f_search"]; present {
		t.Error("empty payload should clear owned params")
	}
	if out.Get("page") != "1" {
		t.Error("foreign param lost")
	}
}
