package gamma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListMarketsQueryParams(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[{"id":"m1","question":"?"}]`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, time.Second)
	markets, err := c.ListMarkets(context.Background(), ListParams{Limit: 100, Offset: 200, Closed: false})
	if err != nil {
		t.Fatalf("ListMarkets failed: %v", err)
	}
	if len(markets) != 1 || markets[0].ID != "m1" {
		t.Fatalf("markets = %v", markets)
	}
	if gotPath != "/markets" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery != "ascending=true&closed=false&limit=100&offset=200&order=id" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestListEventsDecodesNestedMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"e1","title":"event","markets":[{"id":"m1"},{"id":"m2"}]}]`))
	}))
	defer srv.Close()

	c := NewClientWithBase(srv.URL, time.Second)
	events, err := c.ListEvents(context.Background(), ListParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || len(events[0].Markets) != 2 {
		t.Fatalf("events = %+v", events)
	}
}
