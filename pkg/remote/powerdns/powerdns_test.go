package powerdns

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"zonesync/pkg/remote"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "secret", ServerID: "localhost"}, nil)
}

func TestZones_DecodesListing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/servers/localhost/zones" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("X-API-Key = %q, want secret", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "example.com.", "name": "example.com.", "kind": "Master", "serial": 5, "account": "ops"},
			{"id": "other.org.", "name": "other.org.", "kind": "Native", "serial": 12}
		]`))
	}))

	zones, err := c.Zones(context.Background())
	if err != nil {
		t.Fatalf("Zones error: %v", err)
	}
	if len(zones) != 2 {
		t.Fatalf("zone count = %d, want 2", len(zones))
	}
	if zones[0].ID != "example.com." || zones[0].Kind != "Master" || zones[0].Serial != 5 {
		t.Errorf("zones[0] = %+v", zones[0])
	}
	if zones[0].Account != "ops" {
		t.Errorf("zones[0].Account = %q, want ops", zones[0].Account)
	}
}

func TestZones_Unreachable_ConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listening anymore

	c := New(Config{BaseURL: url, APIKey: "secret"}, nil)
	_, err := c.Zones(context.Background())

	var connErr *remote.ConnectivityError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want *remote.ConnectivityError", err)
	}
}

func TestZones_Unauthorized_ConnectivityError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "Unauthorized"}`))
	}))

	_, err := c.Zones(context.Background())

	var connErr *remote.ConnectivityError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want *remote.ConnectivityError", err)
	}
}

func TestRecords_DecodesRRSets(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/servers/localhost/zones/example.com." {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "example.com.",
			"name": "example.com.",
			"rrsets": [
				{
					"name": "foo.example.com.",
					"type": "A",
					"ttl": 300,
					"records": [{"content": "1.2.3.4", "disabled": false}],
					"comments": [{"content": "managed", "account": "ops"}]
				},
				{
					"name": "example.com.",
					"type": "NS",
					"ttl": 3600,
					"records": [{"content": "ns1.example.com."}, {"content": "ns2.example.com."}]
				}
			]
		}`))
	}))

	records, err := c.Records(context.Background(), "example.com.")
	if err != nil {
		t.Fatalf("Records error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
	if records[0].CanonicalContent() != "1.2.3.4" {
		t.Errorf("records[0] content = %q", records[0].CanonicalContent())
	}
	if records[0].CanonicalComments() != "managed" {
		t.Errorf("records[0] comments = %q", records[0].CanonicalComments())
	}
	if records[1].CanonicalContent() != "ns1.example.com.\nns2.example.com." {
		t.Errorf("records[1] content = %q", records[1].CanonicalContent())
	}
}

func TestRecords_NotFound_FetchError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "Could not find domain"}`))
	}))

	_, err := c.Records(context.Background(), "gone.example.com.")

	var fetchErr *remote.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err = %v, want *remote.FetchError", err)
	}
	if fetchErr.Scope != "gone.example.com." {
		t.Errorf("Scope = %q", fetchErr.Scope)
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{BaseURL: "http://pdns:8081/"}, nil)
	if c.cfg.ServerID != "localhost" {
		t.Errorf("ServerID default = %q, want localhost", c.cfg.ServerID)
	}
	if c.baseURL != "http://pdns:8081" {
		t.Errorf("baseURL = %q, trailing slash not trimmed", c.baseURL)
	}
	if c.client.Timeout != defaultTimeout {
		t.Errorf("Timeout default = %v, want %v", c.client.Timeout, defaultTimeout)
	}
}
