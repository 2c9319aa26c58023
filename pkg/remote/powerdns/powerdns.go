// Package powerdns implements remote.Source against the PowerDNS
// authoritative server HTTP API.
package powerdns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zonesync/pkg/remote"
	"zonesync/pkg/zone"
)

// defaultTimeout is the HTTP timeout applied when none is configured.
const defaultTimeout = 30 * time.Second

// Config holds all PowerDNS API client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "http://pdns.internal:8081".
	BaseURL string
	// APIKey is sent as the X-API-Key header.
	APIKey string
	// ServerID selects the server instance; nearly always "localhost".
	ServerID string
	// Timeout bounds each HTTP request; 0 uses defaultTimeout.
	Timeout time.Duration
}

// Compile-time check that Client satisfies remote.Source.
var _ remote.Source = (*Client)(nil)

// Client talks to the PowerDNS authoritative API. It uses a direct HTTP
// client rather than a generated SDK to keep the dependency tree light.
type Client struct {
	cfg     Config
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// New returns a configured Client.
func New(cfg Config, log *slog.Logger) *Client {
	if cfg.ServerID == "" {
		cfg.ServerID = "localhost"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}
}

// pdnsZone is the zone object as the API lists it.
type pdnsZone struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Serial  int64  `json:"serial"`
	Account string `json:"account"`
}

// pdnsRRSet is one record set from a zone detail response.
type pdnsRRSet struct {
	Name     string           `json:"name"`
	Type     string           `json:"type"`
	TTL      int64            `json:"ttl"`
	Records  []zone.SubRecord `json:"records"`
	Comments []zone.Comment   `json:"comments"`
}

// pdnsZoneDetail is the zone detail response carrying the record sets.
type pdnsZoneDetail struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	RRSets []pdnsRRSet `json:"rrsets"`
}

// pdnsError is the API's error body.
type pdnsError struct {
	Error string `json:"error"`
}

// Zones returns the server's zone listing. Any failure here means the
// refresh cannot proceed, so transport and HTTP errors alike are reported
// as *remote.ConnectivityError.
func (c *Client) Zones(ctx context.Context) ([]zone.RemoteZone, error) {
	var listed []pdnsZone
	if err := c.getJSON(ctx, c.zonesPath(), &listed); err != nil {
		return nil, &remote.ConnectivityError{Host: c.baseURL, Err: err}
	}

	c.log.Debug("listed remote zones", "count", len(listed))

	zones := make([]zone.RemoteZone, len(listed))
	for i, z := range listed {
		zones[i] = zone.RemoteZone{
			ID:      z.ID,
			Name:    z.Name,
			Kind:    z.Kind,
			Serial:  z.Serial,
			Account: z.Account,
		}
	}
	return zones, nil
}

// Records returns the record sets of one zone. Failures are scoped: they
// are reported as *remote.FetchError so the caller can skip this zone and
// continue with its siblings.
func (c *Client) Records(ctx context.Context, zoneID string) ([]zone.RemoteRecord, error) {
	var detail pdnsZoneDetail
	if err := c.getJSON(ctx, c.zonesPath()+"/"+url.PathEscape(zoneID), &detail); err != nil {
		return nil, &remote.FetchError{Scope: zoneID, Err: err}
	}

	c.log.Debug("listed remote records", "zone", zoneID, "count", len(detail.RRSets))

	records := make([]zone.RemoteRecord, len(detail.RRSets))
	for i, rs := range detail.RRSets {
		records[i] = zone.RemoteRecord{
			Name:     rs.Name,
			Type:     rs.Type,
			TTL:      rs.TTL,
			Records:  rs.Records,
			Comments: rs.Comments,
		}
	}
	return records, nil
}

func (c *Client) zonesPath() string {
	return "/api/v1/servers/" + url.PathEscape(c.cfg.ServerID) + "/zones"
}

// getJSON issues a GET and decodes the JSON response into out. Non-2xx
// responses are turned into errors carrying the API's error message when
// one is present.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr pdnsError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}
