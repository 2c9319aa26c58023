// Package fake provides an in-memory remote.Source implementation for testing.
package fake

import (
	"context"
	"sync"

	"zonesync/pkg/remote"
	"zonesync/pkg/zone"
)

// Compile-time check that Source satisfies remote.Source.
var _ remote.Source = (*Source)(nil)

// Source is an in-memory remote listing for testing. Zone and per-zone
// record listings are seeded up front; individual scopes can be made to
// fail via ZonesErr and RecordErrs.
type Source struct {
	mu sync.Mutex

	zones   []zone.RemoteZone
	records map[string][]zone.RemoteRecord

	// ZonesErr, when set, is returned by every Zones call.
	ZonesErr error
	// RecordErrs maps a zone ID to the error its Records call returns.
	RecordErrs map[string]error

	zoneCalls   int
	recordCalls []string
}

// New returns a Source seeded with the given zones and records keyed by
// zone ID.
func New(zones []zone.RemoteZone, records map[string][]zone.RemoteRecord) *Source {
	if records == nil {
		records = map[string][]zone.RemoteRecord{}
	}
	return &Source{zones: zones, records: records}
}

// Zones returns the seeded zone listing (or ZonesErr).
func (s *Source) Zones(_ context.Context) ([]zone.RemoteZone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoneCalls++
	if s.ZonesErr != nil {
		return nil, s.ZonesErr
	}
	out := make([]zone.RemoteZone, len(s.zones))
	copy(out, s.zones)
	return out, nil
}

// Records returns the seeded records for zoneID (or its injected error).
func (s *Source) Records(_ context.Context, zoneID string) ([]zone.RemoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordCalls = append(s.recordCalls, zoneID)
	if err := s.RecordErrs[zoneID]; err != nil {
		return nil, err
	}
	rs := s.records[zoneID]
	out := make([]zone.RemoteRecord, len(rs))
	copy(out, rs)
	return out, nil
}

// SetZones replaces the seeded zone listing.
func (s *Source) SetZones(zones []zone.RemoteZone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = zones
}

// SetRecords replaces the seeded records for one zone.
func (s *Source) SetRecords(zoneID string, records []zone.RemoteRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[zoneID] = records
}

// ZoneCalls returns how many times Zones was called.
func (s *Source) ZoneCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoneCalls
}

// RecordCalls returns the zone IDs passed to Records, in call order.
func (s *Source) RecordCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.recordCalls))
	copy(out, s.recordCalls)
	return out
}
