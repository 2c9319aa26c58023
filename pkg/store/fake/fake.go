// Package fake provides an in-memory store.Store implementation for testing.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"zonesync/pkg/store"
	"zonesync/pkg/zone"
)

// Compile-time check that Store satisfies store.Store.
var _ store.Store = (*Store)(nil)

// Call is a snapshot of one store invocation, kept for test assertions.
type Call struct {
	// Op is the method name, e.g. "CreateZones" or "SaveRecords".
	Op string
	// Scope is the owning parent id (integration for zones, zone for
	// records); empty for unscoped calls.
	Scope string
	// Count is the number of items the bulk call carried.
	Count int
}

// Store is an in-memory local cache that records every call for later
// inspection. Mutations can be made to fail per operation name via Fail.
type Store struct {
	mu sync.Mutex

	zones   []*zone.Zone   // insertion order
	records []*zone.Record // insertion order

	status map[string]store.Status

	// Fail maps an operation name to the error that operation returns.
	Fail map[string]error

	calls []Call
}

// New returns an empty Store.
func New() *Store {
	return &Store{status: map[string]store.Status{}, Fail: map[string]error{}}
}

func (s *Store) record(op, scope string, count int) error {
	s.calls = append(s.calls, Call{Op: op, Scope: scope, Count: count})
	return s.Fail[op]
}

// ResetCalls clears the recorded call history. Useful after seeding.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// SeedZone inserts a zone directly, bypassing call recording. The id is
// assigned when empty.
func (s *Store) SeedZone(z zone.Zone) zone.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z.ID == "" {
		z.ID = uuid.NewString()
	}
	cp := z
	s.zones = append(s.zones, &cp)
	return z
}

// SeedRecord inserts a record directly, bypassing call recording. The id
// is assigned when empty.
func (s *Store) SeedRecord(r zone.Record) zone.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cp := r
	s.records = append(s.records, &cp)
	return r
}

// Calls returns every store invocation so far, oldest first.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// MutationCalls returns only the bulk mutation invocations, oldest first.
func (s *Store) MutationCalls() []Call {
	var out []Call
	for _, c := range s.Calls() {
		switch c.Op {
		case "CreateZones", "SaveZones", "RemoveZones",
			"CreateRecords", "SaveRecords", "RemoveRecords":
			out = append(out, c)
		}
	}
	return out
}

// --- Zones ---

func (s *Store) ZoneSummaries(_ context.Context, integrationID string) ([]zone.ZoneSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ZoneSummaries", integrationID, 0); err != nil {
		return nil, err
	}
	var out []zone.ZoneSummary
	for _, z := range s.zones {
		if z.IntegrationID == integrationID {
			out = append(out, z.Summary())
		}
	}
	return out, nil
}

func (s *Store) ZonesByID(_ context.Context, ids []string) ([]*zone.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ZonesByID", "", len(ids)); err != nil {
		return nil, err
	}
	want := toSet(ids)
	var out []*zone.Zone
	for _, z := range s.zones {
		if want[z.ID] {
			cp := *z
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CreateZones(_ context.Context, integrationID string, zones []zone.RemoteZone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("CreateZones", integrationID, len(zones)); err != nil {
		return err
	}
	for _, rz := range zones {
		z := zone.ZoneFromRemote(integrationID, rz)
		z.ID = uuid.NewString()
		s.zones = append(s.zones, z)
	}
	return nil
}

func (s *Store) SaveZones(_ context.Context, zones []*zone.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SaveZones", "", len(zones)); err != nil {
		return err
	}
	for _, saved := range zones {
		for i, z := range s.zones {
			if z.ID == saved.ID {
				cp := *saved
				s.zones[i] = &cp
			}
		}
	}
	return nil
}

func (s *Store) RemoveZones(_ context.Context, integrationID string, zones []zone.ZoneSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("RemoveZones", integrationID, len(zones)); err != nil {
		return err
	}
	gone := map[string]bool{}
	for _, zs := range zones {
		gone[zs.ID] = true
	}
	var kept []*zone.Zone
	for _, z := range s.zones {
		if gone[z.ID] && z.IntegrationID == integrationID {
			continue
		}
		kept = append(kept, z)
	}
	s.zones = kept
	var keptRecords []*zone.Record
	for _, r := range s.records {
		if !gone[r.ZoneID] {
			keptRecords = append(keptRecords, r)
		}
	}
	s.records = keptRecords
	return nil
}

// --- Records ---

func (s *Store) RecordSummaries(_ context.Context, zoneID string) ([]zone.RecordSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("RecordSummaries", zoneID, 0); err != nil {
		return nil, err
	}
	var out []zone.RecordSummary
	for _, r := range s.records {
		if r.ZoneID == zoneID {
			out = append(out, r.Summary())
		}
	}
	return out, nil
}

func (s *Store) RecordsByID(_ context.Context, ids []string) ([]*zone.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("RecordsByID", "", len(ids)); err != nil {
		return nil, err
	}
	want := toSet(ids)
	var out []*zone.Record
	for _, r := range s.records {
		if want[r.ID] {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) CreateRecords(_ context.Context, zoneID string, records []zone.RemoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("CreateRecords", zoneID, len(records)); err != nil {
		return err
	}
	for _, rr := range records {
		r := zone.RecordFromRemote(zoneID, rr)
		r.ID = uuid.NewString()
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Store) SaveRecords(_ context.Context, records []*zone.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SaveRecords", "", len(records)); err != nil {
		return err
	}
	for _, saved := range records {
		for i, r := range s.records {
			if r.ID == saved.ID {
				cp := *saved
				s.records[i] = &cp
			}
		}
	}
	return nil
}

func (s *Store) RemoveRecords(_ context.Context, zoneID string, records []zone.RecordSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("RemoveRecords", zoneID, len(records)); err != nil {
		return err
	}
	gone := map[string]bool{}
	for _, rs := range records {
		gone[rs.ID] = true
	}
	var kept []*zone.Record
	for _, r := range s.records {
		if gone[r.ID] && r.ZoneID == zoneID {
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return nil
}

// --- Status ---

func (s *Store) SetStatus(_ context.Context, integrationID, state, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SetStatus", integrationID, 0); err != nil {
		return err
	}
	s.status[integrationID] = store.Status{State: state, Message: message}
	return nil
}

func (s *Store) Status(_ context.Context, integrationID string) (store.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[integrationID]
	if !ok {
		return store.Status{State: store.StateOK}, nil
	}
	return st, nil
}

// --- Test inspection helpers ---

// Zones returns copies of all cached zones in insertion order.
func (s *Store) Zones() []zone.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]zone.Zone, len(s.zones))
	for i, z := range s.zones {
		out[i] = *z
	}
	return out
}

// Records returns copies of all cached records in insertion order.
func (s *Store) Records() []zone.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]zone.Record, len(s.records))
	for i, r := range s.records {
		out[i] = *r
	}
	return out
}

// ZoneByExternalID returns the cached zone with the given external ID.
func (s *Store) ZoneByExternalID(externalID string) (zone.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, z := range s.zones {
		if z.ExternalID == externalID {
			return *z, nil
		}
	}
	return zone.Zone{}, fmt.Errorf("no zone with external id %q", externalID)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
