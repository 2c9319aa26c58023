// Package store defines the local cache boundary: projection listings,
// batched entity loads, and scope-qualified bulk mutations.
package store

import (
	"context"
	"time"

	"zonesync/pkg/zone"
)

// Integration health states surfaced to users.
const (
	StateOK    = "ok"
	StateError = "error"
)

// Status is the user-visible health of one integration.
type Status struct {
	State     string
	Message   string
	UpdatedAt time.Time
}

// Store is the local cache. Listings return lightweight projections for
// matching; full entities are loaded in one batched call per refresh pass.
// All mutations are bulk and scope-qualified; callers never issue one call
// per item, and skip the call entirely for an empty set.
type Store interface {
	// ZoneSummaries lists the cached zone projections of one integration.
	ZoneSummaries(ctx context.Context, integrationID string) ([]zone.ZoneSummary, error)
	// ZonesByID loads full zones for the given ids in a single batch.
	ZonesByID(ctx context.Context, ids []string) ([]*zone.Zone, error)
	// CreateZones inserts new zones built from the remote listing.
	CreateZones(ctx context.Context, integrationID string, zones []zone.RemoteZone) error
	// SaveZones persists updated payload fields of existing zones.
	SaveZones(ctx context.Context, zones []*zone.Zone) error
	// RemoveZones deletes the given zones and their cached records.
	RemoveZones(ctx context.Context, integrationID string, zones []zone.ZoneSummary) error

	// RecordSummaries lists the cached record projections of one zone.
	RecordSummaries(ctx context.Context, zoneID string) ([]zone.RecordSummary, error)
	// RecordsByID loads full records for the given ids in a single batch.
	RecordsByID(ctx context.Context, ids []string) ([]*zone.Record, error)
	// CreateRecords inserts new records built from the remote listing.
	CreateRecords(ctx context.Context, zoneID string, records []zone.RemoteRecord) error
	// SaveRecords persists updated payload fields of existing records.
	SaveRecords(ctx context.Context, records []*zone.Record) error
	// RemoveRecords deletes the given records.
	RemoveRecords(ctx context.Context, zoneID string, records []zone.RecordSummary) error

	// SetStatus records the integration health after a refresh.
	SetStatus(ctx context.Context, integrationID, state, message string) error
	// Status returns the last recorded integration health.
	Status(ctx context.Context, integrationID string) (Status, error)
}
