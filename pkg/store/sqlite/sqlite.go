// Package sqlite implements store.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"zonesync/pkg/store"
	"zonesync/pkg/zone"
)

// Compile-time check that Store satisfies store.Store.
var _ store.Store = (*Store)(nil)

// Store is a SQLite-backed local cache.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS zones (
            id             TEXT PRIMARY KEY,
            integration_id TEXT    NOT NULL,
            external_id    TEXT    NOT NULL DEFAULT '',
            name           TEXT    NOT NULL DEFAULT '',
            fqdn           TEXT    NOT NULL DEFAULT '',
            kind           TEXT    NOT NULL DEFAULT '',
            serial         INTEGER NOT NULL DEFAULT 0,
            account        TEXT    NOT NULL DEFAULT ''
        );
        CREATE INDEX IF NOT EXISTS idx_zones_integration ON zones(integration_id);

        CREATE TABLE IF NOT EXISTS records (
            id          TEXT PRIMARY KEY,
            zone_id     TEXT    NOT NULL REFERENCES zones(id) ON DELETE CASCADE,
            external_id TEXT    NOT NULL DEFAULT '',
            name        TEXT    NOT NULL DEFAULT '',
            type        TEXT    NOT NULL DEFAULT '',
            content     TEXT    NOT NULL DEFAULT '',
            ttl         INTEGER NOT NULL DEFAULT 0,
            comments    TEXT    NOT NULL DEFAULT ''
        );
        CREATE INDEX IF NOT EXISTS idx_records_zone ON records(zone_id);

        CREATE TABLE IF NOT EXISTS integration_status (
            integration_id TEXT PRIMARY KEY,
            state          TEXT NOT NULL,
            message        TEXT NOT NULL DEFAULT '',
            updated_at     TEXT NOT NULL
        );
    `
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migration failed: %w", err)
	}
	return nil
}

// --- Zones ---

// ZoneSummaries lists the projection fields of one integration's zones in
// insertion order.
func (s *Store) ZoneSummaries(ctx context.Context, integrationID string) ([]zone.ZoneSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, integration_id, external_id, name
        FROM zones WHERE integration_id = ? ORDER BY rowid`, integrationID)
	if err != nil {
		return nil, fmt.Errorf("store: list zone summaries: %w", err)
	}
	defer rows.Close()

	var out []zone.ZoneSummary
	for rows.Next() {
		var zs zone.ZoneSummary
		if err := rows.Scan(&zs.ID, &zs.IntegrationID, &zs.ExternalID, &zs.Name); err != nil {
			return nil, fmt.Errorf("store: scan zone summary: %w", err)
		}
		out = append(out, zs)
	}
	return out, rows.Err()
}

// ZonesByID loads full zones for the given ids in one query.
func (s *Store) ZonesByID(ctx context.Context, ids []string) ([]*zone.Zone, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
        SELECT id, integration_id, external_id, name, fqdn, kind, serial, account
        FROM zones WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, query, toAny(ids)...)
	if err != nil {
		return nil, fmt.Errorf("store: load zones: %w", err)
	}
	defer rows.Close()

	var out []*zone.Zone
	for rows.Next() {
		z := &zone.Zone{}
		if err := rows.Scan(&z.ID, &z.IntegrationID, &z.ExternalID, &z.Name, &z.FQDN, &z.Kind, &z.Serial, &z.Account); err != nil {
			return nil, fmt.Errorf("store: scan zone: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// CreateZones inserts one row per remote zone, assigning fresh ids, in a
// single transaction.
func (s *Store) CreateZones(ctx context.Context, integrationID string, zones []zone.RemoteZone) error {
	if len(zones) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            INSERT INTO zones (id, integration_id, external_id, name, fqdn, kind, serial, account)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, rz := range zones {
			z := zone.ZoneFromRemote(integrationID, rz)
			z.ID = uuid.NewString()
			if _, err := stmt.ExecContext(ctx, z.ID, z.IntegrationID, z.ExternalID, z.Name, z.FQDN, z.Kind, z.Serial, z.Account); err != nil {
				return err
			}
		}
		return nil
	}, "create zones")
}

// SaveZones overwrites the payload fields of existing zones in a single
// transaction. IDs are never touched.
func (s *Store) SaveZones(ctx context.Context, zones []*zone.Zone) error {
	if len(zones) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            UPDATE zones SET external_id = ?, name = ?, fqdn = ?, kind = ?, serial = ?, account = ?
            WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, z := range zones {
			if _, err := stmt.ExecContext(ctx, z.ExternalID, z.Name, z.FQDN, z.Kind, z.Serial, z.Account, z.ID); err != nil {
				return err
			}
		}
		return nil
	}, "save zones")
}

// RemoveZones deletes the given zones; their records go with them via the
// foreign-key cascade.
func (s *Store) RemoveZones(ctx context.Context, integrationID string, zones []zone.ZoneSummary) error {
	if len(zones) == 0 {
		return nil
	}
	ids := make([]string, len(zones))
	for i, zs := range zones {
		ids[i] = zs.ID
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		query := `DELETE FROM zones WHERE integration_id = ? AND id IN (` + placeholders(len(ids)) + `)`
		args := append([]any{integrationID}, toAny(ids)...)
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}, "remove zones")
}

// --- Records ---

// RecordSummaries lists the projection fields of one zone's records in
// insertion order.
func (s *Store) RecordSummaries(ctx context.Context, zoneID string) ([]zone.RecordSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, zone_id, external_id, name
        FROM records WHERE zone_id = ? ORDER BY rowid`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("store: list record summaries: %w", err)
	}
	defer rows.Close()

	var out []zone.RecordSummary
	for rows.Next() {
		var rs zone.RecordSummary
		if err := rows.Scan(&rs.ID, &rs.ZoneID, &rs.ExternalID, &rs.Name); err != nil {
			return nil, fmt.Errorf("store: scan record summary: %w", err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// RecordsByID loads full records for the given ids in one query.
func (s *Store) RecordsByID(ctx context.Context, ids []string) ([]*zone.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
        SELECT id, zone_id, external_id, name, type, content, ttl, comments
        FROM records WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, query, toAny(ids)...)
	if err != nil {
		return nil, fmt.Errorf("store: load records: %w", err)
	}
	defer rows.Close()

	var out []*zone.Record
	for rows.Next() {
		r := &zone.Record{}
		if err := rows.Scan(&r.ID, &r.ZoneID, &r.ExternalID, &r.Name, &r.Type, &r.Content, &r.TTL, &r.Comments); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateRecords inserts one row per remote record, assigning fresh ids, in
// a single transaction.
func (s *Store) CreateRecords(ctx context.Context, zoneID string, records []zone.RemoteRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            INSERT INTO records (id, zone_id, external_id, name, type, content, ttl, comments)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, rr := range records {
			r := zone.RecordFromRemote(zoneID, rr)
			r.ID = uuid.NewString()
			if _, err := stmt.ExecContext(ctx, r.ID, r.ZoneID, r.ExternalID, r.Name, r.Type, r.Content, r.TTL, r.Comments); err != nil {
				return err
			}
		}
		return nil
	}, "create records")
}

// SaveRecords overwrites the payload fields of existing records in a
// single transaction.
func (s *Store) SaveRecords(ctx context.Context, records []*zone.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
            UPDATE records SET external_id = ?, name = ?, type = ?, content = ?, ttl = ?, comments = ?
            WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, r.ExternalID, r.Name, r.Type, r.Content, r.TTL, r.Comments, r.ID); err != nil {
				return err
			}
		}
		return nil
	}, "save records")
}

// RemoveRecords deletes the given records.
func (s *Store) RemoveRecords(ctx context.Context, zoneID string, records []zone.RecordSummary) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	for i, rs := range records {
		ids[i] = rs.ID
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		query := `DELETE FROM records WHERE zone_id = ? AND id IN (` + placeholders(len(ids)) + `)`
		args := append([]any{zoneID}, toAny(ids)...)
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}, "remove records")
}

// --- Status ---

// SetStatus upserts the integration health row.
func (s *Store) SetStatus(ctx context.Context, integrationID, state, message string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO integration_status (integration_id, state, message, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(integration_id) DO UPDATE SET state = excluded.state,
            message = excluded.message, updated_at = excluded.updated_at`,
		integrationID, state, message, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: set status: %w", err)
	}
	return nil
}

// Status returns the last recorded integration health. An integration with
// no recorded status reports StateOK with an empty message.
func (s *Store) Status(ctx context.Context, integrationID string) (store.Status, error) {
	var (
		st store.Status
		ts string
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT state, message, updated_at FROM integration_status
        WHERE integration_id = ?`, integrationID).Scan(&st.State, &st.Message, &ts)
	if err == sql.ErrNoRows {
		return store.Status{State: store.StateOK}, nil
	}
	if err != nil {
		return store.Status{}, fmt.Errorf("store: read status: %w", err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
		st.UpdatedAt = t
	}
	return st, nil
}

// --- helpers ---

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error, op string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin %s: %w", op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s: %w", op, err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
