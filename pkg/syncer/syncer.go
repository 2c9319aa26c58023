// Package syncer drives the zone and record reconciliation pipeline
// against the local cache.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"zonesync/pkg/reconcile"
	"zonesync/pkg/remote"
	"zonesync/pkg/store"
	"zonesync/pkg/zone"
)

// Prometheus metrics registered on the default registry.
var (
	refreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonesync_refreshes_total",
		Help: "Total number of refresh cycles by result.",
	}, []string{"result"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zonesync_refresh_duration_seconds",
		Help:    "Duration of refresh cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	zonesManaged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonesync_zones_managed",
		Help: "Number of zones the remote server listed in the last refresh.",
	})

	recordsManaged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonesync_records_managed",
		Help: "Number of records listed across all zones in the last refresh.",
	})

	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonesync_mutations_total",
		Help: "Total number of cached items mutated by operation and result.",
	}, []string{"op", "result"})

	zonesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zonesync_zones_skipped_total",
		Help: "Total number of zones skipped because their record listing failed.",
	})
)

// MutationError means a bulk create, save, or remove against the local
// cache failed. It is a partial-failure signal: sibling scopes proceed and
// already-applied mutations are not rolled back.
type MutationError struct {
	Op    string
	Scope string
	Err   error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s for %s failed: %v", e.Op, e.Scope, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Config holds syncer tuning parameters.
type Config struct {
	// IntegrationID scopes the cached zones this syncer owns.
	IntegrationID string
	// ZoneBatchSize bounds how many zones are grouped per record-pass
	// batch. Default: 50.
	ZoneBatchSize int
	// Interval is the periodic refresh interval. Default: 5m.
	Interval time.Duration
	// BackoffBase is the starting duration for exponential backoff on
	// consecutive refresh failures. Default: 5s.
	BackoffBase time.Duration
	// BackoffMax is the ceiling for exponential backoff. Default: 5m.
	BackoffMax time.Duration
	// DryRun logs planned changes without mutating the cache.
	DryRun bool
	// Once causes Run to execute exactly one refresh then return.
	Once bool
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.ZoneBatchSize <= 0 {
		c.ZoneBatchSize = 50
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 5 * time.Minute
	}
}

// Syncer mirrors the remote zone listing into the local cache. One refresh
// is a single logical pipeline: the zone pass completes first, then each
// zone's record pass runs strictly in order, a zone's mutations finishing
// before the next zone starts.
type Syncer struct {
	remote remote.Source
	store  store.Store
	log    *slog.Logger
	cfg    Config
	ready  atomic.Bool // set true after first successful refresh
}

// New returns a Syncer wired with the given source, store, and config.
func New(src remote.Source, st store.Store, log *slog.Logger, cfg Config) *Syncer {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{remote: src, store: st, log: log, cfg: cfg}
}

// IsReady reports whether at least one refresh has completed successfully.
func (s *Syncer) IsReady() bool {
	return s.ready.Load()
}

// Refresh executes one full refresh: zones first, then records zone by
// zone in batches of ZoneBatchSize.
//
// A connectivity failure aborts the whole refresh before any mutation and
// marks the integration degraded. A single zone's record-listing failure
// skips that zone only. Mutation failures are collected and surfaced
// together; sibling zones still complete.
func (s *Syncer) Refresh(ctx context.Context) (retErr error) {
	start := time.Now()
	defer func() {
		refreshDuration.Observe(time.Since(start).Seconds())
		if retErr == nil {
			refreshesTotal.WithLabelValues("success").Inc()
			s.ready.Store(true)
		} else {
			refreshesTotal.WithLabelValues("error").Inc()
		}
	}()

	remoteZones, err := s.remote.Zones(ctx)
	if err != nil {
		s.setStatus(ctx, store.StateError, err.Error())
		return fmt.Errorf("list remote zones: %w", err)
	}
	zonesManaged.Set(float64(len(remoteZones)))

	if err := s.reconcileZones(ctx, remoteZones); err != nil {
		s.setStatus(ctx, store.StateError, err.Error())
		return err
	}

	// Re-list after the zone pass so record passes see fresh ids and
	// upgraded external IDs.
	summaries, err := s.store.ZoneSummaries(ctx, s.cfg.IntegrationID)
	if err != nil {
		s.setStatus(ctx, store.StateError, err.Error())
		return fmt.Errorf("list cached zones: %w", err)
	}

	var (
		failures     []error
		totalRecords int
	)
	for _, batch := range reconcile.Chunk(summaries, s.cfg.ZoneBatchSize) {
		for _, zs := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := s.refreshZoneRecords(ctx, zs)
			totalRecords += n
			if err == nil {
				continue
			}
			var fetchErr *remote.FetchError
			if errors.As(err, &fetchErr) {
				zonesSkippedTotal.Inc()
				s.log.Warn("skipping zone, record listing failed",
					"zone", zs.Name, "err", err)
				continue
			}
			failures = append(failures, err)
			s.log.Error("zone record pass failed", "zone", zs.Name, "err", err)
		}
	}
	recordsManaged.Set(float64(totalRecords))

	if len(failures) > 0 {
		s.setStatus(ctx, store.StateError,
			fmt.Sprintf("%d of %d zones failed to sync", len(failures), len(summaries)))
		return errors.Join(failures...)
	}

	s.setStatus(ctx, store.StateOK, "")
	return nil
}

// reconcileZones diffs the remote zone listing against the cached zone
// projections and applies the resulting create, save, and remove sets.
func (s *Syncer) reconcileZones(ctx context.Context, remoteZones []zone.RemoteZone) error {
	summaries, err := s.store.ZoneSummaries(ctx, s.cfg.IntegrationID)
	if err != nil {
		return fmt.Errorf("list cached zones: %w", err)
	}

	res := reconcile.Diff(summaries, remoteZones, zone.ZoneMatchers())

	s.log.Info("zone pass classified",
		"add", len(res.ToAdd), "update", len(res.ToUpdate), "delete", len(res.ToDelete))

	if s.cfg.DryRun {
		s.logZonePlan(&res)
		return nil
	}

	if len(res.ToAdd) > 0 {
		if err := s.store.CreateZones(ctx, s.cfg.IntegrationID, res.ToAdd); err != nil {
			mutationsTotal.WithLabelValues("create", "error").Add(float64(len(res.ToAdd)))
			return &MutationError{Op: "create zones", Scope: s.cfg.IntegrationID, Err: err}
		}
		mutationsTotal.WithLabelValues("create", "success").Add(float64(len(res.ToAdd)))
	}

	dirty, err := s.dirtyZones(ctx, res.ToUpdate)
	if err != nil {
		return err
	}
	if len(dirty) > 0 {
		if err := s.store.SaveZones(ctx, dirty); err != nil {
			mutationsTotal.WithLabelValues("save", "error").Add(float64(len(dirty)))
			return &MutationError{Op: "save zones", Scope: s.cfg.IntegrationID, Err: err}
		}
		mutationsTotal.WithLabelValues("save", "success").Add(float64(len(dirty)))
	}

	if len(res.ToDelete) > 0 {
		if err := s.store.RemoveZones(ctx, s.cfg.IntegrationID, res.ToDelete); err != nil {
			mutationsTotal.WithLabelValues("remove", "error").Add(float64(len(res.ToDelete)))
			return &MutationError{Op: "remove zones", Scope: s.cfg.IntegrationID, Err: err}
		}
		mutationsTotal.WithLabelValues("remove", "success").Add(float64(len(res.ToDelete)))
	}

	return nil
}

// dirtyZones loads the full zones behind the matched pairs in one batched
// call, applies the remote fields, and returns only the zones that
// actually changed. Unchanged zones never reach the save batch.
func (s *Syncer) dirtyZones(ctx context.Context, pairs []reconcile.Pair[zone.ZoneSummary, zone.RemoteZone]) ([]*zone.Zone, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p.Local.ID
	}
	zones, err := s.store.ZonesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load zones for update: %w", err)
	}
	byID := make(map[string]*zone.Zone, len(zones))
	for _, z := range zones {
		byID[z.ID] = z
	}

	var dirty []*zone.Zone
	for _, p := range pairs {
		z, ok := byID[p.Local.ID]
		if !ok {
			s.log.Warn("zone projection has no cached entity", "id", p.Local.ID)
			continue
		}
		if z.ApplyRemote(p.Remote) {
			dirty = append(dirty, z)
		}
	}
	return dirty, nil
}

// refreshZoneRecords reconciles one zone's records and returns how many
// record sets the remote listing carried.
func (s *Syncer) refreshZoneRecords(ctx context.Context, zs zone.ZoneSummary) (int, error) {
	remoteRecords, err := s.remote.Records(ctx, zs.ExternalID)
	if err != nil {
		return 0, err
	}

	summaries, err := s.store.RecordSummaries(ctx, zs.ID)
	if err != nil {
		return len(remoteRecords), fmt.Errorf("list cached records for %s: %w", zs.Name, err)
	}

	res := reconcile.Diff(summaries, remoteRecords, zone.RecordMatchers())

	s.log.Debug("record pass classified", "zone", zs.Name,
		"add", len(res.ToAdd), "update", len(res.ToUpdate), "delete", len(res.ToDelete))

	if s.cfg.DryRun {
		s.logRecordPlan(zs, &res)
		return len(remoteRecords), nil
	}

	if len(res.ToAdd) > 0 {
		if err := s.store.CreateRecords(ctx, zs.ID, res.ToAdd); err != nil {
			mutationsTotal.WithLabelValues("create", "error").Add(float64(len(res.ToAdd)))
			return len(remoteRecords), &MutationError{Op: "create records", Scope: zs.Name, Err: err}
		}
		mutationsTotal.WithLabelValues("create", "success").Add(float64(len(res.ToAdd)))
	}

	dirty, err := s.dirtyRecords(ctx, zs, res.ToUpdate)
	if err != nil {
		return len(remoteRecords), err
	}
	if len(dirty) > 0 {
		if err := s.store.SaveRecords(ctx, dirty); err != nil {
			mutationsTotal.WithLabelValues("save", "error").Add(float64(len(dirty)))
			return len(remoteRecords), &MutationError{Op: "save records", Scope: zs.Name, Err: err}
		}
		mutationsTotal.WithLabelValues("save", "success").Add(float64(len(dirty)))
	}

	if len(res.ToDelete) > 0 {
		if err := s.store.RemoveRecords(ctx, zs.ID, res.ToDelete); err != nil {
			mutationsTotal.WithLabelValues("remove", "error").Add(float64(len(res.ToDelete)))
			return len(remoteRecords), &MutationError{Op: "remove records", Scope: zs.Name, Err: err}
		}
		mutationsTotal.WithLabelValues("remove", "success").Add(float64(len(res.ToDelete)))
	}

	return len(remoteRecords), nil
}

// dirtyRecords is the record-side counterpart of dirtyZones: one batched
// load, remote fields applied, unchanged records dropped.
func (s *Syncer) dirtyRecords(ctx context.Context, zs zone.ZoneSummary, pairs []reconcile.Pair[zone.RecordSummary, zone.RemoteRecord]) ([]*zone.Record, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p.Local.ID
	}
	records, err := s.store.RecordsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load records for update in %s: %w", zs.Name, err)
	}
	byID := make(map[string]*zone.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	var dirty []*zone.Record
	for _, p := range pairs {
		r, ok := byID[p.Local.ID]
		if !ok {
			s.log.Warn("record projection has no cached entity", "id", p.Local.ID, "zone", zs.Name)
			continue
		}
		if r.ApplyRemote(p.Remote) {
			dirty = append(dirty, r)
		}
	}
	return dirty, nil
}

// setStatus records the integration health; a failure here is logged, not
// propagated, so it never masks the refresh outcome.
func (s *Syncer) setStatus(ctx context.Context, state, message string) {
	if s.cfg.DryRun {
		return
	}
	if err := s.store.SetStatus(ctx, s.cfg.IntegrationID, state, message); err != nil {
		s.log.Warn("recording integration status failed", "err", err)
	}
}

// logZonePlan logs the planned zone changes at INFO level for dry-run
// inspection.
func (s *Syncer) logZonePlan(res *reconcile.Result[zone.ZoneSummary, zone.RemoteZone]) {
	for _, rz := range res.ToAdd {
		s.log.Info("dry-run: would create zone", "name", rz.Name, "kind", rz.Kind)
	}
	for _, p := range res.ToUpdate {
		s.log.Info("dry-run: would refresh zone", "name", p.Local.Name, "serial", p.Remote.Serial)
	}
	for _, zs := range res.ToDelete {
		s.log.Info("dry-run: would delete zone", "name", zs.Name)
	}
}

// logRecordPlan logs the planned record changes for one zone.
func (s *Syncer) logRecordPlan(zs zone.ZoneSummary, res *reconcile.Result[zone.RecordSummary, zone.RemoteRecord]) {
	for _, rr := range res.ToAdd {
		s.log.Info("dry-run: would create record", "zone", zs.Name, "name", rr.Name, "type", rr.Type)
	}
	for _, p := range res.ToUpdate {
		s.log.Info("dry-run: would refresh record", "zone", zs.Name, "name", p.Remote.Name, "type", p.Remote.Type)
	}
	for _, rs := range res.ToDelete {
		s.log.Info("dry-run: would delete record", "zone", zs.Name, "name", rs.Name)
	}
}
