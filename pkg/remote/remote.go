// Package remote defines the boundary to the authoritative DNS server and
// the failure taxonomy the sync pipeline branches on.
package remote

import (
	"context"
	"fmt"

	"zonesync/pkg/zone"
)

// Source lists zones and records from the authoritative server.
type Source interface {
	// Zones returns the server's full zone listing. A transport-level
	// failure is reported as *ConnectivityError and aborts the refresh.
	Zones(ctx context.Context) ([]zone.RemoteZone, error)

	// Records returns the record sets of one zone, identified by the
	// server-side zone ID. A failure is reported as *FetchError; the
	// caller skips that zone and proceeds with its siblings.
	Records(ctx context.Context, zoneID string) ([]zone.RemoteRecord, error)
}

// ConnectivityError means the authoritative server is unreachable or
// rejecting all requests. It is fatal to the whole refresh.
type ConnectivityError struct {
	Host string
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("dns server %s unreachable: %v", e.Host, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// FetchError means the listing for one scope failed. The scope is skipped;
// sibling scopes are unaffected.
type FetchError struct {
	Scope string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("listing %s failed: %v", e.Scope, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
