// Package zone defines the remote and local representations of DNS zones
// and records, and the natural-key scheme used to match them.
package zone

import (
	"fmt"
	"strings"
)

// DNS record type constants for the types commonly seen in managed zones.
const (
	RecordTypeA     = "A"
	RecordTypeAAAA  = "AAAA"
	RecordTypeCNAME = "CNAME"
	RecordTypeMX    = "MX"
	RecordTypeNS    = "NS"
	RecordTypeSOA   = "SOA"
	RecordTypeTXT   = "TXT"
)

// RemoteZone is a zone as the authoritative server lists it.
type RemoteZone struct {
	// ID is the server-side zone identifier, a fully-qualified name
	// (e.g. "example.com.").
	ID string `json:"id"`
	// Name is the fully-qualified zone name, trailing dot included.
	Name string `json:"name"`
	// Kind is the server's zone kind, e.g. "Master", "Slave", "Native".
	Kind string `json:"kind"`
	// Serial is the zone's SOA serial.
	Serial int64 `json:"serial"`
	// Account is the account tag the server associates with the zone.
	Account string `json:"account"`
}

// SubRecord is one value of a record set under the older rrset-less server
// schema, where a name/type pair carries multiple content rows.
type SubRecord struct {
	Content  string `json:"content"`
	Disabled bool   `json:"disabled"`
}

// Comment is a server-side annotation attached to a record set.
type Comment struct {
	Content string `json:"content"`
	Account string `json:"account"`
}

// RemoteRecord is a record set as the authoritative server lists it.
// Later server schemas report a flat Content string; older ones report
// one SubRecord per value. CanonicalContent folds both into one form.
type RemoteRecord struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	TTL      int64       `json:"ttl"`
	Content  string      `json:"content,omitempty"`
	Records  []SubRecord `json:"records,omitempty"`
	Comments []Comment   `json:"comments,omitempty"`
}

// CanonicalContent returns the single content string used for local
// storage and change detection: the flat Content when the server reports
// one, otherwise the sub-record contents joined with newlines in listing
// order.
func (rr RemoteRecord) CanonicalContent() string {
	if rr.Content != "" {
		return rr.Content
	}
	if len(rr.Records) == 0 {
		return ""
	}
	parts := make([]string, len(rr.Records))
	for i, sub := range rr.Records {
		parts[i] = sub.Content
	}
	return strings.Join(parts, "\n")
}

// CanonicalComments returns the comment contents joined with newlines.
func (rr RemoteRecord) CanonicalComments() string {
	if len(rr.Comments) == 0 {
		return ""
	}
	parts := make([]string, len(rr.Comments))
	for i, c := range rr.Comments {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n")
}

// String returns a human-readable representation of the record set.
func (rr RemoteRecord) String() string {
	return fmt.Sprintf("%s %s %q (TTL %d)", rr.Name, rr.Type, rr.CanonicalContent(), rr.TTL)
}

// ZoneSummary is the lightweight projection of a locally cached zone,
// carrying only the fields needed for matching.
type ZoneSummary struct {
	ID            string
	IntegrationID string
	ExternalID    string
	Name          string
}

// RecordSummary is the lightweight projection of a locally cached record.
type RecordSummary struct {
	ID         string
	ZoneID     string
	ExternalID string
	Name       string
}

// Zone is the full locally cached zone. ID is assigned on create and never
// changes; the remaining fields follow the remote listing.
type Zone struct {
	ID            string
	IntegrationID string
	ExternalID    string
	Name          string
	FQDN          string
	Kind          string
	Serial        int64
	Account       string
}

// Summary returns the matching projection for z.
func (z *Zone) Summary() ZoneSummary {
	return ZoneSummary{ID: z.ID, IntegrationID: z.IntegrationID, ExternalID: z.ExternalID, Name: z.Name}
}

// ApplyRemote overwrites z's payload fields from the remote listing and
// reports whether anything changed. Unchanged zones must stay out of the
// save batch, so callers skip saving when this returns false.
func (z *Zone) ApplyRemote(rz RemoteZone) bool {
	changed := false
	set := func(dst *string, v string) {
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&z.ExternalID, rz.ID)
	set(&z.Name, FriendlyName(rz.Name))
	set(&z.FQDN, rz.Name)
	set(&z.Kind, rz.Kind)
	set(&z.Account, rz.Account)
	if z.Serial != rz.Serial {
		z.Serial = rz.Serial
		changed = true
	}
	return changed
}

// ZoneFromRemote builds a new local zone (without an ID) from a remote
// listing entry.
func ZoneFromRemote(integrationID string, rz RemoteZone) *Zone {
	z := &Zone{IntegrationID: integrationID}
	z.ApplyRemote(rz)
	return z
}

// Record is the full locally cached record.
type Record struct {
	ID         string
	ZoneID     string
	ExternalID string
	Name       string
	Type       string
	Content    string
	TTL        int64
	Comments   string
}

// Summary returns the matching projection for r.
func (r *Record) Summary() RecordSummary {
	return RecordSummary{ID: r.ID, ZoneID: r.ZoneID, ExternalID: r.ExternalID, Name: r.Name}
}

// ApplyRemote overwrites r's payload fields from the remote listing and
// reports whether anything changed. The external ID is rewritten to the
// current compound scheme, upgrading records that still carry a legacy
// bare-name key.
func (r *Record) ApplyRemote(rr RemoteRecord) bool {
	changed := false
	set := func(dst *string, v string) {
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&r.ExternalID, RecordExternalID(rr.Type, rr.Name))
	set(&r.Name, rr.Name)
	set(&r.Type, rr.Type)
	set(&r.Content, rr.CanonicalContent())
	set(&r.Comments, rr.CanonicalComments())
	if r.TTL != rr.TTL {
		r.TTL = rr.TTL
		changed = true
	}
	return changed
}

// RecordFromRemote builds a new local record (without an ID) from a remote
// listing entry, scoped to the given zone.
func RecordFromRemote(zoneID string, rr RemoteRecord) *Record {
	r := &Record{ZoneID: zoneID}
	r.ApplyRemote(rr)
	return r
}
