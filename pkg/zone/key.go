package zone

import (
	"strings"

	"github.com/miekg/dns"

	"zonesync/pkg/reconcile"
)

// RecordExternalID returns the natural key for a record under the current
// scheme: "{TYPE}:{NAME}" with the type upper-cased. The name is stored as
// the server reports it.
func RecordExternalID(recordType, name string) string {
	return strings.ToUpper(recordType) + ":" + name
}

// FriendlyName strips a single trailing dot from a fully-qualified name.
// The FQDN form keeps the dot; the friendly form is what users see.
func FriendlyName(fqdn string) string {
	return strings.TrimSuffix(fqdn, ".")
}

// canonicalKey lowercases a natural key and drops its trailing dot, so
// "A:Foo.Example.COM." and "a:foo.example.com" compare equal. Keys are
// compared in this form only; the stored form is never rewritten here.
func canonicalKey(key string) string {
	return strings.TrimSuffix(dns.CanonicalName(key), ".")
}

func keysEqual(a, b string) bool {
	return canonicalKey(a) == canonicalKey(b)
}

// ZoneMatchers returns the matcher chain for zones: the external ID against
// the remote zone identifier, with friendly-name equality accepted for
// zones cached before external IDs were recorded.
func ZoneMatchers() reconcile.Chain[ZoneSummary, RemoteZone] {
	return reconcile.Chain[ZoneSummary, RemoteZone]{
		func(local ZoneSummary, remote RemoteZone) bool {
			return keysEqual(local.ExternalID, remote.ID)
		},
		func(local ZoneSummary, remote RemoteZone) bool {
			return keysEqual(local.Name, FriendlyName(remote.Name))
		},
	}
}

// RecordMatchers returns the matcher chain for records: the compound
// "{TYPE}:{NAME}" key first, then the legacy bare-name key for records
// synced before the compound scheme was introduced.
func RecordMatchers() reconcile.Chain[RecordSummary, RemoteRecord] {
	return reconcile.Chain[RecordSummary, RemoteRecord]{
		func(local RecordSummary, remote RemoteRecord) bool {
			return keysEqual(local.ExternalID, RecordExternalID(remote.Type, remote.Name))
		},
		func(local RecordSummary, remote RemoteRecord) bool {
			return keysEqual(local.ExternalID, remote.Name)
		},
	}
}
