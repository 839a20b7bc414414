// Package registry holds the externally maintained federation vocabularies: the
// country whitelist, the COI tag registry, per-partner clearance equivalency
// tables, and the email-domain inference table used by enrichment.
//
// # Overview
//
// The vocabularies are loaded once at process start (compiled-in defaults,
// optionally overridden from a YAML file) and exposed as an immutable Snapshot.
// A Store swaps snapshots atomically on reload, so concurrent readers never see
// a partially-updated vocabulary.
//
//	store, err := registry.NewStore(registry.StoreConfig{Path: "/etc/pdp/registry.yaml"})
//	snap := store.Snapshot()
//	if !snap.ValidCountry("FRA") { ... }
//
// # Matching Rules
//
// Country codes must exactly match one of the 39 whitelisted ISO 3166-1 alpha-3
// entries. Alpha-2, numeric, and lowercase forms never match; lookup does not
// normalize, per the coalition vocabulary agreement.
//
// # Hot Reload
//
// Watch starts an fsnotify watcher on the backing file and reloads on change.
// A file that fails to parse leaves the previous snapshot active.
package registry
