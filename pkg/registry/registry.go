package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/dive-federation/pdp/pkg/attributes"
)

// Snapshot is an immutable view of the federation vocabularies. All lookups are
// exact and case sensitive.
type Snapshot struct {
	countries      map[string]struct{}
	cois           map[string]struct{}
	clearanceMaps  map[string]map[string]attributes.Clearance
	domainCountry  map[string]string
	defaultCountry string
}

// ValidCountry reports whether code is one of the whitelisted ISO 3166-1
// alpha-3 codes. "FR", "250", and "fra" are all invalid.
func (s *Snapshot) ValidCountry(code string) bool {
	_, ok := s.countries[code]
	return ok
}

// ValidCOI reports whether tag is a registered community-of-interest tag.
func (s *Snapshot) ValidCOI(tag string) bool {
	_, ok := s.cois[tag]
	return ok
}

// MapClearance maps a partner clearance string to its canonical level using the
// equivalency table of the given IdP alias. Unmapped values are rejected, never
// guessed.
func (s *Snapshot) MapClearance(idpAlias, raw string) (attributes.Clearance, bool) {
	table, ok := s.clearanceMaps[idpAlias]
	if !ok {
		// Unknown partners get no bespoke vocabulary, only canonical names.
		c := attributes.Clearance(raw)
		return c, c.Valid()
	}
	c, ok := table[raw]
	return c, ok
}

// CountryForDomain returns the country associated with an email domain in the
// government/military/contractor table. Lookup is lowercased: DNS names are
// case insensitive, unlike country codes.
func (s *Snapshot) CountryForDomain(domain string) (string, bool) {
	c, ok := s.domainCountry[strings.ToLower(domain)]
	return c, ok
}

// DefaultCountry returns the configured fallback country for subjects whose
// email domain is not in the table. Empty means no fallback is configured.
func (s *Snapshot) DefaultCountry() string {
	return s.defaultCountry
}

// Countries returns the whitelist in sorted order.
func (s *Snapshot) Countries() []string {
	out := make([]string, 0, len(s.countries))
	for c := range s.countries {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// COIs returns the registered community tags in sorted order.
func (s *Snapshot) COIs() []string {
	out := make([]string, 0, len(s.cois))
	for c := range s.cois {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// File is the on-disk YAML layout. Sections left empty fall back to the
// compiled-in defaults, so a deployment can override just its domain table.
type File struct {
	Countries      []string                     `yaml:"countries"`
	COIs           []string                     `yaml:"cois"`
	DefaultCountry string                       `yaml:"defaultCountry"`
	Domains        map[string]string            `yaml:"domains"`
	ClearanceMaps  map[string]map[string]string `yaml:"clearanceMaps"`
}

func buildSnapshot(f File) (*Snapshot, error) {
	snap := &Snapshot{
		countries:      make(map[string]struct{}, len(f.Countries)),
		cois:           make(map[string]struct{}, len(f.COIs)),
		clearanceMaps:  make(map[string]map[string]attributes.Clearance, len(f.ClearanceMaps)),
		domainCountry:  make(map[string]string, len(f.Domains)),
		defaultCountry: f.DefaultCountry,
	}

	for _, c := range f.Countries {
		if len(c) != 3 || c != strings.ToUpper(c) {
			return nil, fmt.Errorf("country whitelist entry %q is not ISO 3166-1 alpha-3", c)
		}
		snap.countries[c] = struct{}{}
	}
	for _, tag := range f.COIs {
		if tag == "" {
			return nil, fmt.Errorf("empty COI tag in registry")
		}
		snap.cois[tag] = struct{}{}
	}
	for idp, table := range f.ClearanceMaps {
		mapped := make(map[string]attributes.Clearance, len(table))
		for raw, canonical := range table {
			c := attributes.Clearance(canonical)
			if !c.Valid() {
				return nil, fmt.Errorf("clearance map %s: %q maps to unknown level %q", idp, raw, canonical)
			}
			mapped[raw] = c
		}
		snap.clearanceMaps[idp] = mapped
	}
	for domain, country := range f.Domains {
		if _, ok := snap.countries[country]; !ok {
			return nil, fmt.Errorf("domain %s maps to non-whitelisted country %q", domain, country)
		}
		snap.domainCountry[strings.ToLower(domain)] = country
	}
	if f.DefaultCountry != "" {
		if _, ok := snap.countries[f.DefaultCountry]; !ok {
			return nil, fmt.Errorf("default country %q is not whitelisted", f.DefaultCountry)
		}
	}

	return snap, nil
}

// merge overlays non-empty sections of override onto base.
func merge(base, override File) File {
	out := base
	if len(override.Countries) > 0 {
		out.Countries = override.Countries
	}
	if len(override.COIs) > 0 {
		out.COIs = override.COIs
	}
	if override.DefaultCountry != "" {
		out.DefaultCountry = override.DefaultCountry
	}
	if len(override.Domains) > 0 {
		out.Domains = override.Domains
	}
	if len(override.ClearanceMaps) > 0 {
		out.ClearanceMaps = override.ClearanceMaps
	}
	return out
}

// StoreConfig configures a registry store.
type StoreConfig struct {
	// Path is the optional YAML override file. Empty means defaults only.
	Path string
}

// Store holds the active Snapshot behind an atomic pointer so readers never
// block and never observe a half-loaded vocabulary.
type Store struct {
	cfg  StoreConfig
	snap atomic.Pointer[Snapshot]

	mu    sync.Mutex
	hooks []func()
}

// NewStore loads the initial snapshot (defaults plus optional file override).
func NewStore(cfg StoreConfig) (*Store, error) {
	s := &Store{cfg: cfg}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the active vocabulary snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Reload re-reads the backing file and swaps the snapshot atomically. On any
// error the previous snapshot stays active.
func (s *Store) Reload() error {
	file := defaultFile()

	if s.cfg.Path != "" {
		raw, err := os.ReadFile(s.cfg.Path)
		if err != nil {
			return fmt.Errorf("failed to read registry file: %w", err)
		}
		var override File
		if err := yaml.Unmarshal(raw, &override); err != nil {
			return fmt.Errorf("failed to parse registry file: %w", err)
		}
		file = merge(file, override)
	}

	snap, err := buildSnapshot(file)
	if err != nil {
		return fmt.Errorf("invalid registry: %w", err)
	}

	s.snap.Store(snap)

	s.mu.Lock()
	hooks := append(([]func())(nil), s.hooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// OnReload registers fn to run after every successful vocabulary swap.
// Hooks registered after NewStore do not fire for the initial load.
func (s *Store) OnReload(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}
