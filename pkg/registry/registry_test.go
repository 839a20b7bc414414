package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dive-federation/pdp/pkg/attributes"
)

func newDefaultStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{})
	require.NoError(t, err)
	return store
}

func TestDefaultWhitelistHas39Countries(t *testing.T) {
	snap := newDefaultStore(t).Snapshot()
	assert.Len(t, snap.Countries(), 39)
}

// TestValidCountry tests exact-match country validation
func TestValidCountry(t *testing.T) {
	snap := newDefaultStore(t).Snapshot()

	tests := []struct {
		name string
		code string
		want bool
	}{
		{name: "alpha-3 member", code: "FRA", want: true},
		{name: "alpha-3 partner", code: "AUS", want: true},
		{name: "alpha-2 rejected", code: "FR", want: false},
		{name: "numeric rejected", code: "250", want: false},
		{name: "lowercase rejected", code: "fra", want: false},
		{name: "mixed case rejected", code: "Fra", want: false},
		{name: "non-coalition country rejected", code: "RUS", want: false},
		{name: "empty rejected", code: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snap.ValidCountry(tt.code); got != tt.want {
				t.Errorf("ValidCountry(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestMapClearance(t *testing.T) {
	snap := newDefaultStore(t).Snapshot()

	tests := []struct {
		name  string
		idp   string
		raw   string
		want  attributes.Clearance
		wantOK bool
	}{
		{name: "french secret", idp: "fra", raw: "SECRET_DEFENSE", want: attributes.ClearanceSecret, wantOK: true},
		{name: "french top secret", idp: "fra", raw: "TRES_SECRET_DEFENSE", want: attributes.ClearanceTopSecret, wantOK: true},
		{name: "canonical accepted for partner", idp: "fra", raw: "SECRET", want: attributes.ClearanceSecret, wantOK: true},
		{name: "german geheim", idp: "deu", raw: "GEHEIM", want: attributes.ClearanceSecret, wantOK: true},
		{name: "spanish secreto is top secret", idp: "esp", raw: "SECRETO", want: attributes.ClearanceTopSecret, wantOK: true},
		{name: "unmapped value rejected", idp: "fra", raw: "ULTRA_SECRET", wantOK: false},
		{name: "unknown idp gets canonical only", idp: "nor", raw: "SECRET", want: attributes.ClearanceSecret, wantOK: true},
		{name: "unknown idp rejects partner vocab", idp: "nor", raw: "SECRET_DEFENSE", wantOK: false},
		{name: "lowercase canonical rejected", idp: "usa", raw: "secret", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := snap.MapClearance(tt.idp, tt.raw)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCountryForDomain(t *testing.T) {
	snap := newDefaultStore(t).Snapshot()

	country, ok := snap.CountryForDomain("lockheed.com")
	require.True(t, ok)
	assert.Equal(t, "USA", country)

	// DNS names are case insensitive, unlike country codes.
	country, ok = snap.CountryForDomain("Forces.GC.CA")
	require.True(t, ok)
	assert.Equal(t, "CAN", country)

	_, ok = snap.CountryForDomain("example.com")
	assert.False(t, ok)
}

func TestFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	content := `
defaultCountry: GBR
domains:
  contractor.example: GBR
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	store, err := NewStore(StoreConfig{Path: path})
	require.NoError(t, err)
	snap := store.Snapshot()

	assert.Equal(t, "GBR", snap.DefaultCountry())

	country, ok := snap.CountryForDomain("contractor.example")
	require.True(t, ok)
	assert.Equal(t, "GBR", country)

	// Untouched sections keep defaults.
	assert.True(t, snap.ValidCountry("FRA"))
	assert.True(t, snap.ValidCOI("FVEY"))
}

func TestReloadKeepsPreviousSnapshotOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaultCountry: CAN\n"), 0644))

	store, err := NewStore(StoreConfig{Path: path})
	require.NoError(t, err)
	require.Equal(t, "CAN", store.Snapshot().DefaultCountry())

	// A default country outside the whitelist must fail validation.
	require.NoError(t, os.WriteFile(path, []byte("defaultCountry: XYZ\n"), 0644))
	err = store.Reload()
	require.Error(t, err)

	assert.Equal(t, "CAN", store.Snapshot().DefaultCountry(), "previous snapshot stays active")
}

func TestBuildSnapshotRejectsBadEntries(t *testing.T) {
	_, err := buildSnapshot(File{Countries: []string{"fr"}})
	assert.Error(t, err, "alpha-2 whitelist entry")

	_, err = buildSnapshot(File{
		Countries:     []string{"FRA"},
		ClearanceMaps: map[string]map[string]string{"fra": {"X": "NOT_A_LEVEL"}},
	})
	assert.Error(t, err, "clearance map to unknown level")

	_, err = buildSnapshot(File{
		Countries: []string{"FRA"},
		Domains:   map[string]string{"mod.uk": "GBR"},
	})
	assert.Error(t, err, "domain to non-whitelisted country")
}
