package bundlecli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dive-federation/pdp/pkg/bundle"
)

func TestKeygenWritesUsableKeyPair(t *testing.T) {
	dir := t.TempDir()
	private := filepath.Join(dir, "bundle.key")
	public := filepath.Join(dir, "bundle.pub")

	require.NoError(t, runKeygen(private, public))

	priv, err := bundle.LoadPrivateKey(private)
	require.NoError(t, err)
	pub, err := bundle.LoadPublicKey(public)
	require.NoError(t, err)

	// A bundle signed with the private key verifies with the public key.
	b, err := bundle.NewBuilder(priv).Build("2026.08.1", bundle.DefaultRules())
	require.NoError(t, err)
	require.NoError(t, bundle.NewVerifier(pub, nil).Verify(b))
}

func TestBuildSignsRulesFile(t *testing.T) {
	dir := t.TempDir()
	private := filepath.Join(dir, "bundle.key")
	public := filepath.Join(dir, "bundle.pub")
	require.NoError(t, runKeygen(private, public))

	rules := bundle.Rules{TrustedIssuers: []string{"usa", "gbr"}}
	raw, err := json.Marshal(rules)
	require.NoError(t, err)
	rulesPath := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(rulesPath, raw, 0644))

	out := filepath.Join(dir, "out.bundle.json")
	require.NoError(t, runBuild(private, rulesPath, "2026.08.1", out))

	encoded, err := os.ReadFile(out)
	require.NoError(t, err)
	var b bundle.Bundle
	require.NoError(t, json.Unmarshal(encoded, &b))

	assert.Equal(t, "2026.08.1", b.Version)
	assert.Equal(t, []string{"usa", "gbr"}, b.Rules.TrustedIssuers)

	pub, err := bundle.LoadPublicKey(public)
	require.NoError(t, err)
	require.NoError(t, bundle.NewVerifier(pub, nil).Verify(&b))
}

func TestBuildDefaultsRules(t *testing.T) {
	dir := t.TempDir()
	private := filepath.Join(dir, "bundle.key")
	require.NoError(t, runKeygen(private, filepath.Join(dir, "bundle.pub")))

	out := filepath.Join(dir, "out.bundle.json")
	require.NoError(t, runBuild(private, "", "2026.08.2", out))

	encoded, err := os.ReadFile(out)
	require.NoError(t, err)
	var b bundle.Bundle
	require.NoError(t, json.Unmarshal(encoded, &b))
	assert.NotEmpty(t, b.Rules.Obligations)
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{"activeVersion":"2026.08.1"}`))
	}))
	defer srv.Close()

	payload, err := newClient(srv.URL, "secret-token").do("POST", "/v1/bundle/activate", map[string]string{"version": "2026.08.1"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "/v1/bundle/activate", gotPath)
	assert.Contains(t, string(payload), "activeVersion")
}

func TestClientSurfacesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"no bundle is pinned"}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, "").do("POST", "/v1/bundle/unpin", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 409")
	assert.Contains(t, err.Error(), "no bundle is pinned")
}

func TestRootCommandDispatch(t *testing.T) {
	root := NewRootCommand()

	for _, name := range []string{"keygen", "build", "publish", "activate", "pin", "unpin", "rollback", "status"} {
		assert.Contains(t, root.Subcommands, name)
	}
}
