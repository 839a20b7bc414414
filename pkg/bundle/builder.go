package bundle

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"time"
)

// Builder packages and signs rule sets on the hub. The signing key never
// leaves the bundler; spokes hold only the public half.
type Builder struct {
	key ed25519.PrivateKey
}

// NewBuilder creates a builder with the given signing key.
func NewBuilder(key ed25519.PrivateKey) *Builder {
	return &Builder{key: key}
}

// Build packages rules into a signed, versioned bundle. The signature covers
// the hex digest bytes, so verifying the signature also pins the digest.
func (b *Builder) Build(version string, rules Rules) (*Bundle, error) {
	if version == "" {
		return nil, fmt.Errorf("bundle version is required")
	}

	digest, err := ComputeDigest(rules)
	if err != nil {
		return nil, err
	}

	digestBytes, err := hex.DecodeString(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to decode digest: %w", err)
	}
	sig := ed25519.Sign(b.key, digestBytes)

	return &Bundle{
		Version:   version,
		Digest:    digest,
		Signature: base64.StdEncoding.EncodeToString(sig),
		CreatedAt: time.Now().UTC(),
		Rules:     rules,
	}, nil
}

// GenerateSigningKey creates a fresh ed25519 key pair for bundle signing.
func GenerateSigningKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

const (
	pemTypePrivateKey = "PDP BUNDLE SIGNING KEY"
	pemTypePublicKey  = "PDP BUNDLE VERIFY KEY"
)

// SavePrivateKey writes the signing key as PEM with owner-only permissions.
func SavePrivateKey(path string, key ed25519.PrivateKey) error {
	block := &pem.Block{Type: pemTypePrivateKey, Bytes: key}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0600)
}

// SavePublicKey writes the verification key as PEM.
func SavePublicKey(path string, key ed25519.PublicKey) error {
	block := &pem.Block{Type: pemTypePublicKey, Bytes: key}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0644)
}

// LoadPrivateKey reads a PEM signing key.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != pemTypePrivateKey {
		return nil, fmt.Errorf("%s does not contain a bundle signing key", path)
	}
	if len(block.Bytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key has wrong size %d", len(block.Bytes))
	}
	return ed25519.PrivateKey(block.Bytes), nil
}

// LoadPublicKey reads a PEM verification key.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read verify key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != pemTypePublicKey {
		return nil, fmt.Errorf("%s does not contain a bundle verify key", path)
	}
	if len(block.Bytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verify key has wrong size %d", len(block.Bytes))
	}
	return ed25519.PublicKey(block.Bytes), nil
}
