package bundle

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Verification errors. A bundle failing any of these never becomes active.
var (
	ErrNilBundle       = errors.New("nil bundle")
	ErrDigestMismatch  = errors.New("bundle digest does not match rules")
	ErrBadSignature    = errors.New("bundle signature verification failed")
	ErrMissingVersion  = errors.New("bundle has no version")
)

// Verifier checks bundle integrity and authenticity before activation.
type Verifier struct {
	key    ed25519.PublicKey
	logger *logrus.Logger
}

// NewVerifier creates a verifier for bundles signed with the matching key.
func NewVerifier(key ed25519.PublicKey, logger *logrus.Logger) *Verifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &Verifier{key: key, logger: logger}
}

// Verify recomputes the rules digest and checks the ed25519 signature over it.
func (v *Verifier) Verify(b *Bundle) error {
	if b == nil {
		return ErrNilBundle
	}
	if b.Version == "" {
		return ErrMissingVersion
	}

	digest, err := ComputeDigest(b.Rules)
	if err != nil {
		return fmt.Errorf("failed to compute digest: %w", err)
	}
	if digest != b.Digest {
		v.logger.WithFields(logrus.Fields{
			"version":  b.Version,
			"claimed":  b.Digest,
			"computed": digest,
		}).Error("bundle digest mismatch")
		return ErrDigestMismatch
	}

	sig, err := base64.StdEncoding.DecodeString(b.Signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature encoding", ErrBadSignature)
	}
	digestBytes, err := hex.DecodeString(digest)
	if err != nil {
		return fmt.Errorf("failed to decode digest: %w", err)
	}
	if !ed25519.Verify(v.key, digestBytes, sig) {
		v.logger.WithField("version", b.Version).Error("bundle signature verification failed")
		return ErrBadSignature
	}

	v.logger.WithFields(logrus.Fields{
		"version": b.Version,
		"digest":  digest,
	}).Info("bundle verified")
	return nil
}
