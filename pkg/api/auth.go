package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/dive-federation/pdp/pkg/httputil"
	"github.com/dive-federation/pdp/pkg/observability"
)

// tokenVerifier abstracts go-oidc's IDTokenVerifier so tests can substitute
// their own verification.
type tokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*oidc.IDToken, error)
}

// Authenticator verifies bearer tokens against an OIDC issuer. Enforcement
// points and operator tooling authenticate the same way; authorization of the
// caller itself is the issuer's concern, not the decision point's.
type Authenticator struct {
	verifier tokenVerifier
	logger   *observability.Logger
}

// NewAuthenticator discovers the issuer and builds a verifier for tokens
// minted for clientID.
func NewAuthenticator(ctx context.Context, issuerURL, clientID string, logger *observability.Logger) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Authenticator{verifier: verifier, logger: logger}, nil
}

// Middleware rejects requests without a valid bearer token. The verified
// subject is placed on the request context for the audit trail.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, "missing bearer token")
			return
		}

		token, err := a.verifier.Verify(r.Context(), raw)
		if err != nil {
			if a.logger != nil {
				a.logger.WithError(err).Warn("rejected bearer token")
			}
			httputil.WriteUnauthorized(w, "invalid token")
			return
		}

		ctx := observability.WithSubjectID(r.Context(), token.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
