// Package normalize reconciles heterogeneous partner vocabularies into the
// canonical attribute model. It is the only producer of attributes.Subject:
// claims that have not passed through the normalizer never reach the policy
// engine.
//
// # Overview
//
// Each federation partner asserts clearance in its own vocabulary
// ("SECRET_DEFENSE", "GEHEIM", "RESERVADO"). The normalizer maps those strings
// through an explicit per-IdP equivalency table from pkg/registry; unmapped
// values are rejected outright, never guessed. Country codes and COI tags are
// validated against the whitelist and tag registry with exact, case-sensitive
// matching.
//
//	n := normalize.NewNormalizer(registryStore)
//	subject, err := n.Normalize(claims)
//	var verr *normalize.ValidationError
//	if errors.As(err, &verr) {
//	    // verr.Reason is the deny reason ("invalid country code", ...)
//	}
//
// Every rejection carries a specific reason and always resolves to DENY at the
// caller, never to an implicit ALLOW.
package normalize
