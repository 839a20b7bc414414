// Package decisioncache memoizes policy decisions.
//
// Cache keys bind every input that can change an outcome: the full subject
// attribute tuple, the resource identity and attribute version, the active
// bundle version, and the evaluation date. A bundle swap, a resource metadata
// edit, or a day boundary each miss cleanly instead of serving a stale
// decision. Concurrent requests for the same key collapse into a single
// evaluation.
package decisioncache
