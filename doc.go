// Package memberauth provides an embeddable authentication engine with
// lockout-aware credential checks, Redis-backed opaque sessions, TOTP and
// email one-time-code second factors, and audited password lifecycle flows.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// memberauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [MemberProvider] integration contract, and value types (LoginResult,
// SessionInfo, MetricsSnapshot, etc.). Session encoding, challenge stores,
// token generation, and audit dispatch live under internal/ and are never
// exported.
//
// Member records are owned by the caller. The engine reads and writes them
// only through [MemberProvider]; login-state writes are compare-and-swap
// guarded by the record Version so concurrent attempts never lose counter
// updates.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Store member credentials or profile data itself.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports memberauth (no import cycles).
package memberauth
