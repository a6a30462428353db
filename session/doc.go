// Package session provides the Redis-backed session registry and compact
// binary session encoding for authentication hot paths.
//
// # Binary encoding
//
// Sessions are stored in Redis as a compact binary format with a leading
// schema version byte. The encoder is append-only: new versions add fields
// but never reinterpret old ones.
//
// # Revocation model
//
// Revoke flips the Active flag and retains the record under its original TTL
// so audit tooling can read it via [Store.GetReadOnly]. The hot-path
// [Store.Get] hides revoked records: callers cannot tell a revoked session
// from one that never existed.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does NOT interpret tokens, verify credentials, or enforce
// authentication policy; those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import memberauth or jwt (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store plaintext secrets in [Session] fields.
package session
