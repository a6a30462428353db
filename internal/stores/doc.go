// Package stores provides Redis-backed, short-lived record stores for
// security-sensitive authentication flows: password reset tokens and
// two-factor login challenges.
//
// # Design
//
// Each store persists a versioned, binary-encoded record in Redis with a TTL.
// Mutation operations (Consume, RecordFailure, Save supersession) use
// WATCH/MULTI optimistic transactions with automatic retry on contention.
// Reset records are single-use but retained with a Used marker until natural
// expiry; two-factor challenges are deleted on consumption so replay surfaces
// as not-found. Attempt limits resist brute force. Secret comparisons use
// constant-time compare.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for transient
// challenge records. It does NOT generate tokens/OTPs or make authentication
// decisions; those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import memberauth or any sibling internal package.
//   - Log or expose plaintext secrets.
//   - Use non-constant-time comparisons for secret matching.
package stores
