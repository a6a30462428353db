// Package password implements credential hashing and the complexity policy.
//
// # Output format
//
// Hashes are an opaque base64 blob of salt||key:
//
//	base64(<32-byte random salt> || <32-byte PBKDF2-SHA256 key>)
//
// Two hashes of the same password differ (fresh salt per call) and both
// verify. A malformed blob verifies false without error.
//
// # Architecture boundaries
//
// This package owns hashing, verification and the character-class complexity
// check only. Password age and reuse history are enforced by the Engine
// against the account record.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other memberauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
