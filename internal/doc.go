// Package internal contains helper utilities that are intentionally private
// to memberauth, including secure random generation and token encoding.
//
// # Sub-packages
//
//   - stores — Redis-backed stores for reset tokens and two-factor challenges
//
// # What this package must NOT do
//
//   - Export types that appear in the public memberauth API.
//   - Be imported by any package outside the memberauth module.
package internal
