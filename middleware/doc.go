// Package middleware exposes HTTP middleware adapters for session and access
// token enforcement built on top of memberauth.Engine validation.
//
// # Guards
//
//   - [RequireSession]: opaque session token verification against Redis.
//   - [RequireAccessToken]: signed access token verification with a live
//     session check.
//
// Each guard reads the Authorization header, calls the engine, and injects the
// validated session view into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself. All decisions are delegated to the
// engine.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the engine.
package middleware
