// Package middleware exposes an HTTP adapter for access-token enforcement
// built on top of mailAuth.Engine validation.
//
// [Guard] reads the Authorization header, calls Engine.ValidateAccess, and
// injects the resolved profile into the request context. [ClientIP] runs
// earlier in the chain and records the caller address for geolocation, the
// sign-in log, and per-IP throttling.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from ValidateAccess.
package middleware
