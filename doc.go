// Package mailAuth provides an email-centric authentication and session-lifecycle
// engine: account creation with email verification, two-step sign-in (password
// plus an emailed one-time code), JWT access tokens, refresh tokens tracked
// per device on the user record, and single-use password-reset links.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// mailAuth is the public surface. It exposes [Engine], [Builder], [Config],
// the [EmailSender] and [GeoLookup] collaborator interfaces, and value types
// (Profile, AuthTokens, SignInLogEntry, MetricsSnapshot). Secret generation,
// hashing, and rate limiting live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Render email bodies or pages. [EmailSender] receives a kind and template
//     data; delivery and templating belong to the host application.
//   - Speak a wire protocol. The middleware/ subpackage is an optional HTTP
//     adapter; the engine itself is consumed through procedure calls.
//   - Retry anything silently. Transport retry policy belongs to the
//     EmailSender implementation, not to the engine.
//
// # Secrets at rest
//
// Plaintext secrets exist only in the return value of the issuing operation
// and in the outbound email. Verification and reset links persist as bcrypt
// hashes; sign-in codes persist as SHA-256 hashes (five decimal digits plus a
// ten-minute TTL are the control, not hash slowness); passwords persist as
// argon2id PHC strings.
package mailAuth
