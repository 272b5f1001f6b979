package mailAuth

import (
	"context"
	"time"
)

// Role is a coarse authorization label carried on the user record. The engine
// assigns [RoleStandard] at signup and never interprets roles beyond storage;
// permission arithmetic belongs to the host application.
type Role string

const (
	// RoleStandard is the default role for new accounts.
	RoleStandard Role = "Standard"
	// RoleAdmin marks administrative accounts.
	RoleAdmin Role = "Admin"
)

// SessionRecord is one device's refresh-token entry on a user. Each record is
// independently revocable via [Engine.SignOut].
type SessionRecord struct {
	RefreshToken string
	Location     string
	IssuedAt     time.Time
}

// User is the full account record as persisted. PasswordHash is an argon2id
// PHC string and is never compared in plaintext. Sessions is ordered by
// issuance.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Verified     bool
	Roles        []Role
	Sessions     []SessionRecord
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the client-facing view of a [User]. It never carries the
// password hash or the session list.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	Roles     []Role    `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func profileOf(u *User) Profile {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)

	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Verified:  u.Verified,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AuthTokens is an access/refresh pair. Access is a short-lived signed JWT;
// Refresh is valid only while present in the owning user's session list.
type AuthTokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AuthResponse is returned by the flows that end in an authenticated session.
type AuthResponse struct {
	Profile Profile    `json:"profile"`
	Tokens  AuthTokens `json:"tokens"`
}

// SignInLogEntry is one append-only audit record of a sign-in attempt.
type SignInLogEntry struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	IP        string    `json:"ip"`
	Location  string    `json:"location"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// EmailKind selects the template an [EmailSender] renders.
type EmailKind string

const (
	// EmailVerificationLink carries the signup verification link.
	EmailVerificationLink EmailKind = "verification_link"
	// EmailSignInCode carries the 5-digit second-factor code.
	EmailSignInCode EmailKind = "sign_in_code"
	// EmailPasswordResetLink carries the password reset link.
	EmailPasswordResetLink EmailKind = "password_reset_link"
	// EmailPasswordChangedNotice is the best-effort notification sent after a
	// successful password reset.
	EmailPasswordChangedNotice EmailKind = "password_changed_notice"
)

// EmailData is the template payload handed to an [EmailSender]. Only the
// fields relevant to the kind are populated.
type EmailData struct {
	Name string
	Link string
	Code string
}

// EmailSender delivers a templated message to an address. Implementations own
// rendering, transport, and any retry policy. A returned error is treated as
// a transport failure by the engine; for Signup and ForgotPassword it
// triggers a compensating rollback of the just-issued secret.
type EmailSender interface {
	Send(ctx context.Context, kind EmailKind, to string, data EmailData) error
}

// GeoResult is the outcome of a best-effort IP geolocation lookup.
type GeoResult struct {
	IP       string
	Location string
}

// GeoLookup resolves a client IP to a coarse location string for session
// tagging and the sign-in log. Failures are tolerated: the engine degrades to
// "Unknown location" and never fails a sign-in over geolocation.
type GeoLookup interface {
	Resolve(ctx context.Context, ip string) (GeoResult, error)
}

// UnknownLocation is recorded when geolocation is unavailable or fails.
const UnknownLocation = "Unknown location"
