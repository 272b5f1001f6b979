package internaldefs

import (
	mailAuth "github.com/Sreyas108/mailAuth"
)

// CounterDef binds one engine counter to a stable exported metric name.
type CounterDef struct {
	ID   mailAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to a stable exported metric name.
type HistogramDef struct {
	ID   mailAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: mailAuth.MetricSignupSuccess, Name: "mailauth_signup_success_total", Help: "Accounts created and emailed a verification link."},
	{ID: mailAuth.MetricSignupDuplicate, Name: "mailauth_signup_duplicate_total", Help: "Signups rejected on the email uniqueness check."},
	{ID: mailAuth.MetricSignupRolledBack, Name: "mailauth_signup_rolled_back_total", Help: "Accounts deleted after a failed verification email."},
	{ID: mailAuth.MetricVerificationResent, Name: "mailauth_verification_resent_total", Help: "Re-issued verification links."},
	{ID: mailAuth.MetricEmailVerified, Name: "mailauth_email_verified_total", Help: "Successful email verifications."},
	{ID: mailAuth.MetricEmailVerifyFailure, Name: "mailauth_email_verify_failure_total", Help: "Rejected email verification attempts."},
	{ID: mailAuth.MetricSignInCodeIssued, Name: "mailauth_signin_code_issued_total", Help: "Completed first sign-in steps."},
	{ID: mailAuth.MetricSignInFailure, Name: "mailauth_signin_failure_total", Help: "Rejected first-step sign-in attempts."},
	{ID: mailAuth.MetricSignInUnverified, Name: "mailauth_signin_unverified_total", Help: "Sign-in attempts against unverified accounts."},
	{ID: mailAuth.MetricSignInRateLimited, Name: "mailauth_signin_rate_limited_total", Help: "Rate-limited sign-in attempts."},
	{ID: mailAuth.MetricSignInSuccess, Name: "mailauth_signin_success_total", Help: "Completed two-step sign-ins."},
	{ID: mailAuth.MetricCodeMismatch, Name: "mailauth_signin_code_mismatch_total", Help: "Second-step attempts with a wrong code."},
	{ID: mailAuth.MetricRefreshSuccess, Name: "mailauth_refresh_success_total", Help: "Access tokens minted from a refresh token."},
	{ID: mailAuth.MetricRefreshFailure, Name: "mailauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: mailAuth.MetricRefreshForged, Name: "mailauth_refresh_forged_total", Help: "Refresh tokens with a valid signature but no matching session."},
	{ID: mailAuth.MetricSignOut, Name: "mailauth_signout_total", Help: "Single-session sign-outs."},
	{ID: mailAuth.MetricSignOutAll, Name: "mailauth_signout_all_total", Help: "All-device sign-outs."},
	{ID: mailAuth.MetricResetRequested, Name: "mailauth_password_reset_request_total", Help: "Password reset links issued."},
	{ID: mailAuth.MetricResetConfirmed, Name: "mailauth_password_reset_confirm_total", Help: "Completed password resets."},
	{ID: mailAuth.MetricResetFailure, Name: "mailauth_password_reset_failure_total", Help: "Rejected password reset attempts."},
	{ID: mailAuth.MetricEmailSendFailure, Name: "mailauth_email_send_failure_total", Help: "Transport errors from the email sender."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: mailAuth.MetricValidateLatency, Name: "mailauth_validate_latency_seconds", Help: "ValidateAccess latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the metric-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
