package mailAuth

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("test-secret-0123456789abcdef0123456789")
	cfg.Mail.VerifyLinkBase = "https://app.example.com/verify"
	cfg.Mail.ResetLinkBase = "https://app.example.com/reset"
	return cfg
}

type testEngine struct {
	engine *Engine
	sender *ChannelSender
	sink   *ChannelSink
}

func newTestEngine(t *testing.T, rdb *redis.Client, cfg Config) *testEngine {
	t.Helper()

	sender := NewChannelSender(32)
	sink := NewChannelSink(64)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithEmailSender(sender).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{
		engine: engine,
		sender: sender,
		sink:   sink,
	}
}

// lastEmail drains to the most recent captured message.
func (te *testEngine) lastEmail(t *testing.T) SentEmail {
	t.Helper()

	var last SentEmail
	got := false
	for {
		select {
		case mail := <-te.sender.Messages():
			last = mail
			got = true
		default:
			if !got {
				t.Fatal("no email captured")
			}
			return last
		}
	}
}

// linkParams extracts the id and token query parameters from an emailed link.
func linkParams(t *testing.T, link string) (userID, token string) {
	t.Helper()

	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	return parsed.Query().Get("id"), parsed.Query().Get("token")
}

// signupVerified runs signup and email verification, returning the user id
// and the auto-login response.
func (te *testEngine) signupVerified(t *testing.T, email, password, name string) (string, *AuthResponse) {
	t.Helper()
	ctx := context.Background()

	if _, err := te.engine.Signup(ctx, email, password, name); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	mail := te.lastEmail(t)
	userID, token := linkParams(t, mail.Data.Link)

	resp, err := te.engine.VerifyEmail(ctx, userID, token)
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	return userID, resp
}

// signIn runs the full two-step sign-in, returning the authenticated response.
func (te *testEngine) signIn(t *testing.T, email, password string) *AuthResponse {
	t.Helper()
	ctx := context.Background()

	if _, err := te.engine.SignIn(ctx, email, password); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	mail := te.lastEmail(t)
	if mail.Kind != EmailSignInCode {
		t.Fatalf("expected sign-in code email, got kind %q", mail.Kind)
	}

	resp, err := te.engine.VerifyCode(ctx, email, mail.Data.Code)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	return resp
}

func TestEndToEndSignupVerifySignInSignOut(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	ack, err := te.engine.Signup(ctx, "a@x.com", "pw1-long-enough", "Ann")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if ack != AckVerificationSent {
		t.Fatalf("unexpected signup ack %q", ack)
	}

	mail := te.lastEmail(t)
	if mail.Kind != EmailVerificationLink {
		t.Fatalf("expected verification email, got kind %q", mail.Kind)
	}
	if mail.To != "a@x.com" {
		t.Fatalf("verification email sent to %q", mail.To)
	}

	userID, token := linkParams(t, mail.Data.Link)
	verifyResp, err := te.engine.VerifyEmail(ctx, userID, token)
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if !verifyResp.Profile.Verified {
		t.Fatal("profile not marked verified after VerifyEmail")
	}
	if verifyResp.Tokens.Access == "" || verifyResp.Tokens.Refresh == "" {
		t.Fatal("VerifyEmail did not return a token pair")
	}

	signInAck, err := te.engine.SignIn(ctx, "a@x.com", "pw1-long-enough")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if signInAck != AckCodeSent {
		t.Fatalf("unexpected sign-in ack %q", signInAck)
	}

	codeMail := te.lastEmail(t)
	signInResp, err := te.engine.VerifyCode(ctx, "a@x.com", codeMail.Data.Code)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if signInResp.Tokens.Refresh == verifyResp.Tokens.Refresh {
		t.Fatal("sign-in refresh token should differ from verify-email refresh token")
	}

	if err := te.engine.SignOut(ctx, userID, signInResp.Tokens.Refresh); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	if _, err := te.engine.RotateAccessToken(ctx, signInResp.Tokens.Refresh); err != ErrUnauthorized {
		t.Fatalf("RotateAccessToken after SignOut: want ErrUnauthorized, got %v", err)
	}
}

func TestEmailNormalization(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	if _, err := te.engine.Signup(ctx, "  Mixed@Example.COM ", "password-one", "Mika"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	mail := te.lastEmail(t)
	if mail.To != "mixed@example.com" {
		t.Fatalf("expected normalized recipient, got %q", mail.To)
	}

	// The normalized form collides with any re-spelling of the same address.
	if _, err := te.engine.Signup(ctx, "MIXED@example.com", "password-two", "Mika"); err != ErrDuplicateEmail {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
}

func TestBuilderRequiresDependencies(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().WithConfig(testConfig()).WithEmailSender(NoOpSender{}).Build(); err == nil {
		t.Fatal("Build without redis should fail")
	}

	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("Build without email sender should fail")
	}

	cfg := testConfig()
	cfg.JWT.Secret = nil
	if _, err := New().WithConfig(cfg).WithRedis(rdb).WithEmailSender(NoOpSender{}).Build(); err == nil {
		t.Fatal("Build without JWT secret should fail")
	}

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithEmailSender(NoOpSender{})
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build on the same builder should fail")
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	if _, err := te.engine.Signup(ctx, "audit@x.com", "password-one", "Aud"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	select {
	case event := <-te.sink.Events():
		if event.EventType != auditEventSignupSuccess {
			t.Fatalf("want %q event, got %q", auditEventSignupSuccess, event.EventType)
		}
		if !event.Success {
			t.Fatal("signup audit event should be marked success")
		}
		if event.Email != "audit@x.com" {
			t.Fatalf("audit event email %q", event.Email)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event delivered")
	}
}
