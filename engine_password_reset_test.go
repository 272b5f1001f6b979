package mailAuth

import (
	"context"
	"errors"
	"testing"
)

// requestReset runs ForgotPassword and returns the user id and plaintext
// token carried by the captured email link.
func (te *testEngine) requestReset(t *testing.T, email string) (string, string) {
	t.Helper()

	ack, err := te.engine.ForgotPassword(context.Background(), email)
	if err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	if ack != AckResetSent {
		t.Fatalf("ack = %q, want %q", ack, AckResetSent)
	}

	mail := te.lastEmail(t)
	if mail.Kind != EmailPasswordResetLink {
		t.Fatalf("expected reset email, got kind %q", mail.Kind)
	}
	userID, token := linkParams(t, mail.Data.Link)
	return userID, token
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())

	if _, err := te.engine.ForgotPassword(context.Background(), "ghost@x.com"); err != ErrUserNotFound {
		t.Fatalf("want ErrUserNotFound, got %v", err)
	}
}

func TestPasswordResetHappyPath(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	te.signupVerified(t, "reset@x.com", "old-password", "Res")
	te.signIn(t, "reset@x.com", "old-password")

	userID, token := te.requestReset(t, "reset@x.com")

	if err := te.engine.VerifyResetToken(ctx, userID, token); err != nil {
		t.Fatalf("VerifyResetToken failed: %v", err)
	}
	// The gate does not consume the token.
	if err := te.engine.VerifyResetToken(ctx, userID, token); err != nil {
		t.Fatalf("second VerifyResetToken failed: %v", err)
	}

	if err := te.engine.ResetPassword(ctx, userID, "new-password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if mail := te.lastEmail(t); mail.Kind != EmailPasswordChangedNotice {
		t.Fatalf("expected password changed notice, got kind %q", mail.Kind)
	}

	// Old credentials are dead, new ones work.
	if _, err := te.engine.SignIn(ctx, "reset@x.com", "old-password"); err != ErrUnauthorized {
		t.Fatalf("old password: want ErrUnauthorized, got %v", err)
	}
	te.signIn(t, "reset@x.com", "new-password")
}

func TestPasswordResetClearsSessions(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	_, first := te.signupVerified(t, "wipe@x.com", "old-password", "Wip")
	second := te.signIn(t, "wipe@x.com", "old-password")

	userID, _ := te.requestReset(t, "wipe@x.com")
	if err := te.engine.ResetPassword(ctx, userID, "new-password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	// Every refresh token issued before the reset is invalid.
	if _, err := te.engine.RotateAccessToken(ctx, first.Tokens.Refresh); err != ErrUnauthorized {
		t.Fatalf("first session survived reset: %v", err)
	}
	if _, err := te.engine.RotateAccessToken(ctx, second.Tokens.Refresh); err != ErrUnauthorized {
		t.Fatalf("second session survived reset: %v", err)
	}
}

func TestPasswordResetTokenSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	te.signupVerified(t, "once@x.com", "old-password", "Onc")

	userID, token := te.requestReset(t, "once@x.com")
	if err := te.engine.ResetPassword(ctx, userID, "new-password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	// The consumed token no longer clears the gate.
	if err := te.engine.VerifyResetToken(ctx, userID, token); err != ErrUnauthorized {
		t.Fatalf("used token: want ErrUnauthorized, got %v", err)
	}
}

func TestPasswordResetReissueInvalidatesPriorToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	te.signupVerified(t, "reissue@x.com", "old-password", "Rei")

	userID, stale := te.requestReset(t, "reissue@x.com")
	_, fresh := te.requestReset(t, "reissue@x.com")

	if stale != fresh {
		if err := te.engine.VerifyResetToken(ctx, userID, stale); err != ErrUnauthorized {
			t.Fatalf("stale token: want ErrUnauthorized, got %v", err)
		}
	}
	if err := te.engine.VerifyResetToken(ctx, userID, fresh); err != nil {
		t.Fatalf("fresh token failed: %v", err)
	}
}

func TestPasswordResetWrongToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	te.signupVerified(t, "wrong@x.com", "old-password", "Wro")
	userID, token := te.requestReset(t, "wrong@x.com")

	if err := te.engine.VerifyResetToken(ctx, userID, "deadbeef"); err != ErrUnauthorized {
		t.Fatalf("wrong token: want ErrUnauthorized, got %v", err)
	}
	// A mismatch must not burn the real token.
	if err := te.engine.VerifyResetToken(ctx, userID, token); err != nil {
		t.Fatalf("real token failed after mismatch: %v", err)
	}
}

func TestForgotPasswordEmailFailureInvalidatesToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	userID, _ := te.signupVerified(t, "lost@x.com", "old-password", "Los")

	te.sender.FailWith(errors.New("smtp down"))
	if _, err := te.engine.ForgotPassword(ctx, "lost@x.com"); err != ErrInternal {
		t.Fatalf("want ErrInternal, got %v", err)
	}

	// The fresh token was deleted; no reset record survives.
	if err := te.engine.resetStore.Verify(ctx, userID, "anything"); !errors.Is(err, errResetNotFound) {
		t.Fatalf("reset record should be gone, got %v", err)
	}
}

func TestResetPasswordSamePassword(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	userID, resp := te.signupVerified(t, "same@x.com", "old-password", "Sam")
	te.requestReset(t, "same@x.com")

	if err := te.engine.ResetPassword(ctx, userID, "old-password"); err != ErrSamePassword {
		t.Fatalf("want ErrSamePassword, got %v", err)
	}

	// No mutation happened: the session and the password both still work.
	if _, err := te.engine.RotateAccessToken(ctx, resp.Tokens.Refresh); err != nil {
		t.Fatalf("session should survive a rejected reset: %v", err)
	}
	te.signIn(t, "same@x.com", "old-password")
}

func TestResetPasswordNoticeFailureIsNonFatal(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	te := newTestEngine(t, rdb, testConfig())
	ctx := context.Background()

	te.signupVerified(t, "notice@x.com", "old-password", "Not")
	userID, _ := te.requestReset(t, "notice@x.com")

	te.sender.FailWith(errors.New("smtp down"))
	if err := te.engine.ResetPassword(ctx, userID, "new-password"); err != nil {
		t.Fatalf("notice failure must not fail the reset: %v", err)
	}

	te.sender.FailWith(nil)
	te.signIn(t, "notice@x.com", "new-password")
}
