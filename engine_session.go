package mailAuth

import (
	"context"
	"errors"
	"time"
)

// establishSession mints an access/refresh pair, appends the session to the
// user's list, and returns the profile plus tokens. The refresh token is a
// signed JWT with no expiry of its own; presence in the session list is
// what keeps it alive.
func (e *Engine) establishSession(ctx context.Context, user *User, location string) (*AuthResponse, error) {
	access, err := e.jwtManager.CreateAccess(user.ID)
	if err != nil {
		return nil, ErrInternal
	}

	refresh, err := e.jwtManager.CreateRefresh(user.ID)
	if err != nil {
		return nil, ErrInternal
	}

	session := SessionRecord{
		RefreshToken: refresh,
		Location:     location,
		IssuedAt:     time.Now(),
	}

	updated, err := e.users.AppendSession(ctx, user.ID, session)
	if err != nil {
		return nil, ErrInternal
	}

	return &AuthResponse{
		Profile: profileOf(updated),
		Tokens: AuthTokens{
			Access:  access,
			Refresh: refresh,
		},
	}, nil
}

// RotateAccessToken mints a fresh access token against a refresh token. The
// refresh token itself is never rotated. A token whose signature verifies
// but which is absent from the owner's session list is treated as forged or
// stolen: the whole session list is wiped as containment before failing.
func (e *Engine) RotateAccessToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	user, err := e.users.FindByID(ctx, claims.ID)
	if err != nil {
		if !errors.Is(err, errUserRecordNotFound) {
			// Store outage, not a bad token. Do not tell the caller their
			// credentials were rejected.
			return nil, ErrInternal
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.ID, "", ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	if !user.HasSession(refreshToken) {
		// Valid signature, no matching session: the token was minted here
		// but the session is gone. Wipe everything the claimed user has.
		_, _ = e.users.ClearSessions(ctx, user.ID)
		e.metricInc(MetricRefreshForged)
		e.emitAudit(ctx, auditEventRefreshForged, false, user.ID, user.Email, ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	access, err := e.jwtManager.CreateAccess(user.ID)
	if err != nil {
		return nil, ErrInternal
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, user.Email, nil, nil)

	return &AuthTokens{
		Access:  access,
		Refresh: refreshToken,
	}, nil
}

// ValidateAccess verifies an access token and returns the owner's profile.
// A token that fails signature or expiry checks is simply unauthenticated;
// nothing here retries or refreshes on the caller's behalf.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*Profile, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}
	}()

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := e.users.FindByID(ctx, claims.ID)
	if err != nil {
		return nil, ErrUnauthorized
	}

	profile := profileOf(user)
	return &profile, nil
}

// SignOut removes exactly one session, identified by the caller's own
// refresh token. Fails with [ErrNotFound] when that session is already gone.
func (e *Engine) SignOut(ctx context.Context, userID, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.users.RemoveSession(ctx, userID, refreshToken); err != nil {
		if errors.Is(err, errUserSessionNotPresent) || errors.Is(err, errUserRecordNotFound) {
			return ErrNotFound
		}
		return ErrInternal
	}

	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, auditEventSignOutSession, true, userID, "", nil, nil)

	return nil
}

// SignOutAll clears the user's entire session list.
func (e *Engine) SignOutAll(ctx context.Context, userID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if _, err := e.users.ClearSessions(ctx, userID); err != nil {
		return mapUserStoreErr(err)
	}

	e.metricInc(MetricSignOutAll)
	e.emitAudit(ctx, auditEventSignOutAll, true, userID, "", nil, nil)

	return nil
}
