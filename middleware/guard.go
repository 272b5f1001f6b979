package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	mailAuth "github.com/Sreyas108/mailAuth"
)

type profileContextKey struct{}

// ProfileFromContext returns the profile injected by [Guard].
func ProfileFromContext(ctx context.Context) (*mailAuth.Profile, bool) {
	profile, ok := ctx.Value(profileContextKey{}).(*mailAuth.Profile)
	return profile, ok
}

// Guard rejects requests without a valid bearer access token and injects
// the owner's profile into the request context.
func Guard(engine *mailAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			profile, err := engine.ValidateAccess(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), profileContextKey{}, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP records the caller's address on the request context so the
// engine can tag sessions and sign-in log entries. Run it before Guard
// and before any handler that calls a sign-in flow.
func ClientIP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)
			if ip != "" {
				r = r.WithContext(mailAuth.WithClientIP(r.Context(), ip))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func remoteIP(r *http.Request) string {
	// X-Forwarded-For is trusted as-is; deployments behind an untrusted
	// edge should strip the header before this middleware.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
