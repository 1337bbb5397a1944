package auth

import (
	"context"
	"net/http"
	"strings"
)

const (
	UserIDHeader = "X-User-Id"
	RoleHeader   = "X-Role"
)

type ctxKey int

const (
	ctxKeyIdentity ctxKey = iota
)

// Identity is the acting user as supplied by the identity provider. The
// booking core trusts it as given.
type Identity struct {
	UserID string
	Role   string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// CurrentUserID returns "" when the request carries no identity.
func CurrentUserID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// Middleware resolves the caller identity. With a verifier it checks the
// bearer token; with nil it trusts the X-User-Id / X-Role headers forwarded
// by the gateway. Requests without credentials pass through anonymously; a
// present but invalid token is rejected.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
					r = r.WithContext(WithIdentity(r.Context(), Identity{
						UserID: userID,
						Role:   strings.TrimSpace(r.Header.Get(RoleHeader)),
					}))
				}
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, ok := strings.Cut(authHeader, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				http.Error(w, "invalid Authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			r = r.WithContext(WithIdentity(r.Context(), Identity{UserID: claims.Sub, Role: claims.Role}))
			next.ServeHTTP(w, r)
		})
	}
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUserID(r.Context()) == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
