// Package authn authenticates individual requests with the access token,
// from the Authorization header or the accessToken cookie, and puts the
// sanitized user into the request context.
package authn

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/models"

	"github.com/go-chi/render"
)

type ctxKey struct{}

const AccessTokenCookie = "accessToken"

type TokenVerifier interface {
	VerifyAccess(token string) (int64, error)
}

type UserProvider interface {
	UserByID(ctx context.Context, id int64) (models.User, error)
}

func New(log *slog.Logger, verifier TokenVerifier, users UserProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn"

			log := log.With(slog.String("op", op))

			token := extractToken(r)
			if token == "" {
				unauthorized(w, r)
				return
			}

			userID, err := verifier.VerifyAccess(token)
			if err != nil {
				log.Warn("access token verification failed", sl.Err(err))
				unauthorized(w, r)
				return
			}

			user, err := users.UserByID(r.Context(), userID)
			if err != nil {
				log.Warn("access token subject not found", sl.Err(err))
				unauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, user.Public())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user placed there by New.
func UserFromContext(ctx context.Context) (models.PublicUser, bool) {
	user, ok := ctx.Value(ctxKey{}).(models.PublicUser)
	return user, ok
}

// WithUser is a test helper to seed the context the way the middleware does.
func WithUser(ctx context.Context, user models.PublicUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
		return ""
	}

	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}

	return ""
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, resp.Error("unauthorized"))
}
