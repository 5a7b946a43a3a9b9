package logout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"vidstream/internal/http_server/cookies"
	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/middleware/authn"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
}

type Closer interface {
	Logout(ctx context.Context, userID int64) error
}

// New clears the caller's stored refresh token and both token cookies.
// The access token itself stays valid until its TTL runs out; there is no
// revocation list for access tokens in this service.
func New(
	log *slog.Logger,
	sessions Closer,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		user, ok := authn.UserFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("unauthorized"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := sessions.Logout(ctx, user.ID); err != nil {
			log.Error("failed to logout user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("user logged out successfully", slog.Int64("uid", user.ID))

		cookies.Clear(w, cookies.AccessToken)
		cookies.Clear(w, cookies.RefreshToken)

		ResponseOK(w, r)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
	})
}
