package like

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/middleware/authn"
	"vidstream/internal/storage"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Liked bool `json:"liked"`
}

type LikeToggler interface {
	ToggleVideoLike(ctx context.Context, userID, videoID int64) (bool, error)
}

// New flips the caller's like on {videoID}. At most one like row exists per
// (user, video); toggling twice restores the original state.
func New(
	log *slog.Logger,
	videos LikeToggler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.like.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		caller, ok := authn.UserFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("unauthorized"))

			return
		}

		videoID, err := strconv.ParseInt(chi.URLParam(r, "videoID"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid video id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		liked, err := videos.ToggleVideoLike(ctx, caller.ID, videoID)
		if err != nil {
			if errors.Is(err, storage.ErrVideoNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("video does not exist"))

				return
			}

			log.Error("failed to toggle like", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("like toggled",
			slog.Int64("uid", caller.ID),
			slog.Int64("video_id", videoID),
			slog.Bool("liked", liked),
		)

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Liked:    liked,
		})
	}
}
