package history

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/middleware/authn"
	"vidstream/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	History []models.WatchEntry `json:"history"`
}

type HistoryProvider interface {
	WatchHistory(ctx context.Context, userID int64) ([]models.WatchEntry, error)
}

func New(
	log *slog.Logger,
	users HistoryProvider,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.history.New"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entries, err := users.WatchHistory(ctx, caller.ID)
		if err != nil {
			log.Error("failed to load watch history", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("watch history fetched", slog.Int64("uid", caller.ID), slog.Int("entries", len(entries)))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			History:  entries,
		})
	}
}
