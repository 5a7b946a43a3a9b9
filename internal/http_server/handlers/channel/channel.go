package channel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/middleware/authn"
	"vidstream/internal/models"
	"vidstream/internal/storage"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Channel models.ChannelProfile `json:"channel"`
}

type ProfileProvider interface {
	ChannelProfile(ctx context.Context, username string, viewerID int64) (models.ChannelProfile, error)
	IsSubscribed(ctx context.Context, channelID, viewerID int64) (bool, error)
}

type ProfileCache interface {
	GetChannelProfile(ctx context.Context, username string) (models.ChannelProfile, error)
	SetChannelProfile(ctx context.Context, p models.ChannelProfile) error
}

// New returns the channel profile for {username}. The viewer-independent
// part (counters, images) is cached; IsSubscribed is always resolved for the
// caller, so a cache hit still costs one lookup.
func New(
	log *slog.Logger,
	users ProfileProvider,
	cache ProfileCache,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.channel.New"

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

		username := chi.URLParam(r, "username")
		if username == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("username is missing"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if profile, err := cache.GetChannelProfile(ctx, username); err == nil {
			subscribed, err := users.IsSubscribed(ctx, profile.ID, caller.ID)
			if err == nil {
				profile.IsSubscribed = subscribed

				log.Info("channel profile served from cache", slog.String("channel", username))

				ResponseOK(w, r, profile)

				return
			}

			log.Warn("failed to resolve subscription state", sl.Err(err))
		} else if !errors.Is(err, storage.ErrCacheMiss) {
			log.Warn("profile cache read failed", sl.Err(err))
		}

		profile, err := users.ChannelProfile(ctx, username, caller.ID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("channel does not exist"))

				return
			}

			log.Error("failed to load channel profile", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if err := cache.SetChannelProfile(ctx, profile); err != nil {
			log.Warn("profile cache write failed", sl.Err(err))
		}

		log.Info("channel profile fetched", slog.String("channel", username))

		ResponseOK(w, r, profile)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, profile models.ChannelProfile) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		Channel:  profile,
	})
}
