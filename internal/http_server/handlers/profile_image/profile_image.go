// Package profileImage serves the avatar and cover-image replacement
// endpoints. Both upload the new object first, swap the reference on the
// user row, then delete the replaced object best-effort.
package profileImage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/media"
	"vidstream/internal/middleware/authn"
	"vidstream/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

const maxUploadBytes = 16 << 20

type Response struct {
	resp.Response
	URL string `json:"url"`
}

type MediaUploader interface {
	Upload(ctx context.Context, kind, contentType string, body io.Reader) (media.Object, error)
	Delete(ctx context.Context, key string) error
}

type ImageUpdater interface {
	UpdateAvatar(ctx context.Context, userID int64, url, key string) (oldKey string, err error)
	UpdateCoverImage(ctx context.Context, userID int64, url, key string) (oldKey string, err error)
}

type ProfileCacheInvalidator interface {
	InvalidateChannelProfile(ctx context.Context, username string) error
}

func NewAvatar(log *slog.Logger, uploads MediaUploader, users ImageUpdater, cache ProfileCacheInvalidator) http.HandlerFunc {
	return newImageHandler(log, "handlers.profileImage.NewAvatar", "avatar", "avatars", uploads, users.UpdateAvatar, cache)
}

func NewCoverImage(log *slog.Logger, uploads MediaUploader, users ImageUpdater, cache ProfileCacheInvalidator) http.HandlerFunc {
	return newImageHandler(log, "handlers.profileImage.NewCoverImage", "cover_image", "covers", uploads, users.UpdateCoverImage, cache)
}

func newImageHandler(
	log *slog.Logger,
	op, field, kind string,
	uploads MediaUploader,
	update func(ctx context.Context, userID int64, url, key string) (string, error),
	cache ProfileCacheInvalidator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		caller, ok := authn.UserFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("unauthorized"))

			return
		}

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			log.Error("Failed to parse multipart form", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		file, header, err := r.FormFile(field)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("image file is required"))

			return
		}
		defer file.Close()

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		obj, err := uploads.Upload(ctx, kind, header.Header.Get("Content-Type"), file)
		if err != nil {
			log.Error("failed to store image", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		oldKey, err := update(ctx, caller.ID, obj.URL, obj.Key)
		if err != nil {
			// The fresh object is orphaned if the row update failed.
			if delErr := uploads.Delete(ctx, obj.Key); delErr != nil {
				log.Warn("failed to delete uploaded object", slog.String("key", obj.Key), sl.Err(delErr))
			}

			if errors.Is(err, storage.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User does not exist"))

				return
			}

			log.Error("failed to update image reference", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if oldKey != "" {
			if err := uploads.Delete(ctx, oldKey); err != nil {
				log.Warn("failed to delete replaced object", slog.String("key", oldKey), sl.Err(err))
			}
		}

		if err := cache.InvalidateChannelProfile(ctx, caller.Username); err != nil {
			log.Warn("failed to invalidate profile cache", sl.Err(err))
		}

		log.Info("profile image updated", slog.Int64("uid", caller.ID), slog.String("kind", kind))

		render.JSON(w, r, Response{
			Response: resp.OK(),
			URL:      obj.URL,
		})
	}
}
