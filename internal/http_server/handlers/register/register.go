package register

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
	"vidstream/internal/models"
	"vidstream/internal/session"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const maxUploadBytes = 32 << 20

type Request struct {
	FullName string `validate:"required"`
	Email    string `validate:"required,email"`
	Username string `validate:"required"`
	Pass     string `validate:"required,min=8"`
}

type Response struct {
	resp.Response
	User models.PublicUser `json:"user"`
}

type Registrar interface {
	Register(ctx context.Context, nu session.NewUser) (models.PublicUser, error)
}

type MediaUploader interface {
	Upload(ctx context.Context, kind, contentType string, body io.Reader) (media.Object, error)
	Delete(ctx context.Context, key string) error
}

type Publisher interface {
	Publish(ctx context.Context, msg models.Message) error
}

// New creates the account from a multipart form: the profile fields plus an
// avatar image (required) and a cover image (optional). Images land in media
// storage before the user row is written; if the write fails they are
// removed again best-effort.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	sessions Registrar,
	uploads MediaUploader,
	publisher Publisher,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			log.Error("Failed to parse multipart form", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		req := Request{
			FullName: r.FormValue("full_name"),
			Email:    r.FormValue("email"),
			Username: r.FormValue("username"),
			Pass:     r.FormValue("password"),
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		avatar, err := uploadFormFile(ctx, r, uploads, "avatar", "avatars")
		if err != nil {
			log.Error("failed to store avatar", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Avatar file is required"))

			return
		}

		// Cover image is optional.
		cover, coverErr := uploadFormFile(ctx, r, uploads, "cover_image", "covers")
		if coverErr != nil {
			cover = media.Object{}
		}

		user, err := sessions.Register(ctx, session.NewUser{
			Username:      req.Username,
			Email:         req.Email,
			FullName:      req.FullName,
			Password:      req.Pass,
			AvatarURL:     avatar.URL,
			AvatarKey:     avatar.Key,
			CoverImageURL: cover.URL,
			CoverImageKey: cover.Key,
		})
		if err != nil {
			cleanupUploads(ctx, log, uploads, avatar.Key, cover.Key)

			if errors.Is(err, session.ErrUserExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("Email or Username already exists"))

				return
			}

			log.Error("failed to register user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User registered", slog.Int64("uid", user.ID))

		// Welcome mail delivery must not fail the registration.
		msg := models.Message{
			Email:    user.Email,
			Username: user.Username,
			Purpose:  "welcome",
		}
		if err := publisher.Publish(ctx, msg); err != nil {
			log.Error("failed to publish welcome message", sl.Err(err))
		}

		render.Status(r, http.StatusCreated)
		ResponseOK(w, r, user)
	}
}

func uploadFormFile(
	ctx context.Context,
	r *http.Request,
	uploads MediaUploader,
	field, kind string,
) (media.Object, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return media.Object{}, err
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")

	return uploads.Upload(ctx, kind, contentType, file)
}

func cleanupUploads(ctx context.Context, log *slog.Logger, uploads MediaUploader, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := uploads.Delete(ctx, key); err != nil {
			log.Warn("failed to delete uploaded object", slog.String("key", key), sl.Err(err))
		}
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, user models.PublicUser) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
		User:     user,
	})
}
