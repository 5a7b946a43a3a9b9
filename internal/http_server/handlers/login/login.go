package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vidstream/internal/http_server/cookies"
	resp "vidstream/internal/lib/api/response"
	sl "vidstream/internal/lib/logger"
	"vidstream/internal/models"
	"vidstream/internal/session"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"omitempty,email"`
	Pass     string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
}

type Authenticator interface {
	Authenticate(ctx context.Context, username, email, password string) (models.PublicUser, session.TokenPair, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	sessions Authenticator,
	accessTTL, refreshTTL time.Duration,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, pair, err := sessions.Authenticate(ctx, req.Username, req.Email, req.Pass)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrUserNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User does not exist"))
			case errors.Is(err, session.ErrInvalidCredentials):
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid credentials"))
			case errors.Is(err, session.ErrInvalidArgument):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("username or email is required"))
			default:
				log.Error("failed to login user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("User logged in successfully", slog.Int64("uid", user.ID))

		cookies.Set(w, cookies.AccessToken, pair.AccessToken, accessTTL)
		cookies.Set(w, cookies.RefreshToken, pair.RefreshToken, refreshTTL)

		ResponseOK(w, r, user, pair)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request, user models.PublicUser, pair session.TokenPair) {
	render.JSON(w, r, Response{
		Response:     resp.OK(),
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}
