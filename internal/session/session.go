// Package session owns the account session lifecycle: credential
// verification, access/refresh token issuance, refresh rotation and
// invalidation. All session state lives on the persisted user record; the
// service itself is stateless between calls.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "vidstream/internal/lib/logger"
	"vidstream/internal/models"
	"vidstream/internal/storage"
)

// Error kinds. Handlers map these to transport status codes and must not
// surface anything more specific, so a caller cannot probe which step of a
// credential check failed beyond the kind itself.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInternal           = errors.New("internal error")
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type UserProvider interface {
	UserByLogin(ctx context.Context, username, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

type UserSaver interface {
	SaveUser(ctx context.Context, user models.User) (int64, error)

	// UpdateRefreshToken sets (or clears, when token is nil) the stored
	// refresh token as a single document mutation.
	UpdateRefreshToken(ctx context.Context, userID int64, token *string) error

	// RotateRefreshToken replaces the stored token only if it still equals
	// current, and reports storage.ErrTokenMismatch otherwise.
	RotateRefreshToken(ctx context.Context, userID int64, current, next string) error

	UpdatePasswordHash(ctx context.Context, userID int64, passHash []byte) error
}

type TokenSigner interface {
	Sign(userID int64, secret string, ttl time.Duration) (string, error)
	Verify(token, secret string) (int64, error)
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, hash []byte) bool
}

type Session struct {
	log           *slog.Logger
	usrProvider   UserProvider
	usrSaver      UserSaver
	signer        TokenSigner
	hasher        PasswordHasher
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func New(
	log *slog.Logger,
	userProvider UserProvider,
	userSaver UserSaver,
	signer TokenSigner,
	hasher PasswordHasher,
	accessSecret, refreshSecret string,
	accessTTL, refreshTTL time.Duration,
) *Session {
	return &Session{
		log:           log,
		usrProvider:   userProvider,
		usrSaver:      userSaver,
		signer:        signer,
		hasher:        hasher,
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

type NewUser struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	AvatarKey     string
	CoverImageURL string
	CoverImageKey string
}

// Register hashes the password and creates the account. Session issuance is
// a separate step: a freshly registered user still has to log in.
func (s *Session) Register(ctx context.Context, nu NewUser) (models.PublicUser, error) {
	const op = "session.Register"

	log := s.log.With(slog.String("op", op))

	passHash, err := s.hasher.Hash(nu.Password)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	user := models.User{
		Username:      nu.Username,
		Email:         nu.Email,
		FullName:      nu.FullName,
		PassHash:      passHash,
		AvatarURL:     nu.AvatarURL,
		AvatarKey:     nu.AvatarKey,
		CoverImageURL: nu.CoverImageURL,
		CoverImageKey: nu.CoverImageKey,
	}

	id, err := s.usrSaver.SaveUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	user.ID = id

	log.Info("user registered", slog.Int64("uid", id))

	return user.Public(), nil
}

// Authenticate verifies the credentials of the user identified by username
// or email (at least one must be supplied) and opens a session: a new token
// pair is minted and the refresh token is persisted on the user record,
// overwriting whatever token a previous login left there. Earlier sessions
// lose the ability to refresh; their access tokens run out on their own.
func (s *Session) Authenticate(
	ctx context.Context,
	username, email, password string,
) (models.PublicUser, TokenPair, error) {
	const op = "session.Authenticate"

	log := s.log.With(slog.String("op", op))

	if username == "" && email == "" {
		return models.PublicUser{}, TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	user, err := s.usrProvider.UserByLogin(ctx, username, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return models.PublicUser{}, TokenPair{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return models.PublicUser{}, TokenPair{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	if !s.hasher.Verify(password, user.PassHash) {
		log.Info("invalid credentials", slog.Int64("uid", user.ID))
		return models.PublicUser{}, TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.IssueTokenPair(user.ID)
	if err != nil {
		return models.PublicUser{}, TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.usrSaver.UpdateRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return models.PublicUser{}, TokenPair{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))

	return user.Public(), pair, nil
}

// IssueTokenPair mints a fresh access/refresh pair for the subject. It has
// no side effects; persisting the refresh token is the caller's job.
func (s *Session) IssueTokenPair(userID int64) (TokenPair, error) {
	const op = "session.IssueTokenPair"

	accessToken, err := s.signer.Sign(userID, s.accessSecret, s.accessTTL)
	if err != nil {
		s.log.Error("failed to sign access token", slog.String("op", op), sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	refreshToken, err := s.signer.Sign(userID, s.refreshSecret, s.refreshTTL)
	if err != nil {
		s.log.Error("failed to sign refresh token", slog.String("op", op), sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh exchanges a valid, still-current refresh token for a new pair and
// rotates the stored token. Every failure mode reports ErrInvalidCredentials:
// a caller cannot tell a forged token from an expired one, an unknown subject
// or a token already rotated away by a later login or refresh.
func (s *Session) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	const op = "session.Refresh"

	log := s.log.With(slog.String("op", op))

	if presented == "" {
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	userID, err := s.signer.Verify(presented, s.refreshSecret)
	if err != nil {
		log.Warn("refresh token verification failed", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.usrProvider.UserByID(ctx, userID)
	if err != nil {
		log.Warn("refresh subject not found", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if user.RefreshToken == nil || !tokensEqual(presented, *user.RefreshToken) {
		log.Warn("stale or mismatched refresh token", slog.Int64("uid", user.ID))
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.IssueTokenPair(user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	// Conditional swap: if another request rotated the token between the
	// read above and this write, the update matches zero rows and this
	// refresh loses.
	err = s.usrSaver.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenMismatch) {
			log.Warn("refresh token rotated concurrently", slog.Int64("uid", user.ID))
			return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		log.Error("failed to rotate refresh token", sl.Err(err))
		return TokenPair{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	log.Info("refresh successful", slog.Int64("uid", user.ID))

	return pair, nil
}

// Logout clears the stored refresh token. It is idempotent: logging out
// twice, or with no session open, succeeds. Already-issued access tokens
// stay valid until they expire; this service deliberately keeps no
// revocation list for them.
func (s *Session) Logout(ctx context.Context, userID int64) error {
	const op = "session.Logout"

	log := s.log.With(slog.String("op", op))

	if err := s.usrSaver.UpdateRefreshToken(ctx, userID, nil); err != nil {
		log.Error("failed to clear refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}

	log.Info("logout successful", slog.Int64("uid", userID))

	return nil
}

// ChangePassword replaces the stored hash after verifying the old password.
// The refresh token is left untouched: a password change does not force a
// logout here.
func (s *Session) ChangePassword(
	ctx context.Context,
	userID int64,
	oldPassword, newPassword, confirmPassword string,
) error {
	const op = "session.ChangePassword"

	log := s.log.With(slog.String("op", op))

	if newPassword != confirmPassword {
		return fmt.Errorf("%s: passwords do not match: %w", op, ErrInvalidArgument)
	}

	if newPassword == oldPassword {
		return fmt.Errorf("%s: new password equals old one: %w", op, ErrInvalidArgument)
	}

	user, err := s.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}

	if !s.hasher.Verify(oldPassword, user.PassHash) {
		log.Info("invalid old password", slog.Int64("uid", user.ID))
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	passHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}

	if err := s.usrSaver.UpdatePasswordHash(ctx, user.ID, passHash); err != nil {
		log.Error("failed to update password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}

	log.Info("password changed", slog.Int64("uid", user.ID))

	return nil
}

// VerifyAccess checks an access token and returns its subject id. Used by
// the request-authentication middleware, not by the session operations.
func (s *Session) VerifyAccess(token string) (int64, error) {
	const op = "session.VerifyAccess"

	userID, err := s.signer.Verify(token, s.accessSecret)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return userID, nil
}

func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
