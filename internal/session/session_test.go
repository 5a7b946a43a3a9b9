package session_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"vidstream/internal/lib/hash"
	"vidstream/internal/lib/jwt"
	"vidstream/internal/models"
	"vidstream/internal/session"
	"vidstream/internal/storage"

	"github.com/stretchr/testify/require"
)

const (
	accessSecret  = "test-access-secret"
	refreshSecret = "test-refresh-secret"
	accessTTL     = time.Minute
	refreshTTL    = time.Hour
)

// fakeDirectory is an in-memory user directory implementing both consumer
// interfaces of the session service.
type fakeDirectory struct {
	users  map[int64]*models.User
	nextID int64
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[int64]*models.User), nextID: 1}
}

func (d *fakeDirectory) SaveUser(_ context.Context, user models.User) (int64, error) {
	for _, u := range d.users {
		if u.Username == user.Username || u.Email == user.Email {
			return 0, storage.ErrUserExists
		}
	}

	id := d.nextID
	d.nextID++
	user.ID = id
	d.users[id] = &user

	return id, nil
}

func (d *fakeDirectory) UserByLogin(_ context.Context, username, email string) (models.User, error) {
	for _, u := range d.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return *u, nil
		}
	}

	return models.User{}, storage.ErrUserNotFound
}

func (d *fakeDirectory) UserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return *u, nil
}

func (d *fakeDirectory) UpdateRefreshToken(_ context.Context, userID int64, token *string) error {
	u, ok := d.users[userID]
	if !ok {
		// Single-statement update: an unknown id matches zero rows, no error.
		return nil
	}

	if token == nil {
		u.RefreshToken = nil
		return nil
	}

	t := *token
	u.RefreshToken = &t

	return nil
}

func (d *fakeDirectory) RotateRefreshToken(_ context.Context, userID int64, current, next string) error {
	u, ok := d.users[userID]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != current {
		return storage.ErrTokenMismatch
	}

	u.RefreshToken = &next

	return nil
}

func (d *fakeDirectory) UpdatePasswordHash(_ context.Context, userID int64, passHash []byte) error {
	u, ok := d.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	u.PassHash = passHash

	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) (*session.Session, *fakeDirectory) {
	t.Helper()

	dir := newFakeDirectory()
	svc := session.New(
		discardLogger(),
		dir,
		dir,
		jwt.NewSigner(),
		hash.NewBcrypt(),
		accessSecret,
		refreshSecret,
		accessTTL,
		refreshTTL,
	)

	return svc, dir
}

func registerAlice(t *testing.T, svc *session.Session) models.PublicUser {
	t.Helper()

	user, err := svc.Register(context.Background(), session.NewUser{
		Username: "alice",
		Email:    "alice@x.com",
		FullName: "Alice",
		Password: "P@ss1",
	})
	require.NoError(t, err)

	return user
}

func TestAuthenticate_ByUsernameAndEmail(t *testing.T) {
	svc, _ := newTestSession(t)
	ctx := context.Background()

	registerAlice(t, svc)

	for _, tc := range []struct {
		name     string
		username string
		email    string
	}{
		{name: "by username", username: "alice"},
		{name: "by email", email: "alice@x.com"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			user, pair, err := svc.Authenticate(ctx, tc.username, tc.email, "P@ss1")
			require.NoError(t, err)
			require.Equal(t, "alice", user.Username)
			require.NotEmpty(t, pair.AccessToken)
			require.NotEmpty(t, pair.RefreshToken)

			// The freshly issued refresh token must be usable.
			_, err = svc.Refresh(ctx, pair.RefreshToken)
			require.NoError(t, err)
		})
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	svc, _ := newTestSession(t)
	ctx := context.Background()

	registerAlice(t, svc)

	_, _, err := svc.Authenticate(ctx, "alice", "", "wrong")
	require.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, _, err = svc.Authenticate(ctx, "nobody", "", "x")
	require.ErrorIs(t, err, session.ErrUserNotFound)

	_, _, err = svc.Authenticate(ctx, "", "", "P@ss1")
	require.ErrorIs(t, err, session.ErrInvalidArgument)
}

func TestAuthenticate_SecondLoginRevokesFirst(t *testing.T) {
	svc, _ := newTestSession(t)
	ctx := context.Background()

	registerAlice(t, svc)

	_, first, err := svc.Authenticate(ctx, "alice", "", "P@ss1")
	require.NoError(t, err)

	_, second, err := svc.Authenticate(ctx, "alice", "", "P@ss1")
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, err = svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_RotationChain(t *testing.T) {
	svc, _ := newTestSession(t)
	ctx := context.Background()

	registerAlice(t, svc)

	_, pair, err := svc.Authenticate(ctx, "alice", "", "P@ss1")
	require.NoError(t, err)

	pair2, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, pair2.RefreshToken)

	pair3, err := svc.Refresh(ctx, pair2.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair2.RefreshToken, pair3.RefreshToken)

	// The first token was rotated away and can never succeed again.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestRefresh_UniformUnauthorized(t *testing.T) {
	svc, _ := newTestSession(t)
	ctx := context.Background()

	registerAlice(t, svc)

	_, pair, err := svc.Authenticate(ctx, "alice", "", "P@ss1")
	require.NoError(t, err)

	signer := jwt.NewSigner()

	expired, err := signer.Sign(1, refreshSecret, -time.Minute)
	require.NoError(t, err)

	wrongSecret, err := signer.Sign(1, "other-secret", refreshTTL)
	require.NoError(t, err)

	accessAsRefresh, err := signer.Sign(1, accessSecret, accessTTL)
	require.NoError(t, err)

	unknownSubject, err := signer.Sign(999, refreshSecret, refreshTTL)
	require.NoError(t, err)

	// Cryptographically valid but not the stored token.
	notStored, err := signer.Sign(1, refreshSecret, refreshTTL)
	require.NoError(t, err)

	for _, tc := range []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"malformed", "not.a.jwt"},
		{"expired", expired},
		{"wrong secret", wrongSecret},
		{"access token presented", accessAsRefresh},
		{"unknown subject", unknownSubject},
		{"valid but not stored", notStored},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Refresh(ctx, tc.token)
			require.ErrorIs(t, err, session.ErrInvalidCredentials)
		})
	}

	// The real token still works after all the failed attempts.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_ConcurrentRotationLoses(t *testing.T) {
	svc, dir := newTestSession(t)
	ctx := context.Background()

	user := registerAlice(t, svc)

	_, pair, err := svc.Authenticate(ctx, "alice", "", "P@ss1")
	require.NoError(t, err)

	// Simulate another request winning the rotation between the read and
	// the conditional write.
	other := "someone-else-rotated"
	require.NoError(t, dir.UpdateRefreshToken(ctx, user.ID, &other))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestLogout_IdempotentAndKillsRefresh(t *testing.T) {
	svc, _ := newTestSession(t)
	ctx := context.Background()

	user := registerAlice(t, svc)

	_, pair, err := svc.Authenticate(ctx, "alice", "", "P@ss1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))
	require.NoError(t, svc.Logout(ctx, user.ID))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, session.ErrInvalidCredentials)

	// Logout with no session open is not an error either.
	require.NoError(t, svc.Logout(ctx, 42))
}

func TestChangePassword(t *testing.T) {
	svc, dir := newTestSession(t)
	ctx := context.Background()

	user := registerAlice(t, svc)

	hashBefore := func() []byte {
		u, err := dir.UserByID(ctx, user.ID)
		require.NoError(t, err)
		return u.PassHash
	}

	t.Run("confirmation mismatch", func(t *testing.T) {
		before := hashBefore()
		err := svc.ChangePassword(ctx, user.ID, "P@ss1", "NewP@ss1", "Different")
		require.ErrorIs(t, err, session.ErrInvalidArgument)
		require.Equal(t, before, hashBefore())
	})

	t.Run("new equals old", func(t *testing.T) {
		err := svc.ChangePassword(ctx, user.ID, "P@ss1", "P@ss1", "P@ss1")
		require.ErrorIs(t, err, session.ErrInvalidArgument)
	})

	t.Run("wrong old password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, user.ID, "wrong", "NewP@ss1", "NewP@ss1")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
	})

	t.Run("success keeps session alive", func(t *testing.T) {
		_, pair, err := svc.Authenticate(ctx, "alice", "", "P@ss1")
		require.NoError(t, err)

		err = svc.ChangePassword(ctx, user.ID, "P@ss1", "NewP@ss1", "NewP@ss1")
		require.NoError(t, err)

		// Old password no longer works, new one does.
		_, _, err = svc.Authenticate(ctx, "alice", "", "P@ss1")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)

		// The refresh token survived the password change.
		_, err = svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
	})
}

func TestRegister_DuplicateUser(t *testing.T) {
	svc, _ := newTestSession(t)

	registerAlice(t, svc)

	_, err := svc.Register(context.Background(), session.NewUser{
		Username: "alice",
		Email:    "other@x.com",
		FullName: "Other",
		Password: "secret123",
	})
	require.ErrorIs(t, err, session.ErrUserExists)
}

func TestIssueTokenPair_SubjectsAndSecrets(t *testing.T) {
	svc, _ := newTestSession(t)

	pair, err := svc.IssueTokenPair(7)
	require.NoError(t, err)

	signer := jwt.NewSigner()

	uid, err := signer.Verify(pair.AccessToken, accessSecret)
	require.NoError(t, err)
	require.Equal(t, int64(7), uid)

	uid, err = signer.Verify(pair.RefreshToken, refreshSecret)
	require.NoError(t, err)
	require.Equal(t, int64(7), uid)

	// Tokens are bound to their own secret.
	_, err = signer.Verify(pair.AccessToken, refreshSecret)
	require.Error(t, err)
	_, err = signer.Verify(pair.RefreshToken, accessSecret)
	require.Error(t, err)
}

func TestEndToEndScenario(t *testing.T) {
	svc, _ := newTestSession(t)
	ctx := context.Background()

	registered := registerAlice(t, svc)
	require.Equal(t, "alice", registered.Username)
	require.Equal(t, "alice@x.com", registered.Email)

	user, pair, err := svc.Authenticate(ctx, "alice", "", "P@ss1")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	pair2, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, pair2.RefreshToken)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
}
