package refresh_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vidstream/internal/http_server/handlers/refresh"
	"vidstream/internal/session"

	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	pair session.TokenPair
	err  error

	gotToken string
}

func (f *fakeRefresher) Refresh(_ context.Context, token string) (session.TokenPair, error) {
	f.gotToken = token

	if f.err != nil {
		return session.TokenPair{}, f.err
	}

	return f.pair, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(svc refresh.Refresher) http.HandlerFunc {
	return refresh.New(discardLogger(), svc, time.Minute, time.Hour)
}

func TestRefresh_FromCookie(t *testing.T) {
	svc := &fakeRefresher{pair: session.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "r1"})
	rec := httptest.NewRecorder()

	newHandler(svc)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "r1", svc.gotToken)

	var body refresh.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "a2", body.AccessToken)
	require.Equal(t, "r2", body.RefreshToken)
}

func TestRefresh_FromBody(t *testing.T) {
	svc := &fakeRefresher{pair: session.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token",
		bytes.NewBufferString(`{"refresh_token":"r1"}`))
	rec := httptest.NewRecorder()

	newHandler(svc)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "r1", svc.gotToken)
}

func TestRefresh_CookieWinsOverBody(t *testing.T) {
	svc := &fakeRefresher{pair: session.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token",
		bytes.NewBufferString(`{"refresh_token":"from-body"}`))
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "from-cookie"})
	rec := httptest.NewRecorder()

	newHandler(svc)(rec, req)

	require.Equal(t, "from-cookie", svc.gotToken)
}

func TestRefresh_Unauthorized(t *testing.T) {
	svc := &fakeRefresher{err: session.ErrInvalidCredentials}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	rec := httptest.NewRecorder()

	newHandler(svc)(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_RotatedCookiesSet(t *testing.T) {
	svc := &fakeRefresher{pair: session.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "r1"})
	rec := httptest.NewRecorder()

	newHandler(svc)(rec, req)

	values := map[string]string{}
	for _, c := range rec.Result().Cookies() {
		values[c.Name] = c.Value
	}
	require.Equal(t, "a2", values["accessToken"])
	require.Equal(t, "r2", values["refreshToken"])
}
