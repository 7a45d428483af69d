package middleware_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danuargs/vidtube-backend/internal/domain/entity"
	"github.com/danuargs/vidtube-backend/internal/interface/middleware"
	"github.com/danuargs/vidtube-backend/internal/testutil"
	"github.com/danuargs/vidtube-backend/pkg/helpers"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *testutil.FakeUserRepo, *helpers.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := testutil.NewFakeUserRepo()
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	r := gin.New()
	r.GET("/protected", middleware.Auth(repo, jwt, logger), func(c *gin.Context) {
		profile := c.MustGet(middleware.CtxUserKey).(entity.Profile)
		c.JSON(http.StatusOK, gin.H{
			"userID":   c.GetString(middleware.CtxUserIDKey),
			"username": profile.Username,
		})
	})
	return r, repo, jwt
}

func seedUser(t *testing.T, repo *testutil.FakeUserRepo) *entity.User {
	t.Helper()
	u := &entity.User{
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice A",
		AvatarURL:    "https://cdn.example.com/avatars/a.png",
		PasswordHash: "$2a$04$notchecked",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestAuth_MissingToken(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized request")
}

func TestAuth_CookieToken(t *testing.T) {
	r, repo, jwt := newAuthRouter(t)
	u := seedUser(t, repo)

	token, _, err := jwt.GenerateAccessToken(u.ID, u.Username, u.Email, u.FullName)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: helpers.AccessTokenCookie, Value: token})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), u.ID)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestAuth_BearerToken(t *testing.T) {
	r, repo, jwt := newAuthRouter(t)
	u := seedUser(t, repo)

	token, _, err := jwt.GenerateAccessToken(u.ID, u.Username, u.Email, u.FullName)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_RejectsBadTokens(t *testing.T) {
	r, repo, jwt := newAuthRouter(t)
	u := seedUser(t, repo)

	expired := helpers.NewJWTManager("access-secret", "refresh-secret", -time.Minute, time.Hour)
	expiredToken, _, err := expired.GenerateAccessToken(u.ID, u.Username, u.Email, u.FullName)
	require.NoError(t, err)

	forged := helpers.NewJWTManager("wrong-secret", "refresh-secret", time.Hour, time.Hour)
	forgedToken, _, err := forged.GenerateAccessToken(u.ID, u.Username, u.Email, u.FullName)
	require.NoError(t, err)

	// a refresh token must not open the access gate
	refreshToken, _, err := jwt.GenerateRefreshToken(u.ID)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage": "not-a-jwt",
		"expired": expiredToken,
		"forged":  forgedToken,
		"refresh": refreshToken,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "invalid access token")
		})
	}
}

func TestAuth_DeletedSubject(t *testing.T) {
	r, repo, jwt := newAuthRouter(t)
	u := seedUser(t, repo)

	token, _, err := jwt.GenerateAccessToken(u.ID, u.Username, u.Email, u.FullName)
	require.NoError(t, err)
	repo.Delete(u.ID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: helpers.AccessTokenCookie, Value: token})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
