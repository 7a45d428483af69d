package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/danuargs/vidtube-backend/internal/application"
	"github.com/danuargs/vidtube-backend/internal/domain/entity"
	"github.com/danuargs/vidtube-backend/internal/interface/middleware"
	"github.com/danuargs/vidtube-backend/pkg/helpers"
	"github.com/danuargs/vidtube-backend/pkg/response"
	"github.com/danuargs/vidtube-backend/pkg/validation"
)

// Login failures must read the same whether the account is missing or the
// password is wrong, so clients cannot enumerate accounts.
const loginFailedMsg = "invalid username/email or password"

type UserHandler struct {
	Sessions *userapp.SessionService
	Profiles *userapp.ProfileService
	Logger   *logrus.Logger
	Cookies  *helpers.CookieManager
}

func NewUserHandler(sessions *userapp.SessionService, profiles *userapp.ProfileService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *UserHandler {
	return &UserHandler{
		Sessions: sessions,
		Profiles: profiles,
		Logger:   logger,
		Cookies:  helpers.NewCookieManager(cookieDomain, cookieSecure),
	}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

type registerRequest struct {
	Username string `form:"username" binding:"required,uname"`
	Email    string `form:"email" binding:"required,email"`
	FullName string `form:"fullName" binding:"required"`
	Password string `form:"password" binding:"required,pwd"`
}

// Register handles POST /users/register: multipart form with profile fields,
// a required avatar image, and an optional cover image.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	// check before hosting any image, so a conflict cannot orphan an upload
	if err := h.Sessions.EnsureAvailable(c.Request.Context(), req.Username, req.Email); err != nil {
		if errors.Is(err, userapp.ErrUserExists) {
			response.Fail(c, http.StatusConflict, "user with email or username already exists", nil)
			return
		}
		h.Logger.WithError(err).Error("register availability check failed")
		response.Fail(c, http.StatusInternalServerError, "failed to register user", nil)
		return
	}

	avatarURL, err := h.hostFormImage(c, "avatar", "avatars")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "avatar image is required", nil)
		return
	}
	coverURL, err := h.hostFormImage(c, "coverImage", "covers")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		response.Fail(c, http.StatusBadRequest, "cover image upload failed", nil)
		return
	}

	profile, err := h.Sessions.Register(c.Request.Context(), userapp.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		FullName:      req.FullName,
		Password:      req.Password,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, userapp.ErrValidation):
			response.Fail(c, http.StatusBadRequest, "all fields are required", nil)
		case errors.Is(err, userapp.ErrUserExists):
			response.Fail(c, http.StatusConflict, "user with email or username already exists", nil)
		default:
			h.Logger.WithError(err).Error("register failed")
			response.Fail(c, http.StatusInternalServerError, "failed to register user", nil)
		}
		return
	}
	response.OK(c, http.StatusCreated, profile, "user registered successfully")
}

// hostFormImage uploads the named multipart file to object storage and
// returns the hosted URL. http.ErrMissingFile is passed through so optional
// files can be skipped.
func (h *UserHandler) hostFormImage(c *gin.Context, field, prefix string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", err
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer func(f multipart.File) { _ = f.Close() }(f)
	return h.Profiles.HostImage(c.Request.Context(), prefix, f, fh.Filename, fh.Header.Get("Content-Type"))
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password" binding:"required"`
}

func (r *loginRequest) identifier() string {
	for _, v := range []string{r.Identifier, r.Username, r.Email} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Login handles POST /users/login. Tokens are set as httpOnly cookies and
// echoed in the body for non-cookie clients.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	profile, pair, err := h.Sessions.Login(c.Request.Context(), userapp.LoginInput{
		Identifier: req.identifier(),
		Password:   req.Password,
		IP:         clientIP(c),
		UserAgent:  c.GetHeader("User-Agent"),
	})
	if err != nil {
		switch {
		case errors.Is(err, userapp.ErrValidation):
			response.Fail(c, http.StatusBadRequest, "username or email is required", nil)
		case errors.Is(err, userapp.ErrUserNotFound), errors.Is(err, userapp.ErrInvalidCredentials):
			response.Fail(c, http.StatusUnauthorized, loginFailedMsg, nil)
		default:
			h.Logger.WithError(err).Error("login failed")
			response.Fail(c, http.StatusInternalServerError, "failed to log in", nil)
		}
		return
	}

	h.Cookies.SetTokenPair(c, pair.AccessToken, pair.AccessExpiry, pair.RefreshToken, pair.RefreshExpiry)
	response.OK(c, http.StatusOK, gin.H{
		"user":         profile,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "user logged in successfully")
}

// Refresh handles POST /users/refresh-token. The refresh token is accepted
// from the refreshToken cookie or a refreshToken body field.
func (h *UserHandler) Refresh(c *gin.Context) {
	presented, _ := c.Cookie(helpers.RefreshTokenCookie)
	if presented == "" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			presented = body.RefreshToken
		}
	}

	_, pair, err := h.Sessions.Refresh(c.Request.Context(), presented)
	if err != nil {
		if !errors.Is(err, userapp.ErrUnauthorized) {
			h.Logger.WithError(err).Error("refresh failed")
			response.Fail(c, http.StatusInternalServerError, "failed to refresh session", nil)
			return
		}
		response.Fail(c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	h.Cookies.SetTokenPair(c, pair.AccessToken, pair.AccessExpiry, pair.RefreshToken, pair.RefreshExpiry)
	response.OK(c, http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "access token refreshed")
}

// Logout handles POST /users/logout: clears the stored refresh token and
// expires both cookies. Idempotent.
func (h *UserHandler) Logout(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	if err := h.Sessions.Logout(c.Request.Context(), uid); err != nil {
		h.Logger.WithError(err).WithField("user_id", uid).Error("logout failed")
		response.Fail(c, http.StatusInternalServerError, "failed to log out", nil)
		return
	}
	h.Cookies.ClearTokenPair(c)
	response.OK(c, http.StatusOK, gin.H{"loggedOut": true}, "user logged out")
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,pwd"`
}

// ChangePassword handles POST /users/change-password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	uid := c.GetString(middleware.CtxUserIDKey)
	if err := h.Sessions.ChangePassword(c.Request.Context(), uid, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, userapp.ErrInvalidCredentials):
			response.Fail(c, http.StatusUnauthorized, "old password is incorrect", nil)
		case errors.Is(err, userapp.ErrValidation):
			response.Fail(c, http.StatusBadRequest, "old and new password are required", nil)
		case errors.Is(err, userapp.ErrUserNotFound):
			response.Fail(c, http.StatusNotFound, "user not found", nil)
		default:
			h.Logger.WithError(err).WithField("user_id", uid).Error("change password failed")
			response.Fail(c, http.StatusInternalServerError, "failed to change password", nil)
		}
		return
	}
	response.OK(c, http.StatusOK, gin.H{"changed": true}, "password changed successfully")
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	profile, err := h.Profiles.GetProfile(c.Request.Context(), uid)
	if err != nil {
		response.Fail(c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.OK(c, http.StatusOK, profile, "current user")
}

type updateProfileRequest struct {
	FullName string `json:"fullName" binding:"required"`
}

// UpdateMe handles PATCH /users/me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	uid := c.GetString(middleware.CtxUserIDKey)
	profile, err := h.Profiles.UpdateProfile(c.Request.Context(), uid, userapp.UpdateProfileInput{FullName: req.FullName})
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Fail(c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).WithField("user_id", uid).Error("profile update failed")
		response.Fail(c, http.StatusInternalServerError, "failed to update profile", nil)
		return
	}
	response.OK(c, http.StatusOK, profile, "profile updated")
}

// UploadAvatar handles PATCH /users/avatar.
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	h.uploadImage(c, "avatar", h.Profiles.UploadAvatar)
}

// UploadCoverImage handles PATCH /users/cover-image.
func (h *UserHandler) UploadCoverImage(c *gin.Context) {
	h.uploadImage(c, "coverImage", h.Profiles.UploadCoverImage)
}

func (h *UserHandler) uploadImage(c *gin.Context, field string, upload func(ctx context.Context, userID string, r io.Reader, filename, contentType string) (entity.Profile, error)) {
	fh, err := c.FormFile(field)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, field+" image is required", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "could not read uploaded file", nil)
		return
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	uid := c.GetString(middleware.CtxUserIDKey)
	profile, err := upload(c.Request.Context(), uid, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, userapp.ErrUserNotFound) {
			response.Fail(c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).WithField("user_id", uid).Error("image upload failed")
		response.Fail(c, http.StatusInternalServerError, "failed to upload image", nil)
		return
	}
	response.OK(c, http.StatusOK, profile, field+" updated")
}

// Search handles GET /users/search?q=&size=.
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Fail(c, http.StatusBadRequest, "query parameter q is required", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Profiles.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Error("user search failed")
		response.Fail(c, http.StatusInternalServerError, "search unavailable", nil)
		return
	}
	response.OK(c, http.StatusOK, hits, "search results")
}
