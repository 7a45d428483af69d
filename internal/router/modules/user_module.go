package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	repo "github.com/danuargs/vidtube-backend/internal/domain/repository"
	handlers "github.com/danuargs/vidtube-backend/internal/interface/http"
	"github.com/danuargs/vidtube-backend/internal/interface/middleware"
	"github.com/danuargs/vidtube-backend/pkg/helpers"
)

// UserModule wires the user handlers and the auth gate into routes.
// Public: register, login, refresh-token.
// Protected: logout, change-password, profile, image uploads, search.
type UserModule struct {
	Handler *handlers.UserHandler
	Users   repo.UserRepository
	JWT     *helpers.JWTManager
	Logger  *logrus.Logger
}

func NewUserModule(h *handlers.UserHandler, users repo.UserRepository, jwt *helpers.JWTManager, logger *logrus.Logger) *UserModule {
	return &UserModule{Handler: h, Users: users, JWT: jwt, Logger: logger}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users")

	users.POST("/register", m.Handler.Register)
	users.POST("/login", m.Handler.Login)
	users.POST("/refresh-token", m.Handler.Refresh)

	auth := users.Group("/")
	auth.Use(middleware.Auth(m.Users, m.JWT, m.Logger))
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/change-password", m.Handler.ChangePassword)
		auth.GET("/me", m.Handler.Me)
		auth.PATCH("/me", m.Handler.UpdateMe)
		auth.PATCH("/avatar", m.Handler.UploadAvatar)
		auth.PATCH("/cover-image", m.Handler.UploadCoverImage)
		auth.GET("/search", m.Handler.Search)
	}
}
