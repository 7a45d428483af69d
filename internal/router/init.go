package router

import (
	userapp "github.com/danuargs/vidtube-backend/internal/application"
	"github.com/danuargs/vidtube-backend/internal/container"
	pginfra "github.com/danuargs/vidtube-backend/internal/infrastructure/postgres"
	handlers "github.com/danuargs/vidtube-backend/internal/interface/http"
	"github.com/danuargs/vidtube-backend/internal/router/modules"
)

// InitModules wires the user module from the container singletons and adds it
// to the registry. Called once during startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())

	profiles := userapp.NewProfileService(
		repo,
		container.GetGCS(),
		cfg.GCSBucket,
		container.GetES(),
		cfg.ESUsersIndex,
		container.GetLogger(),
	)

	sessions := userapp.NewSessionService(
		repo,
		container.GetJWT(),
		container.GetHasher(),
		container.GetRedis(),
		container.GetLogger(),
	)
	sessions.Indexer = profiles
	sessions.Pub = container.GetRabbitPub()
	sessions.MailEnabled = cfg.MailSendEnabled

	handler := handlers.NewUserHandler(
		sessions,
		profiles,
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
	)

	r.Mount(modules.NewUserModule(handler, repo, container.GetJWT(), container.GetLogger()))
}
