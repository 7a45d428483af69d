package application

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/danuargs/vidtube-backend/internal/domain/entity"
	repo "github.com/danuargs/vidtube-backend/internal/domain/repository"
	"github.com/danuargs/vidtube-backend/pkg/helpers"
	"github.com/danuargs/vidtube-backend/pkg/mailer"
)

var (
	ErrValidation         = errors.New("missing required field")
	ErrUserExists         = errors.New("username or email already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// UserIndexer receives user records for search indexing after writes.
type UserIndexer interface {
	IndexUser(ctx context.Context, u *entity.User) error
}

// TokenPair is an access/refresh token pair with expiries.
type TokenPair struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
}

// SessionService owns the credential & session lifecycle: registration, login,
// logout, refresh-token rotation, and password changes. It holds no session
// state itself; the stored refresh token on the user record is the single
// source of truth, fetched fresh on every call.
type SessionService struct {
	Repo        repo.UserRepository
	JWT         *helpers.JWTManager
	Hasher      *helpers.PasswordHasher
	Redis       *redis.Client
	Logger      *logrus.Logger
	Pub         *helpers.RabbitPublisher
	Indexer     UserIndexer
	MailEnabled bool
}

func NewSessionService(r repo.UserRepository, jwt *helpers.JWTManager, hasher *helpers.PasswordHasher, rdb *redis.Client, logger *logrus.Logger) *SessionService {
	return &SessionService{Repo: r, JWT: jwt, Hasher: hasher, Redis: rdb, Logger: logger}
}

type RegisterInput struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// EnsureAvailable reports ErrUserExists when the username or email is already
// taken. Callers that host uploads before creating the record check this first
// so a conflict never leaves an orphaned object behind.
func (s *SessionService) EnsureAvailable(ctx context.Context, username, email string) error {
	exists, err := s.Repo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}
	return nil
}

// Register creates a new user record. The avatar URL must already be hosted;
// the cover image is optional. The password is hashed before anything is
// persisted and the plaintext is never stored.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (entity.Profile, error) {
	if in.Username == "" || in.Email == "" || in.FullName == "" || in.Password == "" || in.AvatarURL == "" {
		return entity.Profile{}, ErrValidation
	}
	if err := s.EnsureAvailable(ctx, in.Username, in.Email); err != nil {
		return entity.Profile{}, err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		// fatal: never fall back to storing plaintext
		return entity.Profile{}, err
	}

	u := &entity.User{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		AvatarURL:     in.AvatarURL,
		CoverImageURL: in.CoverImageURL,
		PasswordHash:  hash,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return entity.Profile{}, err
	}
	if s.Indexer != nil {
		if ierr := s.Indexer.IndexUser(ctx, u); ierr != nil {
			s.Logger.WithError(ierr).WithField("user_id", u.ID).Warn("user index failed")
		}
	}
	s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("user registered")
	return u.Profile(), nil
}

type LoginInput struct {
	Identifier string // username or email
	Password   string
	IP         string
	UserAgent  string
}

// Login verifies credentials and starts a session: it issues a fresh token
// pair and overwrites the stored refresh token, so at most one refresh token
// is valid per user at any time.
//
// ErrUserNotFound and ErrInvalidCredentials must be presented identically to
// the client; keeping them distinct here is for server-side logging only.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (entity.Profile, TokenPair, error) {
	if in.Identifier == "" || in.Password == "" {
		return entity.Profile{}, TokenPair{}, ErrValidation
	}
	u, err := s.Repo.GetByIdentifier(ctx, in.Identifier)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return entity.Profile{}, TokenPair{}, ErrUserNotFound
		}
		return entity.Profile{}, TokenPair{}, err
	}
	if !s.Hasher.Check(u.PasswordHash, in.Password) {
		return entity.Profile{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return entity.Profile{}, TokenPair{}, err
	}

	if rerr := helpers.RecordSessionMeta(ctx, s.Redis, helpers.SessionMeta{
		UserID:    u.ID,
		Username:  u.Username,
		IP:        in.IP,
		UserAgent: in.UserAgent,
		LoginAt:   time.Now(),
	}, s.JWT.RefreshTTL); rerr != nil {
		s.Logger.WithError(rerr).WithField("user_id", u.ID).Warn("session meta write failed")
	}

	s.notifyLogin(ctx, u, in.IP)

	s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("user logged in")
	return u.Profile(), pair, nil
}

// Logout clears the stored refresh token. Logging out a user with no active
// session is not an error.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.Repo.UpdateRefreshToken(ctx, userID, ""); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if derr := helpers.DropSessionMeta(ctx, s.Redis, userID); derr != nil {
		s.Logger.WithError(derr).WithField("user_id", userID).Warn("session meta delete failed")
	}
	return nil
}

// Refresh validates a presented refresh token and rotates it: a new pair is
// issued and the stored token replaced, so presenting a superseded token again
// fails and forces re-login. Every failure mode collapses to ErrUnauthorized;
// the detailed cause goes to the log only.
func (s *SessionService) Refresh(ctx context.Context, presented string) (entity.Profile, TokenPair, error) {
	if presented == "" {
		return entity.Profile{}, TokenPair{}, ErrUnauthorized
	}
	claims, err := s.JWT.ParseRefreshToken(presented)
	if err != nil {
		s.Logger.WithError(err).Debug("refresh token rejected")
		return entity.Profile{}, TokenPair{}, ErrUnauthorized
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil {
		s.Logger.WithError(err).Debug("refresh subject lookup failed")
		return entity.Profile{}, TokenPair{}, ErrUnauthorized
	}
	if u.RefreshToken == "" || u.RefreshToken != presented {
		// either logged out or the token was already rotated; both force re-login
		s.Logger.WithField("user_id", u.ID).Debug("refresh token mismatch")
		return entity.Profile{}, TokenPair{}, ErrUnauthorized
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return entity.Profile{}, TokenPair{}, err
	}

	if terr := helpers.TouchSessionMeta(ctx, s.Redis, u.ID, s.JWT.RefreshTTL); terr != nil {
		s.Logger.WithError(terr).WithField("user_id", u.ID).Warn("session meta touch failed")
	}
	return u.Profile(), pair, nil
}

// ChangePassword verifies the old password and stores a hash of the new one.
// The active refresh token is intentionally left valid; see DESIGN.md.
func (s *SessionService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return ErrValidation
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !s.Hasher.Check(u.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	s.Logger.WithField("user_id", u.ID).Info("password changed")
	return nil
}

// issueTokens generates an access/refresh pair and persists the refresh token,
// overwriting any prior value.
func (s *SessionService) issueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, u.Username, u.Email, u.FullName)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.Repo.UpdateRefreshToken(ctx, u.ID, refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:   access,
		AccessExpiry:  aexp,
		RefreshToken:  refresh,
		RefreshExpiry: rexp,
	}, nil
}

func (s *SessionService) notifyLogin(ctx context.Context, u *entity.User, ip string) {
	if s.Pub == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{
		To:   u.Email,
		Kind: mailer.KindLoginNotification,
		Data: map[string]any{
			"FullName": u.FullName,
			"IP":       ip,
			"LoginAt":  time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("login notification enqueue failed")
	}
}
