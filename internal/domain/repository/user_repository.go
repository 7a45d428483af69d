package repository

import (
	"context"
	"errors"

	"github.com/danuargs/vidtube-backend/internal/domain/entity"
)

// ErrNotFound is returned by lookups and updates that match no user record.
var ErrNotFound = errors.New("user not found")

// UserRepository is the credential store: it exclusively owns the persisted
// user record. Callers fetch a copy per request and never cache across requests.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateProfile(ctx context.Context, u *entity.User) error
	// UpdatePassword stores a new bcrypt hash; it is the only operation that
	// touches password_hash, so hashing happens exactly when the password changes.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// UpdateRefreshToken overwrites the stored refresh token in a single
	// statement; an empty token clears the active session.
	UpdateRefreshToken(ctx context.Context, id, refreshToken string) error
}
