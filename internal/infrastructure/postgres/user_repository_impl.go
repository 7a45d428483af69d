package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/danuargs/vidtube-backend/internal/domain/entity"
	"github.com/danuargs/vidtube-backend/internal/domain/repository"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository persists user records in the users table. Username and email
// are normalized (lowercase, trimmed) before every write and lookup, so
// uniqueness is enforced on the normalized form.
type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, full_name, avatar_url, COALESCE(cover_image_url, ''), password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.AvatarURL,
		&u.CoverImageURL, &u.PasswordHash, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	u.Username = entity.NormalizeIdentifier(u.Username)
	u.Email = entity.NormalizeIdentifier(u.Email)
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (username, email, full_name, avatar_url, cover_image_url, password_hash)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id, created_at, updated_at
	`, u.Username, u.Email, u.FullName, u.AvatarURL, u.CoverImageURL, u.PasswordHash)
	return row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

// GetByIdentifier looks a user up by username or email, whichever matches.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	identifier = entity.NormalizeIdentifier(identifier)
	return scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 OR email = $1
	`, identifier))
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	username = entity.NormalizeIdentifier(username)
	email = entity.NormalizeIdentifier(email)
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)
	`, username, email).Scan(&exists)
	return exists, err
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now()
	res, err := r.db.Exec(ctx, `
		UPDATE users
		SET full_name = $1, avatar_url = $2, cover_image_url = NULLIF($3, ''), updated_at = $4
		WHERE id = $5
	`, u.FullName, u.AvatarURL, u.CoverImageURL, u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, updated_at = now()
		WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateRefreshToken is a single-statement read-modify-write on one row, so
// concurrent logins for the same user resolve last-writer-wins without a
// cross-record transaction.
func (r *UserRepository) UpdateRefreshToken(ctx context.Context, id, refreshToken string) error {
	res, err := r.db.Exec(ctx, `
		UPDATE users
		SET refresh_token = NULLIF($1, ''), updated_at = now()
		WHERE id = $2
	`, refreshToken, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
