package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danuargs/vidtube-backend/internal/domain/entity"
	"github.com/danuargs/vidtube-backend/internal/domain/repository"
)

func newMockRepo(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepository(mock), mock
}

func TestUserRepository_Create_NormalizesIdentifiers(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@example.com", "Alice A", "https://cdn/a.png", "", "hash").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("u-1", now, now))

	u := &entity.User{
		Username:     "  Alice  ",
		Email:        "Alice@Example.COM",
		FullName:     "Alice A",
		AvatarURL:    "https://cdn/a.png",
		PasswordHash: "hash",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	cols := []string{"id", "username", "email", "full_name", "avatar_url",
		"cover_image_url", "password_hash", "refresh_token", "created_at", "updated_at"}

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+\s+FROM users\s+WHERE id = \$1`).
			WithArgs("u-1").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("u-1", "alice", "alice@example.com", "Alice A", "https://cdn/a.png",
					"", "hash", "stored-refresh", now, now))

		u, err := repo.GetByID(context.Background(), "u-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, "stored-refresh", u.RefreshToken)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+\s+FROM users\s+WHERE id = \$1`).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows(cols))

		_, err := repo.GetByID(context.Background(), "nope")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByIdentifier_Normalizes(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	cols := []string{"id", "username", "email", "full_name", "avatar_url",
		"cover_image_url", "password_hash", "refresh_token", "created_at", "updated_at"}

	mock.ExpectQuery(`SELECT .+\s+FROM users\s+WHERE username = \$1 OR email = \$1`).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("u-1", "alice", "alice@example.com", "Alice A", "https://cdn/a.png",
				"", "hash", "", now, now))

	u, err := repo.GetByIdentifier(context.Background(), " ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ExistsByUsernameOrEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("alice", "alice@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByUsernameOrEmail(context.Background(), "Alice", "ALICE@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateRefreshToken(t *testing.T) {
	repo, mock := newMockRepo(t)

	t.Run("set", func(t *testing.T) {
		mock.ExpectExec(`UPDATE users\s+SET refresh_token = NULLIF\(\$1, ''\)`).
			WithArgs("new-token", "u-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		assert.NoError(t, repo.UpdateRefreshToken(context.Background(), "u-1", "new-token"))
	})

	t.Run("clear", func(t *testing.T) {
		mock.ExpectExec(`UPDATE users\s+SET refresh_token = NULLIF\(\$1, ''\)`).
			WithArgs("", "u-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		assert.NoError(t, repo.UpdateRefreshToken(context.Background(), "u-1", ""))
	})

	t.Run("unknown user", func(t *testing.T) {
		mock.ExpectExec(`UPDATE users\s+SET refresh_token = NULLIF\(\$1, ''\)`).
			WithArgs("tok", "nope").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		assert.ErrorIs(t, repo.UpdateRefreshToken(context.Background(), "nope", "tok"), repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users\s+SET password_hash = \$1`).
		WithArgs("new-hash", "u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	assert.NoError(t, repo.UpdatePassword(context.Background(), "u-1", "new-hash"))

	mock.ExpectExec(`UPDATE users\s+SET password_hash = \$1`).
		WithArgs("new-hash", "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.UpdatePassword(context.Background(), "nope", "new-hash"), repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateProfile_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users\s+SET full_name = \$1`).
		WithArgs("New Name", "https://cdn/a.png", "", pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateProfile(context.Background(), &entity.User{
		ID:        "nope",
		FullName:  "New Name",
		AvatarURL: "https://cdn/a.png",
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
