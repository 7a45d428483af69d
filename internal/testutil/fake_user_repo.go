package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danuargs/vidtube-backend/internal/domain/entity"
	"github.com/danuargs/vidtube-backend/internal/domain/repository"
)

// FakeUserRepo is an in-memory UserRepository for tests. It returns copies of
// stored records so callers cannot mutate state behind its back, mirroring the
// fetch-per-request behavior of the real store.
type FakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: make(map[string]*entity.User)}
}

func (r *FakeUserRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Username = entity.NormalizeIdentifier(u.Username)
	u.Email = entity.NormalizeIdentifier(u.Email)
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *FakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *FakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identifier = entity.NormalizeIdentifier(identifier)
	for _, u := range r.users {
		if u.Username == identifier || u.Email == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *FakeUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username = entity.NormalizeIdentifier(username)
	email = entity.NormalizeIdentifier(email)
	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *FakeUserRepo) UpdateProfile(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.FullName = u.FullName
	stored.AvatarURL = u.AvatarURL
	stored.CoverImageURL = u.CoverImageURL
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *FakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (r *FakeUserRepo) UpdateRefreshToken(_ context.Context, id, refreshToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.RefreshToken = refreshToken
	u.UpdatedAt = time.Now()
	return nil
}

// StoredRefreshToken exposes the current refresh token for assertions.
func (r *FakeUserRepo) StoredRefreshToken(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u.RefreshToken
	}
	return ""
}

// StoredPasswordHash exposes the current password hash for assertions.
func (r *FakeUserRepo) StoredPasswordHash(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u.PasswordHash
	}
	return ""
}

// Delete removes a record, simulating a user deleted out-of-band.
func (r *FakeUserRepo) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

var _ repository.UserRepository = (*FakeUserRepo)(nil)
