package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/danuargs/vidtube-backend/internal/domain/entity"
	repo "github.com/danuargs/vidtube-backend/internal/domain/repository"
	"github.com/danuargs/vidtube-backend/pkg/helpers"
)

// ProfileService serves profile reads and updates, hosts avatar/cover images
// in GCS, and maintains the user search index in Elasticsearch.
type ProfileService struct {
	Repo         repo.UserRepository
	GCS          *storage.Client
	GCSBucket    string
	ES           *elasticsearch.Client
	ESUsersIndex string
	Logger       *logrus.Logger
}

func NewProfileService(r repo.UserRepository, gcs *storage.Client, bucket string, es *elasticsearch.Client, usersIndex string, logger *logrus.Logger) *ProfileService {
	return &ProfileService{
		Repo:         r,
		GCS:          gcs,
		GCSBucket:    bucket,
		ES:           es,
		ESUsersIndex: usersIndex,
		Logger:       logger,
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (entity.Profile, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return entity.Profile{}, ErrUserNotFound
		}
		return entity.Profile{}, err
	}
	return u.Profile(), nil
}

type UpdateProfileInput struct {
	FullName string
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (entity.Profile, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return entity.Profile{}, ErrUserNotFound
		}
		return entity.Profile{}, err
	}
	if in.FullName != "" {
		u.FullName = in.FullName
	}
	if err := s.Repo.UpdateProfile(ctx, u); err != nil {
		return entity.Profile{}, err
	}
	if ierr := s.IndexUser(ctx, u); ierr != nil && s.Logger != nil {
		s.Logger.WithError(ierr).WithField("user_id", u.ID).Warn("user index failed")
	}
	return u.Profile(), nil
}

// UploadAvatar hosts a new avatar image and persists its URL.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (entity.Profile, error) {
	return s.uploadUserImage(ctx, userID, "avatars", r, filename, contentType, func(u *entity.User, url string) {
		u.AvatarURL = url
	})
}

// UploadCoverImage hosts a new cover image and persists its URL.
func (s *ProfileService) UploadCoverImage(ctx context.Context, userID string, r io.Reader, filename, contentType string) (entity.Profile, error) {
	return s.uploadUserImage(ctx, userID, "covers", r, filename, contentType, func(u *entity.User, url string) {
		u.CoverImageURL = url
	})
}

func (s *ProfileService) uploadUserImage(ctx context.Context, userID, prefix string, r io.Reader, filename, contentType string, apply func(*entity.User, string)) (entity.Profile, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return entity.Profile{}, ErrUserNotFound
		}
		return entity.Profile{}, err
	}
	url, err := s.HostImage(ctx, prefix+"/"+userID, r, filename, contentType)
	if err != nil {
		return entity.Profile{}, err
	}
	apply(u, url)
	if err := s.Repo.UpdateProfile(ctx, u); err != nil {
		return entity.Profile{}, err
	}
	if ierr := s.IndexUser(ctx, u); ierr != nil && s.Logger != nil {
		s.Logger.WithError(ierr).WithField("user_id", u.ID).Warn("user index failed")
	}
	return u.Profile(), nil
}

// HostImage uploads an image to GCS under the given prefix and returns its
// hosted URL. Used directly by registration, where no user id exists yet.
func (s *ProfileService) HostImage(ctx context.Context, prefix string, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("object storage not configured")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := prefix + "/" + uuid.NewString() + ext
	return helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
}

// IndexUser writes the sanitized projection into the search index; secrets
// never leave the credential store.
func (s *ProfileService) IndexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"full_name":  u.FullName,
		"avatar_url": u.AvatarURL,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"status": res.Status(), "user_id": u.ID}).Warn("user index response error")
	}
	return nil
}

// SearchUsers runs a multi_match query over username and full name.
func (s *ProfileService) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"username^2", "full_name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESUsersIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

var _ UserIndexer = (*ProfileService)(nil)
