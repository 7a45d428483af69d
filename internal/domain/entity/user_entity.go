package entity

import (
	"strings"
	"time"
)

// User is the aggregate root for the account domain.
// PasswordHash only ever holds bcrypt output; RefreshToken holds the single
// currently-valid refresh token (empty when no session is active).
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string
	PasswordHash  string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile is the sanitized projection returned to clients; it never carries
// PasswordHash or RefreshToken.
type Profile struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	AvatarURL     string    `json:"avatar_url"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// NormalizeIdentifier lowercases and trims a username or email before any
// comparison or storage.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
