package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/danuargs/vidtube-backend/config"
	"github.com/danuargs/vidtube-backend/pkg/helpers"
)

// Seeds a demo account for local development.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	username := "demouser"
	email := "demo@vidtube.local"
	password := "password123"

	hasher := helpers.NewPasswordHasher(cfg.BcryptCost)
	hash, err := hasher.Hash(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (username, email, full_name, avatar_url, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name
		RETURNING id
	`, username, email, "Demo User", "https://storage.googleapis.com/vidtube-dev/avatars/default.png", hash).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	fmt.Printf("seeded user: id=%s username=%s password=%s\n", id, username, password)
}
