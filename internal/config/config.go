// Package config loads optional settings from the environment. A .env file
// in the working directory is honored when present.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Postgres holds connection details for the scan-history database. History
// is disabled unless a database name is configured.
type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Enabled reports whether a history database is configured.
func (p Postgres) Enabled() bool {
	return p.Name != ""
}

// URL builds the pgx connection string.
func (p Postgres) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Name,
	)
}

// Config is everything the tool reads from the environment.
type Config struct {
	DB Postgres

	// HistoryFile, when set, receives a JSON record of every scan.
	HistoryFile string
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		DB: Postgres{
			Host:     getenv("IMAGEDUP_DB_HOST", "localhost"),
			Port:     getenv("IMAGEDUP_DB_PORT", "5432"),
			User:     getenv("IMAGEDUP_DB_USER", "postgres"),
			Password: os.Getenv("IMAGEDUP_DB_PASSWORD"),
			Name:     os.Getenv("IMAGEDUP_DB_NAME"),
		},
		HistoryFile: os.Getenv("IMAGEDUP_HISTORY_FILE"),
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
