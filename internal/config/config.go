// Package config loads application configuration from a .env file layered
// under OS environment variables, grounded on the teacher's
// internal/config/config.go getEnv idiom, expanded to the full set of
// settings a complete worker+API deployment needs (spec.md §5, §6).
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// HTTP / worker process shape.
	Port         string
	WorkerCount  int
	LogLevel     string
	LogAsJSON    bool

	// Redis backs both the task queue (internal/taskstore) and the
	// read-through cache (internal/cache).
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// OAuth2 client credentials, one pair per OAuth2-based provider.
	SpotifyClientID     string
	SpotifyClientSecret string
	YouTubeClientID     string
	YouTubeClientSecret string

	// Subsonic has no OAuth2 flow; the server URL is fixed at deploy time,
	// and each user's own username/password lives in internal/credentials'
	// CredentialStore. SubsonicClientID is loaded but not passed to the
	// Subsonic driver, which always sends the client id "tunesynctool".
	SubsonicBaseURL  string
	SubsonicClientID string

	// Deezer's only credential is the ARL session cookie (see
	// internal/providers/deezer); there is no client id/secret pair.
	DeezerARL string

	// MusicBrainz's usage guidelines require a contact email in the
	// client's User-Agent string.
	MusicBrainzContactEmail string

	// Heartbeat cadence, loaded with 30s/120s defaults (spec.md §4.7,
	// §4.9). Nothing reads these fields: the worker pool and the recovery
	// sweeper use taskstore's fixed HeartbeatInterval and
	// HeartbeatStaleThreshold constants.
	HeartbeatInterval      time.Duration
	HeartbeatStaleThreshold time.Duration
}

// Load reads configuration from a .env file (if present) and environment
// variables, falling back to spec-mandated defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		WorkerCount: getEnvInt("WORKER_COUNT", 3),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogAsJSON:   getEnvBool("LOG_AS_JSON", true),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		YouTubeClientID:     getEnv("YOUTUBE_CLIENT_ID", ""),
		YouTubeClientSecret: getEnv("YOUTUBE_CLIENT_SECRET", ""),

		SubsonicBaseURL:  getEnv("SUBSONIC_BASE_URL", ""),
		SubsonicClientID: getEnv("SUBSONIC_CLIENT_ID", "tunesynctool"),

		DeezerARL: getEnv("DEEZER_ARL", ""),

		MusicBrainzContactEmail: getEnv("MUSICBRAINZ_CONTACT_EMAIL", ""),

		HeartbeatInterval:       getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		HeartbeatStaleThreshold: getEnvDuration("HEARTBEAT_STALE_THRESHOLD", 120*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
