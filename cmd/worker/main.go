// Command worker runs the fixed-N background task runtime described in
// spec.md §4.7: a RecoverySweeper pass at startup, then a workerpool.Pool
// dispatching USER_INITIATED_PLAYLIST_TRANSFER tasks until SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jpp0ca/tunesync-core/internal/cache"
	"github.com/jpp0ca/tunesync-core/internal/config"
	"github.com/jpp0ca/tunesync-core/internal/credentials"
	"github.com/jpp0ca/tunesync-core/internal/domain"
	"github.com/jpp0ca/tunesync-core/internal/logging"
	"github.com/jpp0ca/tunesync-core/internal/musicbrainz"
	"github.com/jpp0ca/tunesync-core/internal/ports"
	"github.com/jpp0ca/tunesync-core/internal/recovery"
	"github.com/jpp0ca/tunesync-core/internal/taskstore"
	"github.com/jpp0ca/tunesync-core/internal/transfer"
	"github.com/jpp0ca/tunesync-core/internal/workerpool"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, AsJSON: cfg.LogAsJSON})

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	redisAdapter := taskstore.NewRedisAdapter(redisClient)
	store := taskstore.New(redisAdapter)
	redisKV := cache.NewRedisKV(redisClient)

	credStore := credentials.New(redisAdapter)
	driverFactory := credentials.NewFactory(credStore, credentials.ProviderSettings{
		SpotifyClientID:     cfg.SpotifyClientID,
		SpotifyClientSecret: cfg.SpotifyClientSecret,
		YouTubeClientID:     cfg.YouTubeClientID,
		YouTubeClientSecret: cfg.YouTubeClientSecret,
		SubsonicBaseURL:     cfg.SubsonicBaseURL,
		SubsonicClientID:    cfg.SubsonicClientID,
	})
	cachingFactory := cache.NewCachingFactory(driverFactory, redisKV)

	var mbClient ports.MusicBrainzClient
	if cfg.MusicBrainzContactEmail != "" {
		mbClient = musicbrainz.NewClient("tunesync-core", "1.0", cfg.MusicBrainzContactEmail)
	}

	handlers := map[domain.TaskKind]workerpool.Handler{
		domain.TaskKindPlaylistTransfer: transfer.New(cachingFactory, mbClient),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := recovery.New(store)
	recovered, err := sweeper.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("worker: recovery sweep failed, continuing anyway")
	} else if recovered > 0 {
		log.Warn().Int("recovered", recovered).Msg("worker: recovered stale RUNNING tasks on startup")
	}

	pool := workerpool.New(store, handlers, cfg.WorkerCount)

	log.Info().Int("workers", cfg.WorkerCount).Msg("worker: starting task runtime")
	pool.Run(ctx)
	log.Info().Msg("worker: shut down cleanly")
}
