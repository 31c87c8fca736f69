// Command api runs the thin HTTP surface described at interface precision
// in spec.md §6: POST /tasks/transfer, GET /tasks/{task_id}, DELETE
// /tasks/{task_id}, GET /playlists. Task creation only ever enqueues — all
// matching and transfer work happens in the separate worker process
// (cmd/worker).
package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	httpadapter "github.com/jpp0ca/tunesync-core/internal/adapters/http"
	"github.com/jpp0ca/tunesync-core/internal/cache"
	"github.com/jpp0ca/tunesync-core/internal/config"
	"github.com/jpp0ca/tunesync-core/internal/credentials"
	"github.com/jpp0ca/tunesync-core/internal/logging"
	"github.com/jpp0ca/tunesync-core/internal/taskstore"
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

	credStore := credentials.New(redisAdapter)
	driverFactory := credentials.NewFactory(credStore, credentials.ProviderSettings{
		SpotifyClientID:     cfg.SpotifyClientID,
		SpotifyClientSecret: cfg.SpotifyClientSecret,
		YouTubeClientID:     cfg.YouTubeClientID,
		YouTubeClientSecret: cfg.YouTubeClientSecret,
		SubsonicBaseURL:     cfg.SubsonicBaseURL,
		SubsonicClientID:    cfg.SubsonicClientID,
	})
	cachingFactory := cache.NewCachingFactory(driverFactory, cache.NewRedisKV(redisClient))

	r := gin.Default()
	h := httpadapter.NewHandler(store, httpadapter.BearerUserIDAuthenticator{}, cachingFactory)
	h.RegisterRoutes(r)

	addr := ":" + cfg.Port
	log.Printf("api: listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("api: server exited: %v", err)
	}
}
