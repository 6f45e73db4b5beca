package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"basegate/api"
	"basegate/config"
	"basegate/objects"
	"basegate/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var clientOpts *storage.ClientOptions
	if cfg.StoreBaseURL != "" {
		clientOpts = &storage.ClientOptions{BaseURL: cfg.StoreBaseURL}
	}
	client := storage.NewClient(cfg.StoreAPIKey, cfg.StoreBaseID, clientOpts)
	adapter := storage.NewAdapter(client, storage.Tables{
		Tasks:    cfg.TasksTable,
		Projects: cfg.ProjectsTable,
		Groups:   cfg.GroupsTable,
		Events:   cfg.EventsTable,
		Counter:  cfg.CounterTable,
	})

	objectStore, err := objects.NewStore(cfg.ObjectEndpoint, cfg.ObjectAccessKey, cfg.ObjectSecretKey, cfg.ObjectBucket, cfg.ObjectSecure)
	if err != nil {
		log.Fatalf("object store: %v", err)
	}
	relay := objects.NewRelay(objectStore, adapter)

	rc := redis.NewClient(parseRedisConn(cfg.RedisConnection))
	deduper := api.NewRedisDeduper(rc, 24*time.Hour)
	logger := log.New()
	hub := api.NewRoomHub(rc, deduper, logger)

	var verifier api.Verifier
	if cfg.CaptchaSecret != "" {
		verifier = api.NewScoreVerifier(cfg.CaptchaSecret, cfg.CaptchaVerifyURL)
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.Decompress())
	e.Use(otelecho.Middleware("basegate"))

	api.Register(e, adapter, relay, hub, verifier, logger)

	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}

// parseRedisConn accepts a redis URL or a comma-separated host,password,ssl
// connection string as emitted by some managed Redis offerings.
func parseRedisConn(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
