package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/npezzotti/go-pairup/internal/api"
	"github.com/npezzotti/go-pairup/internal/config"
	"github.com/npezzotti/go-pairup/internal/game"
	"github.com/npezzotti/go-pairup/internal/kvstore"
	"github.com/npezzotti/go-pairup/internal/stats"
	"github.com/npezzotti/go-pairup/internal/store"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr              string
	backend           string
	restURL           string
	restToken         string
	redisAddr         string
	dsn               string
	adminPassword     string
	signingKey        string
	allowedOrigins    stringSliceFlag
	sweepInterval     time.Duration
	inactivityTimeout time.Duration
)

func main() {
	// Optional: flag defaults can come from a local .env file.
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("PAIRUP_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&backend, "backend", envOr("PAIRUP_BACKEND", config.BackendMemory), "storage backend (memory, rest, redis, postgres)")
	flag.StringVar(&restURL, "rest-url", envOr("PAIRUP_REST_URL", ""), "base URL of the REST key-value service")
	flag.StringVar(&restToken, "rest-token", envOr("PAIRUP_REST_TOKEN", ""), "bearer token for the REST key-value service")
	flag.StringVar(&redisAddr, "redis-addr", envOr("PAIRUP_REDIS_ADDR", ""), "redis server address")
	flag.StringVar(&dsn, "dsn", envOr("PAIRUP_DSN", ""), "postgres connection string")
	flag.StringVar(&adminPassword, "admin-password", envOr("PAIRUP_ADMIN_PASSWORD", ""), "admin password")
	flag.StringVar(&signingKey, "signing-key", envOr("PAIRUP_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&sweepInterval, "sweep-interval", 30*time.Second, "interval between inactivity sweeps")
	flag.DurationVar(&inactivityTimeout, "inactivity-timeout", game.DefaultInactivityTimeout, "inactivity before a user is swept from their room")
	flag.Parse()

	logger := log.New(os.Stderr, "[pairup] ", log.LstdFlags)

	cfg, err := config.NewConfig(config.Params{
		ServerAddr:        addr,
		Backend:           backend,
		RestURL:           restURL,
		RestToken:         restToken,
		RedisAddr:         redisAddr,
		DatabaseDSN:       dsn,
		AdminPassword:     adminPassword,
		Base64Secret:      signingKey,
		AllowedOrigins:    allowedOrigins,
		SweepInterval:     sweepInterval,
		InactivityTimeout: inactivityTimeout,
	})
	if err != nil {
		logger.Fatal("config:", err)
	}

	var kv kvstore.Store
	switch cfg.Backend {
	case config.BackendMemory:
		kv = kvstore.NewMemoryStore()
	case config.BackendRest:
		kv = kvstore.NewRestStore(cfg.RestURL, cfg.RestToken)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Println("redis close:", err)
			}
		}()
		kv = kvstore.NewRedisStore(client)
	case config.BackendPostgres:
		pg, err := kvstore.NewPgStore(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("db open:", err)
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logger.Println("db close:", err)
			}
		}()
		kv = pg
	}

	rooms := store.NewRoomStore(kv)
	users := store.NewActiveUserStore(kv)
	markers := store.NewMarkerStore(kv)
	admin := store.NewAdminStore(kv)

	if err := admin.EnsurePassword(context.Background(), cfg.AdminPassword); err != nil {
		logger.Fatal("provision admin password:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	gameServer := game.NewGameServer(logger, rooms, users, markers, statsUpdater)
	gameServer.InactivityTimeout = cfg.InactivityTimeout

	srv := api.NewPairUpApp(mux, logger, gameServer, rooms, markers, admin, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go gameServer.RunSweeper(sweepCtx, cfg.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
