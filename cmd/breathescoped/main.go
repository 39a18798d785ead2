// Command breathescoped is the Breathescope platform service.
// It serves the REST API, the sensor push endpoint, and a health check,
// and keeps per-user scoring engines running for continuous monitoring.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/breathescope/breathescope/internal/airquality"
	"github.com/breathescope/breathescope/internal/api"
	"github.com/breathescope/breathescope/internal/archive"
	"github.com/breathescope/breathescope/internal/platform"
	"github.com/breathescope/breathescope/internal/sensorhook"
	"github.com/breathescope/breathescope/internal/store"
	"github.com/breathescope/breathescope/pkg/engine"
	"github.com/breathescope/breathescope/pkg/notify"
	"github.com/breathescope/breathescope/pkg/score"
)

// daemonConfig is parsed from BREATHESCOPE_-prefixed environment variables.
type daemonConfig struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"postgres://localhost:5432/breathescope?sslmode=disable"`

	RedisAddr       string `envconfig:"REDIS_ADDR" default:""`
	CacheTTLMinutes int    `envconfig:"EXPOSURE_CACHE_TTL_MINUTES" default:"10"`

	PollutionAPIURL string `envconfig:"POLLUTION_API_URL" default:"https://api.openweathermap.org/data/2.5"`
	PollutionAPIKey string `envconfig:"POLLUTION_API_KEY" default:""`

	// Fallback position for single-site deployments; users without home
	// coordinates score against it.
	DefaultLat float64 `envconfig:"DEFAULT_LAT" default:"0"`
	DefaultLon float64 `envconfig:"DEFAULT_LON" default:"0"`

	APIKey       string `envconfig:"API_KEY" default:""`
	SensorSecret string `envconfig:"SENSOR_WEBHOOK_SECRET" default:""`

	StoragePath string `envconfig:"LOCAL_STORAGE_PATH" default:"/tmp/breathescope-data"`
	GCSBucket   string `envconfig:"GCS_BUCKET" default:""`
	S3Bucket    string `envconfig:"S3_BUCKET" default:""`
	S3Region    string `envconfig:"S3_REGION" default:""`
	S3Endpoint  string `envconfig:"S3_ENDPOINT" default:""`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:""`

	MinRecomputeIntervalMinutes int `envconfig:"MIN_RECOMPUTE_INTERVAL_MINUTES" default:"15"`
	ComputeTimeoutSeconds       int `envconfig:"COMPUTE_TIMEOUT_SECONDS" default:"15"`
	HistoricalHours             int `envconfig:"HISTORICAL_HOURS" default:"24"`
	RetentionDays               int `envconfig:"RETENTION_DAYS" default:"90"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func main() {
	var cfg daemonConfig
	if err := envconfig.Process("BREATHESCOPE", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse environment: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	if err := platform.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	storeSvc := store.NewService(db)

	provider, err := buildProvider(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build air quality provider")
	}

	storage, err := buildStorage(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build archive storage")
	}
	exporter := archive.NewExporter(storage, log)

	var location engine.LocationProvider
	if cfg.DefaultLat != 0 || cfg.DefaultLon != 0 {
		location = airquality.FixedLocation{Lat: cfg.DefaultLat, Lon: cfg.DefaultLon}
	}

	bus := engine.NewBus(256)
	manager, err := engine.NewManager(engine.Deps{
		Store:      storeSvc,
		AirQuality: provider,
		Location:   location,
		Trigger:    notify.New(log),
		Sink:       bus,
		Log:        log,
	}, engine.Config{
		ComputeTimeout:       time.Duration(cfg.ComputeTimeoutSeconds) * time.Second,
		MinRecomputeInterval: time.Duration(cfg.MinRecomputeIntervalMinutes) * time.Minute,
		HistoricalHours:      cfg.HistoricalHours,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create engine manager")
	}
	defer manager.Close()

	go logEvents(bus, log)

	mon := &monitor{manager: manager, streams: make(map[string]chan score.ExposureSample)}
	sensorHandler := sensorhook.NewHandler([]byte(cfg.SensorSecret), mon, log)

	apiHandler := api.NewHandler(manager, storeSvc, exporter, nil, log)

	// API-key auth covers the REST API only. The sensor hook authenticates
	// with its own HMAC signature, and probes stay open.
	apiMux := http.NewServeMux()
	apiHandler.RegisterRoutes(apiMux)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", api.APIKeyAuth(cfg.APIKey)(apiMux))
	mux.Handle("GET /healthz", apiMux)
	mux.Handle("POST /v1/hooks/sensor", sensorHandler)
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: api.CORS(mux),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RetentionDays > 0 {
		go runRetention(ctx, storeSvc, cfg.RetentionDays, log)
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("starting breathescoped")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().
		Str("service", "breathescoped").
		Timestamp().
		Logger()
}

// buildProvider assembles the pollution API client, wrapped in a Redis
// read-through cache when one is configured.
func buildProvider(cfg daemonConfig, log zerolog.Logger) (engine.AirQualityProvider, error) {
	if cfg.PollutionAPIKey == "" {
		return nil, fmt.Errorf("POLLUTION_API_KEY is required")
	}
	var provider engine.AirQualityProvider = airquality.NewClient(cfg.PollutionAPIURL, cfg.PollutionAPIKey)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
		provider = airquality.NewCache(provider, rdb, ttl, log)
		log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", ttl).Msg("exposure cache enabled")
	}
	return provider, nil
}

// buildStorage picks the archive backend: GCS, then S3, then local disk.
func buildStorage(ctx context.Context, cfg daemonConfig) (archive.StorageClient, error) {
	if cfg.GCSBucket != "" {
		return archive.NewGCSStorage(ctx, cfg.GCSBucket)
	}
	if cfg.S3Bucket != "" {
		return archive.NewS3Storage(ctx, archive.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return archive.NewLocalStorage(cfg.StoragePath), nil
}

// monitor feeds pushed sensor samples into each user's monitoring stream,
// creating the stream and subscription on first use.
type monitor struct {
	manager *engine.Manager

	mu      sync.Mutex
	streams map[string]chan score.ExposureSample
}

func (m *monitor) Push(userID string, sample score.ExposureSample) error {
	ch, err := m.stream(userID)
	if err != nil {
		return err
	}
	select {
	case ch <- sample:
		return nil
	default:
		return fmt.Errorf("monitoring stream for %s is full", userID)
	}
}

func (m *monitor) stream(userID string) (chan score.ExposureSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.streams[userID]; ok {
		return ch, nil
	}

	eng, err := m.manager.ForUser(userID)
	if err != nil {
		return nil, err
	}
	ch := make(chan score.ExposureSample, 64)
	eng.Subscribe(ch)
	m.streams[userID] = ch
	return ch, nil
}

// runRetention sweeps snapshot history older than the retention window,
// once at startup and then daily.
func runRetention(ctx context.Context, svc *store.Service, days int, log zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		sweepHistory(ctx, svc, days, log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweepHistory(ctx context.Context, svc *store.Service, days int, log zerolog.Logger) {
	users, err := svc.ListUsers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("retention sweep: listing users")
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var pruned int64
	for _, u := range users {
		n, err := svc.PruneHistory(ctx, u.ID, cutoff)
		if err != nil {
			log.Warn().Err(err).Str("user", u.ID).Msg("retention sweep: pruning")
			continue
		}
		pruned += n
	}
	if pruned > 0 {
		log.Info().Int64("snapshots", pruned).Int("days", days).Msg("pruned old history")
	}
}

func logEvents(bus *engine.Bus, log zerolog.Logger) {
	for evt := range bus.Subscribe() {
		log.Debug().
			Str("kind", string(evt.Kind)).
			Str("user", evt.UserID).
			Str("recommendation", evt.RecommendationID).
			Msg("engine event")
	}
}
