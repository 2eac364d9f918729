package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/engagement-tracker/internal/config"
	"github.com/ignite/engagement-tracker/internal/content"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/metrics"
	"github.com/ignite/engagement-tracker/internal/pkg/distlock"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/repository/postgres"
	"github.com/ignite/engagement-tracker/internal/service/campaign"
	"github.com/ignite/engagement-tracker/internal/service/engagement"
	"github.com/ignite/engagement-tracker/internal/service/exclusion"
	"github.com/ignite/engagement-tracker/internal/service/reaction"
	"github.com/ignite/engagement-tracker/internal/service/subscriber"
	"github.com/ignite/engagement-tracker/internal/tracking"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Printf("config %s not loaded (%v), using defaults and environment", *configPath, err)
		cfg = config.Default()
		config.ApplyEnv(cfg)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.ShouldRedactPII())

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	redisClient := openRedis(ctx, cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var m *metrics.Recorder
	reg := prometheus.NewRegistry()
	if cfg.Metrics.IsEnabled() {
		reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
		m = metrics.New(reg)
	}

	queue, err := webhookQueue(ctx, cfg.Webhooks, db)
	if err != nil {
		log.Fatalf("webhook queue: %v", err)
	}

	svc := build(cfg, db, redisClient, queue, m)
	handler := tracking.NewHandler(svc.recorder)

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	if svc.markers != nil {
		go sweepMarkers(bgCtx, svc.markers, markerSweepInterval)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(cfg, handler, reg),
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("tracking service listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range quit {
		if sig != syscall.SIGHUP {
			break
		}
		svc.exclusions.Invalidate()
		logger.Info("ip exclusion rules reloaded")
	}
	logger.Info("shutting down tracking service")
	stopBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err.Error())
	}
}

func openDB(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", c.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openRedis returns nil when Redis is not configured or unreachable; the
// guard then falls back to Postgres advisory locks and Postgres markers.
func openRedis(ctx context.Context, c config.RedisConfig) *redis.Client {
	if c.Addr == "" {
		logger.Info("redis not configured, using postgres advisory locks")
		return nil
	}
	var client *redis.Client
	if opts, err := redis.ParseURL(c.Addr); err == nil {
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, using postgres advisory locks", "addr", c.Addr, "error", err.Error())
		client.Close()
		return nil
	}
	return client
}

func webhookQueue(ctx context.Context, c config.WebhookConfig, db *sql.DB) (reaction.Queue, error) {
	if !c.UsesSQS() {
		return postgres.NewWebhookQueue(db), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	logger.Info("webhook jobs go to sqs", "queue_url", c.SQSQueueURL)
	return tracking.NewSQSPublisher(sqs.NewFromConfig(awsCfg), c.SQSQueueURL), nil
}

const markerSweepInterval = 10 * time.Minute

// service is the wired tracking core. markers is set only when dedup
// markers live in Postgres.
type service struct {
	recorder   *engagement.Recorder
	exclusions *exclusion.Service
	markers    *postgres.MarkerRepo
}

// markerStore keeps dedup markers next to the locks: Redis when it is
// configured, Postgres otherwise.
func markerStore(redisClient *redis.Client, db *sql.DB) (engagement.Markers, *postgres.MarkerRepo) {
	if redisClient != nil {
		return engagement.NewCachedMarkers(engagement.NewRedisMarkers(redisClient)), nil
	}
	repo := postgres.NewMarkerRepo(db)
	return engagement.NewCachedMarkers(repo), repo
}

type sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

func sweepMarkers(ctx context.Context, s sweeper, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				logger.Warn("marker sweep failed", "error", err.Error())
				continue
			}
			logger.Debug("expired markers swept", "count", n)
		}
	}
}

func build(cfg *config.Config, db *sql.DB, redisClient *redis.Client, queue reaction.Queue, m *metrics.Recorder) *service {
	campaigns := campaign.NewService(postgres.NewCampaignRepo(db))
	subscribers := subscriber.NewService(postgres.NewSubscriberRepo(db))
	exclusions := exclusion.NewService(postgres.NewExclusionRepo(db), cfg.Tracking.ExcludedIPs, cfg.Tracking.ExclusionCacheTTL())

	markers, markerRepo := markerStore(redisClient, db)
	guard := engagement.NewGuard(
		distlock.NewFactory(redisClient, db, cfg.Tracking.LockTTL()),
		markers,
		engagement.GuardOptions{
			Timeout: cfg.Tracking.LockTimeout(),
			Retry:   cfg.Tracking.LockRetry(),
			TTL:     cfg.Tracking.LockTTL(),
		},
	)

	filters := []engagement.Filter{engagement.IPFilter(exclusions)}
	if cfg.Tracking.IgnoreBots {
		filters = append(filters, engagement.BotFilter())
	}

	var templates *content.TemplateEngine
	if cfg.Tracking.TemplateEngineEnabled {
		templates = content.NewTemplateEngine()
	}

	rules := postgres.NewRuleRepo(db)
	fieldUpdate := reaction.NewFieldUpdate(rules, subscribers, templates)
	subscriberAction := reaction.NewSubscriberAction(rules, subscribers)
	webhook := reaction.NewWebhook(rules, queue)

	dispatcher := reaction.NewDispatcher(m)
	dispatcher.
		Register(domain.EventOpen, fieldUpdate).
		Register(domain.EventOpen, subscriberAction).
		Register(domain.EventOpen, webhook).
		Register(domain.EventOpen, reaction.NewABTestCounter(postgres.NewABTestRepo(db))).
		Register(domain.EventClick, fieldUpdate).
		Register(domain.EventClick, subscriberAction).
		Register(domain.EventClick, webhook)
	logger.Info("reaction chains registered",
		"open", strings.Join(dispatcher.Chain(domain.EventOpen), ","),
		"click", strings.Join(dispatcher.Chain(domain.EventClick), ","),
	)

	recorder := engagement.NewRecorder(engagement.Deps{
		Campaigns:   campaigns,
		Subscribers: subscribers,
		Events:      postgres.NewEventRepo(db),
		Guard:       guard,
		Eligibility: engagement.NewEligibility(filters...),
		Resolver:    content.NewResolver(templates),
		Dispatcher:  dispatcher,
		Metrics:     m,
	})
	return &service{recorder: recorder, exclusions: exclusions, markers: markerRepo}
}
