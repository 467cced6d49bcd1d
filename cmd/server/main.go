// Command server runs the referral attribution and earnings engine.
//
// main wires configuration, storage, services and the HTTP router, then
// blocks until shutdown. Business logic lives in the internal packages;
// anything here should read as plumbing.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"refward/internal/achievement"
	"refward/internal/affiliate"
	affiliatehandler "refward/internal/affiliate/handler"
	"refward/internal/analytics"
	analyticshandler "refward/internal/analytics/handler"
	"refward/internal/code"
	codehandler "refward/internal/code/handler"
	codemetrics "refward/internal/code/metrics"
	"refward/internal/code/ratelimit"
	"refward/internal/conversion"
	conversionhandler "refward/internal/conversion/handler"
	convmetrics "refward/internal/conversion/metrics"
	"refward/internal/earnings"
	earningshandler "refward/internal/earnings/handler"
	"refward/internal/fraud"
	jwttoken "refward/internal/jwt_token"
	"refward/internal/platform/config"
	"refward/internal/platform/httpserver"
	"refward/internal/platform/logger"
	"refward/internal/platform/metrics"
	"refward/internal/platform/postgres"
	"refward/internal/platform/redis"
	"refward/internal/relationship"
	"refward/internal/tracking"
	trackinghandler "refward/internal/tracking/handler"
	trackingmetrics "refward/internal/tracking/metrics"
	httptransport "refward/internal/transport/http"
	"refward/pkg/domain"
	"refward/pkg/platform/audit"
	auditkafka "refward/pkg/platform/audit/kafka"
	auditpostgres "refward/pkg/platform/audit/postgres"
	auditworker "refward/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.Server.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// Storage. A missing DSN keeps everything in memory, which is how local
	// development and most tests run.
	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		codeStore         code.Store         = code.NewInMemoryStore()
		trackingStore     tracking.Store     = tracking.NewInMemoryStore()
		fraudStore        fraud.Store        = fraud.NewInMemoryStore()
		relationshipStore relationship.Store = relationship.NewInMemoryStore()
		earningsStore     earnings.Store     = earnings.NewInMemoryStore()
		affiliateStore    affiliate.Store    = affiliate.NewInMemoryStore()
		achievementStore  achievement.Store  = achievement.NewInMemoryStore()
		rewardLedger      achievement.Ledger = achievement.NewInMemoryLedger()
	)
	if pool != nil {
		codeStore = code.NewPostgresStore(pool)
		trackingStore = tracking.NewPostgresStore(pool)
		fraudStore = fraud.NewPostgresStore(pool)
		relationshipStore = relationship.NewPostgresStore(pool)
		earningsStore = earnings.NewPostgresStore(pool)
		affiliateStore = affiliate.NewPostgresStore(pool)
		achievementStore = achievement.NewPostgresStore(pool)
		rewardLedger = achievement.NewPostgresLedger(pool)
	}

	var limiter ratelimit.Limiter = ratelimit.NewInMemoryLimiter()
	if redisClient != nil {
		limiter = ratelimit.NewFailoverLimiter(
			ratelimit.NewRedisLimiter(redisClient.Client),
			ratelimit.NewInMemoryLimiter(),
			log,
		)
	}

	// Audit pipeline: handlers enqueue, the worker drains into the sink.
	auditSink, closeSink, err := buildAuditSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	inbox := make(chan audit.Event, 1024)
	auditor := audit.NewPublisher(audit.NewChannelStore(inbox))
	go func() {
		if err := auditworker.New(auditSink, inbox, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	httpMetrics := metrics.New()

	// Services.
	codes := code.NewService(codeStore, limiter,
		code.IssuePolicy{Limit: cfg.Referral.CodeIssueLimit, Window: cfg.Referral.CodeIssueWindow},
		code.WithAuditor(auditor),
		code.WithMetrics(codemetrics.New()),
		code.WithLogger(log),
	)

	links := tracking.NewLinkBuilder(cfg.Server.BaseURL,
		[]byte(cfg.Referral.LinkTokenSecret), cfg.Referral.LinkTokenTTL)
	clicks := tracking.NewService(trackingStore, codes,
		tracking.WithLinkBuilder(links),
		tracking.WithMetrics(trackingmetrics.New()),
		tracking.WithLogger(log),
	)

	affiliates := affiliate.NewService(affiliateStore,
		affiliate.WithAuditor(auditor),
		affiliate.WithLogger(log),
	)
	achievements := achievement.NewEngine(achievementStore,
		achievement.WithLedger(rewardLedger),
		achievement.WithLogger(log),
	)
	ledger := earnings.NewService(earningsStore,
		earnings.WithAuditor(auditor),
		earnings.WithLogger(log),
	)

	conversions := conversion.NewService(
		trackingStore,
		codes,
		fraud.NewDetector(domain.NewMoney(domain.DefaultCurrency, cfg.Referral.HighValueThresholdCents)),
		fraudStore,
		relationshipStore,
		earnings.NewCalculator(
			domain.NewMoney(domain.DefaultCurrency, cfg.Referral.SignupFallbackCents),
			cfg.Referral.CascadeRateBasisPoints,
			domain.NewMoney(domain.DefaultCurrency, cfg.Referral.CascadeMinimumCents),
		),
		earningsStore,
		conversion.WithAffiliates(affiliates),
		conversion.WithAchievements(achievements),
		conversion.WithAuditor(auditor),
		conversion.WithMetrics(convmetrics.New()),
		conversion.WithLogger(log),
	)

	dashboards := analytics.NewService(codes, trackingStore, earningsStore,
		affiliates, achievements, relationshipStore)

	// Transport.
	validator := jwttoken.NewJWTServiceAdapter(
		jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer))

	router := httptransport.NewRouter(httptransport.Handlers{
		Codes:       codehandler.New(codes, log, httpMetrics, validator),
		Tracking:    trackinghandler.New(clicks, log, httpMetrics, validator),
		Conversions: conversionhandler.New(conversions, log, httpMetrics, cfg.Auth.ServiceToken),
		Earnings:    earningshandler.New(ledger, log, httpMetrics, validator, cfg.Auth.ServiceToken),
		Affiliates:  affiliatehandler.New(affiliates, log, httpMetrics, validator),
		Analytics:   analyticshandler.New(dashboards, achievements, log, httpMetrics, validator),
	})

	srv := httpserver.New(cfg.Server.Addr, router, httpserver.Options{
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("refward listening", "addr", cfg.Server.Addr, "postgres", pool != nil, "redis", redisClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// buildAuditSink picks the strongest configured audit sink: Kafka, then the
// Postgres outbox, then process memory.
func buildAuditSink(ctx context.Context, cfg config.Config) (audit.Store, func(), error) {
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := auditkafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, err
		}
		return publisher, publisher.Close, nil
	}
	if cfg.Postgres.DSN != "" {
		// The outbox store speaks database/sql, so it gets its own small
		// connection through the pgx stdlib driver rather than sharing the
		// pgxpool routes.
		db, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(2)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return auditpostgres.New(db), func() { db.Close() }, nil
	}
	return audit.NewInMemoryStore(), func() {}, nil
}
