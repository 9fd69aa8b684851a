package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/cealhq/club-calendar/internal/config/notifier"
	"github.com/cealhq/club-calendar/internal/obs"
	"github.com/cealhq/club-calendar/internal/obs/retry"
	obx "github.com/cealhq/club-calendar/internal/outbox"
	kafkax "github.com/cealhq/club-calendar/internal/repository/kafka"
	pg "github.com/cealhq/club-calendar/internal/repository/postgres"
	notifier "github.com/cealhq/club-calendar/internal/services/notifier"
	"github.com/cealhq/club-calendar/internal/services/notifier/repo"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func wiring(db *pg.DB, cfg *config.Config, l *zap.Logger) *notifier.Runner {
	users := pg.NewUserRepo(db)
	events := pg.NewEventRepo(db)
	clubs := pg.NewClubRepo(db)
	digests := pg.NewDigestRepo(db)
	outboxRepo := pg.NewOutboxRepo(db)

	sender := &notifier.DigestSender{
		Mail:        notifier.NewMailer(cfg.SMTP).WithLogger(l),
		FrontendURL: cfg.Dispatch.FrontendURL,
	}

	uc := &notifier.Usecase{
		Users:       repo.UserDirectory{R: users},
		Events:      repo.EventBacklog{R: events},
		Clubs:       repo.ClubReader{R: clubs},
		Digests:     repo.DigestStore{R: digests},
		Outbox:      outboxRepo,
		Out:         sender,
		Tx:          pg.NewTransactor(db, l),
		Clock:       systemClock{},
		Log:         l,
		QueryPolicy: retry.DefaultQueryPolicy(l),
	}

	return notifier.NewRunner(l, uc, &cfg.Dispatch)
}

func main() {
	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting club-notifier",
		zap.String("cron_spec", cfg.Dispatch.CronSpec),
		zap.String("metrics_addr", cfg.Dispatch.MetricsAddr),
		zap.String("smtp_addr", cfg.SMTP.Addr),
		zap.Any("kafka_out", cfg.Kafka),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	} else {
		defer func() { _ = otelCloser.Shutdown(context.Background()) }()
	}

	// db
	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	l.Info("db connected")

	// kafka
	_ = kafkax.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkax.TopicSpec{Name: cfg.Kafka.Topic}, l)
	producer := kafkax.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(l)
	defer func() { _ = producer.Close() }()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Dispatch.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	// outbox drain: digest.sent rows -> kafka
	publisher := kafkax.NewDigestEventsKafka(producer)
	drain := obx.NewOutboxRunner(
		l,
		pg.NewOutboxRepo(db),
		obx.MakeGlobalOutboxHandler(publisher, retry.DefaultPublishPolicy(l)),
		cfg.Outbox.Workers,
		cfg.Outbox.BatchSize,
		cfg.Outbox.WaitTime,
		cfg.Outbox.InProgressTTL,
	)
	drain.Start(ctx)

	// dispatcher
	runner := wiring(db, cfg, l)
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("notifier started")

	select {
	case <-ctx.Done():
		l.Info("shutdown signal")
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
