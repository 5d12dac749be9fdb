package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/messenger-transport/internal/api"
	"github.com/LeventeLantos/messenger-transport/internal/client"
	"github.com/LeventeLantos/messenger-transport/internal/config"
	"github.com/LeventeLantos/messenger-transport/internal/dispatcher"
	"github.com/LeventeLantos/messenger-transport/internal/host"
	"github.com/LeventeLantos/messenger-transport/internal/queue"
	"github.com/LeventeLantos/messenger-transport/internal/repo"
	"github.com/LeventeLantos/messenger-transport/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	slog.Info("messenger transport starting",
		"addr", cfg.Server.Address,
		"interval", cfg.Batch.Interval.String(),
		"batch_size", cfg.Batch.BatchSize,
		"kafka", cfg.Kafka.Enabled,
		"journal", cfg.Database.Enabled,
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	q := queue.NewRedisQueue(rdb, cfg.Redis.QueueKey)

	var transportHost host.TransportHost = host.LogHost{}
	if cfg.Kafka.Enabled {
		kh := host.NewKafkaHost(cfg.Kafka.Brokers,
			cfg.Kafka.InboundTopic, cfg.Kafka.EventTopic, cfg.Kafka.StatusTopic)
		defer kh.Close()
		transportHost = kh
	}

	batchClient := client.NewBatchClient(cfg.Batch.URL, cfg.Batch.AccessToken, cfg.Batch.Timeout)

	correlator := dispatcher.NewCorrelator(transportHost, q)
	svc := service.NewTransport(transportHost, q)

	var journal repo.DeliveryJournal
	if cfg.Database.Enabled {
		db, err := sql.Open("pgx", cfg.Database.PostgresURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()

		pj := repo.NewPostgresJournal(db)
		journal = pj

		svc.WithQueuedHook(pj.Record)
		correlator.WithHooks(
			func(ctx context.Context, messageID, platformMessageID string) {
				if err := pj.MarkSent(ctx, messageID, platformMessageID); err != nil {
					slog.Error("journal mark sent failed", "message_id", messageID, "error", err)
				}
			},
			func(ctx context.Context, messageID, reason string) {
				if err := pj.MarkFailed(ctx, messageID, reason); err != nil {
					slog.Error("journal mark failed failed", "message_id", messageID, "error", err)
				}
			},
		)
	}

	disp, err := dispatcher.New(dispatcher.Config{
		Interval:        cfg.Batch.Interval,
		BatchSize:       cfg.Batch.BatchSize,
		DedupRecipients: cfg.Batch.DedupRecipients,
	}, q, batchClient, correlator)
	if err != nil {
		log.Fatal(err)
	}
	disp.Start()
	defer disp.Stop()

	handler := api.NewHandler(svc, disp, cfg.Webhook.VerifyToken).
		WithWelcomeClient(batchClient)
	if journal != nil {
		handler.WithJournal(journal)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("listening", "addr", cfg.Server.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
