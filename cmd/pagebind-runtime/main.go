// Pagebind Runtime — держит живые сессии приложений.
//
// Runtime:
//   - Хранит DSL приложений в PostgreSQL
//   - Открывает сессии: источники данных, пересчёт узлов, обновления по cron
//   - Принимает изменения источников по HTTP и из RabbitMQ (datasources.changed)
//   - Публикует события "update-data" в exchange pagebind.nodes
//
// Без RabbitMQ работает только через HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Pagebind/internal/api"
	"github.com/shaiso/Pagebind/internal/datasource"
	"github.com/shaiso/Pagebind/internal/domain"
	"github.com/shaiso/Pagebind/internal/mq"
	"github.com/shaiso/Pagebind/internal/repo"
	"github.com/shaiso/Pagebind/internal/runtime"
	"github.com/shaiso/Pagebind/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagebind_runtime_health_requests_total",
		Help: "Total health check requests handled by pagebind_runtime",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting pagebind-runtime")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	platform, err := platformFromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	httpOpts, err := httpOptionsFromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	appRepo := repo.NewAppRepo(pool)

	// RabbitMQ
	var publisher runtime.Publisher
	mqConn, err := mq.Dial(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in http-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = runtime.MQPublisher{Publisher: mq.NewPublisher(mqConn, logger)}
	}

	registry := runtime.NewRegistry(runtime.RegistryConfig{
		Loader:      appRepo,
		Publisher:   publisher,
		Platform:    platform,
		HTTPOptions: httpOpts,
		Logger:      logger,
	})
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pagebind_runtime_sessions_open",
		Help: "Number of live app sessions",
	}, func() float64 { return float64(registry.Len()) })

	var consumer *mq.Consumer
	if mqConn != nil {
		consumer = mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:    mq.QueueDataSourcesChanged,
			Handler:  mq.HandleDataSourceChanged(registry.ApplyDataSourceChange),
			Prefetch: 10,
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	handler := api.NewHandler(api.Config{
		Apps:     appRepo,
		Sessions: registry,
		Logger:   logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8090"
	if v := os.Getenv("RUNTIME_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr, "platform", platform)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if consumer != nil {
		consumer.Stop()
	}
	registry.Close(shutdownCtx)

	logger.Info("pagebind-runtime stopped", "uptime", time.Since(startTime).String())
}

// platformFromEnv читает PAGEBIND_PLATFORM (default: runtime).
func platformFromEnv() (string, error) {
	platform := os.Getenv("PAGEBIND_PLATFORM")
	switch platform {
	case "":
		return domain.PlatformRuntime, nil
	case domain.PlatformEditor, domain.PlatformPreview, domain.PlatformRuntime:
		return platform, nil
	default:
		return "", fmt.Errorf("PAGEBIND_PLATFORM: unknown platform %q", platform)
	}
}

// httpOptionsFromEnv читает HTTP_DS_RPS и HTTP_DS_TIMEOUT_SEC.
func httpOptionsFromEnv() (datasource.HTTPOptions, error) {
	var opts datasource.HTTPOptions

	if v := os.Getenv("HTTP_DS_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return opts, fmt.Errorf("HTTP_DS_RPS: invalid value %q", v)
		}
		opts.RequestsPerSecond = rps
	}

	if v := os.Getenv("HTTP_DS_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return opts, fmt.Errorf("HTTP_DS_TIMEOUT_SEC: invalid value %q", v)
		}
		opts.Timeout = time.Duration(sec) * time.Second
	}
	return opts, nil
}
