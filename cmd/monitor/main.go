package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zanzhit/ppe_monitor/internal/capture"
	"github.com/zanzhit/ppe_monitor/internal/capture/opencv"
	"github.com/zanzhit/ppe_monitor/internal/config"
	alertshandler "github.com/zanzhit/ppe_monitor/internal/http-server/handlers/alerts"
	camerashandler "github.com/zanzhit/ppe_monitor/internal/http-server/handlers/cameras"
	authmiddleware "github.com/zanzhit/ppe_monitor/internal/http-server/middleware/auth"
	"github.com/zanzhit/ppe_monitor/internal/http-server/middleware/logger"
	"github.com/zanzhit/ppe_monitor/internal/kafka"
	"github.com/zanzhit/ppe_monitor/internal/lib/sl"
	"github.com/zanzhit/ppe_monitor/internal/metrics"
	alertservice "github.com/zanzhit/ppe_monitor/internal/services/alerts"
	"github.com/zanzhit/ppe_monitor/internal/services/compliance"
	"github.com/zanzhit/ppe_monitor/internal/services/detection"
	"github.com/zanzhit/ppe_monitor/internal/services/recording"
	recordingservice "github.com/zanzhit/ppe_monitor/internal/services/recordings"
	"github.com/zanzhit/ppe_monitor/internal/services/session"
	"github.com/zanzhit/ppe_monitor/internal/storage/memory"
	"github.com/zanzhit/ppe_monitor/internal/storage/postgres"
	alertstorage "github.com/zanzhit/ppe_monitor/internal/storage/postgres/alerts"
	recordingstorage "github.com/zanzhit/ppe_monitor/internal/storage/postgres/recordings"
	"github.com/zanzhit/ppe_monitor/internal/storage/s3"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type alertStore interface {
	alertservice.AlertSaver
	alertservice.AlertProvider
}

type recordingStore interface {
	recordingservice.RecordingSaver
	recordingservice.RecordingProvider
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting ppe monitor", slog.String("env", cfg.Env), slog.String("address", cfg.Address))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	var alerts alertStore = memory.NewAlertStorage()
	var recordings recordingStore = memory.NewRecordingStorage()

	if cfg.DB.Enabled() {
		db, err := postgres.New(ctx, cfg.DB)
		if err != nil {
			log.Error("failed to connect to postgres", sl.Err(err))
			os.Exit(1)
		}
		defer db.Close()

		alerts = alertstorage.New(db)
		recordings = recordingstorage.New(db)
	} else {
		log.Warn("db.host is empty, alerts are kept in memory")
	}

	var videos recordingservice.VideoService
	if cfg.S3.Enabled() {
		client, err := s3.New(cfg.S3)
		if err != nil {
			log.Error("failed to create s3 client", sl.Err(err))
			os.Exit(1)
		}

		if err := client.EnsureBucket(ctx); err != nil {
			log.Error("failed to prepare bucket", sl.Err(err))
			os.Exit(1)
		}

		videos = client
	}

	var publisher alertservice.AlertPublisher
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
		if err != nil {
			log.Error("failed to create kafka producer", sl.Err(err))
			os.Exit(1)
		}
		defer producer.Close()

		publisher = producer
	}

	detector := detection.NewClient(detection.Config{
		Endpoint:      cfg.Detection.Endpoint,
		Timeout:       cfg.Detection.Timeout,
		ConfThreshold: cfg.Detection.ConfThreshold,
		IoUThreshold:  cfg.Detection.IoUThreshold,
	})

	evaluator, err := compliance.New(compliance.Rules{
		PersonLabel:   cfg.Compliance.PersonLabel,
		RequiredItems: cfg.Compliance.RequiredItems,
		DisplayNames:  cfg.Compliance.DisplayNames,
	}, vocabulary(ctx, log, cfg, detector))
	if err != nil {
		log.Error("invalid compliance rules", sl.Err(err))
		os.Exit(1)
	}

	archive := recordingservice.New(log, recordings, recordings, videos, m, 0)

	broadcaster := session.NewBroadcaster(log, m)

	manager := session.NewManager(log, &session.Builder{
		Log:     log,
		Metrics: m,
		Opener:  opencv.Opener{},
		Streams: opencv.Opener{},
		Network: capture.NetworkConfig{
			Address:        cfg.Camera.NetworkAddress,
			Port:           cfg.Camera.NetworkPort,
			Path:           cfg.Camera.NetworkPath,
			ConnectTimeout: cfg.Camera.ConnectTimeout,
		},
		Indices: cfg.Camera.DeviceIndices,
		Sinks:   opencv.WriterFactory{Codec: cfg.Recording.Codec, FPS: cfg.Recording.FPS},
		Recording: recording.Config{
			Dir:         cfg.Recording.Dir,
			Container:   cfg.Recording.Container,
			IdleTimeout: cfg.Recording.IdleTimeout,
		},
		Archiver:       archive,
		Detector:       detector,
		Evaluator:      evaluator,
		Alerts:         alertservice.NewSink(log, alerts, publisher, m),
		Throttle:       cfg.Alerts.ThrottleWindow,
		PersistTimeout: cfg.Alerts.PersistTimeout,
		PersonLabel:    cfg.Compliance.PersonLabel,
		JPEGQuality:    cfg.Stream.JPEGQuality,
	}, broadcaster, m, session.Config{
		FrameInterval: cfg.Stream.FrameInterval,
		Headless:      cfg.Stream.Headless,
	})

	alertService := alertservice.New(log, alerts, archive, alertservice.Config{
		QueryWindow: cfg.Alerts.QueryWindow,
		LatestLimit: cfg.Alerts.LatestLimit,
		MediaURL:    cfg.Recording.MediaURL,
	})

	cameraHandler := camerashandler.New(log, manager)
	streamHandler := camerashandler.NewStream(log, broadcaster, cfg.Stream.KeepaliveInterval)
	alertHandler := alertshandler.New(log, alertService)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(logger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Get("/video_feed", streamHandler.Stream)
	router.Handle("/metrics", m.Handler())
	router.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.Recording.Dir))))

	router.Group(func(r chi.Router) {
		r.Use(authmiddleware.JWTAuth(cfg.Secret))

		r.Get("/camera/status", cameraHandler.Status)
		r.Get("/alerts", alertHandler.List)
		r.Get("/alerts/latest", alertHandler.Latest)
		r.Get("/alerts/{id}", alertHandler.Detail)

		r.Group(func(r chi.Router) {
			r.Use(authmiddleware.OperatorRequired(cfg.Secret))

			r.Post("/toggle_camera", cameraHandler.Toggle)
			r.Post("/alerts/{id}/resolve", alertHandler.Resolve)
		})
	})

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		ReadTimeout:       cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", sl.Err(err))
			stop()
		}
	}()

	log.Info("server started", slog.String("address", cfg.Address))

	<-ctx.Done()

	log.Info("stopping server")

	manager.Shutdown()
	broadcaster.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", sl.Err(err))
	}

	archive.Close()

	log.Info("server stopped")
}

// vocabulary returns the labels used to validate the compliance rules. A
// configured list wins over the model server; an unreachable server skips
// validation.
func vocabulary(ctx context.Context, log *slog.Logger, cfg *config.Config, detector *detection.Client) []string {
	if len(cfg.Detection.Labels) > 0 {
		return cfg.Detection.Labels
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Detection.Timeout)
	defer cancel()

	labels, err := detector.Labels(ctx)
	if err != nil {
		log.Warn("failed to fetch model labels, skipping label validation", sl.Err(err))

		return nil
	}

	return labels
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
