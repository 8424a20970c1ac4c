package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/weddingcard/server/internal/config"
	"github.com/weddingcard/server/internal/handlers"
	custommw "github.com/weddingcard/server/internal/middleware"
	"github.com/weddingcard/server/internal/observability"
	"github.com/weddingcard/server/internal/repository"
	"github.com/weddingcard/server/internal/services"
)

const serviceName = "weddingcard-server"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	observability.Configure(serviceName,
		observability.ParseLevel(cfg.Logging.Level),
		observability.ParseFormat(cfg.Logging.Format),
		os.Stdout)

	telemetry, err := observability.Initialize(ctx, observability.Config{
		ServiceName:    serviceName,
		ServiceVersion: handlers.Version,
		Environment:    cfg.Telemetry.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		MetricInterval: cfg.Telemetry.MetricInterval(),
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		fatal("Failed to initialize telemetry", err)
	}

	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		fatal("Failed to create HTTP metrics", err)
	}
	businessMetrics, err := observability.NewBusinessMetrics()
	if err != nil {
		fatal("Failed to create business metrics", err)
	}

	// Initialize database and repositories
	var (
		guestbookRepo repository.GuestbookRepo
		rsvpRepo      repository.RSVPRepo
		db            *sql.DB
		system        string
	)
	if cfg.UsePostgres() {
		observability.Info("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
		system = "postgresql"
	} else {
		observability.WithField("path", cfg.DatabasePath).Info("Using SQLite database")
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
		system = "sqlite"
	}
	if err != nil {
		fatal("Failed to initialize database", err)
	}
	defer db.Close()

	traced, err := observability.NewTraceDB(db, system)
	if err != nil {
		fatal("Failed to wrap database", err)
	}
	if cfg.UsePostgres() {
		guestbookRepo = repository.NewGuestbookRepositoryPostgres(traced)
		rsvpRepo = repository.NewRSVPRepositoryPostgres(traced)
	} else {
		guestbookRepo = repository.NewGuestbookRepository(traced)
		rsvpRepo = repository.NewRSVPRepository(traced)
	}

	// Object store
	store, err := services.NewObjectStore(ctx, cfg.Storage)
	if err != nil {
		fatal("Failed to initialize object store", err)
	}

	loc, err := cfg.Timeline.Location()
	if err != nil {
		fatal("Invalid timeline timezone", err)
	}
	axisStart, err := cfg.Timeline.Start(loc)
	if err != nil {
		fatal("Invalid timeline axis start", err)
	}

	// Initialize services
	hub := services.NewWebSocketHub()
	go hub.Run(ctx)

	var notifier services.EntryNotifier = services.NoopNotifier{}
	if cfg.Notifications.Enabled() {
		fcm, err := services.NewFCMService(ctx, cfg.Notifications.FCMCredentialsPath, cfg.Notifications.HostTokens)
		if err != nil {
			observability.WithField("error", err.Error()).Warn("Host notifications disabled")
		} else {
			notifier = fcm
		}
	}

	exifService := services.NewEXIFService(loc)
	thumbnailService := services.NewThumbnailService(store, exifService, cfg.Thumbnails.Width, cfg.Thumbnails.Quality)
	maintenanceService := services.NewMaintenanceService(store, thumbnailService, cfg.Thumbnails.BackfillWorkers,
		cfg.Storage.HistoryPrefix, cfg.Storage.GuestbookPrefix)

	guestbookService := services.NewGuestbookService(guestbookRepo, hub, notifier, businessMetrics)
	rsvpService := services.NewRSVPService(rsvpRepo, businessMetrics)
	uploadService := services.NewUploadService(store, thumbnailService, exifService, services.UploadOptions{
		Prefix:     cfg.Storage.GuestbookPrefix,
		MaxBytes:   cfg.Upload.MaxBytes(),
		PresignTTL: cfg.Upload.PresignTTL(),
		Metrics:    businessMetrics,
	})
	calendarService, err := services.NewCalendarService(cfg.Wedding, loc)
	if err != nil {
		fatal("Invalid wedding configuration", err)
	}

	historySource := services.NewPhotoSource(store, cfg.Storage.HistoryPrefix, cfg.Storage.PageSize)
	guestbookSource := services.NewPhotoSource(store, cfg.Storage.GuestbookPrefix, cfg.Storage.PageSize)

	// Timeline
	timelineStore := services.NewTimelineStore(services.BuildOptions{Location: loc})

	var changes <-chan struct{}
	if local, ok := store.(*services.LocalObjectStore); ok && cfg.Storage.WatchLocal {
		changes, err = local.Watch(ctx)
		if err != nil {
			observability.WithField("error", err.Error()).Warn("Watching local photos failed")
		}
	}

	go func() {
		if err := timelineStore.Run(ctx, historySource, guestbookService, changes); err != nil && ctx.Err() == nil {
			observability.WithField("error", err.Error()).Error("Timeline store stopped")
		}
	}()

	if cfg.Thumbnails.BackfillOnStart {
		maintenanceService.RunNow(ctx)
	}

	sessionOpts := services.SessionOptions{
		AxisStart:        axisStart,
		Location:         loc,
		Autoplay:         cfg.Timeline.AutoplayIntervalSeconds > 0,
		AutoplayInterval: cfg.Timeline.AutoplayInterval(),
		SwipeThreshold:   cfg.Timeline.SwipeThreshold,
		WindowBuffer:     cfg.Timeline.WindowBufferPercent,
		LazyMargin:       cfg.Timeline.LazyMarginPx,
		ThumbWidth:       cfg.Timeline.ThumbWidthPx,
		Metrics:          businessMetrics,
	}
	if cfg.Timeline.PreloadOriginals {
		sessionOpts.Preloader = services.NewHTTPPreloader(10 * time.Second)
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(timelineStore)
	timelineHandler := handlers.NewTimelineHandler(timelineStore, sessionOpts)
	photoHandler := handlers.NewPhotoHandler(historySource, guestbookSource)
	guestbookHandler := handlers.NewGuestbookHandler(guestbookService, uploadService)
	uploadHandler := handlers.NewUploadHandler(uploadService)
	rsvpHandler := handlers.NewRSVPHandler(rsvpService)
	calendarHandler := handlers.NewCalendarHandler(calendarService)
	adminHandler := handlers.NewAdminHandler(maintenanceService, hub, guestbookService, timelineStore)
	wsHandler := handlers.NewWebSocketHandler(hub, guestbookService, timelineStore, sessionOpts, cfg.Security.AllowedOrigins)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(observability.TracingMiddleware("/health", "/api/health"))
	r.Use(observability.MetricsMiddleware(httpMetrics))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)
	r.Get("/api/version", handlers.VersionHandler)

	r.Get("/api/timeline", timelineHandler.Get)
	r.Get("/api/timeline/jump", timelineHandler.JumpToDate)
	r.Get("/api/photos", photoHandler.List)

	r.Route("/api/guestbook", func(r chi.Router) {
		r.Get("/", guestbookHandler.List)
		r.Post("/", guestbookHandler.Create)
	})
	r.Route("/api/uploads", func(r chi.Router) {
		r.Post("/presign", uploadHandler.Presign)
		r.Post("/complete", uploadHandler.Complete)
	})
	r.Post("/api/rsvp", rsvpHandler.Submit)
	r.Get("/api/calendar.ics", calendarHandler.ICS)
	r.Get("/api/calendar/links", calendarHandler.Links)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(custommw.AdminKeyAuth(cfg.Security.AdminKeyHash, cfg.Security.AdminKeyHeader))
		r.Get("/status", adminHandler.Status)
		r.Get("/rsvp", rsvpHandler.List)
		r.Post("/thumbnails/backfill", adminHandler.RunBackfill)
	})

	r.Get("/ws/guestbook", wsHandler.Guestbook)
	r.Get("/ws/timeline", wsHandler.Timeline)

	if local, ok := store.(*services.LocalObjectStore); ok {
		r.Handle("/media/*", handlers.NewMediaHandler("/media", local.BasePath()))
	}

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for uploads
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		observability.WithFields(map[string]interface{}{
			"address":  cfg.ServerAddress,
			"backend":  cfg.Storage.Backend,
			"history":  cfg.Storage.HistoryPrefix,
			"timezone": loc.String(),
		}).Info("Wedding card server starting")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("Server error", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	stop()

	observability.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		observability.WithField("error", err.Error()).Error("Server forced to shutdown")
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		observability.WithField("error", err.Error()).Warn("Telemetry shutdown failed")
	}

	observability.Info("Server stopped")
}

func fatal(msg string, err error) {
	observability.WithField("error", err.Error()).Error(msg)
	os.Exit(1)
}
