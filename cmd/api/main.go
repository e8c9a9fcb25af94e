package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/noah-isme/taskhub-api/internal/config"
	"github.com/noah-isme/taskhub-api/internal/database"
	"github.com/noah-isme/taskhub-api/internal/handler"
	"github.com/noah-isme/taskhub-api/internal/middleware"
	"github.com/noah-isme/taskhub-api/internal/observability"
	"github.com/noah-isme/taskhub-api/internal/repository"
	"github.com/noah-isme/taskhub-api/internal/router"
	"github.com/noah-isme/taskhub-api/internal/service"
	cloud "github.com/noah-isme/taskhub-api/pkg/cloudinary"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, score export cache disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats not configured, submission events disabled")
	}

	// Interface values stay nil when cloudinary is absent so the services can detect it.
	var storage service.ObjectStorage
	var destroyer service.AssetDestroyer
	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("cloudinary not configured, uploads disabled")
	} else {
		storage = uploader
		destroyer = uploader
	}

	observability.RegisterMetrics()
	validate := validator.New(validator.WithRequiredStructEnabled())
	disk := afero.NewOsFs()

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	janitor := service.NewFileJanitor(destroyer, disk, cfg.LegacyUploadRoot, cfg.CleanupQueueSize, logger)
	janitor.Start(ctx)

	intake := service.NewFileIntake(storage, cfg.MaxUploadMB, logger)
	auditService := service.NewAuditService(auditRepo, logger)
	scoreService := service.NewScoreExportService(classRepo, activityRepo, submissionRepo, redisClient, cfg.ScoreCacheTTL, logger)
	events := service.NewNATSEventPublisher(natsConn, cfg.EventSubject, logger)

	userService := service.NewUserService(service.UserDependencies{
		Users:   userRepo,
		Classes: classRepo,
		Audit:   auditService,
		Cleaner: janitor,
		Scores:  scoreService,
	}, validate, logger)
	classService := service.NewClassService(service.ClassDependencies{
		Classes: classRepo,
		Users:   userRepo,
		Cleaner: janitor,
		Audit:   auditService,
		Scores:  scoreService,
	}, validate, logger)
	activityService := service.NewActivityService(service.ActivityDependencies{
		Activities: activityRepo,
		Classes:    classRepo,
		Intake:     intake,
		Cleaner:    janitor,
		Audit:      auditService,
		Scores:     scoreService,
	}, validate, logger)
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Submissions: submissionRepo,
		Activities:  activityRepo,
		Intake:      intake,
		Cleaner:     janitor,
		Audit:       auditService,
		Events:      events,
		Scores:      scoreService,
	}, validate, logger)
	directoryService := service.NewSubmissionDirectoryService(classRepo, activityRepo, submissionRepo, logger)
	announcementService := service.NewAnnouncementService(announcementRepo, classRepo, auditService, validate, logger)
	attachmentService := service.NewAttachmentService(activityRepo, submissionRepo, disk, cfg.LegacyUploadRoot, logger)

	seeded, err := service.NewSeedService(userRepo, userService, logger).EnsureAdmin(ctx, service.AdminSeed{
		Name:     cfg.SeedAdminName,
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
	})
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to seed administrator")
	case seeded:
		logger.Info().Str("email", cfg.SeedAdminEmail).Msg("administrator seeded")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxUploadMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    !cfg.IsProduction(),
	})
	router.Register(app, cfg, router.Dependencies{
		UserHandler:         handler.NewUserHandler(userService, logger),
		ClassHandler:        handler.NewClassHandler(classService, logger),
		ActivityHandler:     handler.NewActivityHandler(activityService, attachmentService, scoreService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, directoryService, attachmentService, logger),
		AnnouncementHandler: handler.NewAnnouncementHandler(announcementService, attachmentService, logger),
		AuditHandler:        handler.NewAuditHandler(auditService, logger),
		JWTMiddleware:       middleware.JWTProtected(middleware.JWTConfig{
			Secret:   cfg.JWTSecret,
			Accounts: userRepo,
			Logger:   &logger,
		}),
		SubmitLimiter:       middleware.RateLimit("submissions", cfg.SubmitRateLimit, cfg.SubmitRateWindow),
		MetricsHandler:      observability.MetricsHandler(),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, janitor, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, janitor *service.FileJanitor, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-janitor.Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("file janitor did not stop in time")
	}

	logger.Info().Msg("server stopped")
}
