package main

import (
	"context"
	"encoding/gob"
	"log/slog"
	"net/http"
	"time"

	"github.com/adampresley/adamgokit/awsconfig"
	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/mux"
	"github.com/adampresley/adamgokit/retrier"
	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/sessions"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/clientaccess"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/configuration"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/httpio"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/previews"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/ratelimit"
	"github.com/adampresley/proofingdesk/cmd/proofing/internal/studio"
	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/rfberaldo/sqlz"
)

var (
	Version string = "development"
	appName string = "proofingdesk"

	config configuration.Config

	/* Services */
	accessService       services.AccessServicer
	albumService        services.AlbumServicer
	assetService        services.AssetServicer
	db                  *sqlz.DB
	deadlineSweeper     *services.DeadlineSweeper
	notificationService services.NotificationServicer
	previewBuilder      previews.PreviewBuilder
	sessionService      services.SessionServicer
	studioSession       sessions.Session[*httpio.StudioUser]
	tenantService       services.TenantServicer

	/* Controllers */
	clientAccessController clientaccess.ClientAccessController
	studioController       studio.StudioController
)

func main() {
	var (
		err error
	)

	config = configuration.LoadConfig()
	setupLogger(&config, Version)

	slog.Info("configuration loaded",
		slog.String("app", appName),
		slog.String("version", Version),
		slog.String("loglevel", config.LogLevel),
		slog.String("host", config.Host),
		slog.String("awsEndpointUrl", config.AwsEndpointUrl),
		slog.String("awsRegion", config.AwsRegion),
		slog.Duration("sweepInterval", config.SweepInterval()),
		slog.Duration("warningWindow", config.WarningWindow()),
	)

	slog.Debug("setting up...")

	shutdownCtx, cancel := context.WithCancel(context.Background())

	/*
	 * Setup services
	 */
	if db, err = database.Open(config.DSN); err != nil {
		panic(err)
	}

	gob.Register(&httpio.StudioUser{})

	cookieStore := sessions.NewCookieStore(config.CookieSecret)
	studioSession = sessions.NewSessionWrapper[*httpio.StudioUser](cookieStore, "proofingdeskstudio", "studio")

	awsConfig := &awsconfig.Config{
		Endpoint:        config.AwsEndpointUrl,
		Region:          config.AwsRegion,
		AccessKeyID:     config.AwsAccessKeyId,
		SecretAccessKey: config.AwsSecretAccessKey,
	}

	retrier.Retry(func() error {
		if err = awsConfig.Load(); err != nil {
			slog.Error("failed to load AWS config. trying again", "error", err)
			return err
		}

		return nil
	})

	if err != nil {
		panic(err)
	}

	s3Client, err := s3.NewClient(awsConfig)

	if err != nil {
		panic(err)
	}

	assetService = services.NewAssetService(services.AssetServiceConfig{
		Bucket:   config.AwsBucket,
		Region:   config.AwsRegion,
		S3Client: s3Client,
	})

	if err = assetService.EnsureBucket(); err != nil {
		panic(err)
	}

	tenantService = services.NewTenantService(services.TenantServiceConfig{
		DB: db,
	})

	accessService = services.NewAccessService(services.AccessServiceConfig{
		DB: db,
	})

	notificationConfig := services.NotificationServiceConfig{
		DB:             db,
		MaxMailWorkers: config.MaxMailWorkers,
	}

	if config.EmailApiKey != "" {
		notificationConfig.Mailer = services.NewEmailService(services.EmailServiceConfig{
			ApiKey:    config.EmailApiKey,
			BaseURL:   config.BaseURL,
			FromEmail: config.FromEmail,
			FromName:  config.FromName,
		})
	} else {
		slog.Warn("no email API key configured. notifications will not be emailed")
	}

	notificationService = services.NewNotificationService(notificationConfig)

	sessionService = services.NewSessionService(services.SessionServiceConfig{
		AccessService: accessService,
		Assets:        assetService,
		DB:            db,
		Notifications: notificationService,
	})

	albumService = services.NewAlbumService(services.AlbumServiceConfig{
		AccessService: accessService,
		Assets:        assetService,
		DB:            db,
		Notifications: notificationService,
	})

	deadlineSweeper = services.NewDeadlineSweeper(services.DeadlineSweeperConfig{
		DB:            db,
		Notifications: notificationService,
		WarningWindow: config.WarningWindow(),
		MaxWorkers:    config.MaxSweepWorkers,
	})

	previewBuilder = previews.NewPreviewBuilderService(previews.PreviewBuilderConfig{
		Assets:     assetService,
		MaxWorkers: config.MaxPreviewWorkers,
		Photos:     sessionService,
	})

	limiter := ratelimit.New(ratelimit.LimiterConfig{
		PerMinute: config.AccessRateLimit,
	})

	/*
	 * Setup controllers
	 */
	clientAccessController = clientaccess.NewClientAccessController(clientaccess.ClientAccessControllerConfig{
		AccessService:  accessService,
		AlbumService:   albumService,
		Assets:         assetService,
		SessionService: sessionService,
	})

	studioController = studio.NewStudioController(studio.StudioControllerConfig{
		AlbumService:        albumService,
		Assets:              assetService,
		NotificationService: notificationService,
		SessionService:      sessionService,
		StudioSession:       studioSession,
		TenantService:       tenantService,
	})

	/*
	 * Setup router and http server
	 */
	slog.Debug("setting up routes...")

	clientMiddlewares := []mux.MiddlewareFunc{limiter.Middleware, newTenantMiddleware(tenantService)}
	studioMiddlewares := []mux.MiddlewareFunc{newStudioAccessMiddleware(studioSession)}

	routes := []mux.Route{
		{Path: "GET /heartbeat", HandlerFunc: heartbeat},

		{Path: "POST /t/{tenant}/sessions/verify", HandlerFunc: clientAccessController.VerifySession, Middlewares: clientMiddlewares},
		{Path: "GET /t/{tenant}/sessions/{id}", HandlerFunc: clientAccessController.GetSession, Middlewares: clientMiddlewares},
		{Path: "POST /t/{tenant}/sessions/{id}/toggle", HandlerFunc: clientAccessController.ToggleSelection, Middlewares: clientMiddlewares},
		{Path: "POST /t/{tenant}/sessions/{id}/submit", HandlerFunc: clientAccessController.SubmitSelection, Middlewares: clientMiddlewares},
		{Path: "POST /t/{tenant}/sessions/{id}/request-reopen", HandlerFunc: clientAccessController.RequestReopen, Middlewares: clientMiddlewares},
		{Path: "POST /t/{tenant}/sessions/{id}/photos/{photoId}/comments", HandlerFunc: clientAccessController.CommentOnPhoto, Middlewares: clientMiddlewares},
		{Path: "POST /t/{tenant}/albums/verify", HandlerFunc: clientAccessController.VerifyAlbum, Middlewares: clientMiddlewares},
		{Path: "GET /t/{tenant}/albums/{id}", HandlerFunc: clientAccessController.GetAlbum, Middlewares: clientMiddlewares},
		{Path: "POST /t/{tenant}/albums/{id}/sheets/{sheetId}/approve", HandlerFunc: clientAccessController.ApproveSheet, Middlewares: clientMiddlewares},
		{Path: "POST /t/{tenant}/albums/{id}/sheets/{sheetId}/revision", HandlerFunc: clientAccessController.RequestRevision, Middlewares: clientMiddlewares},
		{Path: "POST /t/{tenant}/albums/{id}/sheets/{sheetId}/comments", HandlerFunc: clientAccessController.CommentOnSheet, Middlewares: clientMiddlewares},
		{Path: "POST /t/{tenant}/albums/{id}/approve-all", HandlerFunc: clientAccessController.ApproveAll, Middlewares: clientMiddlewares},

		{Path: "POST /studio/login", HandlerFunc: studioController.Login},
		{Path: "POST /studio/logout", HandlerFunc: studioController.Logout},
		{Path: "GET /studio/sessions", HandlerFunc: studioController.ListSessions, Middlewares: studioMiddlewares},
		{Path: "POST /studio/sessions", HandlerFunc: studioController.CreateSession, Middlewares: studioMiddlewares},
		{Path: "GET /studio/sessions/{id}", HandlerFunc: studioController.GetSession, Middlewares: studioMiddlewares},
		{Path: "DELETE /studio/sessions/{id}", HandlerFunc: studioController.DeleteSession, Middlewares: studioMiddlewares},
		{Path: "POST /studio/sessions/{id}/photos", HandlerFunc: studioController.AddPhoto, Middlewares: studioMiddlewares},
		{Path: "PUT /studio/sessions/{id}/deadline", HandlerFunc: studioController.SetDeadline, Middlewares: studioMiddlewares},
		{Path: "POST /studio/sessions/{id}/reopen", HandlerFunc: studioController.Reopen, Middlewares: studioMiddlewares},
		{Path: "POST /studio/sessions/{id}/deliver", HandlerFunc: studioController.Deliver, Middlewares: studioMiddlewares},
		{Path: "POST /studio/sessions/{id}/deactivate", HandlerFunc: studioController.Deactivate, Middlewares: studioMiddlewares},
		{Path: "POST /studio/sessions/{id}/photos/{photoId}/comments", HandlerFunc: studioController.CommentOnPhoto, Middlewares: studioMiddlewares},
		{Path: "GET /studio/albums", HandlerFunc: studioController.ListAlbums, Middlewares: studioMiddlewares},
		{Path: "POST /studio/albums", HandlerFunc: studioController.CreateAlbum, Middlewares: studioMiddlewares},
		{Path: "GET /studio/albums/{id}", HandlerFunc: studioController.GetAlbum, Middlewares: studioMiddlewares},
		{Path: "DELETE /studio/albums/{id}", HandlerFunc: studioController.DeleteAlbum, Middlewares: studioMiddlewares},
		{Path: "POST /studio/albums/{id}/sheets", HandlerFunc: studioController.AddSheet, Middlewares: studioMiddlewares},
		{Path: "POST /studio/albums/{id}/send", HandlerFunc: studioController.SendAlbum, Middlewares: studioMiddlewares},
		{Path: "POST /studio/albums/{id}/sheets/{sheetId}/comments", HandlerFunc: studioController.CommentOnSheet, Middlewares: studioMiddlewares},
		{Path: "GET /studio/notifications", HandlerFunc: studioController.ListNotifications, Middlewares: studioMiddlewares},
		{Path: "GET /studio/notifications/unread-count", HandlerFunc: studioController.UnreadCount, Middlewares: studioMiddlewares},
		{Path: "POST /studio/notifications/read-all", HandlerFunc: studioController.MarkAllRead, Middlewares: studioMiddlewares},
	}

	routerConfig := mux.RouterConfig{
		Address:          config.Host,
		Debug:            Version == "development",
		HttpWriteTimeout: 60,
	}

	m := mux.SetupRouter(routerConfig, routes)
	httpServer, quit := mux.SetupServer(routerConfig, m)

	/*
	 * Start the deadline sweeper
	 */
	deadlineSweeper.Start(config.SweepInterval())

	/*
	 * Start the preview builder and limiter pruning
	 */
	setupPreviewBuilder(shutdownCtx)
	setupLimiterPruning(shutdownCtx, limiter)

	/*
	 * Wait for graceful shutdown
	 */
	slog.Info("server started")

	<-quit

	cancel()
	deadlineSweeper.Stop()
	mux.Shutdown(httpServer)
	notificationService.Stop()
	slog.Info("server stopped")
}

func heartbeat(w http.ResponseWriter, r *http.Request) {
	httphelpers.TextOK(w, "OK")
}

func setupPreviewBuilder(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(config.PreviewInterval())
		defer ticker.Stop()

		runner := func() {
			created, err := previewBuilder.BuildPreviews(ctx)

			if err != nil {
				slog.Error("preview builder failed", "error", err)
				return
			}

			slog.Info("preview builder finished.", "created", created)
		}

		runner()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				runner()
			}
		}
	}()
}

func setupLimiterPruning(ctx context.Context, limiter *ratelimit.Limiter) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				if removed := limiter.Prune(); removed > 0 {
					slog.Debug("pruned idle rate limit entries", "removed", removed)
				}
			}
		}
	}()
}
