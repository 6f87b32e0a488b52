package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "go.uber.org/zap"

    "github.com/iliyamo/adas-events/internal/collab"
    "github.com/iliyamo/adas-events/internal/config"
    "github.com/iliyamo/adas-events/internal/credential"
    "github.com/iliyamo/adas-events/internal/database"
    "github.com/iliyamo/adas-events/internal/feed"
    "github.com/iliyamo/adas-events/internal/gateway"
    "github.com/iliyamo/adas-events/internal/handler"
    "github.com/iliyamo/adas-events/internal/logging"
    "github.com/iliyamo/adas-events/internal/maintenance"
    "github.com/iliyamo/adas-events/internal/middleware"
    "github.com/iliyamo/adas-events/internal/queue"
    "github.com/iliyamo/adas-events/internal/repository"
    "github.com/iliyamo/adas-events/internal/router"
    "github.com/iliyamo/adas-events/internal/service"
    "github.com/iliyamo/adas-events/internal/ticketing"
    "github.com/iliyamo/adas-events/internal/transcribe"
    "github.com/iliyamo/adas-events/internal/utils"
)

const (
    shutdownTimeout = 15 * time.Second
    uploadLimit     = "50M"
)

func main() {
    cfg, err := config.Load()
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    logger, err := logging.New(cfg.Env, cfg.LogLevel)
    if err != nil {
        log.Fatalf("logger: %v", err)
    }
    defer logger.Sync()

    if err := run(cfg, logger); err != nil {
        logger.Fatal("server exited", zap.Error(err))
    }
}

func run(cfg config.Config, logger *zap.Logger) error {
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        return err
    }
    defer db.Close()

    mctx, cancel := context.WithTimeout(ctx, time.Minute)
    err = database.Migrate(mctx, db)
    cancel()
    if err != nil {
        return err
    }
    store := repository.NewStore(db)

    // nil when Redis is down; cache, limiter and feed degrade on their own
    rdb := config.NewRedisClient(logger)
    if rdb != nil {
        defer rdb.Close()
    }
    cacheCfg := config.LoadCacheConfig()

    sealer, err := credential.NewSealer(cfg.CredentialKey)
    if err != nil {
        return err
    }

    writerOpts := []ticketing.WriterOption{
        ticketing.WithIDGenerator(ticketing.RandomIDs{SuffixLen: cfg.TicketIDSuffixLen}),
        ticketing.WithMaxAttempts(cfg.TicketIDMaxAttempts),
    }
    if cfg.RabbitMQURL != "" {
        writerOpts = append(writerOpts, ticketing.WithNotifier(queue.NewPublisher(cfg.RabbitMQURL, logger)))
        go queue.NewConsumer(cfg.RabbitMQURL, cfg.QueueLogDir, logger).Run(ctx)
    } else {
        logger.Warn("RABBITMQ_URL not set; ticket notifications disabled")
    }
    writer := ticketing.NewWriter(store, logger, writerOpts...)
    checkout := ticketing.NewCheckout(store, gateway.NewPaystack(cfg.PaystackBaseURL, nil, logger), sealer, writer, logger,
        ticketing.WithGatewayTimeout(cfg.GatewayTimeout),
        ticketing.WithCallbackURL(cfg.PublicBaseURL+"/payment/verify"),
        ticketing.WithCurrency(cfg.Currency),
    )

    var eventOpts []service.Option
    if rdb != nil {
        eventOpts = append(eventOpts, service.WithInvalidator(func(ctx context.Context) error {
            return middleware.InvalidateCache(ctx, rdb, cacheCfg.Prefix)
        }))
    }
    events := service.NewEvents(store, sealer, logger, eventOpts...)

    live := feed.New(rdb, cfg.FeedPrefix, cfg.FeedPoll, logger)
    discussion := collab.NewService(store, live, nil, logger)

    var tokens handler.MeetingTokens
    if cfg.MeetingEnabled() {
        signer, err := utils.NewMeetingSigner(cfg.MeetingKeyFile, cfg.MeetingAppID, cfg.MeetingKeyID)
        if err != nil {
            return err
        }
        tokens = signer
    } else {
        logger.Warn("meeting tokens disabled; MEETING_KEY_FILE or MEETING_APP_ID not set")
    }

    go maintenance.NewCleaner(store, nil, cfg.CleanupRetention, logger).Run(ctx, cfg.CleanupInterval)

    setupURL := cfg.PublicBaseURL + "/payment-setup"
    e := echo.New()
    e.HideBanner = true
    e.HidePort = true
    e.Use(echomw.Recover())
    e.Use(echomw.RequestID())
    e.Use(middleware.RequestLogger(logger))
    e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
        AllowOrigins: cfg.CORSOrigins,
        AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
    }))
    e.Use(echomw.BodyLimit(uploadLimit))

    router.Register(e, router.Handlers{
        Events:     handler.NewEventHandler(events, setupURL, logger),
        Tickets:    handler.NewTicketHandler(events, logger),
        Checkout:   handler.NewCheckoutHandler(checkout, setupURL, logger),
        Discussion: handler.NewDiscussionHandler(discussion, live, logger),
        Summarize: handler.NewSummarizeHandler(
            transcribe.NewAssemblyAI(cfg.AssemblyAIKey, cfg.AssemblyAIBaseURL, cfg.TranscribePoll, logger),
            cfg.TranscribeTimeout, logger),
        Meeting: handler.NewMeetingHandler(events, tokens, logger),
        DB:      db,
    }, router.Guards{
        Auth:      middleware.JWTAuth(cfg.JWTSecret),
        Optional:  middleware.OptionalAuth(cfg.JWTSecret),
        RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
        Cache:     middleware.NewRedisCache(cacheCfg, rdb),
    })

    errCh := make(chan error, 1)
    go func() {
        addr := ":" + cfg.Port
        logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errCh <- err
        }
    }()

    select {
    case err := <-errCh:
        return err
    case <-ctx.Done():
    }

    logger.Info("shutting down")
    sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
    defer cancel()
    return e.Shutdown(sctx)
}
