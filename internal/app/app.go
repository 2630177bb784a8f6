package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/contentjet/contentjet/internal/ai"
	"github.com/contentjet/contentjet/internal/auth"
	"github.com/contentjet/contentjet/internal/billing"
	"github.com/contentjet/contentjet/internal/config"
	"github.com/contentjet/contentjet/internal/db"
	"github.com/contentjet/contentjet/internal/http/api/front"
	"github.com/contentjet/contentjet/internal/logging"
	"github.com/contentjet/contentjet/internal/metrics"
	"github.com/contentjet/contentjet/internal/modelreference"
	"github.com/contentjet/contentjet/internal/ratelimit"
	internalsettings "github.com/contentjet/contentjet/internal/settings"
	"github.com/contentjet/contentjet/internal/store"
	"github.com/contentjet/contentjet/internal/tokens"
	"github.com/contentjet/contentjet/internal/usage"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Server is the wired API service.
type Server struct {
	Engine   *gin.Engine
	conn     *gorm.DB
	recorder *usage.Recorder
	limiter  *ratelimit.Manager
	syncer   *modelreference.Syncer
	cfg      config.AppConfig
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	dsn, err := cfg.LoadDatabaseDSN()
	if err != nil {
		return err
	}
	conn, err := openMigrated(ctx, dsn)
	if err != nil {
		return err
	}
	closeDB(conn)
	return nil
}

// migrate is replaced in tests.
var migrate = db.Migrate

// openMigrated opens dsn and applies migrations, closing the connection when they fail.
func openMigrated(ctx context.Context, dsn string) (*gorm.DB, error) {
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if errMigrate := migrate(conn.WithContext(ctx)); errMigrate != nil {
		closeDB(conn)
		return nil, errMigrate
	}
	return conn, nil
}

func closeDB(conn *gorm.DB) {
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.WithError(errClose).Warn("close database failed")
	}
}

// Build opens the database and wires every component into a gin engine. Background
// work (models sync) is not started until Run.
func Build(ctx context.Context, cfg config.AppConfig) (*Server, error) {
	dsn, err := cfg.LoadDatabaseDSN()
	if err != nil {
		return nil, err
	}
	if info, errDescribe := db.DescribeDSN(dsn); errDescribe == nil {
		log.Infof("database: %s", info)
	}
	conn, err := openMigrated(ctx, dsn)
	if err != nil {
		return nil, err
	}

	st := store.New(conn)
	collector := metrics.New()

	table := modelreference.NewTable()
	syncer := modelreference.NewSyncer(conn, table)
	if errWarm := syncer.Warm(ctx); errWarm != nil {
		log.WithError(errWarm).Warn("models: load stored references failed")
	}
	provider := ai.Select(cfg.AI.Provider, cfg.AI)
	dispatcher := ai.NewDispatcher(provider, tokens.NewEstimator(table), cfg.AI.AllowedModels)

	limitSettings := ratelimit.SettingsFromConfig(cfg.RateLimit)
	limiter := ratelimit.NewManager(limitSettings, nil)
	recorder := usage.NewRecorder(conn)

	catalog := billing.NewCatalog(cfg.Stripe)
	var (
		gateway    billing.Gateway
		reconciler *billing.Reconciler
	)
	if cfg.Stripe.SecretKey != "" {
		stripeGateway := billing.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil)
		gateway = stripeGateway
		reconciler = billing.NewReconciler(st, stripeGateway, catalog)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set; billing endpoints are disabled")
	}
	if cfg.Auth.JWTSecret == "" && !cfg.Auth.DevBypass {
		log.Warn("AUTH_JWT_SECRET not set; every authenticated request will be rejected")
	}

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinLogger())
	engine.Use(collector.Middleware())
	engine.Use(corsMiddleware(cfg.SiteURL))

	front.RegisterFrontRoutes(engine, front.Dependencies{
		Store:      st,
		Auth:       auth.NewMiddleware(auth.NewVerifier(cfg.Auth.JWTSecret), st, cfg.Auth),
		Exchanger:  auth.NewExchanger(cfg.Auth),
		Dispatcher: dispatcher,
		Gateway:    gateway,
		Reconciler: reconciler,
		Catalog:    catalog,
		Limiter:    limiter,
		Recorder:   recorder,
		Metrics:    collector,
		SiteURL:    cfg.SiteURL,
	})
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	log.WithFields(log.Fields{
		"provider": dispatcher.ProviderName(),
		"model":    dispatcher.DefaultModel(),
		"redis":    limitSettings.RedisEnabled,
	}).Infof("%s wired", internalsettings.SiteName)

	return &Server{
		Engine:   engine,
		conn:     conn,
		recorder: recorder,
		limiter:  limiter,
		syncer:   syncer,
		cfg:      cfg,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests and usage writes.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.ModelsSync {
		s.syncer.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errServe := make(chan error, 1)
	go func() {
		log.Infof("starting %s API on %s", internalsettings.SiteName, addr)
		if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errServe <- errListen
		}
		close(errServe)
	}()

	select {
	case errListen := <-errServe:
		if errListen != nil {
			s.close()
			return errListen
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Error("http server shutdown failed")
	}
	if errWait := s.recorder.Wait(shutdownCtx); errWait != nil {
		log.WithError(errWait).Warn("usage writes still in flight at shutdown")
	}
	s.close()
	return nil
}

func (s *Server) close() {
	if errClose := s.limiter.Close(); errClose != nil {
		log.WithError(errClose).Warn("close rate limiter failed")
	}
	closeDB(s.conn)
}

// RunServer builds and runs the API server.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	server, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
