// Command server runs the authentication API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/logging"
	"github.com/iliyamo/auth-service/internal/metrics"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/router"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("connect mysql")
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("migrate schema")
	}

	m := metrics.New()
	m.WatchDB(db, cfg.DBName)

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.WithField("addr", cfg.Redis.Addr).Warn("redis unavailable, response cache disabled")
	} else {
		defer rdb.Close()
	}

	// Audit fan-out: structured log, metrics and, when a broker is
	// configured, the audit queue drained by an in-process consumer.
	audit := service.Auditors{service.LogAuditor{Log: log}, m}
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, cfg.AuditQueue, log)
		defer pub.Close()
		audit = append(audit, pub)

		f, err := queue.OpenAuditLog(cfg.AuditLogPath)
		if err != nil {
			log.WithError(err).Fatal("open audit log")
		}
		defer f.Close()
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.AuditQueue, f, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("audit consumer stopped")
			}
		}()
	}

	codec := utils.NewTokenCodec(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	hasher := utils.NewPasswordHasher(cfg.BcryptCost, cfg.BcryptConcurrency)

	sessionRepo := repository.NewSessionRepo(db)
	userRepo := repository.NewUserRepo(db, sessionRepo)
	resetRepo := repository.NewResetTokenRepo(db, userRepo, sessionRepo)
	keyRepo := repository.NewAPIKeyRepo(db)

	sessions := service.NewSessionRegistry(sessionRepo, cfg.RefreshTTL)
	authSvc := service.NewAuthService(service.AuthDeps{
		Users:    userRepo,
		Sessions: sessions,
		Resets:   resetRepo,
		Hasher:   hasher,
		Codec:    codec,
		ResetTTL: cfg.ResetTokenTTL,
		Audit:    audit,
		Log:      log,
	})
	keySvc := service.NewAPIKeyService(keyRepo, userRepo, audit, log)
	userSvc := service.NewUserService(userRepo, hasher, audit)
	authenticator := service.NewAuthenticator(keySvc, sessions, userRepo, codec, log)

	housekeeper, err := service.NewHousekeeper(resetRepo, cfg.HousekeepingSchedule, log)
	if err != nil {
		log.WithError(err).Fatal("housekeeping")
	}
	housekeeper.Start()
	defer housekeeper.Stop()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(m.Middleware())
	e.Use(echomw.CORS())

	router.RegisterRoutes(e, router.Deps{
		Auth:          handler.NewAuthHandler(authSvc, log, !cfg.IsProduction()),
		APIKeys:       handler.NewAPIKeyHandler(keySvc, log),
		Users:         handler.NewUserHandler(userSvc, log),
		Health:        handler.NewHealthHandler(db, rdb, cfg.Version),
		Authenticator: authenticator,
		Cache:         middleware.NewRedisCache(cfg.Cache, rdb, m, log),
		Metrics:       m.Handler(),
		Log:           log,
	})

	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.Addr(), "env": cfg.Env}).Info("listening")
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
