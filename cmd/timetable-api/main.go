package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/router"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	"github.com/noah-isme/timetable-api/pkg/jwt"
	"github.com/noah-isme/timetable-api/pkg/lock"
	"github.com/noah-isme/timetable-api/pkg/logger"
	"github.com/noah-isme/timetable-api/pkg/timegrid"
)

// @title Timetable API
// @version 1.0.0
// @description Timetable conflict detection and scheduling service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, level, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := config.Watch(func(next *config.Config) {
		level.SetLevel(logger.ParseLevel(next.Log.Level).Level())
		logr.Info("configuration reloaded", zap.String("log_level", next.Log.Level))
	}); err != nil {
		logr.Warn("config watch disabled", zap.Error(err))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	grid, err := loadGrid(cfg.Grid)
	if err != nil {
		logr.Fatal("invalid slot grid", zap.Error(err))
	}

	locker, err := newLocker(cfg.Scheduler, redisClient)
	if err != nil {
		logr.Fatal("invalid lock backend", zap.Error(err))
	}

	tokens, err := jwt.NewManager(cfg.JWT)
	if err != nil {
		logr.Fatal("invalid jwt config", zap.Error(err))
	}

	location := cfg.Location()
	validate := validator.New()
	metrics := service.NewMetricsService()

	semesterSvc := service.NewSemesterService(repository.NewSemesterRepository(db), validate, logr)
	timetableSvc := service.NewTimetableService(repository.NewTimetableRepository(db), grid, locker, validate, metrics, logr, service.TimetableConfig{
		LockWait:     cfg.Scheduler.LockWait,
		StoreTimeout: cfg.Scheduler.StoreTimeout,
		Location:     location,
	})
	exportSvc := service.NewExportService(timetableSvc, semesterSvc, location, logr)

	alertSvc, stopAlerts, err := startAlerts(cfg, redisClient, timetableSvc, semesterSvc, metrics, logr, location)
	if err != nil {
		logr.Fatal("failed to start alerts", zap.Error(err))
	}
	defer stopAlerts()

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metrics,
		Tokens:         tokens,
		Timetable:      handler.NewTimetableHandler(timetableSvc, exportSvc),
		Semesters:      handler.NewSemesterHandler(semesterSvc),
		Alerts:         handler.NewAlertHandler(alertSvc),
		Ops:            handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("db", db.DriverName()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()
	notifySystemd(logr, daemon.SdNotifyReady)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))
	notifySystemd(logr, daemon.SdNotifyStopping)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func loadGrid(cfg config.GridConfig) (*timegrid.Grid, error) {
	if cfg.File != "" {
		return timegrid.Load(cfg.File)
	}
	return timegrid.Stepped(cfg.Start, cfg.End, cfg.Step, cfg.Days)
}

func newLocker(cfg config.SchedulerConfig, client *redis.Client) (lock.Locker, error) {
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		if client == nil {
			return nil, errors.New("redis lock backend requires REDIS_ENABLED")
		}
		return lock.NewRedis(client, lock.RedisConfig{Prefix: "timetable:lock:", TTL: cfg.LockTTL}), nil
	case config.LockBackendLocal, "":
		return lock.NewLocal(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

// startAlerts builds the alert service and, when enabled, its queue and
// cron trigger. The returned func stops both.
func startAlerts(cfg *config.Config, client *redis.Client, timetable *service.TimetableService, semesters *service.SemesterService, metrics *service.MetricsService, logr *zap.Logger, location *time.Location) (*service.AlertService, func(), error) {
	var marker cache.Marker
	if client != nil {
		marker = cache.NewRedisMarker(client, "")
	}

	var notifier service.Notifier = service.NewLogNotifier(logr)
	if cfg.Alerts.TelegramToken != "" {
		telegram, err := service.NewTelegramNotifier(service.TelegramConfig{
			Token:  cfg.Alerts.TelegramToken,
			ChatID: cfg.Alerts.TelegramChatID,
		})
		if err != nil {
			return nil, nil, err
		}
		notifier = telegram
	}

	alerts := service.NewAlertService(timetable, semesters, marker, notifier, metrics, logr, service.AlertConfig{
		Horizon:  cfg.Alerts.Horizon,
		Location: location,
	})
	if !cfg.Alerts.Enabled {
		return alerts, func() {}, nil
	}

	queue := jobs.NewQueue("alerts", alerts.Deliver, jobs.QueueConfig{
		Workers:    cfg.Alerts.Workers,
		MaxRetries: cfg.Alerts.Retries,
		RatePerSec: float64(cfg.Alerts.RatePerSec),
		Logger:     logr,
		DeadLetter: alerts.DeadLetter,
	})
	queue.Start(context.Background())
	alerts.UseQueue(queue)

	scheduler, err := alerts.Schedule(cfg.Alerts.Cron, time.Minute)
	if err != nil {
		queue.Stop()
		return nil, nil, err
	}
	scheduler.Start()
	logr.Info("alert sweep scheduled", zap.String("cron", cfg.Alerts.Cron))

	return alerts, func() {
		<-scheduler.Stop().Done()
		queue.Stop()
	}, nil
}

func notifySystemd(logr *zap.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logr.Debug("sd_notify failed", zap.Error(err))
	}
}
