package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dolos-sec/dolos/internal/api/routes"
	"github.com/dolos-sec/dolos/internal/blocklist"
	"github.com/dolos-sec/dolos/internal/clock"
	"github.com/dolos-sec/dolos/internal/config"
	"github.com/dolos-sec/dolos/internal/database"
	"github.com/dolos-sec/dolos/internal/detect"
	"github.com/dolos-sec/dolos/internal/engine"
	"github.com/dolos-sec/dolos/internal/geo"
	"github.com/dolos-sec/dolos/internal/history"
	"github.com/dolos-sec/dolos/internal/logger"
	"github.com/dolos-sec/dolos/internal/metrics"
	"github.com/dolos-sec/dolos/internal/models"
	"github.com/dolos-sec/dolos/internal/notify"
	"github.com/dolos-sec/dolos/internal/server"
	"github.com/dolos-sec/dolos/internal/stats"
	"github.com/dolos-sec/dolos/internal/version"
)

func main() {
	logDir := getLogDir()
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "dolos.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	mw := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(mw)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.Init(cfg.Environment == "development", mw)

	if len(os.Args) > 1 && os.Args[1] == "reset-password" {
		resetPassword(cfg)
		return
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = randomSecret()
		log.Printf("WARNING: DOLOS_JWT_SECRET not set, sessions will not survive a restart")
	}

	log.Printf("starting %s %s", version.Name, version.Full())

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	clk := clock.System()
	hist := history.NewStore(cfg.HistoryRetention, clk)
	registry := blocklist.NewRegistry(blocklist.NewGormStore(db), clk)
	eng := engine.New(hist, registry, clk)
	agg := stats.NewAggregator(cfg.MaxStatRecords)

	notifier := notify.NewNotifier(db)
	eng.SetAlerter(notifier)

	var resolver geo.Resolver
	if cfg.GeoIPPath != "" {
		mm, err := geo.OpenMaxMind(cfg.GeoIPPath)
		if err != nil {
			log.Printf("WARNING: geoip database unavailable: %v", err)
		} else {
			defer mm.Close()
			resolver = mm
		}
	}
	gate := geo.NewGate(resolver, geo.GateMode(cfg.GeoGateMode), cfg.GeoGateCountries)

	promReg := prometheus.NewRegistry()
	metrics.Register(promReg)

	srv, err := server.New(db, cfg, routes.Deps{
		Classifier: detect.NewClassifier(),
		Gate:       gate,
		Engine:     eng,
		Registry:   registry,
		Stats:      agg,
		Notifier:   notifier,
		Metrics:    promReg,
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	sched := cron.New()
	sweepSpec := "@every " + cfg.HistorySweepEvery.String()
	if _, err := sched.AddFunc(sweepSpec, func() {
		hist.Sweep()
		registry.SweepExpired()
	}); err != nil {
		log.Fatalf("schedule sweep: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("listening on :%s", cfg.HTTPPort)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getLogDir() string {
	logDir := "/app/data/logs"
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logDir = filepath.Join("data", "logs")
		_ = os.MkdirAll(logDir, 0o755)
	}
	return logDir
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("generate jwt secret: %v", err)
	}
	return hex.EncodeToString(buf)
}

func resetPassword(cfg config.Config) {
	if len(os.Args) != 4 {
		log.Fatalf("Usage: %s reset-password <email> <new-password>", os.Args[0])
	}
	email, newPassword := os.Args[2], os.Args[3]

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		log.Fatalf("user not found: %v", err)
	}
	if err := user.SetPassword(newPassword); err != nil {
		log.Fatalf("hash password: %v", err)
	}
	user.LockedUntil = nil
	user.FailedLoginAttempts = 0
	if err := db.Save(&user).Error; err != nil {
		log.Fatalf("save user: %v", err)
	}
	log.Printf("Password updated for %s", email)
}
