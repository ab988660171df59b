package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"propertybook/internal/audit"
	"propertybook/internal/config"
	"propertybook/internal/database"
	"propertybook/internal/domain/rate"
	"propertybook/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, database.Options{}, zl)
	if err != nil {
		zl.Fatal("db connect failed", zap.Error(err))
	}

	weekend, err := cfg.WeekendWeekdays()
	if err != nil {
		zl.Fatal("weekend days", zap.Error(err))
	}
	report, err := audit.New(db, rate.NewCalendar(cfg.Location(), weekend), zl).Run(context.Background())
	if err != nil {
		zl.Fatal("audit failed", zap.Error(err))
	}

	zl.Info("audit completed",
		zap.Int("bookings", report.Bookings),
		zap.Int("payments", report.Payments),
		zap.Int("violations", len(report.Violations)),
	)
	if !report.OK() {
		_ = zl.Sync()
		os.Exit(1)
	}
}
