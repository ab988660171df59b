package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"propertybook/internal/config"
	"propertybook/internal/database"
	"propertybook/internal/domain/property"
	"propertybook/internal/domain/rate"
	"propertybook/internal/pkg/jwt"
	"propertybook/internal/pkg/logger"
)

func main() {
	file := flag.String("file", "config/properties.toml", "property catalog")
	adminID := flag.Int64("admin-id", 1, "actor id for the printed admin token (0 to skip)")
	flag.Parse()

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
	zl.Info("running AutoMigrate")
	if err := database.Migrate(db); err != nil {
		zl.Fatal("migrate failed", zap.Error(err))
	}

	f, err := os.Open(*file)
	if err != nil {
		zl.Fatal("open catalog", zap.Error(err))
	}
	defer f.Close()

	weekend, err := cfg.WeekendWeekdays()
	if err != nil {
		zl.Fatal("weekend days", zap.Error(err))
	}
	props, err := property.LoadCatalog(f, rate.NewCalendar(cfg.Location(), weekend))
	if err != nil {
		zl.Fatal("load catalog", zap.Error(err))
	}

	repo := property.NewRepository(db)
	ctx := context.Background()
	for i := range props {
		if err := repo.Upsert(ctx, &props[i]); err != nil {
			zl.Fatal("upsert property", zap.String("name", props[i].Name), zap.Error(err))
		}
		zl.Info("property seeded",
			zap.Int64("id", props[i].ID),
			zap.String("name", props[i].Name),
			zap.Int("seasons", len(props[i].Seasons)))
	}

	stored, err := repo.List(ctx)
	if err != nil {
		zl.Fatal("list properties", zap.Error(err))
	}
	zl.Info("catalog ready", zap.Int("properties", len(stored)))
	for _, p := range stored {
		zl.Info("property",
			zap.Int64("id", p.ID),
			zap.String("name", p.Name),
			zap.Int64("base_rate", p.BaseRate),
			zap.Int("capacity", p.Capacity),
			zap.Int("capacity_max", p.CapacityMax),
			zap.Int("seasons", len(p.Seasons)))
	}

	if *adminID > 0 {
		token, err := jwt.New(cfg.JWTSecret, cfg.JWTTTLDuration()).GenerateToken(*adminID, jwt.RoleAdmin)
		if err != nil {
			zl.Fatal("sign admin token", zap.Error(err))
		}
		fmt.Printf("admin token (actor %d): %s\n", *adminID, token)
	}
}
