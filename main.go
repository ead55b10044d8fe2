package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scavenger-hunt/config"
	"scavenger-hunt/handlers"
	"scavenger-hunt/middleware"
	"scavenger-hunt/repository"
	"scavenger-hunt/services"
	"scavenger-hunt/utils"
	"scavenger-hunt/workers"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	seedPath := flag.String("seed", "", "apply a catalog YAML file (\"default\" for the built-in prize list) before serving")
	seedOnly := flag.Bool("seed-only", false, "exit after seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	if err := utils.InitLogger(utils.LogOptions{
		Level:      cfg.LogLevel,
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}); err != nil {
		log.Fatalf("❌ failed to init logger: %v", err)
	}
	defer utils.Logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		utils.Logger.Fatal("failed to open store", zap.Error(err))
	}

	// Leave the interface nil (not a typed nil) when Redis is off.
	var cache services.Cache
	if cfg.RedisAddr != "" {
		rc := utils.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			utils.Sugar.Warnf("⚠️ Redis at %s unreachable, progress cache disabled: %v", cfg.RedisAddr, err)
		} else {
			cache = rc
			defer rc.Close()
		}
	}

	users := services.NewUserService(store, cfg.StoreTimeout)
	catalog := services.NewCatalogService(store, cfg.StoreTimeout, cache, cfg.MaxPrizeClaims)
	claims := services.NewClaimService(store, cfg.StoreTimeout, cfg.MaxPrizeClaims)

	if err := applySeed(ctx, catalog, *seedPath, cfg.CatalogSeedPath); err != nil {
		utils.Logger.Fatal("catalog seed failed", zap.Error(err))
	}
	if *seedOnly {
		return
	}

	var identity services.IdentityProvider
	switch cfg.IdentityMode {
	case "remote":
		identity = services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.AuthServiceToken)
	default:
		identity = services.NewJWTIdentity(cfg.JWTSecret)
	}

	deps := handlers.Deps{
		Identity:      identity,
		Users:         users,
		Redeem:        services.NewRedemptionService(store, cfg.StoreTimeout, cache),
		Progress:      services.NewProgressService(store, cfg.StoreTimeout, cache, cfg.ProgressCacheTTL),
		Claims:        claims,
		Catalog:       catalog,
		RedeemLimiter: middleware.NewRateLimiter(cfg.RedeemRatePerMinute),
	}

	if cfg.R2Enabled() {
		uploader, err := utils.NewR2Uploader(ctx, utils.R2Options{
			AccountID:       cfg.CloudflareAccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2BucketName,
			CDNBaseURL:      cfg.CDNBaseURL,
		})
		if err != nil {
			utils.Logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		exporter := workers.NewLeaderboardExportWorker(users, uploader, cfg.LeaderboardExportInterval, cfg.LeaderboardSize)
		exporter.Start(ctx)
		deps.Exporter = exporter
	} else {
		utils.Sugar.Info("ℹ️ R2 not configured, leaderboard export disabled")
	}

	sched, err := claims.StartInventoryScheduler(cfg.InventorySyncInterval)
	if err != nil {
		utils.Logger.Fatal("failed to start inventory scheduler", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    64 * 1024,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	handlers.Setup(app, deps)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.AppPort)); err != nil {
			utils.Sugar.Errorf("Server error: %v", err)
			stop()
		}
	}()

	utils.Sugar.Infof("✅ Server running on http://localhost:%d", cfg.AppPort)
	utils.Sugar.Infof("✅ Store: %s, identity: %s, cache: %t", cfg.StoreDriver, cfg.IdentityMode, cache != nil)
	utils.Sugar.Infof("✅ Inventory reconciliation every %s", cfg.InventorySyncInterval)
	utils.Sugar.Infof("✅ CORS configured for origins: %s", cfg.Origins())

	<-ctx.Done()
	utils.Sugar.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		utils.Sugar.Warnf("⚠️ HTTP shutdown: %v", err)
	}
	shutdownScheduler(sched)
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.StoreDriver == "memory" {
		utils.Sugar.Warn("⚠️ STORE_DRIVER=memory: data is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := repository.NewGormStore(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// applySeed loads the catalog named by -seed, falling back to CATALOG_SEED_PATH.
func applySeed(ctx context.Context, catalog *services.CatalogService, flagPath, envPath string) error {
	path := flagPath
	if path == "" {
		path = envPath
	}
	if path == "" {
		return nil
	}

	var seed *services.CatalogSeed
	if path == "default" {
		seed = services.DefaultCatalogSeed()
	} else {
		var err error
		if seed, err = services.LoadCatalogSeed(path); err != nil {
			return err
		}
	}
	_, err := catalog.ApplySeed(ctx, seed)
	return err
}

func shutdownScheduler(s gocron.Scheduler) {
	if err := s.Shutdown(); err != nil {
		utils.Sugar.Warnf("⚠️ scheduler shutdown: %v", err)
	}
}
