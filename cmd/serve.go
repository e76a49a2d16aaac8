package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"

	"staking-ledger/handlers"
	"staking-ledger/middleware"
	"staking-ledger/services"
	"staking-ledger/utils"
	"staking-ledger/utils/logger"
	"staking-ledger/workers"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, staking scheduler and background workers",
		RunE:  serve,
	}
}

func serve(c *cobra.Command, _ []string) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, ledger, closeStore, err := openLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, err := services.NewSessionManager(repo, ledger, cfg.Session, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sessions.Shutdown(); err != nil {
			log.Warnf("scheduler shutdown: %v", err)
		}
	}()

	restored, err := sessions.Restore(ctx)
	if err != nil {
		return err
	}
	log.Infof("✅ Restored %d open session(s)", restored)

	h, err := handlers.NewHandler(ledger, sessions, log)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName: "staking-ledger",
	})
	app.Use(middleware.RequestLogger(log.Named("access")))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Admin-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))
	handlers.SetupRoutes(app, h, cfg.Admin)

	go workers.PollExpiredSessions(ctx, sessions, cfg.Session.SweepEvery, log)

	if cfg.Snapshot.Enabled() {
		r2, err := utils.NewR2Client(ctx, cfg.Snapshot)
		if err != nil {
			return err
		}
		upload := workers.SnapshotFunc(func(ctx context.Context) (string, error) {
			return ledger.UploadSnapshot(ctx, r2)
		})
		workers.NewSnapshotWorker(upload, cfg.Snapshot.Interval, log).Start(ctx)
	} else {
		log.Info("⚠️  Snapshot storage not configured, snapshot worker disabled")
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Errorf("Server error: %v", err)
			stop()
		}
	}()

	log.Infof("✅ Server running on %s (store: %s)", cfg.HTTPAddr, cfg.Store.Driver)
	log.Infof("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Info("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}
