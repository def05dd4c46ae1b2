package routes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/santara-pay/santara_pay/internal/budget"
	"github.com/santara-pay/santara_pay/internal/config"
	"github.com/santara-pay/santara_pay/internal/credit"
	"github.com/santara-pay/santara_pay/internal/ledger"
	"github.com/santara-pay/santara_pay/internal/middleware"
	"github.com/santara-pay/santara_pay/internal/notification"
	"github.com/santara-pay/santara_pay/internal/reconcile"
	"github.com/santara-pay/santara_pay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB, Cache and
// Alerts may be nil in development; the wiring falls back to in-memory
// backends and the log-based notifier.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Alerts *kafka.Writer
	Owners reconcile.OwnerSource
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	// Storage backends.
	var (
		walletRepo wallet.Repository
		ledgerLog  ledger.Log
		creditRepo credit.Repository
		budgetRepo budget.Repository
	)
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
		ledgerLog = ledger.NewPostgresLog(d.DB)
		creditRepo = credit.NewPostgresRepository(d.DB)
		budgetRepo = budget.NewPostgresRepository(d.DB)
	} else {
		memWallets := wallet.NewMemoryRepository()
		walletRepo = memWallets
		ledgerLog = ledger.NewMemoryLog(memWallets)
		creditRepo = credit.NewMemoryRepository()
		budgetRepo = budget.NewMemoryRepository()
	}

	var notifier notification.Notifier
	if d.Alerts != nil {
		notifier = notification.NewKafkaNotifier(d.Alerts)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	balanceCache := wallet.NewCache(d.Cache)

	// Services and handlers.
	processor := ledger.NewProcessor(walletRepo, ledgerLog, 0)
	ledgerSvc := ledger.NewService(walletRepo, processor, ledgerLog, balanceCache)
	creditMgr := credit.NewManager(walletRepo, creditRepo, processor)
	budgetSvc := budget.NewService(budgetRepo, notifier)
	engine := reconcile.NewEngine(walletRepo, ledgerLog, processor, d.Owners,
		notifier, balanceCache, d.Logger, d.Cfg.ReconWorkers)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDKey).(string)
		return c.JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterLedgerRoutes(api, ledger.NewHandler(ledgerSvc))
	RegisterCreditRoutes(api, credit.NewHandler(creditMgr))
	RegisterBudgetRoutes(api, budget.NewHandler(budgetSvc))
	RegisterReconcileRoutes(api, reconcile.NewHandler(engine), d.Cache)

	return nil
}
