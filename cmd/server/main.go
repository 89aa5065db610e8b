package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablet-tracker/internal/auth"
	"tablet-tracker/internal/cache"
	"tablet-tracker/internal/config"
	"tablet-tracker/internal/database"
	"tablet-tracker/internal/db"
	h "tablet-tracker/internal/http"
	"tablet-tracker/internal/handlers"
	"tablet-tracker/internal/health"
	"tablet-tracker/internal/middleware"
	"tablet-tracker/internal/monitoring"
	"tablet-tracker/internal/services"
	"tablet-tracker/internal/store"
	"tablet-tracker/internal/store/memory"
	"tablet-tracker/internal/store/postgres"
	"tablet-tracker/internal/timeutil"
	"tablet-tracker/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Parse command-line flags
	port := flag.Int("port", 0, "Server port (overrides config)")
	storeKind := flag.String("store", "postgres", "Backing store: postgres or memory")
	migrateOnly := flag.Bool("migrate-only", false, "Apply pending migrations and exit")
	flag.Parse()

	cfg := config.Load()
	if *port != 0 {
		cfg.Server.Port = *port
	}
	timeutil.SetLocation(cfg.Server.Timezone)

	var (
		st   store.Store
		pool *pgxpool.Pool
	)
	switch *storeKind {
	case "postgres":
		pool = db.Connect(cfg)
		defer pool.Close()
		log.Printf("Connected to database: %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.NewMigrator(pool, migrations.FS).RunMigrations(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		if *migrateOnly {
			return
		}
		st = postgres.NewStore(pool, cfg.Reconcile.MaxTxAttempts, cfg.Reconcile.RetryBackoff())
	case "memory":
		log.Println("[Store] Using in-memory store; data is lost on exit")
		st = memory.NewStore(timeutil.Now)
	default:
		log.Fatalf("unknown store %q (want postgres or memory)", *storeKind)
	}

	// Initialize Redis cache (optional - graceful fallback if unavailable)
	if err := cache.Init(cfg.Redis); err != nil {
		log.Printf("[Cache] Redis unavailable: %v (bag status served uncached)", err)
	} else {
		log.Println("[Cache] Redis connected successfully")
	}
	defer cache.Close()

	monitor := monitoring.NewMonitoringServer(pool, cfg.Monitoring.Port)
	go monitor.Start()

	// Services
	settingsService := services.NewSystemSettingService(st, cfg.Reconcile.CardsPerTurn)
	resolverService := services.NewResolverService(st, monitor)
	submissionService := services.NewSubmissionService(st, settingsService, resolverService, monitor)
	ledgerService := services.NewLedgerService(st, monitor)
	reconcileService := services.NewReconcileService(st, cfg.Reconcile.Tolerance)
	inventoryService := services.NewInventoryService(st)
	purchaseOrderService := services.NewPurchaseOrderService(st)
	catalogService := services.NewCatalogService(st)

	// Handlers
	var pinger health.Pinger
	if pool != nil {
		pinger = pool
	}
	router := h.NewRouter(
		handlers.NewSubmissionHandler(submissionService, resolverService, ledgerService),
		handlers.NewInventoryHandler(inventoryService, reconcileService),
		handlers.NewPurchaseOrderHandler(purchaseOrderService, reconcileService),
		handlers.NewCatalogHandler(catalogService),
		handlers.NewSystemSettingHandler(settingsService),
		handlers.NewHealthHandler(health.NewHealthChecker(pinger, *storeKind, resolverService)),
		middleware.NewAuthMiddleware(auth.NewJWTManager(cfg)),
	)
	handler := middleware.NewCORS(cfg)(router)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Printf("Server running on %s (store: %s)", addr, *storeKind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
