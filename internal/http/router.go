package http

import (
	"net/http"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tablet-tracker/internal/auth"
	"tablet-tracker/internal/handlers"
	"tablet-tracker/internal/middleware"
)

func NewRouter(
	submissionHandler *handlers.SubmissionHandler,
	inventoryHandler *handlers.InventoryHandler,
	purchaseOrderHandler *handlers.PurchaseOrderHandler,
	catalogHandler *handlers.CatalogHandler,
	systemSettingHandler *handlers.SystemSettingHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.PanicRecovery, middleware.MetricsMiddleware)

	managerOnly := authMiddleware.RequireRole(auth.RoleManager, auth.RoleAdmin)
	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return managerOnly(h).ServeHTTP
	}

	// Protected API routes - Submissions (any authenticated worker may record)
	submissionsAPI := r.PathPrefix("/api/submissions").Subrouter()
	submissionsAPI.Use(authMiddleware.Authenticate)
	submissionsAPI.HandleFunc("", submissionHandler.CreateSubmission).Methods("POST")
	submissionsAPI.HandleFunc("/needs-review", submissionHandler.ListNeedsReview).Methods("GET")
	submissionsAPI.HandleFunc("/backfill", guard(submissionHandler.Backfill)).Methods("POST")
	submissionsAPI.HandleFunc("/{id:[0-9]+}", submissionHandler.GetSubmission).Methods("GET")
	submissionsAPI.HandleFunc("/{id:[0-9]+}/verify", guard(submissionHandler.Verify)).Methods("POST")
	submissionsAPI.HandleFunc("/{id:[0-9]+}/reassign", guard(submissionHandler.Reassign)).Methods("POST")
	submissionsAPI.HandleFunc("/{id:[0-9]+}/resolve", guard(submissionHandler.ResolveReview)).Methods("POST")

	// Protected API routes - Receiving hierarchy
	receivesAPI := r.PathPrefix("/api/receives").Subrouter()
	receivesAPI.Use(authMiddleware.Authenticate)
	receivesAPI.HandleFunc("", inventoryHandler.CreateReceive).Methods("POST")
	receivesAPI.HandleFunc("/{id:[0-9]+}", inventoryHandler.GetReceive).Methods("GET")
	receivesAPI.HandleFunc("/{id:[0-9]+}/boxes", inventoryHandler.CreateBox).Methods("POST")
	receivesAPI.HandleFunc("/{id:[0-9]+}/close", inventoryHandler.CloseReceive).Methods("POST")

	boxesAPI := r.PathPrefix("/api/boxes").Subrouter()
	boxesAPI.Use(authMiddleware.Authenticate)
	boxesAPI.HandleFunc("/{id:[0-9]+}/bags", inventoryHandler.CreateBag).Methods("POST")

	bagsAPI := r.PathPrefix("/api/bags").Subrouter()
	bagsAPI.Use(authMiddleware.Authenticate)
	bagsAPI.HandleFunc("", inventoryHandler.FindBags).Methods("GET")
	bagsAPI.HandleFunc("/status", inventoryHandler.BagStatus).Methods("GET")
	bagsAPI.HandleFunc("/{id:[0-9]+}/close", inventoryHandler.CloseBag).Methods("POST")

	// Protected API routes - Purchase orders
	poAPI := r.PathPrefix("/api/purchase-orders").Subrouter()
	poAPI.Use(authMiddleware.Authenticate)
	poAPI.HandleFunc("", guard(purchaseOrderHandler.CreatePurchaseOrder)).Methods("POST")
	poAPI.HandleFunc("/{id:[0-9]+}", purchaseOrderHandler.GetPurchaseOrder).Methods("GET")
	poAPI.HandleFunc("/{id:[0-9]+}/running-totals", purchaseOrderHandler.RunningTotals).Methods("GET")

	// Protected API routes - Catalogue
	r.HandleFunc("/api/products", guard(catalogHandler.CreateProduct)).Methods("POST")
	r.HandleFunc("/api/tablet-types", guard(catalogHandler.CreateTabletType)).Methods("POST")

	// Protected API routes - System Settings
	settingsAPI := r.PathPrefix("/api/settings").Subrouter()
	settingsAPI.Use(authMiddleware.Authenticate)
	settingsAPI.HandleFunc("", systemSettingHandler.ListSettings).Methods("GET")
	settingsAPI.HandleFunc("/{key}", systemSettingHandler.GetSetting).Methods("GET")
	settingsAPI.HandleFunc("/{key}", guard(systemSettingHandler.UpdateSetting)).Methods("PUT")

	// Health endpoints (no auth required)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")

	// Metrics endpoint (Prometheus format)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
