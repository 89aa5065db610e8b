package health

import (
	"context"
	"time"

	"tablet-tracker/internal/cache"
	"tablet-tracker/internal/models"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReviewBacklog is satisfied by *services.ResolverService.
type ReviewBacklog interface {
	ListNeedsReview(ctx context.Context) ([]models.NeedsReviewItem, error)
}

type HealthChecker struct {
	db        Pinger
	storeKind string
	backlog   ReviewBacklog
	started   time.Time
}

type HealthStatus struct {
	Status   string         `json:"status"`
	Database DatabaseHealth `json:"database"`
	Cache    string         `json:"cache"`
}

type DatabaseHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

// DetailedStatus adds the store in use and the operator backlog to the readiness view.
type DetailedStatus struct {
	HealthStatus
	Store         string `json:"store"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	NeedsReview   int    `json:"needs_review"`
	BacklogError  string `json:"backlog_error,omitempty"`
}

// NewHealthChecker builds a checker. A nil db means the in-memory store is in
// use and the database check always passes. backlog may be nil.
func NewHealthChecker(db Pinger, storeKind string, backlog ReviewBacklog) *HealthChecker {
	return &HealthChecker{db: db, storeKind: storeKind, backlog: backlog, started: time.Now()}
}

func (h *HealthChecker) CheckBasic() HealthStatus {
	dbHealth := h.checkDatabase()

	status := "healthy"
	if dbHealth.Status != "healthy" {
		status = "unhealthy"
	}

	// The cache is optional: a missing Redis degrades reads, it does not fail readiness.
	cacheStatus := "disabled"
	if cache.GetClient() != nil {
		cacheStatus = "unhealthy"
		if cache.IsHealthy() {
			cacheStatus = "healthy"
		}
	}

	return HealthStatus{
		Status:   status,
		Database: dbHealth,
		Cache:    cacheStatus,
	}
}

func (h *HealthChecker) checkDatabase() DatabaseHealth {
	if h.db == nil {
		return DatabaseHealth{Status: "healthy"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return DatabaseHealth{
			Status:       "unhealthy",
			ResponseTime: responseTime,
		}
	}

	return DatabaseHealth{
		Status:       "healthy",
		ResponseTime: responseTime,
	}
}

// CheckDetailed reports readiness plus the size of the review queue. A failing
// backlog query is reported in the body and does not change Status.
func (h *HealthChecker) CheckDetailed(ctx context.Context) DetailedStatus {
	status := DetailedStatus{
		HealthStatus:  h.CheckBasic(),
		Store:         h.storeKind,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.backlog == nil {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	items, err := h.backlog.ListNeedsReview(ctx)
	if err != nil {
		status.BacklogError = err.Error()
		return status
	}
	status.NeedsReview = len(items)
	return status
}
