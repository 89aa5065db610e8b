package health

import (
	"context"
	"errors"
	"testing"

	"tablet-tracker/internal/models"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeBacklog struct {
	items []models.NeedsReviewItem
	err   error
}

func (b fakeBacklog) ListNeedsReview(context.Context) ([]models.NeedsReviewItem, error) {
	return b.items, b.err
}

func TestCheckBasicWithoutDatabase(t *testing.T) {
	status := NewHealthChecker(nil, "memory", nil).CheckBasic()
	if status.Status != "healthy" || status.Database.Status != "healthy" {
		t.Fatalf("status = %+v", status)
	}
}

func TestCheckBasicFailsWhenPingFails(t *testing.T) {
	status := NewHealthChecker(fakePinger{err: errors.New("refused")}, "postgres", nil).CheckBasic()
	if status.Status != "unhealthy" || status.Database.Status != "unhealthy" {
		t.Fatalf("status = %+v", status)
	}
}

func TestCheckDetailedCountsReviewBacklog(t *testing.T) {
	backlog := fakeBacklog{items: make([]models.NeedsReviewItem, 3)}
	status := NewHealthChecker(fakePinger{}, "postgres", backlog).CheckDetailed(context.Background())
	if status.Store != "postgres" || status.NeedsReview != 3 || status.BacklogError != "" {
		t.Fatalf("status = %+v", status)
	}
	if status.Status != "healthy" {
		t.Fatalf("overall = %q", status.Status)
	}
}

func TestCheckDetailedReportsBacklogFailure(t *testing.T) {
	backlog := fakeBacklog{err: errors.New("timeout")}
	status := NewHealthChecker(nil, "memory", backlog).CheckDetailed(context.Background())
	if status.BacklogError != "timeout" || status.Status != "healthy" {
		t.Fatalf("status = %+v", status)
	}
}
