// Package store defines the unit-of-work contract the reconciliation services run against.
// Every ledger mutation and bag-binding decision executes inside RunInTx.
package store

import (
	"context"

	"tablet-tracker/internal/models"
)

// Tx is the set of reads and writes available inside one transaction.
type Tx interface {
	CreateTabletType(ctx context.Context, t *models.TabletType) error
	GetTabletType(ctx context.Context, id int) (*models.TabletType, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByName(ctx context.Context, name string) (*models.Product, error)

	CountReceives(ctx context.Context, poID int) (int, error)
	CreateReceive(ctx context.Context, r *models.Receive) error
	GetReceive(ctx context.Context, id int) (*models.Receive, error)
	// CloseReceive flags the receive closed and closes every bag inside it.
	CloseReceive(ctx context.Context, id int) error
	CreateBox(ctx context.Context, b *models.Box) error
	CreateBag(ctx context.Context, b *models.Bag) error
	GetBag(ctx context.Context, id int) (*models.BagCandidate, error)
	CloseBag(ctx context.Context, id int) error
	// FindBags returns matches ordered by received_date DESC, id DESC.
	FindBags(ctx context.Context, q models.BagQuery) ([]models.BagCandidate, error)

	CreateSubmission(ctx context.Context, s *models.Submission) error
	GetSubmission(ctx context.Context, id int, forUpdate bool) (*models.Submission, error)
	UpdateSubmissionBinding(ctx context.Context, id int, bagID, poID *int, needsReview bool) error
	UpdateSubmissionAssignment(ctx context.Context, id int, poID int, verified bool) error
	ListUnboundSubmissions(ctx context.Context) ([]models.Submission, error)
	ListNeedsReview(ctx context.Context) ([]models.Submission, error)
	// ListReconcileInputs loads every submission whose effective PO is poID,
	// ordered by created_at, id.
	ListReconcileInputs(ctx context.Context, poID int) ([]models.ReconcileInput, error)

	CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, id int, forUpdate bool) (*models.PurchaseOrder, error)
	CreatePOLine(ctx context.Context, line *models.POLine) error
	ListPOLines(ctx context.Context, poID int) ([]models.POLine, error)
	GetPOLineForItem(ctx context.Context, poID int, inventoryItemID string, forUpdate bool) (*models.POLine, error)
	UpdatePOLineCounts(ctx context.Context, lineID, good, damaged int) error
	UpdatePOAggregates(ctx context.Context, po *models.PurchaseOrder) error
	CreateReassignmentLog(ctx context.Context, entry *models.ReassignmentLog) error

	GetSetting(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSettings(ctx context.Context) ([]*models.SystemSetting, error)
	UpsertSetting(ctx context.Context, key, value, description, updatedBy string) error
}

// Store runs units of work. RunInTx commits only when fn returns nil.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}
