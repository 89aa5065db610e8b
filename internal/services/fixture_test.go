package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store/memory"
)

const testItem = "ITEM-IBU-200"

// tickingClock returns a strictly increasing time on every call.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTickingClock() *tickingClock {
	return &tickingClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	clock *tickingClock
	store *memory.Store

	settings    *SystemSettingService
	resolver    *ResolverService
	submissions *SubmissionService
	ledger      *LedgerService
	inventory   *InventoryService
	orders      *PurchaseOrderService
	catalog     *CatalogService
	reconcile   *ReconcileService
	events      *recordingNotifier

	tabletType *models.TabletType
	product    *models.Product
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *recordingNotifier) Notify(kind, _ string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.kinds {
		if k == kind {
			c++
		}
	}
	return c
}

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newTickingClock()
	st := memory.NewStore(clock.Now)
	events := &recordingNotifier{}

	f := &fixture{t: t, ctx: context.Background(), clock: clock, store: st, events: events}
	f.settings = NewSystemSettingService(st, 4)
	f.resolver = NewResolverService(st, events)
	f.submissions = NewSubmissionService(st, f.settings, f.resolver, events)
	f.submissions.Now = clock.Now
	f.ledger = NewLedgerService(st, events)
	f.inventory = NewInventoryService(st)
	f.inventory.Now = clock.Now
	f.orders = NewPurchaseOrderService(st)
	f.catalog = NewCatalogService(st)
	f.reconcile = NewReconcileService(st, DefaultTolerance)

	tt, err := f.catalog.CreateTabletType(f.ctx, &models.CreateTabletTypeRequest{Name: "Ibuprofen 200mg", InventoryItemID: testItem})
	if err != nil {
		t.Fatalf("CreateTabletType: %v", err)
	}
	f.tabletType = tt
	p, err := f.catalog.CreateProduct(f.ctx, &models.CreateProductRequest{
		Name:               "IBU-24",
		TabletTypeID:       tt.ID,
		PackagesPerDisplay: intPtr(6),
		TabletsPerPackage:  intPtr(12),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	f.product = p
	return f
}

// purchaseOrder creates a PO with one line for testItem.
func (f *fixture) purchaseOrder(number string, ordered int) *models.PurchaseOrder {
	f.t.Helper()
	po, err := f.orders.CreatePurchaseOrder(f.ctx, &models.CreatePurchaseOrderRequest{
		PONumber:        number,
		OrderedQuantity: ordered,
		Lines:           []models.CreatePOLineRequest{{InventoryItemID: testItem, QuantityOrdered: ordered}},
	})
	if err != nil {
		f.t.Fatalf("CreatePurchaseOrder %s: %v", number, err)
	}
	return po
}

// receiveBag logs a receive on poID holding a single bag at box/bag.
func (f *fixture) receiveBag(poID, box, bag, label int, received time.Time) *models.Receive {
	f.t.Helper()
	rec, err := f.inventory.CreateReceive(f.ctx, &models.CreateReceiveRequest{
		POID:         poID,
		ReceivedDate: &received,
		Boxes: []models.CreateBoxRequest{{
			BoxNumber: box,
			Bags:      []models.CreateBagRequest{{BagNumber: bag, TabletTypeID: f.tabletType.ID, LabelCount: label}},
		}},
	})
	if err != nil {
		f.t.Fatalf("CreateReceive: %v", err)
	}
	return rec
}

func bagIDOf(rec *models.Receive) int {
	return rec.Boxes[0].Bags[0].ID
}

// packaged records a loose-only packaged submission.
func (f *fixture) packaged(loose, damaged int, poHint *int, box, bag *int) *models.SubmissionResult {
	f.t.Helper()
	res, err := f.submissions.RecordSubmission(f.ctx, &models.CreateSubmissionRequest{
		EmployeeName:   "maria",
		ProductName:    f.product.Name,
		SubmissionType: models.SubmissionPackaged,
		LooseTablets:   loose,
		DamagedTablets: damaged,
		BoxNumber:      box,
		BagNumber:      bag,
		POHint:         poHint,
	})
	if err != nil {
		f.t.Fatalf("RecordSubmission: %v", err)
	}
	return res
}

func (f *fixture) line(poID int) models.POLine {
	f.t.Helper()
	po, err := f.orders.GetPurchaseOrder(f.ctx, poID)
	if err != nil {
		f.t.Fatalf("GetPurchaseOrder %d: %v", poID, err)
	}
	for _, l := range po.Lines {
		if l.InventoryItemID == testItem {
			return l
		}
	}
	f.t.Fatalf("PO %d has no %s line", poID, testItem)
	return models.POLine{}
}

func (f *fixture) po(poID int) *models.PurchaseOrder {
	f.t.Helper()
	po, err := f.orders.GetPurchaseOrder(f.ctx, poID)
	if err != nil {
		f.t.Fatalf("GetPurchaseOrder %d: %v", poID, err)
	}
	return po
}
