package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
	"tablet-tracker/internal/store/memory"
)

// verified records a loose-only submission hinted to poID and verifies it there.
func (f *fixture) verified(poID, good, damaged int) int {
	f.t.Helper()
	res := f.packaged(good, damaged, &poID, nil, nil)
	if _, err := f.ledger.AssignAndVerify(f.ctx, res.SubmissionID, poID); err != nil {
		f.t.Fatalf("AssignAndVerify: %v", err)
	}
	return res.SubmissionID
}

func assertLine(t *testing.T, f *fixture, poID, good, damaged int) {
	t.Helper()
	l := f.line(poID)
	if l.GoodCount != good || l.DamagedCount != damaged {
		t.Fatalf("PO %d line = %d/%d, want %d/%d", poID, l.GoodCount, l.DamagedCount, good, damaged)
	}
	po := f.po(poID)
	if po.GoodCount != good || po.DamagedCount != damaged || po.RemainingQuantity != po.OrderedQuantity-good-damaged {
		t.Fatalf("PO %d aggregates = %d/%d remaining %d, want %d/%d remaining %d",
			poID, po.GoodCount, po.DamagedCount, po.RemainingQuantity, good, damaged, po.OrderedQuantity-good-damaged)
	}
}

func TestReassignMovesVerifiedContribution(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	poB := f.purchaseOrder("PO-B", 200)

	f.verified(poA.ID, 60, 5)
	moving := f.verified(poA.ID, 40, 5)
	f.verified(poB.ID, 50, 0)
	assertLine(t, f, poA.ID, 100, 10)
	assertLine(t, f, poB.ID, 50, 0)

	res, err := f.ledger.Reassign(f.ctx, ReassignCommand{
		SubmissionID:    moving,
		FromPOID:        poA.ID,
		ToPOID:          poB.ID,
		ConfirmOverride: true,
		Actor:           "supervisor",
	})
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if res.Moved.Good != 40 || res.Moved.Damaged != 5 {
		t.Fatalf("moved = %+v, want 40/5", res.Moved)
	}
	assertLine(t, f, poA.ID, 60, 5)
	assertLine(t, f, poB.ID, 90, 5)

	sub, _ := f.submissions.GetSubmission(f.ctx, moving)
	if *sub.AssignedPOID != poB.ID || !sub.POAssignmentVerified {
		t.Fatalf("submission after reassign = %+v", sub)
	}

	logs := f.store.ReassignmentLogs()
	if len(logs) != 1 {
		t.Fatalf("audit rows = %d, want 1", len(logs))
	}
	entry := logs[0]
	if entry.FromPOID != poA.ID || entry.ToPOID != poB.ID || entry.Good != 40 || entry.Damaged != 5 || entry.Actor != "supervisor" {
		t.Fatalf("audit row = %+v", entry)
	}
	if entry.CorrelationID == "" || entry.CorrelationID != res.Audit.CorrelationID {
		t.Fatalf("correlation id = %q, result %q", entry.CorrelationID, res.Audit.CorrelationID)
	}
	if f.events.count(EventReassigned) != 1 {
		t.Fatalf("reassign notifications = %d, want 1", f.events.count(EventReassigned))
	}
}

func TestReassignFloorsOldLineAtZero(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	poB := f.purchaseOrder("PO-B", 200)
	moving := f.verified(poA.ID, 40, 5)

	// Simulate a line that was corrected by hand below the submission's contribution.
	err := f.store.RunInTx(f.ctx, func(tx store.Tx) error {
		line, err := tx.GetPOLineForItem(f.ctx, poA.ID, testItem, true)
		if err != nil {
			return err
		}
		if err := tx.UpdatePOLineCounts(f.ctx, line.ID, 10, 0); err != nil {
			return err
		}
		po, err := tx.GetPurchaseOrder(f.ctx, poA.ID, true)
		if err != nil {
			return err
		}
		return recomputeAggregates(f.ctx, tx, po)
	})
	if err != nil {
		t.Fatalf("seed line: %v", err)
	}

	if _, err := f.ledger.Reassign(f.ctx, ReassignCommand{SubmissionID: moving, FromPOID: poA.ID, ToPOID: poB.ID, ConfirmOverride: true}); err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	assertLine(t, f, poA.ID, 0, 0)
	assertLine(t, f, poB.ID, 40, 5)
}

func TestReassignUnverifiedMovesOnlyAssignment(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	poB := f.purchaseOrder("PO-B", 200)
	res := f.packaged(40, 5, &poA.ID, nil, nil)

	_, err := f.ledger.Reassign(f.ctx, ReassignCommand{SubmissionID: res.SubmissionID, FromPOID: poA.ID, ToPOID: poB.ID})
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("unconfirmed reassign: expected ValidationError, got %v", err)
	}

	out, err := f.ledger.Reassign(f.ctx, ReassignCommand{SubmissionID: res.SubmissionID, FromPOID: poA.ID, ToPOID: poB.ID, ConfirmOverride: true})
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if out.Moved != (models.Contribution{}) {
		t.Fatalf("moved = %+v, want nothing", out.Moved)
	}
	assertLine(t, f, poA.ID, 0, 0)
	assertLine(t, f, poB.ID, 0, 0)
	sub, _ := f.submissions.GetSubmission(f.ctx, res.SubmissionID)
	if *sub.AssignedPOID != poB.ID || sub.POAssignmentVerified {
		t.Fatalf("submission = %+v", sub)
	}
}

func TestReassignVerifiedNeedsOverride(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	poB := f.purchaseOrder("PO-B", 200)
	moving := f.verified(poA.ID, 40, 5)

	_, err := f.ledger.Reassign(f.ctx, ReassignCommand{SubmissionID: moving, FromPOID: poA.ID, ToPOID: poB.ID})
	var vl *models.VerificationLockedError
	if !errors.As(err, &vl) {
		t.Fatalf("expected VerificationLockedError, got %v", err)
	}
	assertLine(t, f, poA.ID, 40, 5)
}

func TestReassignRejectsStaleSource(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	poB := f.purchaseOrder("PO-B", 200)
	poC := f.purchaseOrder("PO-C", 200)
	moving := f.verified(poA.ID, 40, 5)

	_, err := f.ledger.Reassign(f.ctx, ReassignCommand{SubmissionID: moving, FromPOID: poC.ID, ToPOID: poB.ID, ConfirmOverride: true})
	var ce *models.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	_, err = f.ledger.Reassign(f.ctx, ReassignCommand{SubmissionID: moving, FromPOID: poA.ID, ToPOID: poA.ID, ConfirmOverride: true})
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("same-PO reassign: expected ValidationError, got %v", err)
	}
}

func TestReassignWithoutTargetLineLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	other, err := f.orders.CreatePurchaseOrder(f.ctx, &models.CreatePurchaseOrderRequest{
		PONumber:        "PO-OTHER",
		OrderedQuantity: 100,
		Lines:           []models.CreatePOLineRequest{{InventoryItemID: "ITEM-ASP-81", QuantityOrdered: 100}},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	moving := f.verified(poA.ID, 40, 5)

	_, err = f.ledger.Reassign(f.ctx, ReassignCommand{SubmissionID: moving, FromPOID: poA.ID, ToPOID: other.ID, ConfirmOverride: true})
	var nl *models.NoMatchingLineError
	if !errors.As(err, &nl) {
		t.Fatalf("expected NoMatchingLineError, got %v", err)
	}
	assertLine(t, f, poA.ID, 40, 5)
	sub, _ := f.submissions.GetSubmission(f.ctx, moving)
	if *sub.AssignedPOID != poA.ID {
		t.Fatalf("assignment moved despite failure: %+v", sub)
	}
	if n := len(f.store.ReassignmentLogs()); n != 0 {
		t.Fatalf("audit rows = %d, want 0", n)
	}
}

// auditFailingStore fails every reassignment audit write after the ledger
// rows have already been changed inside the transaction.
type auditFailingStore struct {
	*memory.Store
}

type auditFailingTx struct {
	store.Tx
}

var errAuditDown = errors.New("audit table unavailable")

func (auditFailingTx) CreateReassignmentLog(context.Context, *models.ReassignmentLog) error {
	return errAuditDown
}

func (s auditFailingStore) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.RunInTx(ctx, func(tx store.Tx) error {
		return fn(auditFailingTx{Tx: tx})
	})
}

func TestReassignRollsBackWhenAuditFails(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	poB := f.purchaseOrder("PO-B", 200)
	moving := f.verified(poA.ID, 40, 5)
	f.verified(poB.ID, 50, 0)

	failing := NewLedgerService(auditFailingStore{Store: f.store}, nil)
	_, err := failing.Reassign(f.ctx, ReassignCommand{SubmissionID: moving, FromPOID: poA.ID, ToPOID: poB.ID, ConfirmOverride: true})
	if !errors.Is(err, errAuditDown) {
		t.Fatalf("expected audit failure, got %v", err)
	}

	assertLine(t, f, poA.ID, 40, 5)
	assertLine(t, f, poB.ID, 50, 0)
	sub, _ := f.submissions.GetSubmission(f.ctx, moving)
	if *sub.AssignedPOID != poA.ID {
		t.Fatalf("assignment committed despite rollback: %+v", sub)
	}
}

func TestAssignAndVerify(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	res := f.packaged(40, 5, nil, nil, nil)

	sub, err := f.ledger.AssignAndVerify(f.ctx, res.SubmissionID, poA.ID)
	if err != nil {
		t.Fatalf("AssignAndVerify: %v", err)
	}
	if !sub.POAssignmentVerified || *sub.AssignedPOID != poA.ID {
		t.Fatalf("submission = %+v", sub)
	}
	assertLine(t, f, poA.ID, 40, 5)

	_, err = f.ledger.AssignAndVerify(f.ctx, res.SubmissionID, poA.ID)
	var vl *models.VerificationLockedError
	if !errors.As(err, &vl) {
		t.Fatalf("second verify: expected VerificationLockedError, got %v", err)
	}
	assertLine(t, f, poA.ID, 40, 5)
}

func TestAssignAndVerifyUnknownPO(t *testing.T) {
	f := newFixture(t)
	res := f.packaged(40, 5, nil, nil, nil)

	_, err := f.ledger.AssignAndVerify(f.ctx, res.SubmissionID, 9999)
	var nf *models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestConcurrentVerifiesKeepLedgerConsistent(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 10000)

	const workers = 20
	ids := make([]int, workers)
	for i := range ids {
		ids[i] = f.packaged(10, 1, &poA.ID, nil, nil).SubmissionID
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, id := range ids {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := f.ledger.AssignAndVerify(f.ctx, id, poA.ID); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("AssignAndVerify: %v", err)
	}
	assertLine(t, f, poA.ID, workers*10, workers)
}

// skewedAggregateStore writes one extra good unit into every PO aggregate so
// the post-mutation check sees aggregates that disagree with the lines.
type skewedAggregateStore struct {
	*memory.Store
}

type skewedAggregateTx struct {
	store.Tx
}

func (t skewedAggregateTx) UpdatePOAggregates(ctx context.Context, po *models.PurchaseOrder) error {
	skewed := *po
	skewed.GoodCount++
	return t.Tx.UpdatePOAggregates(ctx, &skewed)
}

func (s skewedAggregateStore) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.RunInTx(ctx, func(tx store.Tx) error {
		return fn(skewedAggregateTx{Tx: tx})
	})
}

func TestReassignRollsBackOnLedgerMismatch(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	poB := f.purchaseOrder("PO-B", 200)
	f.verified(poA.ID, 60, 5)
	moving := f.verified(poA.ID, 40, 5)
	f.verified(poB.ID, 50, 0)

	skewed := NewLedgerService(skewedAggregateStore{Store: f.store}, nil)
	_, err := skewed.Reassign(f.ctx, ReassignCommand{SubmissionID: moving, FromPOID: poA.ID, ToPOID: poB.ID, ConfirmOverride: true})
	var li *models.LedgerInconsistencyError
	if !errors.As(err, &li) {
		t.Fatalf("expected LedgerInconsistencyError, got %v", err)
	}
	if li.POID != poA.ID || li.AggregateGood != li.LineGood+1 {
		t.Fatalf("mismatch = %+v, want PO %d aggregate one above lines", li, poA.ID)
	}

	assertLine(t, f, poA.ID, 100, 10)
	assertLine(t, f, poB.ID, 50, 0)
	sub, _ := f.submissions.GetSubmission(f.ctx, moving)
	if *sub.AssignedPOID != poA.ID || !sub.POAssignmentVerified {
		t.Fatalf("submission changed despite rollback: %+v", sub)
	}
	if n := len(f.store.ReassignmentLogs()); n != 0 {
		t.Fatalf("audit rows = %d, want 0", n)
	}
}

func TestAssignAndVerifyRollsBackOnLedgerMismatch(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	res := f.packaged(40, 5, nil, nil, nil)

	skewed := NewLedgerService(skewedAggregateStore{Store: f.store}, nil)
	_, err := skewed.AssignAndVerify(f.ctx, res.SubmissionID, poA.ID)
	var li *models.LedgerInconsistencyError
	if !errors.As(err, &li) {
		t.Fatalf("expected LedgerInconsistencyError, got %v", err)
	}
	assertLine(t, f, poA.ID, 0, 0)
	sub, _ := f.submissions.GetSubmission(f.ctx, res.SubmissionID)
	if sub.POAssignmentVerified {
		t.Fatalf("submission verified despite rollback: %+v", sub)
	}
}

func TestReassignBindsSubmissionAwaitingReview(t *testing.T) {
	f := newFixture(t)
	poA := f.purchaseOrder("PO-A", 200)
	poB := f.purchaseOrder("PO-B", 200)
	f.receiveBag(poA.ID, 2, 3, 100, f.clock.Now())
	recB := f.receiveBag(poB.ID, 2, 3, 100, f.clock.Now())

	res := f.packaged(30, 0, nil, intPtr(2), intPtr(3))
	if res.Binding.State != models.BindingNeedsReview {
		t.Fatalf("state = %s, want needs_review", res.Binding.State)
	}

	out, err := f.ledger.Reassign(f.ctx, ReassignCommand{SubmissionID: res.SubmissionID, FromPOID: 0, ToPOID: poB.ID, ConfirmOverride: true})
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if out.Binding == nil || out.Binding.State != models.BindingBound || *out.Binding.BagID != bagIDOf(recB) {
		t.Fatalf("binding = %+v, want bound to bag %d", out.Binding, bagIDOf(recB))
	}

	sub, _ := f.submissions.GetSubmission(f.ctx, res.SubmissionID)
	if sub.NeedsReview || sub.BagID == nil || *sub.BagID != bagIDOf(recB) || *sub.AssignedPOID != poB.ID {
		t.Fatalf("submission = %+v", sub)
	}
	queue, err := f.resolver.ListNeedsReview(f.ctx)
	if err != nil {
		t.Fatalf("ListNeedsReview: %v", err)
	}
	if len(queue) != 0 {
		t.Fatalf("review queue = %+v, want empty", queue)
	}
}
