package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
)

func TestRunInTxDiscardsFailedWork(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)
	boom := errors.New("boom")

	err := st.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.CreatePurchaseOrder(ctx, &models.PurchaseOrder{PONumber: "PO-1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	err = st.View(ctx, func(tx store.Tx) error {
		_, err := tx.GetPurchaseOrder(ctx, 1, false)
		return err
	})
	var nf *models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("rolled back PO is visible: %v", err)
	}
}

func TestFindBagsOrdersNewestReceiveFirst(t *testing.T) {
	ctx := context.Background()
	st := NewStore(nil)
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	var newest, firstBox int
	err := st.RunInTx(ctx, func(tx store.Tx) error {
		tt := &models.TabletType{Name: "Aspirin 81", InventoryItemID: "ITEM-ASP"}
		if err := tx.CreateTabletType(ctx, tt); err != nil {
			return err
		}
		po := &models.PurchaseOrder{PONumber: "PO-9"}
		if err := tx.CreatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		for i, received := range []time.Time{day, day.AddDate(0, 0, 5), day.AddDate(0, 0, 2)} {
			rcv := &models.Receive{POID: po.ID, Sequence: i + 1, ReceiveName: "PO-9", ReceivedDate: received}
			if err := tx.CreateReceive(ctx, rcv); err != nil {
				return err
			}
			box := &models.Box{ReceiveID: rcv.ID, BoxNumber: 1}
			if err := tx.CreateBox(ctx, box); err != nil {
				return err
			}
			bag := &models.Bag{BoxID: box.ID, BagNumber: 4, TabletTypeID: tt.ID, LabelCount: 100}
			if err := tx.CreateBag(ctx, bag); err != nil {
				return err
			}
			if i == 0 {
				firstBox = box.ID
			}
			if i == 1 {
				newest = bag.ID
			}
		}

		dup := &models.Bag{BoxID: firstBox, BagNumber: 4, TabletTypeID: tt.ID}
		var db *models.DuplicateBagError
		if err := tx.CreateBag(ctx, dup); !errors.As(err, &db) {
			t.Errorf("duplicate bag: got %v", err)
		}

		bags, err := tx.FindBags(ctx, models.BagQuery{BoxNumber: 1, BagNumber: 4, TabletTypeID: tt.ID})
		if err != nil {
			return err
		}
		if len(bags) != 3 || bags[0].BagID != newest {
			t.Errorf("bags = %+v, want newest %d first", bags, newest)
		}
		for i := 1; i < len(bags); i++ {
			if bags[i].ReceivedDate.After(bags[i-1].ReceivedDate) {
				t.Errorf("bags out of order at %d", i)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
}
