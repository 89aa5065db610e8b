package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"tablet-tracker/internal/cache"
	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
	"tablet-tracker/internal/timeutil"
)

type InventoryService struct {
	Store store.Store
	Now   func() time.Time
}

func NewInventoryService(st store.Store) *InventoryService {
	return &InventoryService{Store: st, Now: timeutil.Now}
}

// CreateReceive logs a shipment against a PO with its boxes and bags in one
// transaction. The receive is named "{PO number}-{n}" where n counts the PO's
// receives including this one.
func (s *InventoryService) CreateReceive(ctx context.Context, req *models.CreateReceiveRequest) (*models.Receive, error) {
	if req.POID <= 0 {
		return nil, models.NewValidationError("po_id", "is required")
	}
	if err := validateBoxes(req.Boxes); err != nil {
		return nil, err
	}

	received := s.Now()
	if req.ReceivedDate != nil {
		received = *req.ReceivedDate
	}

	var rec *models.Receive
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		po, err := tx.GetPurchaseOrder(ctx, req.POID, false)
		if err != nil {
			return err
		}
		count, err := tx.CountReceives(ctx, po.ID)
		if err != nil {
			return err
		}
		rec = &models.Receive{
			POID:         po.ID,
			PONumber:     po.PONumber,
			Sequence:     count + 1,
			ReceiveName:  fmt.Sprintf("%s-%d", po.PONumber, count+1),
			ReceivedDate: received,
		}
		if err := tx.CreateReceive(ctx, rec); err != nil {
			return err
		}

		for _, boxReq := range req.Boxes {
			box := models.Box{ReceiveID: rec.ID, BoxNumber: boxReq.BoxNumber, BagCount: boxReq.BagCount}
			if box.BagCount == 0 {
				box.BagCount = len(boxReq.Bags)
			}
			if err := tx.CreateBox(ctx, &box); err != nil {
				return err
			}
			for _, bagReq := range boxReq.Bags {
				if _, err := tx.GetTabletType(ctx, bagReq.TabletTypeID); err != nil {
					return err
				}
				bag := models.Bag{
					BoxID:        box.ID,
					BagNumber:    bagReq.BagNumber,
					TabletTypeID: bagReq.TabletTypeID,
					LabelCount:   bagReq.LabelCount,
					Status:       models.BagStatusAvailable,
				}
				if err := tx.CreateBag(ctx, &bag); err != nil {
					return err
				}
				box.Bags = append(box.Bags, bag)
			}
			rec.Boxes = append(rec.Boxes, box)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateBagStatus(ctx, rec.POID)
	log.Printf("[Inventory] Receive %s logged with %d boxes", rec.ReceiveName, len(rec.Boxes))
	return rec, nil
}

func validateBoxes(boxes []models.CreateBoxRequest) error {
	seenBox := make(map[int]bool)
	for _, b := range boxes {
		if b.BoxNumber <= 0 {
			return models.NewValidationError("box_number", "must be positive")
		}
		if seenBox[b.BoxNumber] {
			return models.NewValidationError("box_number", fmt.Sprintf("box %d listed twice", b.BoxNumber))
		}
		seenBox[b.BoxNumber] = true
		if b.BagCount < 0 {
			return models.NewValidationError("bag_count", "must not be negative")
		}
		for _, bag := range b.Bags {
			if err := validateBag(bag); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateBag(bag models.CreateBagRequest) error {
	if bag.BagNumber <= 0 {
		return models.NewValidationError("bag_number", "must be positive")
	}
	if bag.TabletTypeID <= 0 {
		return models.NewValidationError("tablet_type_id", "is required")
	}
	if bag.LabelCount < 0 {
		return models.NewValidationError("label_count", "must not be negative")
	}
	return nil
}

func (s *InventoryService) GetReceive(ctx context.Context, id int) (*models.Receive, error) {
	var rec *models.Receive
	err := s.Store.View(ctx, func(tx store.Tx) error {
		var err error
		rec, err = tx.GetReceive(ctx, id)
		return err
	})
	return rec, err
}

// CloseReceive closes a receive and all of its bags.
func (s *InventoryService) CloseReceive(ctx context.Context, id int) (*models.Receive, error) {
	var rec *models.Receive
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.CloseReceive(ctx, id); err != nil {
			return err
		}
		var err error
		rec, err = tx.GetReceive(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateBagStatus(ctx, rec.POID)
	log.Printf("[Inventory] Receive %s closed", rec.ReceiveName)
	return rec, nil
}

// CloseBag takes a bag out of the resolver's reach. Already bound submissions keep their binding.
func (s *InventoryService) CloseBag(ctx context.Context, bagID int) (*models.BagCandidate, error) {
	var bag *models.BagCandidate
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		if bag, err = tx.GetBag(ctx, bagID); err != nil {
			return err
		}
		if bag.Status == models.BagStatusClosed {
			return nil
		}
		if err := tx.CloseBag(ctx, bagID); err != nil {
			return err
		}
		bag.Status = models.BagStatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateBagStatus(ctx, bag.POID)
	log.Printf("[Inventory] Bag %d (%s box %d bag %d) closed", bag.BagID, bag.ReceiveName, bag.BoxNumber, bag.BagNumber)
	return bag, nil
}

// FindBag lists every open bag at a physical position. A nil poID searches all POs.
func (s *InventoryService) FindBag(ctx context.Context, poID *int, boxNumber, bagNumber, tabletTypeID int) ([]models.BagCandidate, error) {
	var bags []models.BagCandidate
	err := s.Store.View(ctx, func(tx store.Tx) error {
		var err error
		bags, err = tx.FindBags(ctx, models.BagQuery{
			POID:         poID,
			BoxNumber:    boxNumber,
			BagNumber:    bagNumber,
			TabletTypeID: tabletTypeID,
		})
		return err
	})
	return bags, err
}

// CreateBox adds one box to an existing receive.
func (s *InventoryService) CreateBox(ctx context.Context, receiveID int, req *models.CreateBoxRequest) (*models.Box, error) {
	if err := validateBoxes([]models.CreateBoxRequest{*req}); err != nil {
		return nil, err
	}
	box := &models.Box{ReceiveID: receiveID, BoxNumber: req.BoxNumber, BagCount: req.BagCount}
	if box.BagCount == 0 {
		box.BagCount = len(req.Bags)
	}
	var poID int
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		rec, err := tx.GetReceive(ctx, receiveID)
		if err != nil {
			return err
		}
		poID = rec.POID
		if err := tx.CreateBox(ctx, box); err != nil {
			return err
		}
		for _, bagReq := range req.Bags {
			if _, err := tx.GetTabletType(ctx, bagReq.TabletTypeID); err != nil {
				return err
			}
			bag := models.Bag{BoxID: box.ID, BagNumber: bagReq.BagNumber, TabletTypeID: bagReq.TabletTypeID, LabelCount: bagReq.LabelCount}
			if err := tx.CreateBag(ctx, &bag); err != nil {
				return err
			}
			box.Bags = append(box.Bags, bag)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateBagStatus(ctx, poID)
	return box, nil
}

// CreateBag adds one bag to an existing box. A repeated bag number in the
// same box fails with DuplicateBagError.
func (s *InventoryService) CreateBag(ctx context.Context, boxID int, req *models.CreateBagRequest) (*models.Bag, error) {
	if err := validateBag(*req); err != nil {
		return nil, err
	}
	bag := &models.Bag{BoxID: boxID, BagNumber: req.BagNumber, TabletTypeID: req.TabletTypeID, LabelCount: req.LabelCount}
	var poID int
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetTabletType(ctx, req.TabletTypeID); err != nil {
			return err
		}
		if err := tx.CreateBag(ctx, bag); err != nil {
			return err
		}
		created, err := tx.GetBag(ctx, bag.ID)
		if err != nil {
			return err
		}
		poID = created.POID
		return nil
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateBagStatus(ctx, poID)
	return bag, nil
}
