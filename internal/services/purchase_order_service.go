package services

import (
	"context"
	"strings"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
)

type PurchaseOrderService struct {
	Store store.Store
}

func NewPurchaseOrderService(st store.Store) *PurchaseOrderService {
	return &PurchaseOrderService{Store: st}
}

// CreatePurchaseOrder inserts a PO and its lines with zeroed counts.
func (s *PurchaseOrderService) CreatePurchaseOrder(ctx context.Context, req *models.CreatePurchaseOrderRequest) (*models.PurchaseOrder, error) {
	number := strings.TrimSpace(req.PONumber)
	if number == "" {
		return nil, models.NewValidationError("po_number", "is required")
	}
	if req.OrderedQuantity < 0 {
		return nil, models.NewValidationError("ordered_quantity", "must not be negative")
	}
	status := req.Status
	if status == "" {
		status = models.POStatusActive
	}
	switch status {
	case models.POStatusActive, models.POStatusDraft, models.POStatusComplete, models.POStatusCancelled:
	default:
		return nil, models.NewValidationError("status", "must be Active, Draft, Complete or Cancelled")
	}
	seen := make(map[string]bool)
	for _, l := range req.Lines {
		item := strings.TrimSpace(l.InventoryItemID)
		if item == "" {
			return nil, models.NewValidationError("lines.inventory_item_id", "is required")
		}
		if seen[item] {
			return nil, models.NewValidationError("lines.inventory_item_id", "duplicate item "+item)
		}
		if l.QuantityOrdered < 0 {
			return nil, models.NewValidationError("lines.quantity_ordered", "must not be negative")
		}
		seen[item] = true
	}

	po := &models.PurchaseOrder{
		PONumber:          number,
		OrderedQuantity:   req.OrderedQuantity,
		RemainingQuantity: req.OrderedQuantity,
		Status:            status,
		Closed:            status == models.POStatusComplete || status == models.POStatusCancelled,
	}
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.CreatePurchaseOrder(ctx, po); err != nil {
			return err
		}
		for _, l := range req.Lines {
			line := models.POLine{
				POID:            po.ID,
				InventoryItemID: strings.TrimSpace(l.InventoryItemID),
				QuantityOrdered: l.QuantityOrdered,
			}
			if err := tx.CreatePOLine(ctx, &line); err != nil {
				return err
			}
			po.Lines = append(po.Lines, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

func (s *PurchaseOrderService) GetPurchaseOrder(ctx context.Context, id int) (*models.PurchaseOrder, error) {
	var po *models.PurchaseOrder
	err := s.Store.View(ctx, func(tx store.Tx) error {
		var err error
		po, err = tx.GetPurchaseOrder(ctx, id, false)
		if err != nil {
			return err
		}
		po.Lines, err = tx.ListPOLines(ctx, id)
		return err
	})
	return po, err
}
