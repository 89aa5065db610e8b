package models

import "time"

type POStatus string

const (
	POStatusActive    POStatus = "Active"
	POStatusDraft     POStatus = "Draft"
	POStatusComplete  POStatus = "Complete"
	POStatusCancelled POStatus = "Cancelled"
)

// PurchaseOrder aggregates are derived from its lines by the ledger mutator only.
type PurchaseOrder struct {
	ID                int       `json:"id"`
	PONumber          string    `json:"po_number"`
	OrderedQuantity   int       `json:"ordered_quantity"`
	GoodCount         int       `json:"good_count"`
	DamagedCount      int       `json:"damaged_count"`
	RemainingQuantity int       `json:"remaining_quantity"`
	Closed            bool      `json:"closed"`
	Status            POStatus  `json:"status"`
	Lines             []POLine  `json:"lines,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type POLine struct {
	ID              int       `json:"id"`
	POID            int       `json:"po_id"`
	InventoryItemID string    `json:"inventory_item_id"`
	QuantityOrdered int       `json:"quantity_ordered"`
	GoodCount       int       `json:"good_count"`
	DamagedCount    int       `json:"damaged_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Recompute re-derives the PO aggregates by summing lines.
func (po *PurchaseOrder) Recompute(lines []POLine) {
	good, damaged := SumLines(lines)
	po.GoodCount = good
	po.DamagedCount = damaged
	po.RemainingQuantity = po.OrderedQuantity - good - damaged
}

func SumLines(lines []POLine) (good, damaged int) {
	for _, l := range lines {
		good += l.GoodCount
		damaged += l.DamagedCount
	}
	return good, damaged
}

type CreatePurchaseOrderRequest struct {
	PONumber        string                `json:"po_number"`
	OrderedQuantity int                   `json:"ordered_quantity"`
	Status          POStatus              `json:"status,omitempty"`
	Lines           []CreatePOLineRequest `json:"lines"`
}

type CreatePOLineRequest struct {
	InventoryItemID string `json:"inventory_item_id"`
	QuantityOrdered int    `json:"quantity_ordered"`
}

// ReassignmentLog is the audit row written for every successful reassignment.
type ReassignmentLog struct {
	ID            int       `json:"id"`
	SubmissionID  int       `json:"submission_id"`
	FromPOID      int       `json:"from_po_id"`
	ToPOID        int       `json:"to_po_id"`
	Good          int       `json:"good"`
	Damaged       int       `json:"damaged"`
	Actor         string    `json:"actor"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}
