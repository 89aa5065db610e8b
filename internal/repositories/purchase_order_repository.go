package repositories

import (
	"context"
	"fmt"

	"tablet-tracker/internal/models"
)

// PurchaseOrderRepository owns purchase_orders, po_lines and the reassignment audit log.
// Count columns are written only through UpdatePOLineCounts/UpdatePOAggregates.
type PurchaseOrderRepository struct {
	DB Querier
}

func NewPurchaseOrderRepository(db Querier) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{DB: db}
}

func (r *PurchaseOrderRepository) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO purchase_orders (po_number, ordered_quantity, good_count, damaged_count, remaining_quantity, closed, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		po.PONumber, po.OrderedQuantity, po.GoodCount, po.DamagedCount, po.RemainingQuantity, po.Closed, po.Status,
	).Scan(&po.ID, &po.CreatedAt, &po.UpdatedAt)
	if pgErrorCode(err) == pgUniqueViolation {
		return models.NewValidationError("po_number", fmt.Sprintf("purchase order %q already exists", po.PONumber))
	}
	return err
}

func (r *PurchaseOrderRepository) GetPurchaseOrder(ctx context.Context, id int, forUpdate bool) (*models.PurchaseOrder, error) {
	po := &models.PurchaseOrder{}
	var status string
	err := r.DB.QueryRow(ctx,
		`SELECT id, po_number, ordered_quantity, good_count, damaged_count, remaining_quantity,
		        closed, status, created_at, updated_at
		 FROM purchase_orders WHERE id = $1`+lockClause(forUpdate), id,
	).Scan(&po.ID, &po.PONumber, &po.OrderedQuantity, &po.GoodCount, &po.DamagedCount, &po.RemainingQuantity,
		&po.Closed, &status, &po.CreatedAt, &po.UpdatedAt)
	if isNoRows(err) {
		return nil, &models.NotFoundError{Entity: "purchase order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	po.Status = models.POStatus(status)
	return po, nil
}

func (r *PurchaseOrderRepository) CreatePOLine(ctx context.Context, line *models.POLine) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO po_lines (po_id, inventory_item_id, quantity_ordered, good_count, damaged_count)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, updated_at`,
		line.POID, line.InventoryItemID, line.QuantityOrdered, line.GoodCount, line.DamagedCount,
	).Scan(&line.ID, &line.UpdatedAt)
	switch pgErrorCode(err) {
	case pgForeignKey:
		return &models.NotFoundError{Entity: "purchase order", ID: line.POID}
	case pgUniqueViolation:
		return models.NewValidationError("inventory_item_id", fmt.Sprintf("duplicate line for %q", line.InventoryItemID))
	}
	return err
}

func scanLines(ctx context.Context, db Querier, query string, args ...any) ([]models.POLine, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []models.POLine
	for rows.Next() {
		var l models.POLine
		if err := rows.Scan(&l.ID, &l.POID, &l.InventoryItemID, &l.QuantityOrdered,
			&l.GoodCount, &l.DamagedCount, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *PurchaseOrderRepository) ListPOLines(ctx context.Context, poID int) ([]models.POLine, error) {
	return scanLines(ctx, r.DB,
		`SELECT id, po_id, inventory_item_id, quantity_ordered, good_count, damaged_count, updated_at
		 FROM po_lines WHERE po_id = $1 ORDER BY id`, poID)
}

func (r *PurchaseOrderRepository) GetPOLineForItem(ctx context.Context, poID int, inventoryItemID string, forUpdate bool) (*models.POLine, error) {
	lines, err := scanLines(ctx, r.DB,
		`SELECT id, po_id, inventory_item_id, quantity_ordered, good_count, damaged_count, updated_at
		 FROM po_lines WHERE po_id = $1 AND inventory_item_id = $2
		 ORDER BY id LIMIT 1`+lockClause(forUpdate), poID, inventoryItemID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &models.NotFoundError{Entity: "po line", ID: fmt.Sprintf("%d/%s", poID, inventoryItemID)}
	}
	return &lines[0], nil
}

func (r *PurchaseOrderRepository) UpdatePOLineCounts(ctx context.Context, lineID, good, damaged int) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE po_lines SET good_count = $1, damaged_count = $2, updated_at = NOW() WHERE id = $3`,
		good, damaged, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Entity: "po line", ID: lineID}
	}
	return nil
}

func (r *PurchaseOrderRepository) UpdatePOAggregates(ctx context.Context, po *models.PurchaseOrder) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE purchase_orders
		 SET good_count = $1, damaged_count = $2, remaining_quantity = $3, updated_at = NOW()
		 WHERE id = $4`,
		po.GoodCount, po.DamagedCount, po.RemainingQuantity, po.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Entity: "purchase order", ID: po.ID}
	}
	return nil
}

func (r *PurchaseOrderRepository) CreateReassignmentLog(ctx context.Context, entry *models.ReassignmentLog) error {
	return r.DB.QueryRow(ctx,
		`INSERT INTO reassignment_log (submission_id, from_po_id, to_po_id, good, damaged, actor, correlation_id)
		 VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		entry.SubmissionID, entry.FromPOID, entry.ToPOID, entry.Good, entry.Damaged, entry.Actor, entry.CorrelationID,
	).Scan(&entry.ID, &entry.CreatedAt)
}
