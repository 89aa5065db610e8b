package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tablet-tracker/internal/models"
)

// InventoryRepository persists the Receive -> Box -> Bag hierarchy.
type InventoryRepository struct {
	DB Querier
}

func NewInventoryRepository(db Querier) *InventoryRepository {
	return &InventoryRepository{DB: db}
}

func (r *InventoryRepository) CountReceives(ctx context.Context, poID int) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM receives WHERE po_id = $1`, poID).Scan(&n)
	return n, err
}

func (r *InventoryRepository) CreateReceive(ctx context.Context, rcv *models.Receive) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO receives (po_id, sequence, receive_name, received_date)
		 VALUES ($1, $2, $3, COALESCE($4, NOW()))
		 RETURNING id, received_date, created_at`,
		rcv.POID, rcv.Sequence, rcv.ReceiveName, nullTime(rcv.ReceivedDate),
	).Scan(&rcv.ID, &rcv.ReceivedDate, &rcv.CreatedAt)
	switch pgErrorCode(err) {
	case pgForeignKey:
		return &models.NotFoundError{Entity: "purchase order", ID: rcv.POID}
	case pgUniqueViolation:
		return &models.ConflictError{Message: fmt.Sprintf("receive %s already exists", rcv.ReceiveName)}
	}
	return err
}

// GetReceive loads a receive with its boxes and bags.
func (r *InventoryRepository) GetReceive(ctx context.Context, id int) (*models.Receive, error) {
	rcv := &models.Receive{}
	err := r.DB.QueryRow(ctx,
		`SELECT r.id, r.po_id, po.po_number, r.sequence, r.receive_name, r.received_date,
		        r.closed, r.created_at, r.closed_at
		 FROM receives r
		 JOIN purchase_orders po ON po.id = r.po_id
		 WHERE r.id = $1`, id,
	).Scan(&rcv.ID, &rcv.POID, &rcv.PONumber, &rcv.Sequence, &rcv.ReceiveName, &rcv.ReceivedDate,
		&rcv.Closed, &rcv.CreatedAt, &rcv.ClosedAt)
	if isNoRows(err) {
		return nil, &models.NotFoundError{Entity: "receive", ID: id}
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx,
		`SELECT bx.id, bx.receive_id, bx.box_number, bx.bag_count, bx.created_at,
		        b.id, b.bag_number, b.tablet_type_id, b.label_count, b.status, b.created_at
		 FROM boxes bx
		 LEFT JOIN bags b ON b.box_id = bx.id
		 WHERE bx.receive_id = $1
		 ORDER BY bx.box_number, b.bag_number`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := map[int]int{}
	for rows.Next() {
		var box models.Box
		var bagID, bagNumber, tabletTypeID, labelCount *int
		var status *string
		var bagCreatedAt *time.Time
		if err := rows.Scan(&box.ID, &box.ReceiveID, &box.BoxNumber, &box.BagCount, &box.CreatedAt,
			&bagID, &bagNumber, &tabletTypeID, &labelCount, &status, &bagCreatedAt); err != nil {
			return nil, err
		}
		pos, ok := index[box.ID]
		if !ok {
			rcv.Boxes = append(rcv.Boxes, box)
			pos = len(rcv.Boxes) - 1
			index[box.ID] = pos
		}
		if bagID == nil {
			continue
		}
		bag := models.Bag{
			ID:           *bagID,
			BoxID:        box.ID,
			BagNumber:    *bagNumber,
			TabletTypeID: *tabletTypeID,
			LabelCount:   *labelCount,
			Status:       models.BagStatus(*status),
			CreatedAt:    *bagCreatedAt,
		}
		rcv.Boxes[pos].Bags = append(rcv.Boxes[pos].Bags, bag)
	}
	return rcv, rows.Err()
}

func (r *InventoryRepository) CreateBox(ctx context.Context, b *models.Box) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO boxes (receive_id, box_number, bag_count)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		b.ReceiveID, b.BoxNumber, b.BagCount,
	).Scan(&b.ID, &b.CreatedAt)
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		return models.NewValidationError("box_number", fmt.Sprintf("box %d already exists in receive %d", b.BoxNumber, b.ReceiveID))
	case pgForeignKey:
		return &models.NotFoundError{Entity: "receive", ID: b.ReceiveID}
	}
	return err
}

func (r *InventoryRepository) CreateBag(ctx context.Context, b *models.Bag) error {
	if b.Status == "" {
		b.Status = models.BagStatusAvailable
	}
	err := r.DB.QueryRow(ctx,
		`INSERT INTO bags (box_id, bag_number, tablet_type_id, label_count, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		b.BoxID, b.BagNumber, b.TabletTypeID, b.LabelCount, b.Status,
	).Scan(&b.ID, &b.CreatedAt)
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		return &models.DuplicateBagError{BoxID: b.BoxID, BagNumber: b.BagNumber}
	case pgForeignKey:
		return &models.NotFoundError{Entity: "box or tablet type", ID: b.BoxID}
	}
	return err
}

const candidateSelect = `
	SELECT b.id, bx.id, bx.box_number, b.bag_number, b.tablet_type_id, b.label_count, b.status,
	       r.id, r.receive_name, r.received_date, r.po_id
	FROM bags b
	JOIN boxes bx ON bx.id = b.box_id
	JOIN receives r ON r.id = bx.receive_id`

func scanCandidate(row interface{ Scan(dest ...any) error }) (models.BagCandidate, error) {
	var c models.BagCandidate
	var status string
	err := row.Scan(&c.BagID, &c.BoxID, &c.BoxNumber, &c.BagNumber, &c.TabletTypeID, &c.LabelCount, &status,
		&c.ReceiveID, &c.ReceiveName, &c.ReceivedDate, &c.POID)
	c.Status = models.BagStatus(status)
	return c, err
}

func (r *InventoryRepository) GetBag(ctx context.Context, id int) (*models.BagCandidate, error) {
	c, err := scanCandidate(r.DB.QueryRow(ctx, candidateSelect+` WHERE b.id = $1`, id))
	if isNoRows(err) {
		return nil, &models.NotFoundError{Entity: "bag", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *InventoryRepository) CloseReceive(ctx context.Context, id int) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE receives SET closed = TRUE, closed_at = COALESCE(closed_at, NOW()) WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Entity: "receive", ID: id}
	}
	_, err = r.DB.Exec(ctx,
		`UPDATE bags SET status = $1
		 WHERE box_id IN (SELECT id FROM boxes WHERE receive_id = $2)`,
		models.BagStatusClosed, id)
	return err
}

func (r *InventoryRepository) CloseBag(ctx context.Context, id int) error {
	tag, err := r.DB.Exec(ctx, `UPDATE bags SET status = $1 WHERE id = $2`, models.BagStatusClosed, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Entity: "bag", ID: id}
	}
	return nil
}

// FindBags returns every bag at (box, bag, tablet type), newest receive first.
// Multiplicity is significant to the resolver, so no LIMIT is applied.
func (r *InventoryRepository) FindBags(ctx context.Context, q models.BagQuery) ([]models.BagCandidate, error) {
	conditions := []string{"bx.box_number = $1", "b.bag_number = $2", "b.tablet_type_id = $3"}
	args := []interface{}{q.BoxNumber, q.BagNumber, q.TabletTypeID}
	argNum := 4

	if q.POID != nil {
		conditions = append(conditions, fmt.Sprintf("r.po_id = $%d", argNum))
		args = append(args, *q.POID)
		argNum++
	}
	if !q.IncludeClosed {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", argNum))
		args = append(args, models.BagStatusAvailable)
	}

	query := candidateSelect + `
	WHERE ` + strings.Join(conditions, " AND ") + `
	ORDER BY r.received_date DESC, r.id DESC, b.id DESC`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BagCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
