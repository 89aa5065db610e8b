package repositories

import (
	"context"

	"tablet-tracker/internal/models"
)

// SubmissionRepository persists warehouse submissions. Raw quantities are
// written once; later updates touch only binding and assignment columns.
type SubmissionRepository struct {
	DB Querier
}

func NewSubmissionRepository(db Querier) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

const submissionColumns = `
	ws.id, ws.employee_name, ws.product_id, ws.product_name, ws.tablet_type_id,
	COALESCE(ws.inventory_item_id, ''), ws.submission_type,
	ws.displays_made, ws.packs_remaining, ws.loose_tablets, ws.damaged_tablets,
	ws.machine_turns, ws.machine_cards, ws.calculated_total,
	ws.box_number, ws.bag_number, ws.bag_id, ws.assigned_po_id,
	ws.po_assignment_verified, ws.needs_review, ws.created_at`

func scanSubmission(row interface{ Scan(dest ...any) error }, s *models.Submission, extra ...any) error {
	var subType string
	dest := []any{
		&s.ID, &s.EmployeeName, &s.ProductID, &s.ProductName, &s.TabletTypeID,
		&s.InventoryItemID, &subType,
		&s.DisplaysMade, &s.PacksRemaining, &s.LooseTablets, &s.DamagedTablets,
		&s.MachineTurns, &s.MachineCards, &s.CalculatedTotal,
		&s.BoxNumber, &s.BagNumber, &s.BagID, &s.AssignedPOID,
		&s.POAssignmentVerified, &s.NeedsReview, &s.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	s.SubmissionType = models.SubmissionType(subType)
	return nil
}

func (r *SubmissionRepository) CreateSubmission(ctx context.Context, s *models.Submission) error {
	return r.DB.QueryRow(ctx,
		`INSERT INTO warehouse_submissions (
			employee_name, product_id, product_name, tablet_type_id, inventory_item_id, submission_type,
			displays_made, packs_remaining, loose_tablets, damaged_tablets,
			machine_turns, machine_cards, calculated_total,
			box_number, bag_number, bag_id, assigned_po_id, po_assignment_verified, needs_review
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at`,
		s.EmployeeName, s.ProductID, s.ProductName, s.TabletTypeID, s.InventoryItemID, s.SubmissionType,
		s.DisplaysMade, s.PacksRemaining, s.LooseTablets, s.DamagedTablets,
		s.MachineTurns, s.MachineCards, s.CalculatedTotal,
		s.BoxNumber, s.BagNumber, s.BagID, s.AssignedPOID, s.POAssignmentVerified, s.NeedsReview,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *SubmissionRepository) GetSubmission(ctx context.Context, id int, forUpdate bool) (*models.Submission, error) {
	s := &models.Submission{}
	err := scanSubmission(r.DB.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM warehouse_submissions ws WHERE ws.id = $1`+lockClause(forUpdate), id), s)
	if isNoRows(err) {
		return nil, &models.NotFoundError{Entity: "submission", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SubmissionRepository) UpdateSubmissionBinding(ctx context.Context, id int, bagID, poID *int, needsReview bool) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE warehouse_submissions
		 SET bag_id = $1, assigned_po_id = $2, needs_review = $3
		 WHERE id = $4`,
		bagID, poID, needsReview, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Entity: "submission", ID: id}
	}
	return nil
}

func (r *SubmissionRepository) UpdateSubmissionAssignment(ctx context.Context, id int, poID int, verified bool) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE warehouse_submissions
		 SET assigned_po_id = $1, po_assignment_verified = $2
		 WHERE id = $3`,
		poID, verified, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Entity: "submission", ID: id}
	}
	return nil
}

func (r *SubmissionRepository) list(ctx context.Context, where string, args ...any) ([]models.Submission, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+submissionColumns+` FROM warehouse_submissions ws WHERE `+where+`
		 ORDER BY ws.created_at ASC, ws.id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		var s models.Submission
		if err := scanSubmission(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SubmissionRepository) ListUnboundSubmissions(ctx context.Context) ([]models.Submission, error) {
	return r.list(ctx, `ws.bag_id IS NULL AND ws.po_assignment_verified = FALSE`)
}

func (r *SubmissionRepository) ListNeedsReview(ctx context.Context) ([]models.Submission, error) {
	return r.list(ctx, `ws.needs_review = TRUE`)
}

// ListReconcileInputs treats a direct PO assignment and a bag's receive PO as
// the same link; the direct assignment wins when both exist.
func (r *SubmissionRepository) ListReconcileInputs(ctx context.Context, poID int) ([]models.ReconcileInput, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+submissionColumns+`, COALESCE(b.label_count, 0)
		 FROM warehouse_submissions ws
		 LEFT JOIN bags b ON b.id = ws.bag_id
		 LEFT JOIN boxes bx ON bx.id = b.box_id
		 LEFT JOIN receives r ON r.id = bx.receive_id
		 WHERE COALESCE(ws.assigned_po_id, r.po_id) = $1
		 ORDER BY ws.created_at ASC, ws.id ASC`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ReconcileInput
	for rows.Next() {
		var in models.ReconcileInput
		if err := scanSubmission(rows, &in.Submission, &in.LabelCount); err != nil {
			return nil, err
		}
		in.Key = models.BagKey{POID: poID, ProductName: in.Submission.ProductName, BoxBag: in.Submission.BoxBagLabel()}
		out = append(out, in)
	}
	return out, rows.Err()
}
