package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"tablet-tracker/internal/cache"
	"tablet-tracker/internal/metrics"
	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
)

// LedgerService is the only writer of PO and PO line counts.
type LedgerService struct {
	Store    store.Store
	Notifier Notifier
}

func NewLedgerService(st store.Store, n Notifier) *LedgerService {
	return &LedgerService{Store: st, Notifier: notifierOrNop(n)}
}

// ReassignCommand moves a submission from FromPOID to ToPOID. FromPOID is the
// PO the caller saw on the submission, 0 when it had none.
type ReassignCommand struct {
	SubmissionID    int
	FromPOID        int
	ToPOID          int
	ConfirmOverride bool
	Actor           string
}

type ReassignResult struct {
	Submission *models.Submission      `json:"submission"`
	Moved      models.Contribution     `json:"moved"`
	From       *models.PurchaseOrder   `json:"from,omitempty"`
	To         *models.PurchaseOrder   `json:"to"`
	Audit      *models.ReassignmentLog `json:"audit"`
	// Binding is set when the submission had no bag and the resolver ran
	// again against the new PO.
	Binding *models.Binding `json:"binding,omitempty"`
}

func outcomeLabel(err error) string {
	var (
		ve *models.ValidationError
		nl *models.NoMatchingLineError
		li *models.LedgerInconsistencyError
		vl *models.VerificationLockedError
		ce *models.ConflictError
		nf *models.NotFoundError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &nl):
		return "no_matching_line"
	case errors.As(err, &li):
		return "inconsistent"
	case errors.As(err, &vl):
		return "locked"
	case errors.As(err, &ce):
		return "conflict"
	case errors.As(err, &nf):
		return "not_found"
	default:
		return "error"
	}
}

func lineForItem(ctx context.Context, tx store.Tx, poID int, itemID string) (*models.POLine, error) {
	line, err := tx.GetPOLineForItem(ctx, poID, itemID, true)
	var nf *models.NotFoundError
	if errors.As(err, &nf) {
		return nil, &models.NoMatchingLineError{POID: poID, InventoryItemID: itemID}
	}
	return line, err
}

// recomputeAggregates re-sums a PO's lines into its aggregates and then reads
// both back to confirm they agree.
func recomputeAggregates(ctx context.Context, tx store.Tx, po *models.PurchaseOrder) error {
	lines, err := tx.ListPOLines(ctx, po.ID)
	if err != nil {
		return err
	}
	po.Recompute(lines)
	if err := tx.UpdatePOAggregates(ctx, po); err != nil {
		return fmt.Errorf("update aggregates for PO %d: %w", po.ID, err)
	}
	return verifyAggregates(ctx, tx, po.ID)
}

func verifyAggregates(ctx context.Context, tx store.Tx, poID int) error {
	po, err := tx.GetPurchaseOrder(ctx, poID, false)
	if err != nil {
		return err
	}
	lines, err := tx.ListPOLines(ctx, poID)
	if err != nil {
		return err
	}
	good, damaged := models.SumLines(lines)
	if po.GoodCount != good || po.DamagedCount != damaged || po.RemainingQuantity != po.OrderedQuantity-good-damaged {
		return &models.LedgerInconsistencyError{
			POID:          poID,
			AggregateGood: po.GoodCount,
			LineGood:      good,
			AggregateDmg:  po.DamagedCount,
			LineDmg:       damaged,
		}
	}
	return nil
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// AssignAndVerify adds the submission's contribution to poID's line for the
// product's inventory item and locks the submission against further PO changes.
func (s *LedgerService) AssignAndVerify(ctx context.Context, submissionID, poID int) (*models.Submission, error) {
	if poID <= 0 {
		return nil, models.NewValidationError("po_id", "is required")
	}

	var sub *models.Submission
	var previousPO int
	var moved models.Contribution
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		sub, err = tx.GetSubmission(ctx, submissionID, true)
		if err != nil {
			return err
		}
		if sub.POAssignmentVerified {
			return &models.VerificationLockedError{SubmissionID: sub.ID}
		}
		if sub.AssignedPOID != nil {
			previousPO = *sub.AssignedPOID
		}

		po, err := tx.GetPurchaseOrder(ctx, poID, true)
		if err != nil {
			return err
		}
		line, err := lineForItem(ctx, tx, po.ID, sub.InventoryItemID)
		if err != nil {
			return err
		}

		moved = ContributionOf(sub)
		if err := tx.UpdatePOLineCounts(ctx, line.ID, line.GoodCount+moved.Good, line.DamagedCount+moved.Damaged); err != nil {
			return err
		}
		if err := recomputeAggregates(ctx, tx, po); err != nil {
			return err
		}
		if err := tx.UpdateSubmissionAssignment(ctx, sub.ID, po.ID, true); err != nil {
			return err
		}
		sub.AssignedPOID = &po.ID
		sub.POAssignmentVerified = true
		return nil
	})
	metrics.LedgerMutations.WithLabelValues("verify", outcomeLabel(err)).Inc()
	if err != nil {
		log.Printf("[Ledger] verify submission %d on PO %d failed: %v", submissionID, poID, err)
		return nil, err
	}

	cache.InvalidateBagStatus(ctx, previousPO, poID)
	s.Notifier.Notify(EventVerified, fmt.Sprintf("Submission %d verified on PO %d", sub.ID, poID), sub)
	log.Printf("[Ledger] Submission %d verified on PO %d: +%d good +%d damaged", sub.ID, poID, moved.Good, moved.Damaged)
	return sub, nil
}

// Reassign moves a submission to another PO in one transaction. For a verified
// submission the contribution leaves the old line (floored at zero) and joins
// the new one, and both POs are re-summed and checked. Both POs are locked in
// id order.
func (s *LedgerService) Reassign(ctx context.Context, cmd ReassignCommand) (*ReassignResult, error) {
	if cmd.ToPOID <= 0 {
		return nil, models.NewValidationError("new_po_id", "is required")
	}
	if cmd.ToPOID == cmd.FromPOID {
		return nil, models.NewValidationError("new_po_id", "submission is already assigned to this PO")
	}

	res := &ReassignResult{}
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		sub, err := tx.GetSubmission(ctx, cmd.SubmissionID, true)
		if err != nil {
			return err
		}
		if !cmd.ConfirmOverride {
			if sub.POAssignmentVerified {
				return &models.VerificationLockedError{SubmissionID: sub.ID}
			}
			return models.NewValidationError("confirm_override", "reassignment must be confirmed")
		}
		current := 0
		if sub.AssignedPOID != nil {
			current = *sub.AssignedPOID
		}
		if current != cmd.FromPOID {
			return &models.ConflictError{Message: fmt.Sprintf("submission %d is assigned to PO %d, not %d", sub.ID, current, cmd.FromPOID)}
		}

		ids := []int{cmd.ToPOID}
		if cmd.FromPOID > 0 {
			ids = append(ids, cmd.FromPOID)
		}
		sort.Ints(ids)
		locked := make(map[int]*models.PurchaseOrder, len(ids))
		for _, id := range ids {
			po, err := tx.GetPurchaseOrder(ctx, id, true)
			if err != nil {
				return err
			}
			locked[id] = po
		}

		newLine, err := lineForItem(ctx, tx, cmd.ToPOID, sub.InventoryItemID)
		if err != nil {
			return err
		}

		if sub.POAssignmentVerified {
			c := ContributionOf(sub)
			oldLine, err := lineForItem(ctx, tx, cmd.FromPOID, sub.InventoryItemID)
			if err != nil {
				return err
			}
			if err := tx.UpdatePOLineCounts(ctx, oldLine.ID,
				floorZero(oldLine.GoodCount-c.Good), floorZero(oldLine.DamagedCount-c.Damaged)); err != nil {
				return err
			}
			if err := recomputeAggregates(ctx, tx, locked[cmd.FromPOID]); err != nil {
				return err
			}
			if err := tx.UpdatePOLineCounts(ctx, newLine.ID, newLine.GoodCount+c.Good, newLine.DamagedCount+c.Damaged); err != nil {
				return err
			}
			if err := recomputeAggregates(ctx, tx, locked[cmd.ToPOID]); err != nil {
				return err
			}
			res.Moved = c
		}

		if err := tx.UpdateSubmissionAssignment(ctx, sub.ID, cmd.ToPOID, sub.POAssignmentVerified); err != nil {
			return err
		}
		sub.AssignedPOID = &cmd.ToPOID

		if sub.BagID == nil {
			b, err := bindInTx(ctx, tx, sub)
			if err != nil {
				return err
			}
			res.Binding = &b
		}

		audit := &models.ReassignmentLog{
			SubmissionID:  sub.ID,
			FromPOID:      cmd.FromPOID,
			ToPOID:        cmd.ToPOID,
			Good:          res.Moved.Good,
			Damaged:       res.Moved.Damaged,
			Actor:         cmd.Actor,
			CorrelationID: uuid.New().String(),
		}
		if err := tx.CreateReassignmentLog(ctx, audit); err != nil {
			return err
		}

		res.Submission = sub
		res.Audit = audit
		res.From = locked[cmd.FromPOID]
		res.To = locked[cmd.ToPOID]
		return nil
	})
	metrics.LedgerMutations.WithLabelValues("reassign", outcomeLabel(err)).Inc()
	if err != nil {
		log.Printf("[Ledger] reassign submission %d PO %d -> %d failed: %v", cmd.SubmissionID, cmd.FromPOID, cmd.ToPOID, err)
		return nil, err
	}

	cache.InvalidateBagStatus(ctx, cmd.FromPOID, cmd.ToPOID)
	s.Notifier.Notify(EventReassigned,
		fmt.Sprintf("Submission %d moved from PO %d to PO %d by %s", cmd.SubmissionID, cmd.FromPOID, cmd.ToPOID, cmd.Actor),
		res.Audit)
	log.Printf("[Ledger] Submission %d reassigned PO %d -> %d: %d good %d damaged moved (correlation %s)",
		cmd.SubmissionID, cmd.FromPOID, cmd.ToPOID, res.Moved.Good, res.Moved.Damaged, res.Audit.CorrelationID)
	return res, nil
}
