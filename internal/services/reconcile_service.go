package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"tablet-tracker/internal/cache"
	"tablet-tracker/internal/metrics"
	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
)

// ReconcileService serves running-total reads. Totals are always recomputed
// from the stored submissions; only the final bag report is cached, and every
// write that touches a PO clears that PO's reports.
type ReconcileService struct {
	Store     store.Store
	Tolerance int
}

func NewReconcileService(st store.Store, tolerance int) *ReconcileService {
	return &ReconcileService{Store: st, Tolerance: tolerance}
}

// ListRunningTotals returns the per-submission snapshots for every bag key of a PO.
func (s *ReconcileService) ListRunningTotals(ctx context.Context, poID int) ([]models.RunningTotalRow, error) {
	var rows []models.RunningTotalRow
	err := s.Store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetPurchaseOrder(ctx, poID, false); err != nil {
			return err
		}
		inputs, err := tx.ListReconcileInputs(ctx, poID)
		if err != nil {
			return err
		}
		rows = Reconcile(inputs, s.Tolerance)
		return nil
	})
	return rows, err
}

// GetBagStatus returns the final running total and status for one bag key.
func (s *ReconcileService) GetBagStatus(ctx context.Context, poID int, productName string, boxNumber, bagNumber int) (*models.BagStatusReport, error) {
	if poID <= 0 {
		return nil, models.NewValidationError("po_id", "is required")
	}
	if productName == "" {
		return nil, models.NewValidationError("product", "is required")
	}
	if boxNumber <= 0 || bagNumber <= 0 {
		return nil, models.NewValidationError("box", "box and bag must be positive")
	}

	boxBag := fmt.Sprintf("%d/%d", boxNumber, bagNumber)
	key := cache.BagStatusKey(poID, productName, boxBag)
	if data, ok := cache.GetCached(ctx, key); ok {
		var report models.BagStatusReport
		if err := json.Unmarshal(data, &report); err == nil {
			metrics.BagStatusCache.WithLabelValues("hit").Inc()
			return &report, nil
		}
	}
	metrics.BagStatusCache.WithLabelValues("miss").Inc()

	report := &models.BagStatusReport{
		POID:        poID,
		ProductName: productName,
		BoxNumber:   boxNumber,
		BagNumber:   bagNumber,
	}
	err := s.Store.View(ctx, func(tx store.Tx) error {
		inputs, err := tx.ListReconcileInputs(ctx, poID)
		if err != nil {
			return err
		}
		want := models.BagKey{POID: poID, ProductName: productName, BoxBag: boxBag}
		var keyed []models.ReconcileInput
		for _, in := range inputs {
			if in.Key == want {
				keyed = append(keyed, in)
			}
		}

		hasBag := false
		for _, row := range Reconcile(keyed, s.Tolerance) {
			report.RunningTotal = row.OverallTotal
			report.SubmissionCount++
			if row.BagID != nil {
				hasBag = true
				report.LabelCount = row.LabelCount
			}
		}
		if !hasBag {
			label, found, err := s.lookupLabel(ctx, tx, poID, productName, boxNumber, bagNumber)
			if err != nil {
				return err
			}
			if found && report.SubmissionCount == 0 {
				hasBag = true
			}
			if found {
				report.LabelCount = label
			}
		}
		report.Status = Classify(hasBag, report.RunningTotal, report.LabelCount, s.Tolerance)
		report.HasDiscrepancy = report.Status != models.StatusMatch && report.LabelCount > 0
		return nil
	})
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(report); err == nil {
		cache.SetCached(ctx, key, data, cache.DefaultTTL())
	} else {
		log.Printf("[Cache] bag status encode failed for %s: %v", key, err)
	}
	return report, nil
}

// lookupLabel finds the label count for a key with no bound submissions. It
// only answers when exactly one open bag sits at that position.
func (s *ReconcileService) lookupLabel(ctx context.Context, tx store.Tx, poID int, productName string, boxNumber, bagNumber int) (int, bool, error) {
	product, err := tx.GetProductByName(ctx, productName)
	var nf *models.NotFoundError
	if errors.As(err, &nf) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	bags, err := tx.FindBags(ctx, models.BagQuery{
		POID:         &poID,
		BoxNumber:    boxNumber,
		BagNumber:    bagNumber,
		TabletTypeID: product.TabletTypeID,
	})
	if err != nil {
		return 0, false, err
	}
	if len(bags) != 1 {
		return 0, false, nil
	}
	return bags[0].LabelCount, true, nil
}
