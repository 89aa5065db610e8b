package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tablet-tracker/internal/cache"
	"tablet-tracker/internal/metrics"
	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
	"tablet-tracker/internal/timeutil"
)

// SubmissionService records production submissions and binds them to bags.
type SubmissionService struct {
	Store    store.Store
	Settings *SystemSettingService
	Resolver *ResolverService
	Notifier Notifier
	Now      func() time.Time
}

func NewSubmissionService(st store.Store, settings *SystemSettingService, resolver *ResolverService, n Notifier) *SubmissionService {
	return &SubmissionService{
		Store:    st,
		Settings: settings,
		Resolver: resolver,
		Notifier: notifierOrNop(n),
		Now:      timeutil.Now,
	}
}

func validateSubmission(req *models.CreateSubmissionRequest) error {
	if strings.TrimSpace(req.EmployeeName) == "" {
		return models.NewValidationError("employee_name", "is required")
	}
	if strings.TrimSpace(req.ProductName) == "" {
		return models.NewValidationError("product_name", "is required")
	}
	if !req.SubmissionType.Valid() {
		return models.NewValidationError("submission_type", "must be packaged, bag_count or machine")
	}
	if req.DisplaysMade < 0 || req.PacksRemaining < 0 || req.LooseTablets < 0 || req.DamagedTablets < 0 {
		return models.NewValidationError("quantities", "must not be negative")
	}
	if (req.BoxNumber == nil) != (req.BagNumber == nil) {
		return models.NewValidationError("box_number", "box_number and bag_number must be given together")
	}
	if req.BoxNumber != nil && (*req.BoxNumber <= 0 || *req.BagNumber <= 0) {
		return models.NewValidationError("box_number", "box and bag numbers must be positive")
	}

	switch req.SubmissionType {
	case models.SubmissionPackaged:
		if req.DisplaysMade == 0 && req.PacksRemaining == 0 && req.LooseTablets == 0 && req.DamagedTablets == 0 {
			return models.NewValidationError("displays_made", "a packaged submission needs at least one quantity")
		}
	case models.SubmissionBagCount:
		if req.BoxNumber == nil {
			return models.NewValidationError("box_number", "bag counts must name the box and bag")
		}
	case models.SubmissionMachine:
		if req.MachineTurns == nil && req.MachineTotal == nil {
			return models.NewValidationError("machine_turns", "machine_turns or machine_total is required")
		}
		if (req.MachineTurns != nil && *req.MachineTurns < 0) || (req.MachineTotal != nil && *req.MachineTotal < 0) {
			return models.NewValidationError("machine_turns", "must not be negative")
		}
	}
	return nil
}

// RecordSubmission validates and stores a submission, then runs the resolver
// in the same transaction. Ambiguous matches are recorded as needs_review and
// are not an error.
func (s *SubmissionService) RecordSubmission(ctx context.Context, req *models.CreateSubmissionRequest) (*models.SubmissionResult, error) {
	if err := validateSubmission(req); err != nil {
		return nil, err
	}

	var sub *models.Submission
	var binding models.Binding
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		product, err := tx.GetProductByName(ctx, strings.TrimSpace(req.ProductName))
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			return models.NewValidationError("product_name", fmt.Sprintf("unknown product %q", req.ProductName))
		}
		if err != nil {
			return err
		}
		if req.POHint != nil {
			if _, err := tx.GetPurchaseOrder(ctx, *req.POHint, false); err != nil {
				if errors.As(err, &nf) {
					return models.NewValidationError("po_id", fmt.Sprintf("purchase order %d does not exist", *req.POHint))
				}
				return err
			}
		}

		params, err := s.Settings.ResolveCalcParams(ctx, tx)
		if err != nil {
			return err
		}

		sub = &models.Submission{
			EmployeeName:    strings.TrimSpace(req.EmployeeName),
			ProductID:       product.ID,
			ProductName:     product.Name,
			TabletTypeID:    product.TabletTypeID,
			InventoryItemID: product.InventoryItemID,
			SubmissionType:  req.SubmissionType,
			DisplaysMade:    req.DisplaysMade,
			PacksRemaining:  req.PacksRemaining,
			LooseTablets:    req.LooseTablets,
			DamagedTablets:  req.DamagedTablets,
			BoxNumber:       req.BoxNumber,
			BagNumber:       req.BagNumber,
			AssignedPOID:    req.POHint,
			CreatedAt:       s.Now(),
		}
		if err := CalculateTotal(sub, product, params, req.MachineTurns, req.MachineTotal); err != nil {
			return err
		}
		if err := tx.CreateSubmission(ctx, sub); err != nil {
			return err
		}

		binding, err = s.Resolver.Bind(ctx, tx, sub)
		return err
	})
	if err != nil {
		return nil, err
	}

	if sub.AssignedPOID != nil {
		cache.InvalidateBagStatus(ctx, *sub.AssignedPOID)
	}
	metrics.SubmissionsRecorded.WithLabelValues(string(sub.SubmissionType), string(binding.State)).Inc()
	if binding.State == models.BindingNeedsReview {
		s.Notifier.Notify(EventNeedsReview,
			fmt.Sprintf("Submission %d (%s box/bag %s) needs review: %d candidate bags", sub.ID, sub.ProductName, sub.BoxBagLabel(), len(binding.Candidates)),
			binding)
	}
	log.Printf("[Submission] %d recorded by %s: %s total=%d damaged=%d resolution=%s",
		sub.ID, sub.EmployeeName, sub.SubmissionType, sub.CalculatedTotal, sub.DamagedTablets, binding.State)

	return &models.SubmissionResult{SubmissionID: sub.ID, Binding: binding}, nil
}

func (s *SubmissionService) GetSubmission(ctx context.Context, id int) (*models.Submission, error) {
	var sub *models.Submission
	err := s.Store.View(ctx, func(tx store.Tx) error {
		var err error
		sub, err = tx.GetSubmission(ctx, id, false)
		return err
	})
	return sub, err
}
