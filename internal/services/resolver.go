package services

import (
	"context"
	"fmt"
	"log"

	"tablet-tracker/internal/cache"
	"tablet-tracker/internal/metrics"
	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
)

// DecideBinding maps the findBag result for a submission onto a binding.
// Zero matches leave the submission unbound unless it also has no PO, in which
// case nothing can reconcile it and it goes to review. Several matches are never
// picked automatically.
func DecideBinding(assignedPOID *int, candidates []models.BagCandidate) models.Binding {
	switch len(candidates) {
	case 0:
		if assignedPOID == nil {
			return models.Binding{State: models.BindingNeedsReview, Candidates: []models.BagCandidate{}}
		}
		return models.Binding{State: models.BindingUnbound, POID: assignedPOID}
	case 1:
		bagID := candidates[0].BagID
		poID := assignedPOID
		if poID == nil {
			receivePO := candidates[0].POID
			poID = &receivePO
		}
		return models.Binding{State: models.BindingBound, BagID: &bagID, POID: poID}
	default:
		return models.Binding{State: models.BindingNeedsReview, POID: assignedPOID, Candidates: candidates}
	}
}

// ResolverService binds submissions to physical bags.
type ResolverService struct {
	Store    store.Store
	Notifier Notifier
}

func NewResolverService(st store.Store, n Notifier) *ResolverService {
	return &ResolverService{Store: st, Notifier: notifierOrNop(n)}
}

func bagQueryFor(sub *models.Submission) (models.BagQuery, bool) {
	if sub.BoxNumber == nil || sub.BagNumber == nil {
		return models.BagQuery{}, false
	}
	return models.BagQuery{
		POID:         sub.AssignedPOID,
		BoxNumber:    *sub.BoxNumber,
		BagNumber:    *sub.BagNumber,
		TabletTypeID: sub.TabletTypeID,
	}, true
}

func candidatesFor(ctx context.Context, tx store.Tx, sub *models.Submission) ([]models.BagCandidate, error) {
	q, ok := bagQueryFor(sub)
	if !ok {
		return nil, nil
	}
	return tx.FindBags(ctx, q)
}

// Bind runs the resolver for one submission inside the caller's transaction and
// persists the decision. The submission is updated in place.
func (s *ResolverService) Bind(ctx context.Context, tx store.Tx, sub *models.Submission) (models.Binding, error) {
	return bindInTx(ctx, tx, sub)
}

func bindInTx(ctx context.Context, tx store.Tx, sub *models.Submission) (models.Binding, error) {
	candidates, err := candidatesFor(ctx, tx, sub)
	if err != nil {
		return models.Binding{}, fmt.Errorf("find bags for submission %d: %w", sub.ID, err)
	}
	b := DecideBinding(sub.AssignedPOID, candidates)
	if err := persistBinding(ctx, tx, sub, b); err != nil {
		return models.Binding{}, err
	}
	if b.State == models.BindingNeedsReview && len(b.Candidates) > 1 {
		amb := &models.AmbiguousMatchError{SubmissionID: sub.ID, Candidates: b.Candidates}
		log.Printf("[Resolver] deferred: %v", amb)
	}
	return b, nil
}

func persistBinding(ctx context.Context, tx store.Tx, sub *models.Submission, b models.Binding) error {
	needsReview := b.State == models.BindingNeedsReview
	if err := tx.UpdateSubmissionBinding(ctx, sub.ID, b.BagID, b.POID, needsReview); err != nil {
		return fmt.Errorf("update binding for submission %d: %w", sub.ID, err)
	}
	sub.BagID = b.BagID
	sub.AssignedPOID = b.POID
	sub.NeedsReview = needsReview
	return nil
}

// ResolveReview applies a human bag pick to a submission awaiting review. The
// bag must be one of the submission's current candidates.
func (s *ResolverService) ResolveReview(ctx context.Context, submissionID, bagID int) (*models.Submission, error) {
	var sub *models.Submission
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		sub, err = tx.GetSubmission(ctx, submissionID, true)
		if err != nil {
			return err
		}
		if !sub.NeedsReview {
			return &models.ConflictError{Message: fmt.Sprintf("submission %d is not awaiting review", submissionID)}
		}
		candidates, err := candidatesFor(ctx, tx, sub)
		if err != nil {
			return err
		}
		var picked *models.BagCandidate
		for i := range candidates {
			if candidates[i].BagID == bagID {
				picked = &candidates[i]
				break
			}
		}
		if picked == nil {
			return models.NewValidationError("bag_id", fmt.Sprintf("bag %d is not a candidate for submission %d", bagID, submissionID))
		}
		b := DecideBinding(sub.AssignedPOID, []models.BagCandidate{*picked})
		return persistBinding(ctx, tx, sub, b)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateBagStatus(ctx, *sub.AssignedPOID)
	metrics.SubmissionsRecorded.WithLabelValues(string(sub.SubmissionType), "review_resolved").Inc()
	s.Notifier.Notify(EventReviewClosed, fmt.Sprintf("Submission %d bound to bag %d", sub.ID, bagID), sub)
	log.Printf("[Resolver] Submission %d resolved to bag %d (PO %d)", sub.ID, bagID, *sub.AssignedPOID)
	return sub, nil
}

// ListNeedsReview returns the review queue with fresh candidate lists.
func (s *ResolverService) ListNeedsReview(ctx context.Context) ([]models.NeedsReviewItem, error) {
	var items []models.NeedsReviewItem
	err := s.Store.View(ctx, func(tx store.Tx) error {
		subs, err := tx.ListNeedsReview(ctx)
		if err != nil {
			return err
		}
		items = make([]models.NeedsReviewItem, 0, len(subs))
		for i := range subs {
			sub := &subs[i]
			candidates, err := candidatesFor(ctx, tx, sub)
			if err != nil {
				return err
			}
			if candidates == nil {
				candidates = []models.BagCandidate{}
			}
			items = append(items, models.NeedsReviewItem{
				SubmissionID:  sub.ID,
				EmployeeName:  sub.EmployeeName,
				ProductName:   sub.ProductName,
				BoxNumber:     sub.BoxNumber,
				BagNumber:     sub.BagNumber,
				AssignedPOID:  sub.AssignedPOID,
				CreatedAt:     sub.CreatedAt,
				CandidateBags: candidates,
			})
		}
		return nil
	})
	return items, err
}

// BackfillBindings re-runs the resolver over every unbound, unverified
// submission, one transaction per submission. With autoPickLatest, ambiguous
// matches bind to the most recently received candidate.
func (s *ResolverService) BackfillBindings(ctx context.Context, autoPickLatest bool) (*models.BackfillSummary, error) {
	var pending []models.Submission
	err := s.Store.View(ctx, func(tx store.Tx) error {
		var err error
		pending, err = tx.ListUnboundSubmissions(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	summary := &models.BackfillSummary{}
	touched := make([]int, 0)
	for _, p := range pending {
		var state models.BindingState
		var autoPicked bool
		var sub *models.Submission
		err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
			var err error
			sub, err = tx.GetSubmission(ctx, p.ID, true)
			if err != nil {
				return err
			}
			if sub.BagID != nil || sub.POAssignmentVerified {
				state = sub.Binding()
				return nil
			}
			b, err := s.Bind(ctx, tx, sub)
			if err != nil {
				return err
			}
			if autoPickLatest && b.State == models.BindingNeedsReview && len(b.Candidates) > 1 {
				// FindBags orders received_date DESC, id DESC
				latest := DecideBinding(sub.AssignedPOID, b.Candidates[:1])
				if err := persistBinding(ctx, tx, sub, latest); err != nil {
					return err
				}
				b = latest
				autoPicked = true
			}
			state = b.State
			return nil
		})
		if err != nil {
			return summary, fmt.Errorf("backfill submission %d: %w", p.ID, err)
		}

		summary.Examined++
		switch state {
		case models.BindingBound:
			summary.Bound++
		case models.BindingNeedsReview:
			summary.NeedsReview++
		default:
			summary.Unbound++
		}
		if autoPicked {
			summary.AutoPicked++
		}
		if sub.AssignedPOID != nil {
			touched = append(touched, *sub.AssignedPOID)
		}
		if p.AssignedPOID != nil {
			touched = append(touched, *p.AssignedPOID)
		}
	}

	cache.InvalidateBagStatus(ctx, touched...)
	log.Printf("[Resolver] Backfill examined=%d bound=%d needs_review=%d unbound=%d auto_picked=%d",
		summary.Examined, summary.Bound, summary.NeedsReview, summary.Unbound, summary.AutoPicked)
	return summary, nil
}
