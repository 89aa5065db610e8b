package services

import (
	"tablet-tracker/internal/models"
)

// CalculateTotal fills the computed fields of s from its raw quantities.
//
//   - packaged:  displays × packages/display × tablets/package + packs × tablets/package + loose
//   - bag_count: the loose count as entered
//   - machine:   turns × cards/turn × tablets/package; when only a total is known
//     the turns are back-derived by integer division
//
// machineTurns and machineTotal are the optional machine inputs from the request.
func CalculateTotal(s *models.Submission, product *models.Product, params models.CalcParams, machineTurns, machineTotal *int) error {
	switch s.SubmissionType {
	case models.SubmissionPackaged:
		tpp := product.PackageFactor()
		if tpp <= 0 && (s.DisplaysMade > 0 || s.PacksRemaining > 0) {
			return models.NewValidationError("product_name", "product has no tablets_per_package configured")
		}
		ppd := product.DisplayFactor()
		if ppd <= 0 && s.DisplaysMade > 0 {
			return models.NewValidationError("product_name", "product has no packages_per_display configured")
		}
		s.CalculatedTotal = s.DisplaysMade*ppd*tpp + s.PacksRemaining*tpp + s.LooseTablets

	case models.SubmissionBagCount:
		s.CalculatedTotal = s.LooseTablets

	case models.SubmissionMachine:
		tpp := product.PackageFactor()
		if tpp <= 0 {
			return models.NewValidationError("product_name", "product has no tablets_per_package configured")
		}
		if params.CardsPerTurn <= 0 {
			return models.NewValidationError("cards_per_turn", "must be greater than zero")
		}
		switch {
		case machineTurns != nil:
			s.MachineTurns = *machineTurns
			s.MachineCards = s.MachineTurns * params.CardsPerTurn
			s.CalculatedTotal = s.MachineCards * tpp
			if machineTotal != nil && *machineTotal != s.CalculatedTotal {
				return models.NewValidationError("machine_total", "does not match machine_turns × cards_per_turn × tablets_per_package")
			}
		case machineTotal != nil:
			s.CalculatedTotal = *machineTotal
			s.MachineTurns = *machineTotal / (params.CardsPerTurn * tpp)
			s.MachineCards = s.MachineTurns * params.CardsPerTurn
		default:
			return models.NewValidationError("machine_turns", "machine_turns or machine_total is required")
		}

	default:
		return models.NewValidationError("submission_type", "must be packaged, bag_count or machine")
	}
	return nil
}

// IndividualCount is the good-unit count a submission adds to its own pool.
func IndividualCount(s *models.Submission) int {
	if s.SubmissionType == models.SubmissionBagCount {
		return s.LooseTablets
	}
	return s.CalculatedTotal
}

// ContributionOf is what a verified submission adds to its PO line.
func ContributionOf(s *models.Submission) models.Contribution {
	return models.Contribution{Good: IndividualCount(s), Damaged: s.DamagedTablets}
}
