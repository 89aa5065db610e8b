package services

import (
	"sort"

	"tablet-tracker/internal/models"
)

// DefaultTolerance is the counting variance accepted as a match.
const DefaultTolerance = 5

type accumulators struct {
	overall  int
	packaged int
	bagCount int
	machine  int
}

// Reconcile folds submissions in chronological order and returns one snapshot
// per submission. Only packaged counts feed the overall total; bag-count and
// machine counts are separate physical pools. The input slice is not modified.
func Reconcile(inputs []models.ReconcileInput, tolerance int) []models.RunningTotalRow {
	ordered := make([]models.ReconcileInput, len(inputs))
	copy(ordered, inputs)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Submission, ordered[j].Submission
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	totals := make(map[models.BagKey]*accumulators)
	rows := make([]models.RunningTotalRow, 0, len(ordered))
	for _, in := range ordered {
		s := in.Submission
		acc, ok := totals[in.Key]
		if !ok {
			acc = &accumulators{}
			totals[in.Key] = acc
		}

		individual := IndividualCount(&s)
		switch s.SubmissionType {
		case models.SubmissionPackaged:
			acc.packaged += individual
			acc.overall += individual
		case models.SubmissionBagCount:
			acc.bagCount += individual
		case models.SubmissionMachine:
			acc.machine += individual
		}

		status := Classify(s.BagID != nil, acc.overall, in.LabelCount, tolerance)
		rows = append(rows, models.RunningTotalRow{
			SubmissionID:   s.ID,
			Key:            in.Key,
			SubmissionType: s.SubmissionType,
			BagID:          s.BagID,
			Individual:     individual,
			OverallTotal:   acc.overall,
			PackagedTotal:  acc.packaged,
			BagCountTotal:  acc.bagCount,
			MachineTotal:   acc.machine,
			LabelCount:     in.LabelCount,
			Status:         status,
			HasDiscrepancy: status != models.StatusMatch && in.LabelCount > 0,
			CreatedAt:      s.CreatedAt,
		})
	}
	return rows
}

// Classify compares a running total against a bag's label count.
func Classify(hasBag bool, runningTotal, labelCount, tolerance int) models.RunningStatus {
	switch {
	case !hasBag:
		return models.StatusNoBag
	case runningTotal < labelCount-tolerance:
		return models.StatusUnder
	case runningTotal > labelCount+tolerance:
		return models.StatusOver
	default:
		return models.StatusMatch
	}
}
