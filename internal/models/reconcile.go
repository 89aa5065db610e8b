package models

import "time"

type RunningStatus string

const (
	StatusMatch RunningStatus = "match"
	StatusUnder RunningStatus = "under"
	StatusOver  RunningStatus = "over"
	StatusNoBag RunningStatus = "no_bag"
)

// BagKey groups submissions that draw from the same physical bag.
type BagKey struct {
	POID        int    `json:"po_id"`
	ProductName string `json:"product_name"`
	BoxBag      string `json:"box_bag"`
}

// RunningTotalRow is the snapshot of a bag key's totals as of one submission.
type RunningTotalRow struct {
	SubmissionID   int            `json:"submission_id"`
	Key            BagKey         `json:"key"`
	SubmissionType SubmissionType `json:"submission_type"`
	BagID          *int           `json:"bag_id"`
	Individual     int            `json:"individual"`
	OverallTotal   int            `json:"overall_total"`
	PackagedTotal  int            `json:"packaged_total"`
	BagCountTotal  int            `json:"bag_count_total"`
	MachineTotal   int            `json:"machine_total"`
	LabelCount     int            `json:"label_count"`
	Status         RunningStatus  `json:"status"`
	HasDiscrepancy bool           `json:"has_discrepancy"`
	CreatedAt      time.Time      `json:"created_at"`
}

// BagStatusReport is the final snapshot for one bag key.
type BagStatusReport struct {
	POID            int           `json:"po_id"`
	ProductName     string        `json:"product_name"`
	BoxNumber       int           `json:"box_number"`
	BagNumber       int           `json:"bag_number"`
	LabelCount      int           `json:"label_count"`
	RunningTotal    int           `json:"running_total"`
	Status          RunningStatus `json:"status"`
	HasDiscrepancy  bool          `json:"has_discrepancy"`
	SubmissionCount int           `json:"submission_count"`
}

// ReconcileInput is one submission as seen by the running-total fold.
type ReconcileInput struct {
	Submission Submission
	Key        BagKey
	LabelCount int
}
