package models

import (
	"fmt"
	"time"
)

type SubmissionType string

const (
	SubmissionPackaged SubmissionType = "packaged"
	SubmissionBagCount SubmissionType = "bag_count"
	SubmissionMachine  SubmissionType = "machine"
)

func (t SubmissionType) Valid() bool {
	switch t {
	case SubmissionPackaged, SubmissionBagCount, SubmissionMachine:
		return true
	}
	return false
}

// Submission is one worker-entered production record. Raw quantities are fixed
// at creation; only BagID, AssignedPOID and the review/verification flags move later.
type Submission struct {
	ID                   int            `json:"id"`
	EmployeeName         string         `json:"employee_name"`
	ProductID            int            `json:"product_id"`
	ProductName          string         `json:"product_name"`
	TabletTypeID         int            `json:"tablet_type_id"`
	InventoryItemID      string         `json:"inventory_item_id"`
	SubmissionType       SubmissionType `json:"submission_type"`
	DisplaysMade         int            `json:"displays_made"`
	PacksRemaining       int            `json:"packs_remaining"`
	LooseTablets         int            `json:"loose_tablets"`
	DamagedTablets       int            `json:"damaged_tablets"`
	MachineTurns         int            `json:"machine_turns"`
	MachineCards         int            `json:"machine_cards"`
	CalculatedTotal      int            `json:"calculated_total"`
	BoxNumber            *int           `json:"box_number,omitempty"`
	BagNumber            *int           `json:"bag_number,omitempty"`
	BagID                *int           `json:"bag_id"`
	AssignedPOID         *int           `json:"assigned_po_id"`
	POAssignmentVerified bool           `json:"po_assignment_verified"`
	NeedsReview          bool           `json:"needs_review"`
	CreatedAt            time.Time      `json:"created_at"`
}

// BoxBagLabel is the "box/bag" component of a bag key, empty when either number is missing.
func (s *Submission) BoxBagLabel() string {
	if s.BoxNumber == nil || s.BagNumber == nil {
		return ""
	}
	return fmt.Sprintf("%d/%d", *s.BoxNumber, *s.BagNumber)
}

// Binding derives the explicit binding state from the persisted columns.
func (s *Submission) Binding() BindingState {
	switch {
	case s.BagID != nil:
		return BindingBound
	case s.NeedsReview:
		return BindingNeedsReview
	default:
		return BindingUnbound
	}
}

// Contribution is what a submission adds to a PO line once verified.
type Contribution struct {
	Good    int `json:"good"`
	Damaged int `json:"damaged"`
}

type BindingState string

const (
	BindingUnbound     BindingState = "unbound"
	BindingBound       BindingState = "bound"
	BindingNeedsReview BindingState = "needs_review"
)

// Binding is the resolver's decision for one submission: Unbound, Bound(BagID)
// or NeedsReview(Candidates).
type Binding struct {
	State      BindingState   `json:"resolution"`
	BagID      *int           `json:"bag_id,omitempty"`
	POID       *int           `json:"po_id,omitempty"`
	Candidates []BagCandidate `json:"candidates,omitempty"`
}

type CreateSubmissionRequest struct {
	EmployeeName   string         `json:"employee_name"`
	ProductName    string         `json:"product_name"`
	SubmissionType SubmissionType `json:"submission_type"`
	DisplaysMade   int            `json:"displays_made"`
	PacksRemaining int            `json:"packs_remaining"`
	LooseTablets   int            `json:"loose_tablets"`
	DamagedTablets int            `json:"damaged_tablets"`
	MachineTurns   *int           `json:"machine_turns,omitempty"`
	MachineTotal   *int           `json:"machine_total,omitempty"`
	BoxNumber      *int           `json:"box_number,omitempty"`
	BagNumber      *int           `json:"bag_number,omitempty"`
	POHint         *int           `json:"po_id,omitempty"`
}

type SubmissionResult struct {
	SubmissionID int `json:"submission_id"`
	Binding
}

type VerifySubmissionRequest struct {
	POID int `json:"po_id"`
}

type ReassignSubmissionRequest struct {
	NewPOID         int  `json:"new_po_id"`
	ConfirmOverride bool `json:"confirm_override"`
}

type ResolveReviewRequest struct {
	BagID int `json:"bag_id"`
}

// NeedsReviewItem is one entry of the manual review queue.
type NeedsReviewItem struct {
	SubmissionID  int            `json:"submission_id"`
	EmployeeName  string         `json:"employee_name"`
	ProductName   string         `json:"product_name"`
	BoxNumber     *int           `json:"box_number,omitempty"`
	BagNumber     *int           `json:"bag_number,omitempty"`
	AssignedPOID  *int           `json:"assigned_po_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CandidateBags []BagCandidate `json:"candidate_bags"`
}

// BackfillSummary reports a batch resolver run.
type BackfillSummary struct {
	Examined    int `json:"examined"`
	Bound       int `json:"bound"`
	NeedsReview int `json:"needs_review"`
	Unbound     int `json:"unbound"`
	AutoPicked  int `json:"auto_picked"`
}
