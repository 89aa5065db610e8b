package models

import (
	"fmt"
	"strings"
)

// ValidationError rejects malformed input before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// DuplicateBagError is a receiving-time integrity violation on (box, bag number).
type DuplicateBagError struct {
	BoxID     int
	BagNumber int
}

func (e *DuplicateBagError) Error() string {
	return fmt.Sprintf("bag %d already exists in box %d", e.BagNumber, e.BoxID)
}

// NoMatchingLineError aborts a ledger mutation whose target PO has no line for the item.
type NoMatchingLineError struct {
	POID            int
	InventoryItemID string
}

func (e *NoMatchingLineError) Error() string {
	return fmt.Sprintf("purchase order %d has no line for inventory item %q", e.POID, e.InventoryItemID)
}

// AmbiguousMatchError describes a deferred binding. It is recorded on the
// submission as needs_review and never returned from submission creation.
type AmbiguousMatchError struct {
	SubmissionID int
	Candidates   []BagCandidate
}

func (e *AmbiguousMatchError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, c.ReceiveName)
	}
	return fmt.Sprintf("submission %d matches %d bags (%s)", e.SubmissionID, len(e.Candidates), strings.Join(names, ", "))
}

// LedgerInconsistencyError means a PO aggregate disagrees with its line sum after a mutation.
type LedgerInconsistencyError struct {
	POID          int
	AggregateGood int
	LineGood      int
	AggregateDmg  int
	LineDmg       int
}

func (e *LedgerInconsistencyError) Error() string {
	return fmt.Sprintf("purchase order %d ledger mismatch: aggregate good=%d damaged=%d, lines good=%d damaged=%d",
		e.POID, e.AggregateGood, e.AggregateDmg, e.LineGood, e.LineDmg)
}

type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// VerificationLockedError guards verified submissions against PO changes.
type VerificationLockedError struct {
	SubmissionID int
}

func (e *VerificationLockedError) Error() string {
	return fmt.Sprintf("submission %d is verified; reassignment requires confirm_override", e.SubmissionID)
}

// ConflictError reports state that changed under the caller.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }
