package repositories

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/testutil"
)

// submissionRow lays out the submission columns in select order.
func submissionRow(id int, subType string, loose int, box, bag, bagID, assignedPO any, extra ...any) []any {
	row := []any{
		id, "maria", 3, "IBU-24", 7, "ITEM-IBU-200", subType,
		0, 0, loose, 0,
		0, 0, loose,
		box, bag, bagID, assignedPO,
		false, false, older.Add(time.Duration(id) * time.Minute),
	}
	return append(row, extra...)
}

func TestListReconcileInputsUsesEffectivePO(t *testing.T) {
	q := &testutil.Querier{Respond: func(string, []any) testutil.Result {
		return testutil.Result{Rows: [][]any{
			// bound through its bag's receive, no direct assignment
			submissionRow(1, "packaged", 30, 2, 3, 31, nil, 100),
			// assigned directly, no bag
			submissionRow(2, "bag_count", 25, nil, nil, nil, 12, 0),
		}}
	}}

	inputs, err := NewSubmissionRepository(q).ListReconcileInputs(context.Background(), 12)
	if err != nil {
		t.Fatalf("ListReconcileInputs: %v", err)
	}

	call := q.LastCall()
	for _, want := range []string{
		"LEFT JOIN bags b ON b.id = ws.bag_id",
		"WHERE COALESCE(ws.assigned_po_id, r.po_id) = $1",
		"ORDER BY ws.created_at ASC, ws.id ASC",
		"COALESCE(b.label_count, 0)",
	} {
		if !strings.Contains(call.SQL, want) {
			t.Fatalf("query missing %q:\n%s", want, call.SQL)
		}
	}
	if !reflect.DeepEqual(call.Args, []any{12}) {
		t.Fatalf("args = %v", call.Args)
	}

	if len(inputs) != 2 {
		t.Fatalf("inputs = %d, want 2", len(inputs))
	}
	bound := inputs[0]
	if bound.Key != (models.BagKey{POID: 12, ProductName: "IBU-24", BoxBag: "2/3"}) || bound.LabelCount != 100 {
		t.Fatalf("bound input = %+v", bound)
	}
	if bound.Submission.SubmissionType != models.SubmissionPackaged || bound.Submission.BagID == nil ||
		*bound.Submission.BagID != 31 || bound.Submission.AssignedPOID != nil {
		t.Fatalf("bound submission = %+v", bound.Submission)
	}
	direct := inputs[1]
	if direct.Key != (models.BagKey{POID: 12, ProductName: "IBU-24"}) || direct.LabelCount != 0 {
		t.Fatalf("direct input = %+v", direct)
	}
	if direct.Submission.SubmissionType != models.SubmissionBagCount || direct.Submission.BagID != nil ||
		direct.Submission.AssignedPOID == nil || *direct.Submission.AssignedPOID != 12 {
		t.Fatalf("direct submission = %+v", direct.Submission)
	}
}

func TestGetSubmissionLocksWhenAsked(t *testing.T) {
	q := &testutil.Querier{Respond: func(string, []any) testutil.Result {
		return testutil.Result{Rows: [][]any{submissionRow(5, "machine", 0, nil, nil, nil, nil)}}
	}}
	repo := NewSubmissionRepository(q)

	sub, err := repo.GetSubmission(context.Background(), 5, true)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if sub.ID != 5 || sub.SubmissionType != models.SubmissionMachine || sub.BoxNumber != nil {
		t.Fatalf("submission = %+v", sub)
	}
	if !strings.HasSuffix(q.LastCall().SQL, "WHERE ws.id = $1 FOR UPDATE") {
		t.Fatalf("locked read = %s", q.LastCall().SQL)
	}

	if _, err := repo.GetSubmission(context.Background(), 5, false); err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if strings.Contains(q.LastCall().SQL, "FOR UPDATE") {
		t.Fatalf("plain read is locked: %s", q.LastCall().SQL)
	}
}

func TestGetSubmissionNotFound(t *testing.T) {
	_, err := NewSubmissionRepository(&testutil.Querier{}).GetSubmission(context.Background(), 404, false)
	var nf *models.NotFoundError
	if !errors.As(err, &nf) || nf.ID != 404 {
		t.Fatalf("err = %v, want NotFoundError for 404", err)
	}
}

func TestUpdateSubmissionBinding(t *testing.T) {
	q := &testutil.Querier{Respond: func(string, []any) testutil.Result {
		return testutil.Result{Tag: "UPDATE 1"}
	}}
	repo := NewSubmissionRepository(q)
	bagID, poID := 31, 12

	if err := repo.UpdateSubmissionBinding(context.Background(), 5, &bagID, &poID, false); err != nil {
		t.Fatalf("UpdateSubmissionBinding: %v", err)
	}
	args := q.LastCall().Args
	if *(args[0].(*int)) != 31 || *(args[1].(*int)) != 12 || args[2] != false || args[3] != 5 {
		t.Fatalf("args = %v", args)
	}

	q.Respond = func(string, []any) testutil.Result { return testutil.Result{Tag: "UPDATE 0"} }
	err := repo.UpdateSubmissionBinding(context.Background(), 6, nil, nil, true)
	var nf *models.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestUnboundAndReviewListsFilter(t *testing.T) {
	q := &testutil.Querier{}
	repo := NewSubmissionRepository(q)

	if _, err := repo.ListUnboundSubmissions(context.Background()); err != nil {
		t.Fatalf("ListUnboundSubmissions: %v", err)
	}
	if sql := q.LastCall().SQL; !strings.Contains(sql, "ws.bag_id IS NULL AND ws.po_assignment_verified = FALSE") {
		t.Fatalf("unbound query = %s", sql)
	}
	if _, err := repo.ListNeedsReview(context.Background()); err != nil {
		t.Fatalf("ListNeedsReview: %v", err)
	}
	if sql := q.LastCall().SQL; !strings.Contains(sql, "ws.needs_review = TRUE") {
		t.Fatalf("review query = %s", sql)
	}
}
