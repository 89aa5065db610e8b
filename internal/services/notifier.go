package services

// Notifier receives review and ledger events for live dashboards.
// Implementations must not block the caller.
type Notifier interface {
	Notify(kind, message string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, interface{}) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

const (
	EventNeedsReview  = "needs_review"
	EventReviewClosed = "review_resolved"
	EventVerified     = "po_verified"
	EventReassigned   = "po_reassigned"
)
