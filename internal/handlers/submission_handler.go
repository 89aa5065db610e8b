package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tablet-tracker/internal/middleware"
	"tablet-tracker/internal/models"
	"tablet-tracker/internal/services"
	"tablet-tracker/pkg/utils"
)

type SubmissionHandler struct {
	Service  *services.SubmissionService
	Resolver *services.ResolverService
	Ledger   *services.LedgerService
}

func NewSubmissionHandler(service *services.SubmissionService, resolver *services.ResolverService, ledger *services.LedgerService) *SubmissionHandler {
	return &SubmissionHandler{Service: service, Resolver: resolver, Ledger: ledger}
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil && id > 0
}

func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.EmployeeName == "" {
		if employee, ok := middleware.GetEmployeeFromContext(r.Context()); ok {
			req.EmployeeName = employee
		}
	}

	result, err := h.Service.RecordSubmission(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, result)
}

func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	sub, err := h.Service.GetSubmission(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, struct {
		*models.Submission
		Resolution models.BindingState `json:"resolution"`
	}{sub, sub.Binding()})
}

func (h *SubmissionHandler) ListNeedsReview(w http.ResponseWriter, r *http.Request) {
	items, err := h.Resolver.ListNeedsReview(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, items)
}

func (h *SubmissionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	var req models.VerifySubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.Ledger.AssignAndVerify(r.Context(), id, req.POID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, sub)
}

// Reassign moves a submission to new_po_id. The PO the submission holds when
// the request arrives is the "from" side; a concurrent change yields 409.
func (h *SubmissionHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	var req models.ReassignSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.Service.GetSubmission(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	from := 0
	if sub.AssignedPOID != nil {
		from = *sub.AssignedPOID
	}
	actor, _ := middleware.GetEmployeeFromContext(r.Context())

	result, err := h.Ledger.Reassign(r.Context(), services.ReassignCommand{
		SubmissionID:    id,
		FromPOID:        from,
		ToPOID:          req.NewPOID,
		ConfirmOverride: req.ConfirmOverride,
		Actor:           actor,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}

func (h *SubmissionHandler) ResolveReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	var req models.ResolveReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.Resolver.ResolveReview(r.Context(), id, req.BagID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, sub)
}

func (h *SubmissionHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	autoPick, _ := strconv.ParseBool(r.URL.Query().Get("auto_pick_latest"))

	summary, err := h.Resolver.BackfillBindings(r.Context(), autoPick)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, summary)
}
