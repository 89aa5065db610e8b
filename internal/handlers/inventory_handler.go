package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/services"
	"tablet-tracker/pkg/utils"
)

type InventoryHandler struct {
	Service   *services.InventoryService
	Reconcile *services.ReconcileService
}

func NewInventoryHandler(service *services.InventoryService, reconcile *services.ReconcileService) *InventoryHandler {
	return &InventoryHandler{Service: service, Reconcile: reconcile}
}

func (h *InventoryHandler) CreateReceive(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReceiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.Service.CreateReceive(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, rec)
}

func (h *InventoryHandler) GetReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	rec, err := h.Service.GetReceive(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, rec)
}

func (h *InventoryHandler) CreateBox(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	var req models.CreateBoxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	box, err := h.Service.CreateBox(r.Context(), id, &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, box)
}

func (h *InventoryHandler) CreateBag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	var req models.CreateBagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	bag, err := h.Service.CreateBag(r.Context(), id, &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, bag)
}

func (h *InventoryHandler) CloseReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	rec, err := h.Service.CloseReceive(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, rec)
}

func (h *InventoryHandler) CloseBag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	bag, err := h.Service.CloseBag(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, bag)
}

func queryInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0, models.NewValidationError(name, "must be an integer")
	}
	return v, nil
}

// BagStatus answers GET /api/bags/status?po_id=&product=&box=&bag=
func (h *InventoryHandler) BagStatus(w http.ResponseWriter, r *http.Request) {
	var nums [3]int
	for i, name := range []string{"po_id", "box", "bag"} {
		v, err := queryInt(r, name)
		if err != nil {
			respondError(w, r, err)
			return
		}
		nums[i] = v
	}

	report, err := h.Reconcile.GetBagStatus(r.Context(), nums[0], r.URL.Query().Get("product"), nums[1], nums[2])
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, report)
}

// FindBags lists open bags at a position: GET /api/bags?box=&bag=&tablet_type_id=[&po_id=]
func (h *InventoryHandler) FindBags(w http.ResponseWriter, r *http.Request) {
	var nums [3]int
	for i, name := range []string{"box", "bag", "tablet_type_id"} {
		v, err := queryInt(r, name)
		if err != nil {
			respondError(w, r, err)
			return
		}
		nums[i] = v
	}
	var poID *int
	if r.URL.Query().Get("po_id") != "" {
		v, err := queryInt(r, "po_id")
		if err != nil {
			respondError(w, r, err)
			return
		}
		poID = &v
	}

	bags, err := h.Service.FindBag(r.Context(), poID, nums[0], nums[1], nums[2])
	if err != nil {
		respondError(w, r, err)
		return
	}
	if bags == nil {
		bags = []models.BagCandidate{}
	}
	utils.JSON(w, http.StatusOK, bags)
}
