package handlers

import (
	"encoding/json"
	"net/http"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/services"
	"tablet-tracker/pkg/utils"
)

type PurchaseOrderHandler struct {
	Service   *services.PurchaseOrderService
	Reconcile *services.ReconcileService
}

func NewPurchaseOrderHandler(service *services.PurchaseOrderService, reconcile *services.ReconcileService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{Service: service, Reconcile: reconcile}
}

func (h *PurchaseOrderHandler) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePurchaseOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	po, err := h.Service.CreatePurchaseOrder(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, po)
}

func (h *PurchaseOrderHandler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	po, err := h.Service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusOK, po)
}

func (h *PurchaseOrderHandler) RunningTotals(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	rows, err := h.Reconcile.ListRunningTotals(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.RunningTotalRow{}
	}
	utils.JSON(w, http.StatusOK, rows)
}
