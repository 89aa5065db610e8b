package handlers

import (
	"encoding/json"
	"net/http"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/services"
	"tablet-tracker/pkg/utils"
)

type CatalogHandler struct {
	Service *services.CatalogService
}

func NewCatalogHandler(service *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{Service: service}
}

func (h *CatalogHandler) CreateTabletType(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTabletTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tt, err := h.Service.CreateTabletType(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, tt)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.Service.CreateProduct(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	utils.JSON(w, http.StatusCreated, p)
}
