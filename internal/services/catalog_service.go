package services

import (
	"context"
	"strings"

	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
)

type CatalogService struct {
	Store store.Store
}

func NewCatalogService(st store.Store) *CatalogService {
	return &CatalogService{Store: st}
}

func (s *CatalogService) CreateTabletType(ctx context.Context, req *models.CreateTabletTypeRequest) (*models.TabletType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, models.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(req.InventoryItemID) == "" {
		return nil, models.NewValidationError("inventory_item_id", "is required")
	}

	tt := &models.TabletType{Name: name, InventoryItemID: strings.TrimSpace(req.InventoryItemID)}
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		return tx.CreateTabletType(ctx, tt)
	})
	if err != nil {
		return nil, err
	}
	return tt, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, models.NewValidationError("name", "is required")
	}
	if req.TabletTypeID <= 0 {
		return nil, models.NewValidationError("tablet_type_id", "is required")
	}
	if req.PackagesPerDisplay != nil && *req.PackagesPerDisplay < 0 {
		return nil, models.NewValidationError("packages_per_display", "must not be negative")
	}
	if req.TabletsPerPackage != nil && *req.TabletsPerPackage < 0 {
		return nil, models.NewValidationError("tablets_per_package", "must not be negative")
	}

	p := &models.Product{
		Name:               name,
		TabletTypeID:       req.TabletTypeID,
		PackagesPerDisplay: req.PackagesPerDisplay,
		TabletsPerPackage:  req.TabletsPerPackage,
	}
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		tt, err := tx.GetTabletType(ctx, req.TabletTypeID)
		if err != nil {
			return err
		}
		p.InventoryItemID = tt.InventoryItemID
		return tx.CreateProduct(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
