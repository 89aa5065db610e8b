package models

import "time"

// TabletType is the physical product carried in bags and tracked on PO lines
// through its inventory item reference.
type TabletType struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	InventoryItemID string    `json:"inventory_item_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Product is a packaged SKU built from one tablet type.
type Product struct {
	ID                 int       `json:"id"`
	Name               string    `json:"name"`
	TabletTypeID       int       `json:"tablet_type_id"`
	InventoryItemID    string    `json:"inventory_item_id,omitempty"`
	PackagesPerDisplay *int      `json:"packages_per_display,omitempty"`
	TabletsPerPackage  *int      `json:"tablets_per_package,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// DisplayFactor resolves the packages-per-display default (0 when unset).
func (p *Product) DisplayFactor() int {
	if p.PackagesPerDisplay == nil {
		return 0
	}
	return *p.PackagesPerDisplay
}

// PackageFactor resolves the tablets-per-package default (0 when unset).
func (p *Product) PackageFactor() int {
	if p.TabletsPerPackage == nil {
		return 0
	}
	return *p.TabletsPerPackage
}

type CreateTabletTypeRequest struct {
	Name            string `json:"name"`
	InventoryItemID string `json:"inventory_item_id"`
}

type CreateProductRequest struct {
	Name               string `json:"name"`
	TabletTypeID       int    `json:"tablet_type_id"`
	PackagesPerDisplay *int   `json:"packages_per_display,omitempty"`
	TabletsPerPackage  *int   `json:"tablets_per_package,omitempty"`
}
