package repositories

import (
	"context"
	"fmt"

	"tablet-tracker/internal/models"
)

type CatalogRepository struct {
	DB Querier
}

func NewCatalogRepository(db Querier) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

func (r *CatalogRepository) CreateTabletType(ctx context.Context, t *models.TabletType) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO tablet_types (tablet_type_name, inventory_item_id)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		t.Name, t.InventoryItemID,
	).Scan(&t.ID, &t.CreatedAt)
	if pgErrorCode(err) == pgUniqueViolation {
		return models.NewValidationError("name", fmt.Sprintf("tablet type %q already exists", t.Name))
	}
	return err
}

func (r *CatalogRepository) GetTabletType(ctx context.Context, id int) (*models.TabletType, error) {
	t := &models.TabletType{}
	err := r.DB.QueryRow(ctx,
		`SELECT id, tablet_type_name, COALESCE(inventory_item_id, ''), created_at
		 FROM tablet_types WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.InventoryItemID, &t.CreatedAt)
	if isNoRows(err) {
		return nil, &models.NotFoundError{Entity: "tablet type", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p *models.Product) error {
	err := r.DB.QueryRow(ctx,
		`INSERT INTO product_details (product_name, tablet_type_id, packages_per_display, tablets_per_package)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		p.Name, p.TabletTypeID, p.PackagesPerDisplay, p.TabletsPerPackage,
	).Scan(&p.ID, &p.CreatedAt)
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		return models.NewValidationError("name", fmt.Sprintf("product %q already exists", p.Name))
	case pgForeignKey:
		return &models.NotFoundError{Entity: "tablet type", ID: p.TabletTypeID}
	}
	return err
}

// GetProductByName joins the tablet type so callers get the inventory item in one read.
func (r *CatalogRepository) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	p := &models.Product{}
	err := r.DB.QueryRow(ctx,
		`SELECT pd.id, pd.product_name, pd.tablet_type_id, COALESCE(tt.inventory_item_id, ''),
		        pd.packages_per_display, pd.tablets_per_package, pd.created_at
		 FROM product_details pd
		 JOIN tablet_types tt ON tt.id = pd.tablet_type_id
		 WHERE pd.product_name = $1`, name,
	).Scan(&p.ID, &p.Name, &p.TabletTypeID, &p.InventoryItemID,
		&p.PackagesPerDisplay, &p.TabletsPerPackage, &p.CreatedAt)
	if isNoRows(err) {
		return nil, &models.NotFoundError{Entity: "product", ID: name}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
