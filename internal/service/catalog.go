package service

import (
	"context"
	"fmt"
	"strings"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

func (s *Service) ListProducts(ctx context.Context, filter store.ProductFilter) (domain.Page[domain.Product], error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Page[domain.Product]{}, err
	}
	filter.Limit = clampLimit(filter.Limit, 15, 100)
	if filter.Page < 1 {
		filter.Page = 1
	}

	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return domain.Page[domain.Product]{Items: products, Total: total, PerPage: filter.Limit, Current: filter.Page}, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := s.requirePermission(ctx, domain.PermManageInventory)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("product name is required: %w", store.ErrInvalidInput)
	}
	if req.PriceCents < 0 || req.CostCents < 0 {
		return domain.Product{}, fmt.Errorf("price and cost must not be negative: %w", store.ErrInvalidInput)
	}
	if req.Stock < 0 {
		return domain.Product{}, fmt.Errorf("stock must not be negative: %w", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:       req.Name,
		SKU:        req.SKU,
		CategoryID: req.CategoryID,
		PriceCents: req.PriceCents,
		CostCents:  req.CostCents,
		Stock:      0,
		Active:     true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	// Opening stock goes through the ledger like any other restock.
	if req.Stock > 0 {
		stocked, err := s.repo.AddStock(ctx, created.ID, req.Stock, &actor.UserID, domain.NoRef(), "opening stock")
		if err != nil {
			return domain.Product{}, err
		}
		created = stocked
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := s.requirePermission(ctx, domain.PermManageInventory); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	product := *existing
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
		if product.Name == "" {
			return domain.Product{}, fmt.Errorf("product name is required: %w", store.ErrInvalidInput)
		}
	}
	if req.SKU != nil {
		product.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
	}
	if req.CategoryID != nil {
		product.CategoryID = req.CategoryID
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.Product{}, fmt.Errorf("price must not be negative: %w", store.ErrInvalidInput)
		}
		product.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		if *req.CostCents < 0 {
			return domain.Product{}, fmt.Errorf("cost must not be negative: %w", store.ErrInvalidInput)
		}
		product.CostCents = *req.CostCents
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}

// DeleteProduct disables the product (soft delete) so order history keeps
// its reference. It can be restored later.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.requirePermission(ctx, domain.PermManageInventory); err != nil {
		return err
	}
	return s.repo.SoftDeleteProduct(ctx, id)
}

func (s *Service) RestoreProduct(ctx context.Context, id int64) (domain.Product, error) {
	if _, err := s.requirePermission(ctx, domain.PermManageInventory); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.RestoreProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if _, err := s.requirePermission(ctx, domain.PermManageInventory); err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("category name is required: %w", store.ErrInvalidInput)
	}
	created, err := s.repo.CreateCategory(ctx, domain.Category{Name: name})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}
