package service

import (
	"context"
	"fmt"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

// AddStock increments a product's stock and records a restock ledger entry.
func (s *Service) AddStock(ctx context.Context, productID int64, quantity int, notes string) (domain.Product, error) {
	actor, err := s.requirePermission(ctx, domain.PermManageInventory)
	if err != nil {
		return domain.Product{}, err
	}
	if quantity <= 0 {
		return domain.Product{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}

	product, err := s.repo.AddStock(ctx, productID, quantity, &actor.UserID, domain.NoRef(), notes)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// RemoveStock takes stock out manually (spoilage, breakage). Sales go
// through the order flow instead.
func (s *Service) RemoveStock(ctx context.Context, productID int64, quantity int, notes string) (domain.Product, error) {
	actor, err := s.requirePermission(ctx, domain.PermManageInventory)
	if err != nil {
		return domain.Product{}, err
	}
	if quantity <= 0 {
		return domain.Product{}, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}

	product, err := s.repo.RemoveStock(ctx, productID, quantity, &actor.UserID, domain.NoRef(), notes)
	if err != nil {
		return domain.Product{}, err
	}
	s.checkLowStock(ctx, *product)
	return *product, nil
}

// AdjustStock sets the absolute stock level. An unchanged level writes no
// ledger entry.
func (s *Service) AdjustStock(ctx context.Context, productID int64, newStock int, notes string) (domain.Product, error) {
	actor, err := s.requirePermission(ctx, domain.PermManageInventory)
	if err != nil {
		return domain.Product{}, err
	}
	if newStock < 0 {
		return domain.Product{}, fmt.Errorf("stock must not be negative: %w", store.ErrInvalidInput)
	}

	product, err := s.repo.AdjustStock(ctx, productID, newStock, &actor.UserID, notes)
	if err != nil {
		return domain.Product{}, err
	}
	s.checkLowStock(ctx, *product)
	return *product, nil
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	if _, err := s.requirePermission(ctx, domain.PermManageInventory); err != nil {
		return nil, err
	}
	return s.repo.LowStockProducts(ctx, s.lowStockThreshold)
}

func (s *Service) StockHistory(ctx context.Context, productID int64, limit int) ([]domain.StockEntry, error) {
	if _, err := s.requirePermission(ctx, domain.PermManageInventory); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListStockEntries(ctx, productID, clampLimit(limit, 50, 200))
}

// checkLowStock emits a low-stock notification when the post-mutation level
// is at or under the threshold. Best-effort: a failure here never fails the
// stock operation that triggered it.
func (s *Service) checkLowStock(ctx context.Context, product domain.Product) {
	if product.Stock > s.lowStockThreshold {
		return
	}
	s.sendNotification(ctx, domain.Notification{
		Type:    domain.NotifLowStock,
		Message: fmt.Sprintf("Low stock: %s has %d left", product.Name, product.Stock),
	})
}
