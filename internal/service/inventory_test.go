package service

import (
	"errors"
	"strings"
	"testing"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

func TestStockMutations(t *testing.T) {
	svc, _ := newTestService(t)
	syrup := seedProduct(t, svc, "Vanilla Syrup", 800, 350, 10)

	product, err := svc.AddStock(asManager(), syrup.ID, 5, "weekly delivery")
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if product.Stock != 15 {
		t.Fatalf("stock = %d, want 15", product.Stock)
	}

	product, err = svc.RemoveStock(asManager(), syrup.ID, 4, "broken bottles")
	if err != nil {
		t.Fatalf("remove stock: %v", err)
	}
	if product.Stock != 11 {
		t.Fatalf("stock = %d, want 11", product.Stock)
	}

	product, err = svc.AdjustStock(asManager(), syrup.ID, 20, "recount")
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if product.Stock != 20 {
		t.Fatalf("stock = %d, want 20", product.Stock)
	}

	entries, err := svc.StockHistory(asManager(), syrup.ID, 0)
	if err != nil {
		t.Fatalf("stock history: %v", err)
	}
	// Opening stock, delivery, removal, adjustment.
	if len(entries) != 4 {
		t.Fatalf("ledger entries = %d, want 4", len(entries))
	}
}

func TestRemoveStockBeyondAvailableIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	milk := seedProduct(t, svc, "Oat Milk", 500, 300, 3)

	_, err := svc.RemoveStock(asManager(), milk.ID, 4, "")
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	after, _ := svc.GetProduct(asManager(), milk.ID)
	if after.Stock != 3 {
		t.Fatalf("stock = %d, want 3 (unchanged)", after.Stock)
	}
}

func TestAdjustStockNegativeRejected(t *testing.T) {
	svc, _ := newTestService(t)
	cup := seedProduct(t, svc, "Paper Cup", 50, 20, 100)

	if _, err := svc.AdjustStock(asManager(), cup.ID, -1, ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLowStockNotification(t *testing.T) {
	svc, _ := newTestService(t)
	// Threshold in newTestService is 3.
	croissant := seedProduct(t, svc, "Croissant", 450, 180, 5)

	if _, err := svc.RemoveStock(asManager(), croissant.ID, 3, "stale"); err != nil {
		t.Fatalf("remove stock: %v", err)
	}

	feed, err := svc.Notifications(asAdmin(), 0)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	found := false
	for _, n := range feed.Notifications {
		if n.Type == domain.NotifLowStock && strings.Contains(n.Message, "Croissant") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a low-stock notification for Croissant")
	}
}

func TestLowStockListing(t *testing.T) {
	svc, _ := newTestService(t)
	seedProduct(t, svc, "Muffin", 400, 150, 2)
	seedProduct(t, svc, "Brownie", 500, 200, 9)

	low, err := svc.LowStockProducts(asManager())
	if err != nil {
		t.Fatalf("low stock products: %v", err)
	}
	if len(low) != 1 || low[0].Name != "Muffin" {
		t.Fatalf("unexpected low-stock list: %+v", low)
	}
}

func TestStockMutationRequiresInventoryPermission(t *testing.T) {
	svc, _ := newTestService(t)
	donut := seedProduct(t, svc, "Donut", 300, 120, 10)

	if _, err := svc.AddStock(asCashier(), donut.ID, 1, ""); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestStockHistoryUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.StockHistory(asManager(), 9999, 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
