package service

import (
	"errors"
	"strings"
	"testing"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

func TestCreateOrderDeductsStockAndComputesTotals(t *testing.T) {
	svc, _ := newTestService(t)
	espresso := seedProduct(t, svc, "Espresso", 350, 90, 10)

	order, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		Items:         []domain.OrderItemRequest{{ProductID: espresso.ID, Quantity: 2}},
		DiscountCents: 100,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if order.TotalCents != 700 {
		t.Fatalf("total = %d, want 700", order.TotalCents)
	}
	if order.GrandTotalCents != 600 {
		t.Fatalf("grand total = %d, want 600", order.GrandTotalCents)
	}
	if order.Status != domain.OrderPending || order.PaymentStatus != domain.PaymentPending {
		t.Fatalf("new order should be pending/pending, got %s/%s", order.Status, order.PaymentStatus)
	}
	if len(order.Items) != 1 || order.Items[0].ProductName != "Espresso" || order.Items[0].UnitPriceCents != 350 {
		t.Fatalf("unexpected items: %+v", order.Items)
	}

	after, err := svc.GetProduct(asCashier(), espresso.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 8 {
		t.Fatalf("stock = %d, want 8", after.Stock)
	}
}

func TestCreateOrderInsufficientStockIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	mug := seedProduct(t, svc, "Ceramic Mug", 1200, 400, 5)
	beans := seedProduct(t, svc, "Coffee Beans", 2500, 1100, 2)

	_, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		Items: []domain.OrderItemRequest{
			{ProductID: mug.ID, Quantity: 3},
			{ProductID: beans.ID, Quantity: 4},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The first line's deduction must have been rolled back.
	for _, p := range []domain.Product{mug, beans} {
		after, err := svc.GetProduct(asCashier(), p.ID)
		if err != nil {
			t.Fatalf("get product: %v", err)
		}
		if after.Stock != p.Stock {
			t.Fatalf("%s stock = %d, want %d", p.Name, after.Stock, p.Stock)
		}
	}
	page, err := svc.ListOrders(asCashier(), store.OrderFilter{})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("no order should have been created, found %d", page.Total)
	}
}

func TestCreateOrderRejectsUnavailableProduct(t *testing.T) {
	svc, _ := newTestService(t)
	scone := seedProduct(t, svc, "Scone", 400, 150, 6)

	if err := svc.DeleteProduct(asAdmin(), scone.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	_, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		Items: []domain.OrderItemRequest{{ProductID: scone.ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "unavailable") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := newTestService(t)
	latte := seedProduct(t, svc, "Latte", 450, 120, 10)

	cases := []struct {
		name string
		req  domain.OrderCreateRequest
	}{
		{"no items", domain.OrderCreateRequest{}},
		{"zero quantity", domain.OrderCreateRequest{Items: []domain.OrderItemRequest{{ProductID: latte.ID, Quantity: 0}}}},
		{"negative discount", domain.OrderCreateRequest{Items: []domain.OrderItemRequest{{ProductID: latte.ID, Quantity: 1}}, DiscountCents: -1}},
		{"bad payment method", domain.OrderCreateRequest{Items: []domain.OrderItemRequest{{ProductID: latte.ID, Quantity: 1}}, PaymentMethod: "barter"}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateOrder(asCashier(), tc.req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestVIPDiscountAppliedAtCreation(t *testing.T) {
	svc, repo := newTestService(t)
	cake := seedProduct(t, svc, "Cake Slice", 2000, 800, 10)
	customer := seedCustomer(t, svc, "Rina")

	if _, _, err := repo.AddLoyaltyPoints(asAdmin(), customer.ID, 60); err != nil {
		t.Fatalf("add points: %v", err)
	}

	order, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		CustomerID:    &customer.ID,
		Items:         []domain.OrderItemRequest{{ProductID: cake.ID, Quantity: 1}},
		DiscountCents: 0,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// Silver tier, 5 percent off 2000.
	if order.GrandTotalCents != 1900 {
		t.Fatalf("grand total = %d, want 1900", order.GrandTotalCents)
	}
}

func TestUpdateOrderReplacesItems(t *testing.T) {
	svc, _ := newTestService(t)
	tea := seedProduct(t, svc, "Green Tea", 300, 80, 10)
	cookie := seedProduct(t, svc, "Cookie", 250, 60, 10)

	order, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		Items: []domain.OrderItemRequest{{ProductID: tea.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	updated, err := svc.UpdateOrder(asCashier(), order.ID, domain.OrderUpdateRequest{
		Items: []domain.OrderItemRequest{{ProductID: cookie.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("update order: %v", err)
	}

	if updated.TotalCents != 500 {
		t.Fatalf("total = %d, want 500", updated.TotalCents)
	}
	if len(updated.Items) != 1 || updated.Items[0].ProductID != cookie.ID {
		t.Fatalf("items not replaced: %+v", updated.Items)
	}

	teaAfter, _ := svc.GetProduct(asCashier(), tea.ID)
	cookieAfter, _ := svc.GetProduct(asCashier(), cookie.ID)
	if teaAfter.Stock != 10 {
		t.Fatalf("tea stock = %d, want 10 (restored)", teaAfter.Stock)
	}
	if cookieAfter.Stock != 8 {
		t.Fatalf("cookie stock = %d, want 8", cookieAfter.Stock)
	}
}

func TestUpdatePaidOrderRejected(t *testing.T) {
	svc, _ := newTestService(t)
	juice := seedProduct(t, svc, "Orange Juice", 600, 200, 10)

	order, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		Items: []domain.OrderItemRequest{{ProductID: juice.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := svc.PayOrder(asCashier(), order.ID, domain.PayCash); err != nil {
		t.Fatalf("pay order: %v", err)
	}

	_, err = svc.UpdateOrder(asCashier(), order.ID, domain.OrderUpdateRequest{
		Items: []domain.OrderItemRequest{{ProductID: juice.ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	after, _ := svc.GetProduct(asCashier(), juice.ID)
	if after.Stock != 8 {
		t.Fatalf("stock = %d, want 8 (unchanged)", after.Stock)
	}
}

func TestCancelOrderRestoresStockExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	bagel := seedProduct(t, svc, "Bagel", 350, 120, 7)

	order, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		Items: []domain.OrderItemRequest{{ProductID: bagel.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	cancelled, err := svc.CancelOrder(asCashier(), order.ID)
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if cancelled.Status != domain.OrderCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	after, _ := svc.GetProduct(asCashier(), bagel.ID)
	if after.Stock != 7 {
		t.Fatalf("stock = %d, want 7", after.Stock)
	}

	// Cancelling again must be rejected without touching stock.
	if _, err := svc.CancelOrder(asCashier(), order.ID); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput on double cancel, got %v", err)
	}
	after, _ = svc.GetProduct(asCashier(), bagel.ID)
	if after.Stock != 7 {
		t.Fatalf("stock = %d after double cancel, want 7", after.Stock)
	}
}

func TestCancelPaidOrderNeedsRefundPermission(t *testing.T) {
	svc, _ := newTestService(t)
	pie := seedProduct(t, svc, "Apple Pie", 900, 300, 5)

	order, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		Items: []domain.OrderItemRequest{{ProductID: pie.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := svc.PayOrder(asCashier(), order.ID, domain.PayCard); err != nil {
		t.Fatalf("pay order: %v", err)
	}

	if _, err := svc.CancelOrder(asCashier(), order.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("cashier cancelling a paid order: expected ErrForbidden, got %v", err)
	}

	cancelled, err := svc.CancelOrder(asManager(), order.ID)
	if err != nil {
		t.Fatalf("manager cancel: %v", err)
	}
	if cancelled.PaymentStatus != domain.PaymentRefunded {
		t.Fatalf("payment status = %s, want refunded", cancelled.PaymentStatus)
	}
}

func TestPayOrderAwardsLoyaltyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	beans := seedProduct(t, svc, "House Blend Beans", 5250, 2400, 10)
	customer := seedCustomer(t, svc, "Andi")

	order, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		CustomerID: &customer.ID,
		Items:      []domain.OrderItemRequest{{ProductID: beans.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	paid, err := svc.PayOrder(asCashier(), order.ID, domain.PayCash)
	if err != nil {
		t.Fatalf("pay order: %v", err)
	}
	if paid.Status != domain.OrderPaid || paid.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("order should be paid/paid, got %s/%s", paid.Status, paid.PaymentStatus)
	}

	after, err := svc.GetCustomer(asCashier(), customer.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	// 10500 cents grand total earns 10 points.
	if after.LoyaltyPoints != 10 {
		t.Fatalf("loyalty points = %d, want 10", after.LoyaltyPoints)
	}

	// A second pay attempt must fail and award nothing further.
	if _, err := svc.PayOrder(asCashier(), order.ID, domain.PayCash); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput on double pay, got %v", err)
	}
	after, _ = svc.GetCustomer(asCashier(), customer.ID)
	if after.LoyaltyPoints != 10 {
		t.Fatalf("loyalty points = %d after double pay, want 10", after.LoyaltyPoints)
	}
}

func TestVIPUpgradeNotifiedOnce(t *testing.T) {
	svc, _ := newTestService(t)
	hamper := seedProduct(t, svc, "Gift Hamper", 50000, 20000, 10)
	small := seedProduct(t, svc, "Biscotti", 1000, 300, 10)
	customer := seedCustomer(t, svc, "Sari")

	buyAndPay := func(productID int64) {
		t.Helper()
		order, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
			CustomerID: &customer.ID,
			Items:      []domain.OrderItemRequest{{ProductID: productID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		if _, err := svc.PayOrder(asCashier(), order.ID, domain.PayCash); err != nil {
			t.Fatalf("pay order: %v", err)
		}
	}

	buyAndPay(hamper.ID) // 50 points, crosses the silver threshold
	buyAndPay(small.ID)  // 1 more point, still silver

	after, _ := svc.GetCustomer(asCashier(), customer.ID)
	if after.VIPStatus != domain.VIPSilver {
		t.Fatalf("vip status = %s, want silver", after.VIPStatus)
	}

	feed, err := svc.Notifications(asAdmin(), 0)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	upgrades := 0
	for _, n := range feed.Notifications {
		if n.Type == domain.NotifVIPUpgrade {
			upgrades++
		}
	}
	if upgrades != 1 {
		t.Fatalf("vip upgrade notifications = %d, want 1", upgrades)
	}
}

func TestCashierCannotViewReports(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Dashboard(asCashier()); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.OverallSummary(asCashier()); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
