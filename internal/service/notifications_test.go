package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
	"cafeops/backend/internal/store/memory"
)

func TestNotificationReadStatePerUser(t *testing.T) {
	svc, _ := newTestService(t)
	seedProduct(t, svc, "Sugar Packets", 50, 10, 1) // triggers nothing on its own
	jam := seedProduct(t, svc, "Jam Jar", 700, 250, 4)

	// Two low-stock notifications.
	if _, err := svc.RemoveStock(asManager(), jam.ID, 1, ""); err != nil {
		t.Fatalf("remove stock: %v", err)
	}
	if _, err := svc.RemoveStock(asManager(), jam.ID, 1, ""); err != nil {
		t.Fatalf("remove stock: %v", err)
	}

	adminFeed, err := svc.Notifications(asAdmin(), 0)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if adminFeed.UnseenCount != 2 {
		t.Fatalf("admin unseen = %d, want 2", adminFeed.UnseenCount)
	}

	target := adminFeed.Notifications[0].ID
	if err := svc.MarkNotificationSeen(asAdmin(), target); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	// Marking again is a no-op.
	if err := svc.MarkNotificationSeen(asAdmin(), target); err != nil {
		t.Fatalf("mark seen twice: %v", err)
	}

	adminFeed, _ = svc.Notifications(asAdmin(), 0)
	if adminFeed.UnseenCount != 1 {
		t.Fatalf("admin unseen after marking = %d, want 1", adminFeed.UnseenCount)
	}

	// Another user's read state is untouched.
	managerFeed, _ := svc.Notifications(asManager(), 0)
	if managerFeed.UnseenCount != 2 {
		t.Fatalf("manager unseen = %d, want 2", managerFeed.UnseenCount)
	}
}

func TestMarkUnknownNotificationSeen(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.MarkNotificationSeen(asAdmin(), 404); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotifyUnpaidOrdersDeduplicates(t *testing.T) {
	repo := memory.New()
	svc := New(repo, nil, nil, zerolog.Nop(), Options{
		LowStockThreshold: 3,
		UnpaidOrderAge:    time.Nanosecond,
	})

	cocoa := seedProduct(t, svc, "Hot Cocoa", 500, 180, 10)
	order, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		Items: []domain.OrderItemRequest{{ProductID: cocoa.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	paidOrder, err := svc.CreateOrder(asCashier(), domain.OrderCreateRequest{
		Items: []domain.OrderItemRequest{{ProductID: cocoa.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := svc.PayOrder(asCashier(), paidOrder.ID, domain.PayCash); err != nil {
		t.Fatalf("pay: %v", err)
	}

	time.Sleep(5 * time.Millisecond) // let the pending order age past the cutoff

	sent, err := svc.NotifyUnpaidOrders(context.Background())
	if err != nil {
		t.Fatalf("notify unpaid: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1 (paid order excluded)", sent)
	}

	// Running the job again must not send a duplicate.
	sent, err = svc.NotifyUnpaidOrders(context.Background())
	if err != nil {
		t.Fatalf("notify unpaid again: %v", err)
	}
	if sent != 0 {
		t.Fatalf("sent = %d on rerun, want 0", sent)
	}

	feed, _ := svc.Notifications(asAdmin(), 0)
	reminders := 0
	for _, n := range feed.Notifications {
		if n.Type == domain.NotifUnpaidOrder {
			if n.OrderID == nil || *n.OrderID != order.ID {
				t.Fatalf("reminder should reference order %d, got %+v", order.ID, n)
			}
			reminders++
		}
	}
	if reminders != 1 {
		t.Fatalf("reminders = %d, want 1", reminders)
	}
}
