package service

import (
	"context"
	"fmt"
	"time"

	"cafeops/backend/internal/domain"
)

// Notifications returns the newest notifications along with the caller's
// unseen count. Read state is tracked per user.
func (s *Service) Notifications(ctx context.Context, limit int) (domain.NotificationFeed, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.NotificationFeed{}, err
	}
	limit = clampLimit(limit, 50, 200)

	notifications, unseen, err := s.repo.ListNotifications(ctx, actor.UserID, limit)
	if err != nil {
		return domain.NotificationFeed{}, err
	}
	return domain.NotificationFeed{Notifications: notifications, UnseenCount: unseen}, nil
}

// MarkNotificationSeen records the notification as read for the caller.
// Marking an already-seen notification is a no-op.
func (s *Service) MarkNotificationSeen(ctx context.Context, notificationID int64) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	return s.repo.MarkNotificationSeen(ctx, notificationID, actor.UserID)
}

// NotifyUnpaidOrders raises a reminder for every order that has sat unpaid
// past the configured age. Orders already reminded are skipped, so the job
// is safe to run on a schedule. Returns the number of reminders sent.
func (s *Service) NotifyUnpaidOrders(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.unpaidOrderAge)
	orders, err := s.repo.ListUnpaidOrdersBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, order := range orders {
		exists, err := s.repo.NotificationExistsForOrder(ctx, order.ID, domain.NotifUnpaidOrder)
		if err != nil {
			s.log.Warn().Err(err).Int64("order_id", order.ID).Msg("unpaid-order dedup check failed")
			continue
		}
		if exists {
			continue
		}
		orderID := order.ID
		s.sendNotification(ctx, domain.Notification{
			Type:    domain.NotifUnpaidOrder,
			Message: fmt.Sprintf("Order #%d has been unpaid for over %s", order.ID, s.unpaidOrderAge),
			OrderID: &orderID,
		})
		sent++
	}
	return sent, nil
}
