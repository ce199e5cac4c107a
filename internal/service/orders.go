package service

import (
	"context"
	"fmt"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

func (s *Service) validateOrderInput(items []domain.OrderItemRequest, discountCents int64, paymentMethod string) error {
	if len(items) == 0 {
		return fmt.Errorf("order needs at least one item: %w", store.ErrInvalidInput)
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return fmt.Errorf("quantity must be at least 1: %w", store.ErrInvalidInput)
		}
	}
	if discountCents < 0 {
		return fmt.Errorf("discount must not be negative: %w", store.ErrInvalidInput)
	}
	if paymentMethod != "" && !domain.KnownPaymentMethod(paymentMethod) {
		return fmt.Errorf("unknown payment method %s: %w", paymentMethod, store.ErrInvalidInput)
	}
	return nil
}

// vipPercentFor looks up the customer (when any) and returns the discount
// percent of its current tier.
func (s *Service) vipPercentFor(ctx context.Context, customerID *int64) (int64, error) {
	if customerID == nil {
		return 0, nil
	}
	customer, err := s.repo.GetCustomer(ctx, *customerID)
	if err != nil {
		return 0, fmt.Errorf("customer %d: %w", *customerID, err)
	}
	return domain.VIPDiscountPercent(customer.VIPStatus), nil
}

// CreateOrder opens an order in pending/pending state, deducting stock for
// every line atomically. The customer's current VIP tier discounts the
// grand total at creation time.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	actor, err := s.requirePermission(ctx, domain.PermUsePOS)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.validateOrderInput(req.Items, req.DiscountCents, req.PaymentMethod); err != nil {
		return domain.Order{}, err
	}

	vipPercent, err := s.vipPercentFor(ctx, req.CustomerID)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.repo.CreateOrder(ctx, store.OrderDraft{
		UserID:             actor.UserID,
		CustomerID:         req.CustomerID,
		Items:              req.Items,
		DiscountCents:      req.DiscountCents,
		PaymentMethod:      req.PaymentMethod,
		VIPDiscountPercent: vipPercent,
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.checkOrderLowStock(ctx, order.Items)
	return *order, nil
}

// UpdateOrder replaces the item set wholesale while payment is still
// pending: old quantities are restored, new ones deducted, all in one
// transaction.
func (s *Service) UpdateOrder(ctx context.Context, orderID int64, req domain.OrderUpdateRequest) (domain.Order, error) {
	actor, err := s.requirePermission(ctx, domain.PermUsePOS)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.validateOrderInput(req.Items, req.DiscountCents, req.PaymentMethod); err != nil {
		return domain.Order{}, err
	}

	existing, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	vipPercent, err := s.vipPercentFor(ctx, existing.CustomerID)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.repo.UpdateOrder(ctx, orderID, store.OrderDraft{
		UserID:             actor.UserID,
		CustomerID:         existing.CustomerID,
		Items:              req.Items,
		DiscountCents:      req.DiscountCents,
		PaymentMethod:      req.PaymentMethod,
		VIPDiscountPercent: vipPercent,
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.checkOrderLowStock(ctx, order.Items)
	return *order, nil
}

// CancelOrder restores every item's stock and closes the order. Cancelling
// a paid order refunds it and needs the refund permission on top of POS
// access.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	actor, err := s.requirePermission(ctx, domain.PermUsePOS)
	if err != nil {
		return domain.Order{}, err
	}

	existing, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if existing.PaymentStatus == domain.PaymentPaid {
		if _, err := s.requirePermission(ctx, domain.PermRefundOrder); err != nil {
			return domain.Order{}, err
		}
	}

	order, err := s.repo.CancelOrder(ctx, orderID, &actor.UserID)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

// PayOrder moves a pending order to paid and awards loyalty points to the
// attached customer, exactly once per order. The point award and any VIP
// upgrade notification run after the payment commits and are best-effort.
func (s *Service) PayOrder(ctx context.Context, orderID int64, paymentMethod string) (domain.Order, error) {
	if _, err := s.requirePermission(ctx, domain.PermUsePOS); err != nil {
		return domain.Order{}, err
	}
	if paymentMethod != "" && !domain.KnownPaymentMethod(paymentMethod) {
		return domain.Order{}, fmt.Errorf("unknown payment method %s: %w", paymentMethod, store.ErrInvalidInput)
	}

	order, err := s.repo.MarkOrderPaid(ctx, orderID, paymentMethod)
	if err != nil {
		return domain.Order{}, err
	}

	if order.CustomerID != nil {
		s.awardLoyalty(ctx, *order.CustomerID, order.GrandTotalCents)
	}
	return *order, nil
}

// awardLoyalty grants one point per 10 currency units of grand total and
// sends a VIP notification when a tier threshold is newly crossed. Failures
// are logged; the payment has already committed.
func (s *Service) awardLoyalty(ctx context.Context, customerID int64, grandTotalCents int64) {
	points := grandTotalCents / 1000
	if points <= 0 {
		return
	}
	customer, upgraded, err := s.repo.AddLoyaltyPoints(ctx, customerID, points)
	if err != nil {
		s.log.Warn().Err(err).Int64("customer_id", customerID).Msg("failed to award loyalty points")
		return
	}
	if upgraded {
		s.sendNotification(ctx, domain.Notification{
			Type:       domain.NotifVIPUpgrade,
			Message:    fmt.Sprintf("%s reached %s status", customer.Name, customer.VIPStatus),
			CustomerID: &customer.ID,
		})
	}
}

func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	if _, err := s.requirePermission(ctx, domain.PermUsePOS); err != nil {
		return domain.Order{}, err
	}
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, filter store.OrderFilter) (domain.Page[domain.Order], error) {
	if _, err := s.requirePermission(ctx, domain.PermUsePOS); err != nil {
		return domain.Page[domain.Order]{}, err
	}
	if filter.Status != "" && filter.Status != domain.OrderPending && filter.Status != domain.OrderPaid && filter.Status != domain.OrderCancelled {
		return domain.Page[domain.Order]{}, fmt.Errorf("unknown order status %s: %w", filter.Status, store.ErrInvalidInput)
	}
	filter.Limit = clampLimit(filter.Limit, 15, 100)
	if filter.Page < 1 {
		filter.Page = 1
	}

	orders, total, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.Page[domain.Order]{Items: orders, Total: total, PerPage: filter.Limit, Current: filter.Page}, nil
}

// checkOrderLowStock re-reads the sold products after an order commits and
// raises low-stock notifications where needed.
func (s *Service) checkOrderLowStock(ctx context.Context, items []domain.OrderItem) {
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if seen[item.ProductID] {
			continue
		}
		seen[item.ProductID] = true
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			s.log.Warn().Err(err).Int64("product_id", item.ProductID).Msg("low-stock check failed")
			continue
		}
		s.checkLowStock(ctx, *product)
	}
}
