package service

import (
	"context"
	"fmt"
	"strings"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

func (s *Service) ListCustomers(ctx context.Context, filter store.CustomerFilter) (domain.Page[domain.Customer], error) {
	if _, err := s.requirePermission(ctx, domain.PermUsePOS); err != nil {
		return domain.Page[domain.Customer]{}, err
	}
	filter.Limit = clampLimit(filter.Limit, 15, 100)
	if filter.Page < 1 {
		filter.Page = 1
	}

	customers, total, err := s.repo.ListCustomers(ctx, filter)
	if err != nil {
		return domain.Page[domain.Customer]{}, err
	}
	return domain.Page[domain.Customer]{Items: customers, Total: total, PerPage: filter.Limit, Current: filter.Page}, nil
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	if _, err := s.requirePermission(ctx, domain.PermUsePOS); err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	if _, err := s.requirePermission(ctx, domain.PermUsePOS); err != nil {
		return domain.Customer{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("customer name is required: %w", store.ErrInvalidInput)
	}

	customer, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:      name,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		VIPStatus: domain.VIPNone,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

// UpdateCustomer edits contact details. Loyalty points and VIP status only
// move through the order flow.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	if _, err := s.requirePermission(ctx, domain.PermUsePOS); err != nil {
		return domain.Customer{}, err
	}

	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, fmt.Errorf("customer name is required: %w", store.ErrInvalidInput)
		}
		existing.Name = name
	}
	if req.Email != nil {
		existing.Email = strings.TrimSpace(*req.Email)
	}
	if req.Phone != nil {
		existing.Phone = strings.TrimSpace(*req.Phone)
	}

	customer, err := s.repo.UpdateCustomer(ctx, *existing)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	if _, err := s.requirePermission(ctx, domain.PermUsePOS); err != nil {
		return err
	}
	return s.repo.DeleteCustomer(ctx, id)
}

// CustomerOrders lists a customer's purchase history, newest first.
func (s *Service) CustomerOrders(ctx context.Context, customerID int64, page, limit int) (domain.Page[domain.Order], error) {
	if _, err := s.requirePermission(ctx, domain.PermUsePOS); err != nil {
		return domain.Page[domain.Order]{}, err
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return s.ListOrders(ctx, store.OrderFilter{Page: page, Limit: limit, CustomerID: &customerID})
}
