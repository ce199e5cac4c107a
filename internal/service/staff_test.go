package service

import (
	"context"
	"errors"
	"testing"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name: "Owner", Email: "owner@example.com", Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.Role != domain.RoleAdmin {
		t.Fatalf("first user role = %s, want admin", first.Role)
	}

	second, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name: "Helper", Email: "helper@example.com", Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if second.Role != domain.RoleCashier {
		t.Fatalf("second user role = %s, want cashier", second.Role)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []domain.RegisterRequest{
		{Name: "", Email: "a@example.com", Password: "valid-password"},
		{Name: "A", Email: "", Password: "valid-password"},
		{Name: "A", Email: "a@example.com", Password: "short"},
	}
	for _, req := range cases {
		if _, err := svc.Register(context.Background(), req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", req, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name: "Owner", Email: "owner@example.com", Password: "s3cret-pass",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name: "Copycat", Email: "OWNER@example.com", Password: "s3cret-pass",
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestStaffManagementIsAdminOnly(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ListStaff(asManager()); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("manager listing staff: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ListStaff(asCashier()); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("cashier listing staff: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ListStaff(asAdmin()); err != nil {
		t.Fatalf("admin listing staff: %v", err)
	}
}

func TestAdminAccountProtections(t *testing.T) {
	svc, _ := newTestService(t)

	admin, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name: "Owner", Email: "owner@example.com", Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}

	cashierRole := domain.RoleCashier
	if _, err := svc.UpdateStaff(asAdmin(), admin.ID, domain.StaffUpdateRequest{Role: &cashierRole}); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("demoting admin: expected ErrForbidden, got %v", err)
	}

	inactive := false
	if _, err := svc.UpdateStaff(asAdmin(), admin.ID, domain.StaffUpdateRequest{Active: &inactive}); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("deactivating admin: expected ErrForbidden, got %v", err)
	}

	otherAdmin := WithActor(context.Background(), domain.Actor{UserID: admin.ID + 100, Role: domain.RoleAdmin})
	if err := svc.DeleteStaff(otherAdmin, admin.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("deleting admin account: expected ErrForbidden, got %v", err)
	}
}

func TestDeleteOwnAccountRejected(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.CreateStaff(asAdmin(), domain.StaffCreateRequest{
		Name: "Kas", Email: "kas@example.com", Password: "s3cret-pass", Role: domain.RoleCashier,
	})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}

	self := WithActor(context.Background(), domain.Actor{UserID: user.ID, Role: domain.RoleAdmin})
	if err := svc.DeleteStaff(self, user.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("self delete: expected ErrForbidden, got %v", err)
	}
}

func TestUpdateProfilePasswordRequiresCurrent(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name: "Owner", Email: "owner@example.com", Password: "original-pass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := WithActor(context.Background(), domain.Actor{UserID: user.ID, Role: user.Role})

	_, err = svc.UpdateProfile(ctx, domain.ProfileUpdateRequest{
		CurrentPassword: "wrong-pass",
		NewPassword:     "replacement-pass",
	})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden with wrong current password, got %v", err)
	}

	if _, err := svc.UpdateProfile(ctx, domain.ProfileUpdateRequest{
		CurrentPassword: "original-pass",
		NewPassword:     "replacement-pass",
	}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
}

func TestCreateStaffUnknownRole(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateStaff(asAdmin(), domain.StaffCreateRequest{
		Name: "X", Email: "x@example.com", Password: "s3cret-pass", Role: "barista",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
