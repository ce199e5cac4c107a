package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

const minPasswordLength = 8

// Register creates an account with a self-chosen password. The very first
// account becomes the admin; everyone after that starts as a cashier.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" {
		return domain.User{}, fmt.Errorf("name and email are required: %w", store.ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLength {
		return domain.User{}, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, store.ErrInvalidInput)
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	role := domain.RoleCashier
	if count == 0 {
		role = domain.RoleAdmin
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.CreateUser(ctx, domain.User{
		Name:     name,
		Email:    email,
		Password: hash,
		Role:     role,
		Active:   true,
	})
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

// Me returns the caller's own account.
func (s *Service) Me(ctx context.Context) (domain.User, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

// UpdateProfile lets the caller edit their own name, email and password.
// A password change requires the current password.
func (s *Service) UpdateProfile(ctx context.Context, req domain.ProfileUpdateRequest) (domain.User, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return domain.User{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.User{}, fmt.Errorf("name is required: %w", store.ErrInvalidInput)
		}
		user.Name = name
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email == "" {
			return domain.User{}, fmt.Errorf("email is required: %w", store.ErrInvalidInput)
		}
		user.Email = email
	}
	if req.NewPassword != "" {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
			return domain.User{}, fmt.Errorf("current password does not match: %w", store.ErrForbidden)
		}
		if len(req.NewPassword) < minPasswordLength {
			return domain.User{}, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, store.ErrInvalidInput)
		}
		hash, err := hashPassword(req.NewPassword)
		if err != nil {
			return domain.User{}, err
		}
		user.Password = hash
	}

	updated, err := s.repo.UpdateUser(ctx, *user)
	if err != nil {
		return domain.User{}, err
	}
	return *updated, nil
}

func (s *Service) ListStaff(ctx context.Context) ([]domain.User, error) {
	if _, err := s.requirePermission(ctx, domain.PermManageStaff); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

func (s *Service) GetStaff(ctx context.Context, id int64) (domain.User, error) {
	if _, err := s.requirePermission(ctx, domain.PermManageStaff); err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (s *Service) CreateStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.User, error) {
	if _, err := s.requirePermission(ctx, domain.PermManageStaff); err != nil {
		return domain.User{}, err
	}
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" {
		return domain.User{}, fmt.Errorf("name and email are required: %w", store.ErrInvalidInput)
	}
	if !domain.KnownRole(req.Role) {
		return domain.User{}, fmt.Errorf("unknown role %s: %w", req.Role, store.ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLength {
		return domain.User{}, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, store.ErrInvalidInput)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.CreateUser(ctx, domain.User{
		Name:     name,
		Email:    email,
		Password: hash,
		Role:     req.Role,
		Active:   true,
	})
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

// UpdateStaff edits another account. The admin account keeps its role and
// stays active no matter what the request says.
func (s *Service) UpdateStaff(ctx context.Context, id int64, req domain.StaffUpdateRequest) (domain.User, error) {
	if _, err := s.requirePermission(ctx, domain.PermManageStaff); err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.User{}, fmt.Errorf("name is required: %w", store.ErrInvalidInput)
		}
		user.Name = name
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email == "" {
			return domain.User{}, fmt.Errorf("email is required: %w", store.ErrInvalidInput)
		}
		user.Email = email
	}
	if req.Role != nil && *req.Role != user.Role {
		if user.Role == domain.RoleAdmin {
			return domain.User{}, fmt.Errorf("admin role is locked: %w", store.ErrForbidden)
		}
		if !domain.KnownRole(*req.Role) {
			return domain.User{}, fmt.Errorf("unknown role %s: %w", *req.Role, store.ErrInvalidInput)
		}
		user.Role = *req.Role
	}
	if req.Active != nil && *req.Active != user.Active {
		if user.Role == domain.RoleAdmin && !*req.Active {
			return domain.User{}, fmt.Errorf("admin role is locked: %w", store.ErrForbidden)
		}
		user.Active = *req.Active
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLength {
			return domain.User{}, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, store.ErrInvalidInput)
		}
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return domain.User{}, err
		}
		user.Password = hash
	}

	updated, err := s.repo.UpdateUser(ctx, *user)
	if err != nil {
		return domain.User{}, err
	}
	return *updated, nil
}

// DeleteStaff removes an account. The admin account and the caller's own
// account cannot be deleted.
func (s *Service) DeleteStaff(ctx context.Context, id int64) error {
	actor, err := s.requirePermission(ctx, domain.PermManageStaff)
	if err != nil {
		return err
	}
	if actor.UserID == id {
		return fmt.Errorf("cannot delete your own account: %w", store.ErrForbidden)
	}
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == domain.RoleAdmin {
		return fmt.Errorf("admin account is protected: %w", store.ErrForbidden)
	}
	return s.repo.DeleteUser(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
