package store

import (
	"context"
	"errors"
	"time"

	"cafeops/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
)

// OrderDraft is the input to the transactional order create/update
// operations. Items carry product id and quantity only; the store snapshots
// prices, checks and deducts stock, and computes totals inside one
// transaction.
type OrderDraft struct {
	UserID             int64
	CustomerID         *int64
	Items              []domain.OrderItemRequest
	DiscountCents      int64
	PaymentMethod      string
	VIPDiscountPercent int64
}

type ProductFilter struct {
	Page            int
	Limit           int
	Search          string
	IncludeInactive bool
	IncludeDeleted  bool
}

type OrderFilter struct {
	Page       int
	Limit      int
	Status     string
	CustomerID *int64
	From       time.Time
	To         time.Time
}

type CustomerFilter struct {
	Page   int
	Limit  int
	Search string
}

type Repository interface {
	// Users.
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (int, error)

	// Catalog.
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SoftDeleteProduct(ctx context.Context, id int64) error
	RestoreProduct(ctx context.Context, id int64) (*domain.Product, error)
	LowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error)

	// Stock. Each mutation appends a ledger entry in the same transaction.
	AddStock(ctx context.Context, productID int64, quantity int, userID *int64, ref domain.LedgerRef, notes string) (*domain.Product, error)
	RemoveStock(ctx context.Context, productID int64, quantity int, userID *int64, ref domain.LedgerRef, notes string) (*domain.Product, error)
	AdjustStock(ctx context.Context, productID int64, newStock int, userID *int64, notes string) (*domain.Product, error)
	ListStockEntries(ctx context.Context, productID int64, limit int) ([]domain.StockEntry, error)

	// Orders. Create/Update/Cancel are all-or-nothing: stock movements,
	// ledger entries, and order rows commit together or not at all.
	CreateOrder(ctx context.Context, draft OrderDraft) (*domain.Order, error)
	UpdateOrder(ctx context.Context, orderID int64, draft OrderDraft) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID int64, userID *int64) (*domain.Order, error)
	MarkOrderPaid(ctx context.Context, orderID int64, paymentMethod string) (*domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)
	CountOrders(ctx context.Context, filter OrderFilter) (int, error)
	ListUnpaidOrdersBefore(ctx context.Context, cutoff time.Time) ([]domain.Order, error)

	// Customers.
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context, filter CustomerFilter) ([]domain.Customer, int, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	// AddLoyaltyPoints increments the balance and upgrades the VIP tier when
	// a threshold is newly crossed. The returned flag reports an upgrade.
	AddLoyaltyPoints(ctx context.Context, customerID int64, points int64) (*domain.Customer, bool, error)

	// Reporting over [from, to). A zero from means unbounded.
	ProfitLoss(ctx context.Context, from time.Time, to time.Time) (domain.ProfitLossSummary, error)

	// Notifications.
	CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error)
	ListNotifications(ctx context.Context, userID int64, limit int) ([]domain.Notification, int, error)
	MarkNotificationSeen(ctx context.Context, notificationID int64, userID int64) error
	NotificationExistsForOrder(ctx context.Context, orderID int64, notifType string) (bool, error)
}
