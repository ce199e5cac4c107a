package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

// Store is an in-memory Repository used for tests and dev mode. All
// operations take the single mutex, so the transactional all-or-nothing
// semantics of the order operations hold trivially.
type Store struct {
	mu            sync.RWMutex
	users         map[int64]domain.User
	categories    map[int64]domain.Category
	products      map[int64]domain.Product
	stockEntries  []domain.StockEntry
	orders        map[int64]domain.Order
	customers     map[int64]domain.Customer
	notifications map[int64]domain.Notification
	notifReads    map[int64]map[int64]time.Time
	seq           map[string]int64
}

func New() *Store {
	return &Store{
		users:         make(map[int64]domain.User),
		categories:    make(map[int64]domain.Category),
		products:      make(map[int64]domain.Product),
		orders:        make(map[int64]domain.Order),
		customers:     make(map[int64]domain.Customer),
		notifications: make(map[int64]domain.Notification),
		notifReads:    make(map[int64]map[int64]time.Time),
		seq:           make(map[string]int64),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store preloaded with a demo catalog and staff
// accounts. Seed credentials come from SEED_ADMIN_PASSWORD and
// SEED_CASHIER_PASSWORD; dev defaults are used otherwise.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	for _, u := range []struct {
		name     string
		email    string
		password string
		role     string
	}{
		{"Admin", "admin@cafeops.local", adminPwd, domain.RoleAdmin},
		{"Manager", "manager@cafeops.local", cashierPwd, domain.RoleManager},
		{"Cashier", "cashier@cafeops.local", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.email, err)
		}
		id := s.next("user")
		s.users[id] = domain.User{
			ID:        id,
			Name:      u.name,
			Email:     u.email,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	beverages := s.seedCategory("beverages")
	bakery := s.seedCategory("bakery")
	retail := s.seedCategory("retail")

	for _, p := range []domain.Product{
		{Name: "Espresso", SKU: "BEV-ESP-01", CategoryID: &beverages, PriceCents: 350, CostCents: 90, Stock: 200},
		{Name: "Cappuccino", SKU: "BEV-CAP-01", CategoryID: &beverages, PriceCents: 480, CostCents: 130, Stock: 200},
		{Name: "Cold Brew", SKU: "BEV-CB-01", CategoryID: &beverages, PriceCents: 520, CostCents: 160, Stock: 80},
		{Name: "Croissant", SKU: "BAK-CRO-01", CategoryID: &bakery, PriceCents: 420, CostCents: 150, Stock: 40},
		{Name: "Banana Bread", SKU: "BAK-BAN-01", CategoryID: &bakery, PriceCents: 460, CostCents: 170, Stock: 25},
		{Name: "Blueberry Muffin", SKU: "BAK-MUF-01", CategoryID: &bakery, PriceCents: 390, CostCents: 140, Stock: 30},
		{Name: "Espresso Beans 250g", SKU: "RET-BEAN-01", CategoryID: &retail, PriceCents: 1450, CostCents: 800, Stock: 18},
		{Name: "Ceramic Mug", SKU: "RET-MUG-01", CategoryID: &retail, PriceCents: 1200, CostCents: 500, Stock: 12},
	} {
		id := s.next("product")
		p.ID = id
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[id] = p
	}

	for _, c := range []domain.Customer{
		{Name: "Dina Rahma", Email: "dina@example.com", Phone: "0811000001"},
		{Name: "Budi Santoso", Email: "budi@example.com", Phone: "0811000002"},
	} {
		id := s.next("customer")
		c.ID = id
		c.VIPStatus = domain.VIPNone
		c.CreatedAt = now
		c.UpdatedAt = now
		s.customers[id] = c
	}

	return s
}

func (s *Store) seedCategory(name string) int64 {
	id := s.next("category")
	s.categories[id] = domain.Category{ID: id, Name: name}
	return id
}

func (s *Store) next(kind string) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, email) {
			return nil, fmt.Errorf("email %s: %w", email, store.ErrConflict)
		}
	}

	now := time.Now().UTC()
	user.ID = s.next("user")
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	copied := user
	return &copied, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, strings.TrimSpace(email)) {
			copied := user
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.users {
		if id != user.ID && strings.EqualFold(other.Email, user.Email) {
			return nil, fmt.Errorf("email %s: %w", user.Email, store.ErrConflict)
		}
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = user
	copied := user
	return &copied, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// ---- catalog ----

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, fmt.Errorf("category %s: %w", category.Name, store.ErrConflict)
		}
	}
	category.ID = s.next("category")
	s.categories[category.ID] = category
	copied := category
	return &copied, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.SKU != "" {
		for _, existing := range s.products {
			if existing.SKU != "" && strings.EqualFold(existing.SKU, product.SKU) {
				return nil, fmt.Errorf("sku %s: %w", product.SKU, store.ErrConflict)
			}
		}
	}

	now := time.Now().UTC()
	product.ID = s.next("product")
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	copied := product
	return &copied, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) ListProducts(_ context.Context, filter store.ProductFilter) ([]domain.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Product, 0, len(s.products))
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, p := range s.products {
		if p.DeletedAt != nil && !filter.IncludeDeleted {
			continue
		}
		if !p.Active && !filter.IncludeInactive && p.DeletedAt == nil {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	return paginate(matched, filter.Page, filter.Limit), total, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.SKU != "" {
		for id, other := range s.products {
			if id != product.ID && other.SKU != "" && strings.EqualFold(other.SKU, product.SKU) {
				return nil, fmt.Errorf("sku %s: %w", product.SKU, store.ErrConflict)
			}
		}
	}
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt
	product.DeletedAt = existing.DeletedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	copied := product
	return &copied, nil
}

func (s *Store) SoftDeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok || product.DeletedAt != nil {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	product.DeletedAt = &now
	product.Active = false
	product.UpdatedAt = now
	s.products[id] = product
	return nil
}

func (s *Store) RestoreProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.DeletedAt = nil
	product.Active = true
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	copied := product
	return &copied, nil
}

func (s *Store) LowStockProducts(_ context.Context, threshold int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	low := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.DeletedAt == nil && p.Active && p.Stock <= threshold {
			low = append(low, p)
		}
	}
	sort.Slice(low, func(i, j int) bool { return low[i].Stock < low[j].Stock })
	return low, nil
}

// ---- stock ----

func (s *Store) AddStock(_ context.Context, productID int64, quantity int, userID *int64, ref domain.LedgerRef, notes string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addStockLocked(productID, quantity, userID, ref, notes)
}

func (s *Store) addStockLocked(productID int64, quantity int, userID *int64, ref domain.LedgerRef, notes string) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}
	product, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Stock += quantity
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	s.appendLedgerLocked(productID, userID, domain.StockRestock, quantity, ref, notes)
	copied := product
	return &copied, nil
}

func (s *Store) RemoveStock(_ context.Context, productID int64, quantity int, userID *int64, ref domain.LedgerRef, notes string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeStockLocked(productID, quantity, userID, ref, notes)
}

func (s *Store) removeStockLocked(productID int64, quantity int, userID *int64, ref domain.LedgerRef, notes string) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}
	product, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if quantity > product.Stock {
		return nil, fmt.Errorf("not enough stock for %s (available %d): %w", product.Name, product.Stock, store.ErrInsufficientStock)
	}
	product.Stock -= quantity
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	s.appendLedgerLocked(productID, userID, domain.StockSale, quantity, ref, notes)
	copied := product
	return &copied, nil
}

func (s *Store) AdjustStock(_ context.Context, productID int64, newStock int, userID *int64, notes string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if newStock < 0 {
		return nil, fmt.Errorf("stock must not be negative: %w", store.ErrInvalidInput)
	}
	product, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if product.Stock == newStock {
		copied := product
		return &copied, nil
	}
	delta := newStock - product.Stock
	if delta < 0 {
		delta = -delta
	}
	product.Stock = newStock
	product.UpdatedAt = time.Now().UTC()
	s.products[productID] = product
	s.appendLedgerLocked(productID, userID, domain.StockAdjustment, delta, domain.NoRef(), notes)
	copied := product
	return &copied, nil
}

func (s *Store) appendLedgerLocked(productID int64, userID *int64, entryType string, quantity int, ref domain.LedgerRef, notes string) {
	s.stockEntries = append(s.stockEntries, domain.StockEntry{
		ID:        s.next("stock_entry"),
		ProductID: productID,
		UserID:    userID,
		Type:      entryType,
		Quantity:  quantity,
		Ref:       ref,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Store) ListStockEntries(_ context.Context, productID int64, limit int) ([]domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.StockEntry, 0)
	for _, e := range s.stockEntries {
		if e.ProductID == productID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// ---- orders ----

func (s *Store) CreateOrder(_ context.Context, draft store.OrderDraft) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("order needs at least one item: %w", store.ErrInvalidInput)
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:            s.next("order"),
		UserID:        draft.UserID,
		CustomerID:    draft.CustomerID,
		DiscountCents: draft.DiscountCents,
		Status:        domain.OrderPending,
		PaymentStatus: domain.PaymentPending,
		PaymentMethod: draft.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	items, total, err := s.buildItemsLocked(order.ID, draft)
	if err != nil {
		// Undo any stock already deducted so the whole create is a no-op.
		s.rollbackItemsLocked(items)
		return nil, err
	}

	order.Items = items
	order.TotalCents = total
	order.GrandTotalCents = grandTotal(total, draft.DiscountCents, draft.VIPDiscountPercent)
	s.orders[order.ID] = order
	copied := order
	return &copied, nil
}

// buildItemsLocked runs the shared per-item loop: availability check, price
// snapshot, stock deduction, sale ledger entry. On error the returned items
// hold whatever was already deducted so the caller can roll back.
func (s *Store) buildItemsLocked(orderID int64, draft store.OrderDraft) ([]domain.OrderItem, int64, error) {
	items := make([]domain.OrderItem, 0, len(draft.Items))
	var total int64
	for _, req := range draft.Items {
		if req.Quantity < 1 {
			return items, 0, fmt.Errorf("quantity must be at least 1: %w", store.ErrInvalidInput)
		}
		product, ok := s.products[req.ProductID]
		if !ok {
			return items, 0, fmt.Errorf("product %d: %w", req.ProductID, store.ErrNotFound)
		}
		if !product.Available() {
			return items, 0, fmt.Errorf("product %s is unavailable: %w", product.Name, store.ErrInvalidInput)
		}
		if _, err := s.removeStockLocked(product.ID, req.Quantity, &draft.UserID, domain.OrderRef(orderID), fmt.Sprintf("sale for order #%d", orderID)); err != nil {
			return items, 0, err
		}
		subtotal := product.PriceCents * int64(req.Quantity)
		items = append(items, domain.OrderItem{
			ID:             s.next("order_item"),
			OrderID:        orderID,
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       req.Quantity,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  subtotal,
		})
		total += subtotal
	}
	return items, total, nil
}

// rollbackItemsLocked returns previously deducted quantities. Ledger entries
// written by the partial run are removed along with the ones a real
// transaction would never have committed.
func (s *Store) rollbackItemsLocked(items []domain.OrderItem) {
	for _, item := range items {
		if product, ok := s.products[item.ProductID]; ok {
			product.Stock += item.Quantity
			s.products[item.ProductID] = product
		}
	}
	if len(items) > 0 {
		s.stockEntries = s.stockEntries[:len(s.stockEntries)-len(items)]
	}
}

func grandTotal(total, discount, vipPercent int64) int64 {
	grand := total - discount
	if grand < 0 {
		grand = 0
	}
	if vipPercent > 0 {
		grand -= grand * vipPercent / 100
	}
	return grand
}

func (s *Store) UpdateOrder(_ context.Context, orderID int64, draft store.OrderDraft) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.PaymentStatus != domain.PaymentPending {
		return nil, fmt.Errorf("cannot edit a paid order: %w", store.ErrForbidden)
	}
	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("order needs at least one item: %w", store.ErrInvalidInput)
	}

	// Restore the old quantities first, then run the same loop as create.
	// Same-product overlap is intentionally restored and re-deducted rather
	// than diffed.
	restored := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if _, err := s.addStockLocked(item.ProductID, item.Quantity, &draft.UserID, domain.OrderRef(orderID), fmt.Sprintf("restocked from edited order #%d", orderID)); err != nil {
			s.unwindRestoresLocked(restored)
			return nil, err
		}
		restored = append(restored, item)
	}

	items, total, err := s.buildItemsLocked(orderID, draft)
	if err != nil {
		s.rollbackItemsLocked(items)
		s.unwindRestoresLocked(restored)
		return nil, err
	}

	order.Items = items
	order.TotalCents = total
	order.DiscountCents = draft.DiscountCents
	order.GrandTotalCents = grandTotal(total, draft.DiscountCents, draft.VIPDiscountPercent)
	if draft.PaymentMethod != "" {
		order.PaymentMethod = draft.PaymentMethod
	}
	order.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	copied := order
	return &copied, nil
}

func (s *Store) unwindRestoresLocked(restored []domain.OrderItem) {
	for _, item := range restored {
		if product, ok := s.products[item.ProductID]; ok {
			product.Stock -= item.Quantity
			s.products[item.ProductID] = product
		}
	}
	if len(restored) > 0 {
		s.stockEntries = s.stockEntries[:len(s.stockEntries)-len(restored)]
	}
}

func (s *Store) CancelOrder(_ context.Context, orderID int64, userID *int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status == domain.OrderCancelled {
		return nil, fmt.Errorf("order is already cancelled: %w", store.ErrInvalidInput)
	}
	if order.PaymentStatus != domain.PaymentPending && order.PaymentStatus != domain.PaymentPaid {
		return nil, fmt.Errorf("this order cannot be cancelled: %w", store.ErrForbidden)
	}

	for _, item := range order.Items {
		if _, err := s.addStockLocked(item.ProductID, item.Quantity, userID, domain.OrderRef(orderID), fmt.Sprintf("restocked from cancelled order #%d", orderID)); err != nil {
			return nil, err
		}
	}

	order.Status = domain.OrderCancelled
	if order.PaymentStatus == domain.PaymentPaid {
		order.PaymentStatus = domain.PaymentRefunded
	}
	order.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	copied := order
	return &copied, nil
}

func (s *Store) MarkOrderPaid(_ context.Context, orderID int64, paymentMethod string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if order.Status != domain.OrderPending || order.PaymentStatus != domain.PaymentPending {
		return nil, fmt.Errorf("order is not pending payment: %w", store.ErrInvalidInput)
	}

	order.Status = domain.OrderPaid
	order.PaymentStatus = domain.PaymentPaid
	if paymentMethod != "" {
		order.PaymentMethod = paymentMethod
	}
	order.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	copied := order
	return &copied, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) ListOrders(_ context.Context, filter store.OrderFilter) ([]domain.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.filterOrdersLocked(filter)
	total := len(matched)
	return paginate(matched, filter.Page, filter.Limit), total, nil
}

func (s *Store) CountOrders(_ context.Context, filter store.OrderFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filterOrdersLocked(filter)), nil
}

func (s *Store) filterOrdersLocked(filter store.OrderFilter) []domain.Order {
	matched := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.CustomerID != nil && (order.CustomerID == nil || *order.CustomerID != *filter.CustomerID) {
			continue
		}
		if !filter.From.IsZero() && order.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !order.CreatedAt.Before(filter.To) {
			continue
		}
		matched = append(matched, order)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return matched
}

func (s *Store) ListUnpaidOrdersBefore(_ context.Context, cutoff time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unpaid := make([]domain.Order, 0)
	for _, order := range s.orders {
		if order.Status == domain.OrderPending && order.PaymentStatus == domain.PaymentPending && order.CreatedAt.Before(cutoff) {
			unpaid = append(unpaid, order)
		}
	}
	sort.Slice(unpaid, func(i, j int) bool { return unpaid[i].ID < unpaid[j].ID })
	return unpaid, nil
}

// ---- customers ----

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.customers {
		if customer.Email != "" && strings.EqualFold(existing.Email, customer.Email) {
			return nil, fmt.Errorf("email %s: %w", customer.Email, store.ErrConflict)
		}
		if customer.Phone != "" && existing.Phone == customer.Phone {
			return nil, fmt.Errorf("phone %s: %w", customer.Phone, store.ErrConflict)
		}
	}

	now := time.Now().UTC()
	customer.ID = s.next("customer")
	if customer.VIPStatus == "" {
		customer.VIPStatus = domain.VIPNone
	}
	customer.CreatedAt = now
	customer.UpdatedAt = now
	s.customers[customer.ID] = customer
	copied := customer
	return &copied, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context, filter store.CustomerFilter) ([]domain.Customer, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Customer, 0, len(s.customers))
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, c := range s.customers {
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) && !strings.Contains(strings.ToLower(c.Email), search) && !strings.Contains(c.Phone, search) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	return paginate(matched, filter.Page, filter.Limit), total, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[customer.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.customers {
		if id == customer.ID {
			continue
		}
		if customer.Email != "" && strings.EqualFold(other.Email, customer.Email) {
			return nil, fmt.Errorf("email %s: %w", customer.Email, store.ErrConflict)
		}
		if customer.Phone != "" && other.Phone == customer.Phone {
			return nil, fmt.Errorf("phone %s: %w", customer.Phone, store.ErrConflict)
		}
	}
	customer.LoyaltyPoints = existing.LoyaltyPoints
	customer.VIPStatus = existing.VIPStatus
	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = time.Now().UTC()
	s.customers[customer.ID] = customer
	copied := customer
	return &copied, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) AddLoyaltyPoints(_ context.Context, customerID int64, points int64) (*domain.Customer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[customerID]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if points < 0 {
		return nil, false, fmt.Errorf("points must not be negative: %w", store.ErrInvalidInput)
	}

	customer.LoyaltyPoints += points
	upgraded := false
	if tier := domain.VIPTierForPoints(customer.LoyaltyPoints); domain.VIPOutranks(tier, customer.VIPStatus) {
		customer.VIPStatus = tier
		upgraded = true
	}
	customer.UpdatedAt = time.Now().UTC()
	s.customers[customerID] = customer
	copied := customer
	return &copied, upgraded, nil
}

// ---- reporting ----

func (s *Store) ProfitLoss(_ context.Context, from time.Time, to time.Time) (domain.ProfitLossSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary domain.ProfitLossSummary
	for _, order := range s.orders {
		if order.Status == domain.OrderCancelled {
			continue
		}
		if !from.IsZero() && order.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !order.CreatedAt.Before(to) {
			continue
		}
		summary.TotalSalesCents += order.GrandTotalCents
		for _, item := range order.Items {
			if product, ok := s.products[item.ProductID]; ok {
				summary.TotalCostCents += product.CostCents * int64(item.Quantity)
			}
		}
		summary.OrderCount++
	}
	summary.ProfitCents = summary.TotalSalesCents - summary.TotalCostCents
	return summary, nil
}

// ---- notifications ----

func (s *Store) CreateNotification(_ context.Context, n domain.Notification) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = s.next("notification")
	n.CreatedAt = time.Now().UTC()
	s.notifications[n.ID] = n
	copied := n
	return &copied, nil
}

func (s *Store) ListNotifications(_ context.Context, userID int64, limit int) ([]domain.Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Notification, 0, len(s.notifications))
	unseen := 0
	for _, n := range s.notifications {
		_, read := s.notifReads[n.ID][userID]
		n.Read = read
		if !read {
			unseen++
		}
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, unseen, nil
}

func (s *Store) MarkNotificationSeen(_ context.Context, notificationID int64, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[notificationID]; !ok {
		return store.ErrNotFound
	}
	reads, ok := s.notifReads[notificationID]
	if !ok {
		reads = make(map[int64]time.Time)
		s.notifReads[notificationID] = reads
	}
	// Idempotent: an existing read timestamp is kept as is.
	if _, seen := reads[userID]; !seen {
		reads[userID] = time.Now().UTC()
	}
	return nil
}

func (s *Store) NotificationExistsForOrder(_ context.Context, orderID int64, notifType string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications {
		if n.Type == notifType && n.OrderID != nil && *n.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func paginate[T any](items []T, page int, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
