// Package postgres implements store.Repository on PostgreSQL via the pgx
// stdlib driver. Expected tables: users, categories, products, customers,
// orders, order_items, stock_entries, notifications, notification_reads.
// Schema management is external to this service.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- users ----

const userColumns = "id, name, email, password, role, active, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password, role, active, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, now(), now())
		RETURNING `+userColumns+`
	`, user.Name, strings.TrimSpace(user.Email), user.Password, user.Role, user.Active)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %s: %w", user.Email, store.ErrConflict)
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, strings.TrimSpace(email)))
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = $2, email = lower($3), password = $4, role = $5, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, user.ID, user.Name, strings.TrimSpace(user.Email), user.Password, user.Role, user.Active)
	updated, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %s: %w", user.Email, store.ErrConflict)
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&count)
	return count, err
}

// ---- catalog ----

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name) VALUES ($1) RETURNING id
	`, category.Name).Scan(&category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %s: %w", category.Name, store.ErrConflict)
		}
		return nil, err
	}
	return &category, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const productColumns = "id, name, sku, category_id, price_cents, cost_cents, stock, active, deleted_at, created_at, updated_at"

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	var sku sql.NullString
	var categoryID sql.NullInt64
	var deletedAt sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &sku, &categoryID, &p.PriceCents, &p.CostCents, &p.Stock, &p.Active, &deletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.SKU = sku.String
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	return &p, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, sku, category_id, price_cents, cost_cents, stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		RETURNING `+productColumns+`
	`, product.Name, nullString(product.SKU), nullInt64(product.CategoryID), product.PriceCents, product.CostCents, product.Stock, product.Active)
	created, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sku %s: %w", product.SKU, store.ErrConflict)
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if !filter.IncludeInactive {
		conditions = append(conditions, "active = true")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY id`
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, (page-1)*filter.Limit)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 32)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, sku = $3, category_id = $4, price_cents = $5, cost_cents = $6, active = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns+`
	`, product.ID, product.Name, nullString(product.SKU), nullInt64(product.CategoryID), product.PriceCents, product.CostCents, product.Active)
	updated, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("sku %s: %w", product.SKU, store.ErrConflict)
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) SoftDeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET deleted_at = now(), active = false, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RestoreProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE products SET deleted_at = NULL, active = true, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns+`
	`, id)
	return scanProduct(row)
}

func (s *Store) LowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE deleted_at IS NULL AND active = true AND stock <= $1
		ORDER BY stock, id
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// ---- stock ----

func lockProduct(ctx context.Context, tx *sql.Tx, productID int64) (*domain.Product, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE
	`, productID)
	return scanProduct(row)
}

func insertStockEntry(ctx context.Context, tx *sql.Tx, entry domain.StockEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_entries (product_id, user_id, type, quantity, ref_type, ref_id, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, entry.ProductID, nullInt64(entry.UserID), entry.Type, entry.Quantity,
		nullString(entry.Ref.Type), sql.NullInt64{Int64: entry.Ref.ID, Valid: entry.Ref.Type != ""}, nullString(entry.Notes))
	return err
}

func setProductStock(ctx context.Context, tx *sql.Tx, productID int64, stock int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
	`, productID, stock)
	return err
}

func (s *Store) AddStock(ctx context.Context, productID int64, quantity int, userID *int64, ref domain.LedgerRef, notes string) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	product.Stock += quantity
	if err := setProductStock(ctx, tx, productID, product.Stock); err != nil {
		return nil, err
	}
	if err := insertStockEntry(ctx, tx, domain.StockEntry{
		ProductID: productID, UserID: userID, Type: domain.StockRestock,
		Quantity: quantity, Ref: ref, Notes: notes,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Store) RemoveStock(ctx context.Context, productID int64, quantity int, userID *int64, ref domain.LedgerRef, notes string) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", store.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Stock {
		return nil, fmt.Errorf("not enough stock for %s (available %d): %w", product.Name, product.Stock, store.ErrInsufficientStock)
	}
	product.Stock -= quantity
	if err := setProductStock(ctx, tx, productID, product.Stock); err != nil {
		return nil, err
	}
	if err := insertStockEntry(ctx, tx, domain.StockEntry{
		ProductID: productID, UserID: userID, Type: domain.StockSale,
		Quantity: quantity, Ref: ref, Notes: notes,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Store) AdjustStock(ctx context.Context, productID int64, newStock int, userID *int64, notes string) (*domain.Product, error) {
	if newStock < 0 {
		return nil, fmt.Errorf("stock must not be negative: %w", store.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock == newStock {
		return product, nil
	}
	delta := newStock - product.Stock
	if delta < 0 {
		delta = -delta
	}
	product.Stock = newStock
	if err := setProductStock(ctx, tx, productID, newStock); err != nil {
		return nil, err
	}
	if err := insertStockEntry(ctx, tx, domain.StockEntry{
		ProductID: productID, UserID: userID, Type: domain.StockAdjustment,
		Quantity: delta, Ref: domain.NoRef(), Notes: notes,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *Store) ListStockEntries(ctx context.Context, productID int64, limit int) ([]domain.StockEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, user_id, type, quantity, ref_type, ref_id, notes, created_at
		FROM stock_entries
		WHERE product_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0, limit)
	for rows.Next() {
		var e domain.StockEntry
		var userID sql.NullInt64
		var refType, notes sql.NullString
		var refID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ProductID, &userID, &e.Type, &e.Quantity, &refType, &refID, &notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			e.UserID = &userID.Int64
		}
		if refType.Valid {
			e.Ref = domain.LedgerRef{Type: refType.String, ID: refID.Int64}
		}
		e.Notes = notes.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---- orders ----

const orderColumns = "id, user_id, customer_id, total_cents, discount_cents, grand_total_cents, status, payment_status, payment_method, created_at, updated_at"

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	var customerID sql.NullInt64
	var method sql.NullString
	err := row.Scan(&o.ID, &o.UserID, &customerID, &o.TotalCents, &o.DiscountCents, &o.GrandTotalCents, &o.Status, &o.PaymentStatus, &method, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if customerID.Valid {
		o.CustomerID = &customerID.Int64
	}
	o.PaymentMethod = method.String
	return &o, nil
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

// fillOrderItems runs the shared per-item loop inside tx: lock the product
// row, check availability and stock, snapshot the price, deduct, write the
// order item and the sale ledger entry. Returns the items total. Any error
// aborts the caller's transaction, so partial deductions never commit.
func fillOrderItems(ctx context.Context, tx *sql.Tx, orderID int64, draft store.OrderDraft) (int64, error) {
	var total int64
	for _, req := range draft.Items {
		if req.Quantity < 1 {
			return 0, fmt.Errorf("quantity must be at least 1: %w", store.ErrInvalidInput)
		}
		product, err := lockProduct(ctx, tx, req.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return 0, fmt.Errorf("product %d: %w", req.ProductID, store.ErrNotFound)
			}
			return 0, err
		}
		if !product.Available() {
			return 0, fmt.Errorf("product %s is unavailable: %w", product.Name, store.ErrInvalidInput)
		}
		if req.Quantity > product.Stock {
			return 0, fmt.Errorf("not enough stock for %s (available %d): %w", product.Name, product.Stock, store.ErrInsufficientStock)
		}
		if err := setProductStock(ctx, tx, product.ID, product.Stock-req.Quantity); err != nil {
			return 0, err
		}
		subtotal := product.PriceCents * int64(req.Quantity)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, orderID, product.ID, product.Name, req.Quantity, product.PriceCents, subtotal); err != nil {
			return 0, err
		}
		if err := insertStockEntry(ctx, tx, domain.StockEntry{
			ProductID: product.ID, UserID: &draft.UserID, Type: domain.StockSale,
			Quantity: req.Quantity, Ref: domain.OrderRef(orderID),
			Notes: fmt.Sprintf("sale for order #%d", orderID),
		}); err != nil {
			return 0, err
		}
		total += subtotal
	}
	return total, nil
}

// restoreOrderItems returns every item's quantity to its product inside tx,
// writing one restock ledger entry per item.
func restoreOrderItems(ctx context.Context, tx *sql.Tx, order *domain.Order, userID *int64, notesFormat string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity FROM order_items WHERE order_id = $1
	`, order.ID)
	if err != nil {
		return err
	}
	type movement struct {
		productID int64
		quantity  int
	}
	movements := make([]movement, 0, 8)
	for rows.Next() {
		var m movement
		if err := rows.Scan(&m.productID, &m.quantity); err != nil {
			_ = rows.Close()
			return err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, m := range movements {
		product, err := lockProduct(ctx, tx, m.productID)
		if err != nil {
			return err
		}
		if err := setProductStock(ctx, tx, m.productID, product.Stock+m.quantity); err != nil {
			return err
		}
		if err := insertStockEntry(ctx, tx, domain.StockEntry{
			ProductID: m.productID, UserID: userID, Type: domain.StockRestock,
			Quantity: m.quantity, Ref: domain.OrderRef(order.ID),
			Notes: fmt.Sprintf(notesFormat, order.ID),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, draft store.OrderDraft) (*domain.Order, error) {
	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("order needs at least one item: %w", store.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var orderID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, customer_id, total_cents, discount_cents, grand_total_cents, status, payment_status, payment_method, created_at, updated_at)
		VALUES ($1,$2,0,$3,0,$4,$5,$6,now(),now())
		RETURNING id
	`, draft.UserID, nullInt64(draft.CustomerID), draft.DiscountCents, domain.OrderPending, domain.PaymentPending, nullString(draft.PaymentMethod)).Scan(&orderID)
	if err != nil {
		return nil, err
	}

	total, err := fillOrderItems(ctx, tx, orderID, draft)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET total_cents = $2, grand_total_cents = $3, updated_at = now() WHERE id = $1
	`, orderID, total, grandTotal(total, draft.DiscountCents, draft.VIPDiscountPercent)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Store) UpdateOrder(ctx context.Context, orderID int64, draft store.OrderDraft) (*domain.Order, error) {
	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("order needs at least one item: %w", store.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentPending {
		return nil, fmt.Errorf("cannot edit a paid order: %w", store.ErrForbidden)
	}

	// Old quantities are fully restored, then the new set is deducted from
	// scratch. Same-product overlap is intentionally not diffed.
	if err := restoreOrderItems(ctx, tx, order, &draft.UserID, "restocked from edited order #%d"); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return nil, err
	}

	total, err := fillOrderItems(ctx, tx, orderID, draft)
	if err != nil {
		return nil, err
	}

	method := order.PaymentMethod
	if draft.PaymentMethod != "" {
		method = draft.PaymentMethod
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET total_cents = $2, discount_cents = $3, grand_total_cents = $4, payment_method = $5, updated_at = now()
		WHERE id = $1
	`, orderID, total, draft.DiscountCents, grandTotal(total, draft.DiscountCents, draft.VIPDiscountPercent), nullString(method)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Store) CancelOrder(ctx context.Context, orderID int64, userID *int64) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderCancelled {
		return nil, fmt.Errorf("order is already cancelled: %w", store.ErrInvalidInput)
	}
	if order.PaymentStatus != domain.PaymentPending && order.PaymentStatus != domain.PaymentPaid {
		return nil, fmt.Errorf("this order cannot be cancelled: %w", store.ErrForbidden)
	}

	if err := restoreOrderItems(ctx, tx, order, userID, "restocked from cancelled order #%d"); err != nil {
		return nil, err
	}

	paymentStatus := order.PaymentStatus
	if paymentStatus == domain.PaymentPaid {
		paymentStatus = domain.PaymentRefunded
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, payment_status = $3, updated_at = now() WHERE id = $1
	`, orderID, domain.OrderCancelled, paymentStatus); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Store) MarkOrderPaid(ctx context.Context, orderID int64, paymentMethod string) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, payment_method = COALESCE(NULLIF($4, ''), payment_method), updated_at = now()
		WHERE id = $1 AND status = $5 AND payment_status = $6
	`, orderID, domain.OrderPaid, domain.PaymentPaid, paymentMethod, domain.OrderPending, domain.PaymentPending)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("order is not pending payment: %w", store.ErrInvalidInput)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := s.orderItems(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	return order, nil
}

func (s *Store) orderItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return map[int64][]domain.OrderItem{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOrder := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPriceCents, &item.SubtotalCents); err != nil {
			return nil, err
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder, rows.Err()
}

func orderFilterClause(filter store.OrderFilter) (string, []any) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]domain.Order, int, error) {
	where, args := orderFilterClause(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY id DESC`
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, (page-1)*filter.Limit)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 32)
	orderIDs := make([]int64, 0, 32)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	itemsByOrder, err := s.orderItems(ctx, orderIDs)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = itemsByOrder[orders[i].ID]
	}
	return orders, total, nil
}

func (s *Store) CountOrders(ctx context.Context, filter store.OrderFilter) (int, error) {
	where, args := orderFilterClause(filter)
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&count)
	return count, err
}

func (s *Store) ListUnpaidOrdersBefore(ctx context.Context, cutoff time.Time) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND payment_status = $2 AND created_at < $3
		ORDER BY id
	`, domain.OrderPending, domain.PaymentPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 16)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// ---- customers ----

const customerColumns = "id, name, email, phone, loyalty_points, vip_status, created_at, updated_at"

func scanCustomer(row interface{ Scan(...any) error }) (*domain.Customer, error) {
	var c domain.Customer
	var email, phone sql.NullString
	err := row.Scan(&c.ID, &c.Name, &email, &phone, &c.LoyaltyPoints, &c.VIPStatus, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.VIPStatus == "" {
		customer.VIPStatus = domain.VIPNone
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, phone, loyalty_points, vip_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
		RETURNING `+customerColumns+`
	`, customer.Name, nullString(customer.Email), nullString(customer.Phone), customer.LoyaltyPoints, customer.VIPStatus)
	created, err := scanCustomer(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("customer contact: %w", store.ErrConflict)
		}
		return nil, err
	}
	return created, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

func (s *Store) ListCustomers(ctx context.Context, filter store.CustomerFilter) ([]domain.Customer, int, error) {
	where := ""
	args := make([]any, 0, 3)
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = " WHERE (name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1)"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + where + ` ORDER BY id`
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, (page-1)*filter.Limit)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, *c)
	}
	return customers, total, rows.Err()
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE customers SET name = $2, email = $3, phone = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+customerColumns+`
	`, customer.ID, customer.Name, nullString(customer.Email), nullString(customer.Phone))
	updated, err := scanCustomer(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("customer contact: %w", store.ErrConflict)
		}
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AddLoyaltyPoints(ctx context.Context, customerID int64, points int64) (*domain.Customer, bool, error) {
	if points < 0 {
		return nil, false, fmt.Errorf("points must not be negative: %w", store.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	customer, err := scanCustomer(tx.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, customerID))
	if err != nil {
		return nil, false, err
	}

	customer.LoyaltyPoints += points
	upgraded := false
	if tier := domain.VIPTierForPoints(customer.LoyaltyPoints); domain.VIPOutranks(tier, customer.VIPStatus) {
		customer.VIPStatus = tier
		upgraded = true
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE customers SET loyalty_points = $2, vip_status = $3, updated_at = now() WHERE id = $1
	`, customerID, customer.LoyaltyPoints, customer.VIPStatus); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return customer, upgraded, nil
}

// ---- reporting ----

func (s *Store) ProfitLoss(ctx context.Context, from time.Time, to time.Time) (domain.ProfitLossSummary, error) {
	conditions := []string{"o.status <> 'cancelled'"}
	args := make([]any, 0, 2)
	if !from.IsZero() {
		args = append(args, from)
		conditions = append(conditions, fmt.Sprintf("o.created_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conditions = append(conditions, fmt.Sprintf("o.created_at < $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var summary domain.ProfitLossSummary
	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(sum(o.grand_total_cents), 0), count(*)
		FROM orders o`+where, args...).Scan(&summary.TotalSalesCents, &summary.OrderCount); err != nil {
		return domain.ProfitLossSummary{}, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(sum(p.cost_cents * i.quantity), 0)
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		JOIN products p ON p.id = i.product_id`+where, args...).Scan(&summary.TotalCostCents); err != nil {
		return domain.ProfitLossSummary{}, err
	}

	summary.ProfitCents = summary.TotalSalesCents - summary.TotalCostCents
	return summary, nil
}

// ---- notifications ----

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (type, message, customer_id, order_id, sent, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
		RETURNING id, created_at
	`, n.Type, n.Message, nullInt64(n.CustomerID), nullInt64(n.OrderID), n.Sent).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID int64, limit int) ([]domain.Notification, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var unseen int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM notifications n
		WHERE NOT EXISTS (
			SELECT 1 FROM notification_reads r
			WHERE r.notification_id = n.id AND r.user_id = $1
		)
	`, userID).Scan(&unseen); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.type, n.message, n.customer_id, n.order_id, n.sent, n.created_at,
		       r.read_at IS NOT NULL
		FROM notifications n
		LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $1
		ORDER BY n.id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0, limit)
	for rows.Next() {
		var n domain.Notification
		var customerID, orderID sql.NullInt64
		if err := rows.Scan(&n.ID, &n.Type, &n.Message, &customerID, &orderID, &n.Sent, &n.CreatedAt, &n.Read); err != nil {
			return nil, 0, err
		}
		if customerID.Valid {
			n.CustomerID = &customerID.Int64
		}
		if orderID.Valid {
			n.OrderID = &orderID.Int64
		}
		notifications = append(notifications, n)
	}
	return notifications, unseen, rows.Err()
}

func (s *Store) MarkNotificationSeen(ctx context.Context, notificationID int64, userID int64) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM notifications WHERE id = $1)
	`, notificationID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}

	// Idempotent: re-marking keeps the original read_at.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_reads (notification_id, user_id, read_at)
		VALUES ($1,$2,now())
		ON CONFLICT (notification_id, user_id) DO NOTHING
	`, notificationID, userID)
	return err
}

func (s *Store) NotificationExistsForOrder(ctx context.Context, orderID int64, notifType string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM notifications WHERE order_id = $1 AND type = $2)
	`, orderID, notifType).Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
