package domain

// Request and response payloads for the JSON API.

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      User   `json:"user"`
}

// ProfileUpdateRequest updates the authenticated user. Changing the password
// requires the current one.
type ProfileUpdateRequest struct {
	Name            *string `json:"name,omitempty"`
	Email           *string `json:"email,omitempty"`
	CurrentPassword string  `json:"current_password,omitempty"`
	NewPassword     string  `json:"new_password,omitempty"`
}

type StaffCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type StaffUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *string `json:"role,omitempty"`
	Active   *bool   `json:"active,omitempty"`
	Password *string `json:"password,omitempty"`
}

type CategoryCreateRequest struct {
	Name string `json:"name"`
}

type ProductCreateRequest struct {
	Name       string `json:"name"`
	SKU        string `json:"sku,omitempty"`
	CategoryID *int64 `json:"category_id,omitempty"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Stock      int    `json:"stock"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	SKU        *string `json:"sku,omitempty"`
	CategoryID *int64  `json:"category_id,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	CostCents  *int64  `json:"cost_cents,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// StockRequest mutates a product's stock. Action "add" increments by
// Quantity, "adjust" sets the absolute level.
type StockRequest struct {
	Action   string `json:"action"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type CustomerUpdateRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type OrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type OrderCreateRequest struct {
	CustomerID    *int64             `json:"customer_id,omitempty"`
	Items         []OrderItemRequest `json:"items"`
	DiscountCents int64              `json:"discount_cents"`
	PaymentMethod string             `json:"payment_method,omitempty"`
}

type OrderUpdateRequest struct {
	Items         []OrderItemRequest `json:"items"`
	DiscountCents int64              `json:"discount_cents"`
	PaymentMethod string             `json:"payment_method,omitempty"`
}

type PayOrderRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// Page wraps a paginated listing.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	PerPage int `json:"per_page"`
	Current int `json:"current_page"`
}
