package domain

import (
	"time"
)

// Roles. Every user holds exactly one.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// Capability strings gating API operations.
const (
	PermManageStaff     = "manage_staff"
	PermViewReports     = "view_reports"
	PermManageInventory = "manage_inventory"
	PermUsePOS          = "use_pos"
	PermRefundOrder     = "refund_order"
)

var rolePermissions = map[string][]string{
	RoleManager: {PermViewReports, PermManageInventory, PermUsePOS, PermRefundOrder},
	RoleCashier: {PermUsePOS},
}

// RoleHasPermission reports whether the role grants the capability.
// Admin is checked first and holds every permission unconditionally.
func RoleHasPermission(role string, permission string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

func KnownRole(role string) bool {
	return role == RoleAdmin || role == RoleManager || role == RoleCashier
}

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Actor is the authenticated identity carried on the request context.
type Actor struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func (a Actor) Can(permission string) bool {
	return RoleHasPermission(a.Role, permission)
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	SKU        string     `json:"sku,omitempty"`
	CategoryID *int64     `json:"category_id,omitempty"`
	PriceCents int64      `json:"price_cents"`
	CostCents  int64      `json:"cost_cents"`
	Stock      int        `json:"stock"`
	Active     bool       `json:"active"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Available reports whether the product can be sold right now.
func (p Product) Available() bool {
	return p.Active && p.DeletedAt == nil
}

// VIP tiers, unlocked by cumulative loyalty points. Upgrades only, never
// downgrades.
const (
	VIPNone     = "none"
	VIPSilver   = "silver"
	VIPGold     = "gold"
	VIPPlatinum = "platinum"
)

const (
	VIPSilverThreshold   = 50
	VIPGoldThreshold     = 100
	VIPPlatinumThreshold = 200
)

// VIPTierForPoints returns the highest tier the point balance unlocks.
func VIPTierForPoints(points int64) string {
	switch {
	case points >= VIPPlatinumThreshold:
		return VIPPlatinum
	case points >= VIPGoldThreshold:
		return VIPGold
	case points >= VIPSilverThreshold:
		return VIPSilver
	default:
		return VIPNone
	}
}

// vipRank orders tiers so upgrades can be compared.
var vipRank = map[string]int{
	VIPNone:     0,
	VIPSilver:   1,
	VIPGold:     2,
	VIPPlatinum: 3,
}

// VIPOutranks reports whether tier a is strictly higher than tier b.
func VIPOutranks(a string, b string) bool {
	return vipRank[a] > vipRank[b]
}

var vipDiscountPercent = map[string]int64{
	VIPSilver:   5,
	VIPGold:     10,
	VIPPlatinum: 15,
}

// VIPDiscountPercent returns the whole-percent discount for the tier, 0 for
// none or unknown tiers.
func VIPDiscountPercent(status string) int64 {
	return vipDiscountPercent[status]
}

// ApplyVIPDiscount reduces an amount by the tier's discount rate.
func ApplyVIPDiscount(status string, amountCents int64) int64 {
	pct := VIPDiscountPercent(status)
	if pct == 0 || amountCents <= 0 {
		return amountCents
	}
	return amountCents - amountCents*pct/100
}

type Customer struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	LoyaltyPoints int64     `json:"loyalty_points"`
	VIPStatus     string    `json:"vip_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Order lifecycle: pending -> paid or cancelled; paid -> cancelled (with
// refund). No transition out of cancelled.
const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderCancelled = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

const (
	PayCash        = "cash"
	PayCard        = "card"
	PayMobileMoney = "mobile_money"
)

func KnownPaymentMethod(method string) bool {
	return method == PayCash || method == PayCard || method == PayMobileMoney
}

type Order struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	CustomerID      *int64      `json:"customer_id,omitempty"`
	TotalCents      int64       `json:"total_cents"`
	DiscountCents   int64       `json:"discount_cents"`
	GrandTotalCents int64       `json:"grand_total_cents"`
	Status          string      `json:"status"`
	PaymentStatus   string      `json:"payment_status"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
	Items           []OrderItem `json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"order_id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// Stock ledger entry types.
const (
	StockSale       = "sale"
	StockRestock    = "restock"
	StockAdjustment = "adjustment"
)

// LedgerRef tags a stock entry with the entity that caused it. An empty Type
// means the entry carries no reference.
type LedgerRef struct {
	Type string `json:"type,omitempty"`
	ID   int64  `json:"id,omitempty"`
}

const RefOrder = "order"

func OrderRef(orderID int64) LedgerRef {
	return LedgerRef{Type: RefOrder, ID: orderID}
}

func NoRef() LedgerRef {
	return LedgerRef{}
}

// StockEntry is one append-only row of the stock audit trail. Entries are
// never updated or deleted.
type StockEntry struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Type      string    `json:"type"`
	Quantity  int       `json:"quantity"`
	Ref       LedgerRef `json:"ref,omitzero"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	NotifLowStock    = "low_stock"
	NotifUnpaidOrder = "unpaid_order"
	NotifVIPUpgrade  = "vip_upgrade"
)

type Notification struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	CustomerID *int64    `json:"customer_id,omitempty"`
	OrderID    *int64    `json:"order_id,omitempty"`
	Sent       bool      `json:"sent"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

type NotificationFeed struct {
	Notifications []Notification `json:"notifications"`
	UnseenCount   int            `json:"unseen_count"`
}

// ProfitLossSummary is one reporting bucket over non-cancelled orders.
type ProfitLossSummary struct {
	Label           string `json:"label,omitempty"`
	TotalSalesCents int64  `json:"total_sales_cents"`
	TotalCostCents  int64  `json:"total_cost_cents"`
	ProfitCents     int64  `json:"profit_cents"`
	OrderCount      int    `json:"order_count"`
}

type DashboardPayload struct {
	TodaySalesCents    int64             `json:"today_sales_cents"`
	TodayOrdersCount   int               `json:"today_orders_count"`
	PendingOrdersCount int               `json:"pending_orders_count"`
	PendingOrders      []Order           `json:"pending_orders"`
	LowStockProducts   []Product         `json:"low_stock_products"`
	DailyProfitLoss    ProfitLossSummary `json:"daily_profit_loss"`
	RecentOrders       []Order           `json:"recent_orders"`
}
