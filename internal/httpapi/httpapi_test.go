package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cafeops/backend/internal/domain"
	"cafeops/backend/internal/service"
	"cafeops/backend/internal/store/memory"
)

func newTestAPI(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	repo := memory.New()
	svc := service.New(repo, nil, nil, zerolog.Nop(), service.Options{LowStockThreshold: 3})
	auth := NewAuthManager("unit-test-secret-material-0123456789", time.Hour, repo)
	api := New(svc, auth, zerolog.Nop(), []string{"*"})
	return api.Handler(), repo
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func loginAs(t *testing.T, handler http.Handler, repo *memory.Store, role string) string {
	t.Helper()
	email := fmt.Sprintf("%s@example.com", role)
	seedUser(t, repo, email, "s3cret-pass", role, true)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email: email, Password: "s3cret-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s: status %d body %s", role, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	return resp.Token
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	handler, _ := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products", "bogus-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	handler, _ := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{
		Name: "Owner", Email: "owner@example.com", Password: "s3cret-pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body %s", rec.Code, rec.Body.String())
	}
	var user domain.User
	decodeBody(t, rec, &user)
	if user.Role != domain.RoleAdmin {
		t.Fatalf("first registered role = %s, want admin", user.Role)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email: "owner@example.com", Password: "s3cret-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/me", resp.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d body %s", rec.Code, rec.Body.String())
	}
	var me domain.User
	decodeBody(t, rec, &me)
	if me.Email != "owner@example.com" {
		t.Fatalf("me email = %s", me.Email)
	}
}

func TestCashierCannotCreateProducts(t *testing.T) {
	handler, repo := newTestAPI(t)
	token := loginAs(t, handler, repo, domain.RoleCashier)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name: "Espresso", PriceCents: 350, CostCents: 90, Stock: 10,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403; body %s", rec.Code, rec.Body.String())
	}
}

func TestOrderFlowOverAPI(t *testing.T) {
	handler, repo := newTestAPI(t)
	adminToken := loginAs(t, handler, repo, domain.RoleAdmin)
	cashierToken := loginAs(t, handler, repo, domain.RoleCashier)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", adminToken, domain.ProductCreateRequest{
		Name: "Espresso", PriceCents: 350, CostCents: 90, Stock: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product status = %d body %s", rec.Code, rec.Body.String())
	}
	var product domain.Product
	decodeBody(t, rec, &product)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders", cashierToken, domain.OrderCreateRequest{
		Items:         []domain.OrderItemRequest{{ProductID: product.ID, Quantity: 2}},
		DiscountCents: 100,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order status = %d body %s", rec.Code, rec.Body.String())
	}
	var order domain.Order
	decodeBody(t, rec, &order)
	if order.GrandTotalCents != 600 {
		t.Fatalf("grand total = %d, want 600", order.GrandTotalCents)
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/pay", order.ID), cashierToken, domain.PayOrderRequest{
		PaymentMethod: domain.PayCash,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("pay status = %d body %s", rec.Code, rec.Body.String())
	}
	var paid domain.Order
	decodeBody(t, rec, &paid)
	if paid.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("payment status = %s, want paid", paid.PaymentStatus)
	}

	// Paying again maps the store rejection to a 422.
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/pay", order.ID), cashierToken, domain.PayOrderRequest{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("double pay status = %d, want 422; body %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["message"] != "order is not pending payment" {
		t.Fatalf("message = %q", body["message"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/"+fmt.Sprint(product.ID), cashierToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product status = %d", rec.Code)
	}
	var after domain.Product
	decodeBody(t, rec, &after)
	if after.Stock != 8 {
		t.Fatalf("stock = %d, want 8", after.Stock)
	}
}

func TestUnknownOrderIs404(t *testing.T) {
	handler, repo := newTestAPI(t)
	token := loginAs(t, handler, repo, domain.RoleCashier)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/orders/999", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	handler, repo := newTestAPI(t)
	token := loginAs(t, handler, repo, domain.RoleAdmin)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products/categories", token, map[string]any{
		"name": "Beverages", "surprise": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
}

func TestNotificationsOverAPI(t *testing.T) {
	handler, repo := newTestAPI(t)
	adminToken := loginAs(t, handler, repo, domain.RoleAdmin)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", adminToken, domain.ProductCreateRequest{
		Name: "Muffin", PriceCents: 400, CostCents: 150, Stock: 4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product status = %d", rec.Code)
	}
	var product domain.Product
	decodeBody(t, rec, &product)

	// Drop stock to the threshold to generate a low-stock notification.
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/products/%d/stock", product.ID), adminToken, domain.StockRequest{
		Action: "remove", Quantity: 1, Notes: "sampled",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("stock mutation status = %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/notifications", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("notifications status = %d", rec.Code)
	}
	var feed domain.NotificationFeed
	decodeBody(t, rec, &feed)
	if feed.UnseenCount != 1 || len(feed.Notifications) != 1 {
		t.Fatalf("unexpected feed: %+v", feed)
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/seen", feed.Notifications[0].ID), adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark seen status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/notifications", adminToken, nil)
	decodeBody(t, rec, &feed)
	if feed.UnseenCount != 0 {
		t.Fatalf("unseen = %d after marking, want 0", feed.UnseenCount)
	}
}

func TestDashboardRequiresReportsPermission(t *testing.T) {
	handler, repo := newTestAPI(t)
	cashierToken := loginAs(t, handler, repo, domain.RoleCashier)
	managerToken := loginAs(t, handler, repo, domain.RoleManager)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/dashboard", cashierToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cashier dashboard status = %d, want 403", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard", managerToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("manager dashboard status = %d body %s", rec.Code, rec.Body.String())
	}
}
