// Package httpapi exposes the JSON API. Routing is chi, authentication is
// bearer JWT, and every 4xx body is {"message": "..."}.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"cafeops/backend/internal/service"
	"cafeops/backend/internal/store"
)

type API struct {
	service        *service.Service
	auth           *AuthManager
	log            zerolog.Logger
	allowedOrigins []string
	metrics        *requestMetrics
}

func New(svc *service.Service, auth *AuthManager, log zerolog.Logger, allowedOrigins []string) *API {
	return &API{
		service:        svc,
		auth:           auth,
		log:            log,
		allowedOrigins: allowedOrigins,
		metrics:        newRequestMetrics(),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(a.metrics.middleware)
	r.Use(limitBody)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", a.metrics.handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(10, time.Minute))
			r.Post("/auth/login", a.handleLogin)
			r.Post("/auth/register", a.handleRegister)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Post("/auth/logout", a.handleLogout)
			r.Get("/me", a.handleMe)
			r.Put("/me", a.handleUpdateProfile)

			r.Get("/staff", a.handleListStaff)
			r.Post("/staff", a.handleCreateStaff)
			r.Get("/staff/{id}", a.handleGetStaff)
			r.Put("/staff/{id}", a.handleUpdateStaff)
			r.Delete("/staff/{id}", a.handleDeleteStaff)

			r.Get("/products/categories", a.handleListCategories)
			r.Post("/products/categories", a.handleCreateCategory)

			r.Get("/products", a.handleListProducts)
			r.Post("/products", a.handleCreateProduct)
			r.Get("/products/low-stock", a.handleLowStockProducts)
			r.Get("/products/{id}", a.handleGetProduct)
			r.Put("/products/{id}", a.handleUpdateProduct)
			r.Delete("/products/{id}", a.handleDeleteProduct)
			r.Post("/products/{id}/restore", a.handleRestoreProduct)
			r.Post("/products/{id}/stock", a.handleStockMutation)
			r.Get("/products/{id}/stock", a.handleStockHistory)

			r.Get("/orders", a.handleListOrders)
			r.Post("/orders", a.handleCreateOrder)
			r.Get("/orders/{id}", a.handleGetOrder)
			r.Put("/orders/{id}", a.handleUpdateOrder)
			r.Post("/orders/{id}/cancel", a.handleCancelOrder)
			r.Post("/orders/{id}/pay", a.handlePayOrder)

			r.Get("/customers", a.handleListCustomers)
			r.Post("/customers", a.handleCreateCustomer)
			r.Get("/customers/{id}", a.handleGetCustomer)
			r.Put("/customers/{id}", a.handleUpdateCustomer)
			r.Delete("/customers/{id}", a.handleDeleteCustomer)
			r.Get("/customers/{id}/orders", a.handleCustomerOrders)

			r.Get("/reports/daily", a.handleDailyReport)
			r.Get("/reports/monthly", a.handleMonthlyReport)
			r.Get("/reports/yearly", a.handleYearlyReport)
			r.Get("/reports/overall", a.handleOverallReport)
			r.Get("/reports/trends/daily", a.handleDailyTrend)
			r.Get("/reports/trends/monthly", a.handleMonthlyTrend)
			r.Get("/reports/trends/yearly", a.handleYearlyTrend)
			r.Get("/dashboard", a.handleDashboard)

			r.Get("/notifications", a.handleNotifications)
			r.Post("/notifications/{id}/seen", a.handleNotificationSeen)
		})
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// requireAuth resolves the bearer token into an actor on the request
// context. Permission checks happen in the service layer.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		next.ServeHTTP(w, r)
	})
}

// writeServiceError maps store sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body; the detail goes to the log.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrForbidden):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrInvalidInput):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	default:
		a.log.Error().Err(err).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func sentinelSuffix(msg string) string {
	// Strip the trailing wrapped sentinel text so clients see only the
	// human-readable part.
	for _, sentinel := range []string{
		": " + store.ErrNotFound.Error(),
		": " + store.ErrConflict.Error(),
		": " + store.ErrInsufficientStock.Error(),
		": " + store.ErrInvalidInput.Error(),
		": " + store.ErrForbidden.Error(),
	} {
		msg = strings.TrimSuffix(msg, sentinel)
	}
	return msg
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"message": sentinelSuffix(msg)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
}
