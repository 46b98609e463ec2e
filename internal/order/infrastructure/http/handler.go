package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	cartapp "github.com/shopyar/checkout-service/internal/cart/application"
	cartdomain "github.com/shopyar/checkout-service/internal/cart/domain"
	orderapp "github.com/shopyar/checkout-service/internal/order/application"
	"github.com/shopyar/checkout-service/internal/order/domain"
	"github.com/shopyar/checkout-service/pkg/ratelimit"
)

// userHeader carries the authenticated user id, set by the upstream auth
// proxy. Auth itself is outside this service.
const userHeader = "X-User-ID"

type Handler struct {
	log     *slog.Logger
	orders  *orderapp.Service
	carts   *cartapp.Service
	limiter ratelimit.Limiter
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, orders *orderapp.Service, carts *cartapp.Service, limiter ratelimit.Limiter) *Handler {
	return &Handler{
		log:     log,
		orders:  orders,
		carts:   carts,
		limiter: limiter,
		tracer:  otel.Tracer("checkout-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/cart/validate", h.validateCart)
	r.Post("/api/cart/fix", h.fixCart)
	r.Post("/api/checkout", h.checkout)
	r.Get("/api/orders/{id}", h.getOrder)
	return r
}

type checkoutReq struct {
	Mobile        string `json:"mobile"`
	ShippingRials int64  `json:"shipping_rials"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Checkout")
	defer span.End()

	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid body")
		return
	}

	order, payURL, err := h.orders.PlaceOrder(ctx, userID, req.Mobile, req.ShippingRials)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"order_id":    order.ID,
		"total_rials": order.TotalRials,
		"pay_url":     payURL,
	})
}

func (h *Handler) validateCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ValidateCart")
	defer span.End()

	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	cart, issues, err := h.carts.Validate(ctx, userID)
	if err != nil {
		h.log.Error("cart validation failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "try again")
		return
	}
	writeCart(w, cart, issues)
}

func (h *Handler) fixCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "FixCart")
	defer span.End()

	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.AutoFix(ctx, userID)
	if err != nil {
		h.log.Error("cart fix failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "try again")
		return
	}
	writeCart(w, cart, nil)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "try again")
		return
	}
	if order.UserID != userID {
		writeError(w, http.StatusNotFound, "order_not_found", "order not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(orderView(order))
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return "", false
	}
	allowed, err := h.limiter.Allow(r.Context(), userID)
	if err != nil {
		h.log.Error("rate limit check failed", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "try again")
		return "", false
	}
	if !allowed {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		return "", false
	}
	return userID, true
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var cartErr *orderapp.CartInvalidError
	switch {
	case errors.Is(err, orderapp.ErrCartEmpty):
		writeError(w, http.StatusUnprocessableEntity, "cart_empty", "cart is empty")
	case errors.As(err, &cartErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":  "cart_invalid",
			"issues": cartErr.Issues,
		})
	default:
		h.log.Error("checkout failed", "err", err)
		writeError(w, http.StatusBadGateway, "checkout_failed", "could not open payment")
	}
}

func writeCart(w http.ResponseWriter, cart cartdomain.Cart, issues []cartdomain.Issue) {
	items := make([]map[string]any, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, map[string]any{
			"variant_id":  it.VariantID,
			"quantity":    it.Quantity,
			"price_rials": it.PriceRials,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"cart_id":        cart.ID,
		"items":          items,
		"subtotal_rials": cart.Subtotal(),
		"issues":         issues,
	})
}

func orderView(o domain.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"variant_id":  it.VariantID,
			"quantity":    it.Quantity,
			"price_rials": it.PriceRials,
			"total_rials": it.TotalRials,
		})
	}
	view := map[string]any{
		"order_id":       o.ID,
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
		"subtotal_rials": o.SubtotalRials,
		"shipping_rials": o.ShippingRials,
		"total_rials":    o.TotalRials,
		"items":          items,
	}
	if o.PaidAt != nil {
		view["paid_at"] = o.PaidAt
	}
	return view
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
