package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/shopyar/checkout-service/internal/inventory/domain"
	orderdomain "github.com/shopyar/checkout-service/internal/order/domain"
	"github.com/shopyar/checkout-service/internal/payment/domain"
)

// Approver is the approval workflow surface the callback needs.
type Approver interface {
	Approve(ctx context.Context, orderID, authority, callbackStatus string) (domain.Approval, error)
}

type Handler struct {
	log      *slog.Logger
	payments Approver
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, payments Approver) *Handler {
	return &Handler{
		log:      log,
		payments: payments,
		tracer:   otel.Tracer("payment-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/payment/callback", h.callback)
	return r
}

// callback is the gateway's return endpoint. It consumes exactly the
// orderId query parameter plus Zarinpal's Authority and Status, and must
// answer a success to a replayed delivery of an already-paid order.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentCallback")
	defer span.End()

	q := r.URL.Query()
	orderID := q.Get("orderId")
	authority := q.Get("Authority")
	status := q.Get("Status")
	if orderID == "" || authority == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing orderId or Authority")
		return
	}

	approval, err := h.payments.Approve(ctx, orderID, authority, status)
	if err != nil {
		h.writeApprovalError(w, orderID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":      true,
		"order_id":     approval.OrderID,
		"ref_id":       approval.RefID,
		"already_paid": approval.AlreadyPaid,
	})
}

func (h *Handler) writeApprovalError(w http.ResponseWriter, orderID string, err error) {
	var gerr *domain.GatewayError
	switch {
	case errors.Is(err, domain.ErrPaymentCanceled):
		writeError(w, http.StatusOK, "payment_canceled", "payment was canceled")
	case errors.Is(err, domain.ErrVerificationInProgress):
		writeError(w, http.StatusConflict, "verification_in_progress", "verification already in progress, please wait")
	case errors.Is(err, domain.ErrReplayRejected):
		writeError(w, http.StatusConflict, "replay_rejected", "payment authority already used")
	case errors.Is(err, orderdomain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, orderdomain.ErrAmountMismatch):
		writeError(w, http.StatusBadRequest, "amount_mismatch", "order amount does not match payment")
	case errors.Is(err, invdomain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", "not enough stock to finalize the order")
	case errors.As(err, &gerr):
		h.log.Warn("gateway rejected verification", "order_id", orderID, "code", gerr.Code)
		writeError(w, http.StatusBadGateway, "gateway_error", gerr.Message)
	default:
		h.log.Error("payment approval failed", "order_id", orderID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "try again")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
