package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Amivian/paystack-gobackend/internal/config"
	"github.com/Amivian/paystack-gobackend/internal/models"
	"github.com/Amivian/paystack-gobackend/internal/paystack"
	"github.com/Amivian/paystack-gobackend/internal/services"
)

// signatureHeader carries the webhook HMAC.
const signatureHeader = "X-Paystack-Signature"

// Engine is the reconciliation surface the handlers call.
type Engine interface {
	HandleCallback(ctx context.Context, reference string) (services.CallbackResult, error)
	HandleWebhookEvent(ctx context.Context, event paystack.WebhookEvent, logID string) error
}

// Refunder processes operator-triggered refunds.
type Refunder interface {
	ProcessRefund(ctx context.Context, transactionID string, amount *float64, reason string) (services.RefundResult, error)
}

// Store is the persistence surface the handlers use directly.
type Store interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, f services.ListFilter) ([]models.Transaction, int64, error)
	GetPaymentStatistics(ctx context.Context) (*services.PaymentStatistics, error)
	GetRefundsByTransaction(ctx context.Context, transactionID string) ([]models.Refund, error)
	LogWebhook(ctx context.Context, lg *models.WebhookLog) (string, error)
	SetWebhookError(ctx context.Context, logID, errorMessage string) error
}

// Initializer starts a hosted charge on the gateway.
type Initializer interface {
	InitializeTransaction(ctx context.Context, email string, amount float64, currency, reference, callbackURL string, meta paystack.Metadata) (*paystack.InitializeData, []byte, error)
}

type PaymentHandler struct {
	cfg     *config.Config
	store   Store
	engine  Engine
	refunds Refunder
	gateway Initializer
	history services.OrderHistory
	logger  *zap.Logger
}

func NewPaymentHandler(cfg *config.Config, store Store, engine Engine, refunds Refunder, gateway Initializer, history services.OrderHistory, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		refunds: refunds,
		gateway: gateway,
		history: history,
		logger:  logger,
	}
}

type checkoutRequest struct {
	OrderID       string  `json:"order_id"`
	Email         string  `json:"email"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	CustomerName  string  `json:"customer_name"`
	CustomerPhone string  `json:"customer_phone"`
}

// Checkout initializes a charge with the gateway and records the pending
// transaction.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	if req.OrderID == "" {
		http.Error(w, `{"error":"order_id is required"}`, http.StatusBadRequest)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		http.Error(w, `{"error":"A valid email is required"}`, http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		http.Error(w, `{"error":"Amount must be positive"}`, http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "NGN"
	}

	reference := paystack.NewReference("OC")
	meta := paystack.Metadata{
		OrderID:       req.OrderID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	}

	data, raw, err := h.gateway.InitializeTransaction(r.Context(), req.Email, req.Amount, req.Currency, reference, h.cfg.CallbackURL, meta)
	if err != nil {
		h.logger.Warn("transaction initialize failed",
			zap.String("order_id", req.OrderID), zap.Error(err))
		var apiErr *paystack.APIError
		if errors.As(err, &apiErr) {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, apiErr.Message), http.StatusBadGateway)
			return
		}
		http.Error(w, `{"error":"Failed to initialize payment"}`, http.StatusBadGateway)
		return
	}

	tx := &models.Transaction{
		OrderID:       req.OrderID,
		Reference:     reference,
		AccessCode:    data.AccessCode,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        models.StatusPending,
		CustomerEmail: req.Email,
		CustomerName:  req.CustomerName,
	}
	tx.GatewayResponse = string(raw)
	if err := h.store.CreateTransaction(r.Context(), tx); err != nil {
		h.logger.Error("failed to store transaction",
			zap.String("reference", reference), zap.Error(err))
		http.Error(w, `{"error":"Failed to store transaction"}`, http.StatusInternalServerError)
		return
	}

	// Best effort; a missing "initiated" entry is recoverable from the
	// transaction row itself.
	if err := h.history.AddHistory(r.Context(), req.OrderID, h.cfg.PendingOrderStatus, "Payment initiated via Paystack", false); err != nil {
		h.logger.Warn("failed to append order history",
			zap.String("order_id", req.OrderID), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"reference":         reference,
		"access_code":       data.AccessCode,
		"authorization_url": data.AuthorizationURL,
	})
}

// Callback handles the browser redirect back from the hosted payment page.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		h.redirectFailure(w, r, "Invalid transaction reference")
		return
	}

	result, err := h.engine.HandleCallback(r.Context(), reference)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			h.redirectFailure(w, r, "Transaction not found")
			return
		}
		h.logger.Error("callback handling failed",
			zap.String("reference", reference), zap.Error(err))
		h.redirectFailure(w, r, "Payment failed")
		return
	}

	if result.Success {
		h.redirect(w, r, h.cfg.SuccessRedirectURL, result.Message)
		return
	}
	h.redirectFailure(w, r, result.Message)
}

// Webhook receives Paystack's server-to-server notifications. The body is
// verified against the signature header before it is parsed; any request that
// was durably logged gets a 200 so the gateway stops retrying, and a 500 is
// reserved for failures we want redelivered.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Invalid webhook data", http.StatusBadRequest)
		return
	}
	signature := r.Header.Get(signatureHeader)

	if len(payload) == 0 || signature == "" {
		http.Error(w, "Invalid webhook data", http.StatusBadRequest)
		return
	}

	verified := paystack.ValidateWebhook(payload, signature, h.cfg.SecretKey())

	// Parsed after the signature check; a body that is not valid JSON is
	// logged and treated as an unknown event.
	var event paystack.WebhookEvent
	_ = json.Unmarshal(payload, &event)

	logID, err := h.store.LogWebhook(r.Context(), &models.WebhookLog{
		EventType: event.Event,
		Reference: event.Data.Reference,
		Payload:   string(payload),
		Signature: signature,
		Verified:  verified,
	})
	if err != nil {
		h.logger.Error("failed to log webhook", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !verified {
		if err := h.store.SetWebhookError(r.Context(), logID, "invalid webhook signature"); err != nil {
			h.logger.Error("failed to update webhook log",
				zap.String("log_id", logID), zap.Error(err))
		}
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.engine.HandleWebhookEvent(r.Context(), event, logID); err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("event", event.Event),
			zap.String("reference", event.Data.Reference),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type refundRequest struct {
	Amount *float64 `json:"amount"`
	Reason string   `json:"reason"`
}

// Refund processes an operator-triggered refund against a transaction.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	transactionID := mux.Vars(r)["transactionID"]
	if transactionID == "" {
		http.Error(w, `{"error":"Transaction ID is required"}`, http.StatusBadRequest)
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.refunds.ProcessRefund(r.Context(), transactionID, req.Amount, req.Reason)
	if err != nil {
		h.logger.Error("refund processing failed",
			zap.String("transaction_id", transactionID), zap.Error(err))
		http.Error(w, `{"error":"Failed to process refund"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !result.Status {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	json.NewEncoder(w).Encode(result)
}

// ListTransactions returns a filtered, paginated transaction listing.
func (h *PaymentHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := services.ListFilter{Status: q.Get("status")}
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		http.Error(w, `{"error":"Invalid status filter"}`, http.StatusBadRequest)
		return
	}

	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, `{"error":"start_date must be YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		filter.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, `{"error":"end_date must be YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		// Inclusive end of day.
		t = t.Add(24*time.Hour - time.Nanosecond)
		filter.EndDate = &t
	}

	fmt.Sscan(q.Get("page"), &filter.Page)
	fmt.Sscan(q.Get("limit"), &filter.Limit)

	transactions, total, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list transactions", zap.Error(err))
		http.Error(w, `{"error":"Failed to fetch transactions"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transactions": transactions,
		"total":        total,
	})
}

// GetTransaction returns one transaction with its refunds.
func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID := mux.Vars(r)["transactionID"]

	tx, err := h.store.GetTransaction(r.Context(), transactionID)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			http.Error(w, `{"error":"Transaction not found"}`, http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch transaction",
			zap.String("transaction_id", transactionID), zap.Error(err))
		http.Error(w, `{"error":"Failed to fetch transaction"}`, http.StatusInternalServerError)
		return
	}

	refunds, err := h.store.GetRefundsByTransaction(r.Context(), transactionID)
	if err != nil {
		h.logger.Error("failed to fetch refunds",
			zap.String("transaction_id", transactionID), zap.Error(err))
		http.Error(w, `{"error":"Failed to fetch refunds"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transaction": tx,
		"refunds":     refunds,
	})
}

// Statistics returns aggregate transaction counts and settled totals.
func (h *PaymentHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetPaymentStatistics(r.Context())
	if err != nil {
		h.logger.Error("failed to compute statistics", zap.Error(err))
		http.Error(w, `{"error":"Failed to compute statistics"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *PaymentHandler) redirect(w http.ResponseWriter, r *http.Request, base, message string) {
	http.Redirect(w, r, base+"?message="+url.QueryEscape(message), http.StatusFound)
}

func (h *PaymentHandler) redirectFailure(w http.ResponseWriter, r *http.Request, message string) {
	h.redirect(w, r, h.cfg.FailureRedirectURL, message)
}
