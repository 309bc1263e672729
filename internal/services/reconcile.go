package services

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/Amivian/paystack-gobackend/internal/config"
	"github.com/Amivian/paystack-gobackend/internal/models"
	"github.com/Amivian/paystack-gobackend/internal/paystack"
)

// ReconciliationEngine merges the two confirmation channels - the browser
// callback and the asynchronous webhook - into one transaction state. Both
// paths go through the store's conditional transitions, so whichever arrives
// second becomes a no-op and the order-side effect fires at most once.
type ReconciliationEngine struct {
	store   Store
	gateway Gateway
	history OrderHistory
	cfg     *config.Config
	logger  *zap.Logger
}

func NewReconciliationEngine(store Store, gateway Gateway, history OrderHistory, cfg *config.Config, logger *zap.Logger) *ReconciliationEngine {
	return &ReconciliationEngine{
		store:   store,
		gateway: gateway,
		history: history,
		cfg:     cfg,
		logger:  logger,
	}
}

// CallbackResult is what the callback endpoint shows the returning browser.
type CallbackResult struct {
	Status  string
	Success bool
	Message string
}

// HandleCallback verifies the transaction with the gateway and applies the
// outcome. Gateway failures degrade to a generic verification-failed result
// with no retry; a returned error means the store or history write failed and
// the request should surface as a server error.
func (e *ReconciliationEngine) HandleCallback(ctx context.Context, reference string) (CallbackResult, error) {
	data, raw, err := e.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		e.logger.Warn("transaction verification failed",
			zap.String("reference", reference), zap.Error(err))
		return CallbackResult{Message: "Payment verification failed"}, nil
	}

	switch data.Status {
	case "success":
		tx, transitioned, err := e.store.MarkSuccess(ctx, reference, string(raw), data.Channel, data.Authorization.AuthorizationCode)
		if err != nil {
			return CallbackResult{}, err
		}
		if transitioned {
			if err := e.history.AddHistory(ctx, tx.OrderID, e.cfg.CompletedOrderStatus,
				"Payment completed via Paystack. Reference: "+reference, true); err != nil {
				return CallbackResult{}, err
			}
			e.logger.Info("payment completed",
				zap.String("reference", reference), zap.String("order_id", tx.OrderID))
		}
		return CallbackResult{Status: models.StatusSuccess, Success: true, Message: "Payment successful"}, nil

	case "failed":
		tx, transitioned, err := e.store.MarkFailed(ctx, reference, models.StatusFailed, string(raw))
		if err != nil {
			return CallbackResult{}, err
		}
		if transitioned {
			if err := e.history.AddHistory(ctx, tx.OrderID, e.cfg.FailedOrderStatus,
				"Payment failed via Paystack. Reference: "+reference, false); err != nil {
				return CallbackResult{}, err
			}
		}
		return CallbackResult{Status: models.StatusFailed, Message: "Payment failed"}, nil

	case "abandoned":
		tx, transitioned, err := e.store.MarkFailed(ctx, reference, models.StatusCancelled, string(raw))
		if err != nil {
			return CallbackResult{}, err
		}
		if transitioned {
			if err := e.history.AddHistory(ctx, tx.OrderID, e.cfg.PendingOrderStatus,
				"Payment cancelled via Paystack. Reference: "+reference, false); err != nil {
				return CallbackResult{}, err
			}
		}
		return CallbackResult{Status: models.StatusCancelled, Message: "Payment was cancelled"}, nil

	default:
		// The gateway is still settling the charge; leave the row pending.
		tx, err := e.store.GetTransactionByReference(ctx, reference)
		if err != nil {
			return CallbackResult{}, err
		}
		if err := e.history.AddHistory(ctx, tx.OrderID, e.cfg.PendingOrderStatus,
			"Payment "+data.Status+" via Paystack. Reference: "+reference, false); err != nil {
			return CallbackResult{}, err
		}
		return CallbackResult{Status: models.StatusPending, Message: "Payment " + data.Status}, nil
	}
}

// HandleWebhookEvent reconciles one verified webhook delivery. Every branch
// that returns nil has marked the log row processed, including the documented
// no-ops; a non-nil return means the delivery must be answered with a 5xx so
// the gateway redelivers.
func (e *ReconciliationEngine) HandleWebhookEvent(ctx context.Context, event paystack.WebhookEvent, logID string) error {
	switch event.Event {
	case paystack.EventChargeSuccess:
		return e.processChargeSuccess(ctx, event.Data, logID)
	case paystack.EventChargeFailed:
		return e.processChargeFailed(ctx, event.Data, logID)
	case paystack.EventTransferSuccess, paystack.EventTransferFailed:
		// Payout settlement notices; they do not drive the charge state machine.
		return e.store.MarkWebhookProcessed(ctx, logID, "transfer event logged: "+event.Event)
	default:
		return e.store.MarkWebhookProcessed(ctx, logID, "unhandled event type: "+event.Event)
	}
}

func (e *ReconciliationEngine) processChargeSuccess(ctx context.Context, data paystack.WebhookEventData, logID string) error {
	raw, _ := json.Marshal(data)

	// The charge amount in the payload must match what the customer was
	// charged for. An underpaid or overpaid event is logged and left for an
	// operator; the transaction stays pending.
	if data.Amount > 0 {
		ok, err := e.store.ValidateTransactionAmount(ctx, data.Reference, paystack.FromKobo(data.Amount), data.Currency)
		if err != nil {
			if errors.Is(err, ErrTransactionNotFound) {
				return e.store.MarkWebhookProcessed(ctx, logID, "transaction not found")
			}
			return e.recordWebhookFailure(ctx, logID, err)
		}
		if !ok {
			e.logger.Warn("webhook amount mismatch",
				zap.String("reference", data.Reference),
				zap.Int64("amount", data.Amount))
			return e.store.MarkWebhookProcessed(ctx, logID, "amount mismatch")
		}
	}

	tx, transitioned, err := e.store.MarkSuccess(ctx, data.Reference, string(raw), data.Channel, data.Authorization.AuthorizationCode)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return e.store.MarkWebhookProcessed(ctx, logID, "transaction not found")
		}
		return e.recordWebhookFailure(ctx, logID, err)
	}
	if !transitioned {
		return e.store.MarkWebhookProcessed(ctx, logID, "transaction already processed")
	}

	if err := e.history.AddHistory(ctx, tx.OrderID, e.cfg.CompletedOrderStatus,
		"Payment completed via webhook. Reference: "+data.Reference, true); err != nil {
		return e.recordWebhookFailure(ctx, logID, err)
	}

	e.logger.Info("payment completed",
		zap.String("reference", data.Reference),
		zap.String("order_id", tx.OrderID),
		zap.String("event", paystack.EventChargeSuccess))
	return e.store.MarkWebhookProcessed(ctx, logID, "")
}

func (e *ReconciliationEngine) processChargeFailed(ctx context.Context, data paystack.WebhookEventData, logID string) error {
	raw, _ := json.Marshal(data)

	tx, transitioned, err := e.store.MarkFailed(ctx, data.Reference, models.StatusFailed, string(raw))
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return e.store.MarkWebhookProcessed(ctx, logID, "transaction not found")
		}
		return e.recordWebhookFailure(ctx, logID, err)
	}
	if !transitioned {
		return e.store.MarkWebhookProcessed(ctx, logID, "transaction already processed")
	}

	if err := e.history.AddHistory(ctx, tx.OrderID, e.cfg.FailedOrderStatus,
		"Payment failed via webhook. Reference: "+data.Reference, false); err != nil {
		return e.recordWebhookFailure(ctx, logID, err)
	}

	e.logger.Info("payment failed",
		zap.String("reference", data.Reference),
		zap.String("order_id", tx.OrderID),
		zap.String("event", paystack.EventChargeFailed))
	return e.store.MarkWebhookProcessed(ctx, logID, "")
}

// recordWebhookFailure writes the error onto the log row without marking it
// processed, then propagates it so the gateway retries the delivery.
func (e *ReconciliationEngine) recordWebhookFailure(ctx context.Context, logID string, err error) error {
	if logErr := e.store.SetWebhookError(ctx, logID, err.Error()); logErr != nil {
		e.logger.Error("failed to record webhook error",
			zap.String("log_id", logID), zap.Error(logErr))
	}
	return err
}
