package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/Amivian/paystack-gobackend/internal/config"
	"github.com/Amivian/paystack-gobackend/internal/models"
	"github.com/Amivian/paystack-gobackend/internal/paystack"
)

// RefundCoordinator validates refund requests against the remaining balance,
// calls the gateway, and appends to the refund ledger. Nothing is persisted
// when the gateway call fails, and a refund that covers the full transaction
// amount closes the transaction with a single history entry.
type RefundCoordinator struct {
	store   Store
	gateway Gateway
	history OrderHistory
	cfg     *config.Config
	logger  *zap.Logger
}

func NewRefundCoordinator(store Store, gateway Gateway, history OrderHistory, cfg *config.Config, logger *zap.Logger) *RefundCoordinator {
	return &RefundCoordinator{
		store:   store,
		gateway: gateway,
		history: history,
		cfg:     cfg,
		logger:  logger,
	}
}

// RefundResult is the structured outcome of a refund request. Expected
// failures (not found, wrong state, over-refund, gateway rejection) come back
// here with Status=false rather than as errors.
type RefundResult struct {
	Status  bool           `json:"status"`
	Message string         `json:"message"`
	Data    *models.Refund `json:"data,omitempty"`
}

// ProcessRefund refunds amount against the transaction, defaulting to the
// full remaining balance when amount is nil. A returned error means a store
// write failed and the request should surface as a server error.
func (c *RefundCoordinator) ProcessRefund(ctx context.Context, transactionID string, amount *float64, reason string) (RefundResult, error) {
	tx, err := c.store.GetTransaction(ctx, transactionID)
	if err != nil {
		if err == ErrTransactionNotFound {
			return RefundResult{Message: ErrTransactionNotFound.Error()}, nil
		}
		return RefundResult{}, err
	}

	if tx.Status != models.StatusSuccess {
		return RefundResult{Message: ErrNotRefundable.Error()}, nil
	}

	alreadyRefunded, err := c.store.SumRefunds(ctx, transactionID)
	if err != nil {
		return RefundResult{}, err
	}
	remaining := tx.Amount - alreadyRefunded

	refundAmount := remaining
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount <= 0 {
		return RefundResult{Message: "refund amount must be positive"}, nil
	}
	if refundAmount > remaining+amountTolerance {
		return RefundResult{Message: ErrRefundExceedsBalance.Error()}, nil
	}

	data, raw, err := c.gateway.Refund(ctx, tx.Reference, refundAmount, tx.Currency, reason, "Refund processed from admin panel")
	if err != nil {
		// Nothing persisted; the gateway's own message goes back untouched
		// and the operator decides whether to retry.
		c.logger.Warn("gateway refund failed",
			zap.String("reference", tx.Reference), zap.Error(err))
		return RefundResult{Message: err.Error()}, nil
	}

	refundRef := data.Transaction.Reference
	if refundRef == "" {
		refundRef = paystack.NewRefundReference()
	}

	refund := &models.Refund{
		TransactionID:   transactionID,
		OrderID:         tx.OrderID,
		RefundReference: refundRef,
		Amount:          refundAmount,
		Currency:        tx.Currency,
		Status:          models.StatusSuccess,
		GatewayResponse: string(raw),
		Reason:          reason,
	}
	if err := c.store.AddRefund(ctx, refund); err != nil {
		return RefundResult{}, err
	}

	if alreadyRefunded+refundAmount >= tx.Amount-amountTolerance {
		closed, err := c.store.MarkRefunded(ctx, transactionID)
		if err != nil {
			return RefundResult{}, err
		}
		if closed {
			if err := c.history.AddHistory(ctx, tx.OrderID, c.cfg.RefundedOrderStatus,
				"Payment refunded via Paystack. Reference: "+tx.Reference, true); err != nil {
				return RefundResult{}, err
			}
		}
	}

	c.logger.Info("refund processed",
		zap.String("reference", tx.Reference),
		zap.String("refund_reference", refundRef),
		zap.Float64("amount", refundAmount))

	return RefundResult{Status: true, Message: "Refund processed successfully", Data: refund}, nil
}
