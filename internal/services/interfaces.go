package services

import (
	"context"

	"github.com/Amivian/paystack-gobackend/internal/models"
	"github.com/Amivian/paystack-gobackend/internal/paystack"
)

// Store is the persistence surface the reconciliation and refund flows need.
// MarkSuccess, MarkFailed and MarkRefunded are atomic conditional writes: the
// guard and the update happen in a single store operation, and the boolean
// result says whether this caller won the transition. That result is the only
// thing that may trigger a money-affecting side effect.
type Store interface {
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)

	// MarkSuccess transitions the transaction to success unless it is already
	// success or refunded. Returns the transaction and whether it transitioned.
	MarkSuccess(ctx context.Context, reference, gatewayResponse, paymentMethod, authorizationCode string) (*models.Transaction, bool, error)

	// MarkFailed transitions a pending transaction to failed or cancelled.
	MarkFailed(ctx context.Context, reference, status, gatewayResponse string) (*models.Transaction, bool, error)

	// MarkRefunded transitions a successful transaction to refunded.
	MarkRefunded(ctx context.Context, id string) (bool, error)

	// ValidateTransactionAmount reports whether a gateway-reported amount
	// matches the stored transaction within tolerance. Amounts in a different
	// currency are accepted as-is.
	ValidateTransactionAmount(ctx context.Context, reference string, amount float64, currency string) (bool, error)

	MarkWebhookProcessed(ctx context.Context, logID, errorMessage string) error
	SetWebhookError(ctx context.Context, logID, errorMessage string) error

	AddRefund(ctx context.Context, refund *models.Refund) error
	SumRefunds(ctx context.Context, transactionID string) (float64, error)
}

// Gateway is the subset of the Paystack API the engine and coordinator call.
type Gateway interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyData, []byte, error)
	Refund(ctx context.Context, transactionRef string, amount float64, currency, customerNote, merchantNote string) (*paystack.RefundData, []byte, error)
}

// OrderHistory appends an entry to an order's history. The order subsystem
// itself is outside this service.
type OrderHistory interface {
	AddHistory(ctx context.Context, orderID, status, comment string, notify bool) error
}
