package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Amivian/paystack-gobackend/internal/config"
	"github.com/Amivian/paystack-gobackend/internal/models"
	"github.com/Amivian/paystack-gobackend/internal/paystack"
)

func testConfig() *config.Config {
	return &config.Config{
		CompletedOrderStatus: "completed",
		FailedOrderStatus:    "failed",
		PendingOrderStatus:   "pending",
		RefundedOrderStatus:  "refunded",
	}
}

// fakeStore mimics the conditional-update semantics of the Mongo store under
// a single lock, so concurrent transitions behave like they do against a real
// database.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int
	byRef   map[string]*models.Transaction
	logs    map[string]*models.WebhookLog
	refunds []*models.Refund
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byRef: make(map[string]*models.Transaction),
		logs:  make(map[string]*models.WebhookLog),
	}
}

func (s *fakeStore) addTransaction(tx *models.Transaction) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("tx-%d", s.nextID)
	tx.AccessCode = id // reuse the field as a fake store id handle
	s.byRef[tx.Reference] = tx
	return id
}

func (s *fakeStore) byID(id string) *models.Transaction {
	for _, tx := range s.byRef {
		if tx.AccessCode == id {
			return tx
		}
	}
	return nil
}

func (s *fakeStore) addLog() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("log-%d", s.nextID)
	s.logs[id] = &models.WebhookLog{}
	return id
}

func copyTx(tx *models.Transaction) *models.Transaction {
	c := *tx
	return &c
}

func (s *fakeStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx := s.byID(id); tx != nil {
		return copyTx(tx), nil
	}
	return nil, ErrTransactionNotFound
}

func (s *fakeStore) GetTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.byRef[reference]; ok {
		return copyTx(tx), nil
	}
	return nil, ErrTransactionNotFound
}

func (s *fakeStore) MarkSuccess(ctx context.Context, reference, gatewayResponse, paymentMethod, authorizationCode string) (*models.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byRef[reference]
	if !ok {
		return nil, false, ErrTransactionNotFound
	}
	if tx.Status == models.StatusSuccess || tx.Status == models.StatusRefunded {
		return copyTx(tx), false, nil
	}
	tx.Status = models.StatusSuccess
	tx.GatewayResponse = gatewayResponse
	tx.PaymentMethod = paymentMethod
	tx.AuthorizationCode = authorizationCode
	return copyTx(tx), true, nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, reference, status, gatewayResponse string) (*models.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byRef[reference]
	if !ok {
		return nil, false, ErrTransactionNotFound
	}
	if tx.Status != models.StatusPending {
		return copyTx(tx), false, nil
	}
	tx.Status = status
	tx.GatewayResponse = gatewayResponse
	return copyTx(tx), true, nil
}

func (s *fakeStore) MarkRefunded(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.byID(id)
	if tx == nil {
		return false, ErrTransactionNotFound
	}
	if tx.Status != models.StatusSuccess {
		return false, nil
	}
	tx.Status = models.StatusRefunded
	return true, nil
}

func (s *fakeStore) ValidateTransactionAmount(ctx context.Context, reference string, amount float64, currency string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byRef[reference]
	if !ok {
		return false, ErrTransactionNotFound
	}
	if tx.Currency != currency {
		return true, nil
	}
	diff := tx.Amount - amount
	if diff < 0 {
		diff = -diff
	}
	return diff <= amountTolerance, nil
}

func (s *fakeStore) MarkWebhookProcessed(ctx context.Context, logID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lg, ok := s.logs[logID]
	if !ok {
		return fmt.Errorf("unknown webhook log %s", logID)
	}
	lg.Processed = true
	if errorMessage != "" {
		lg.ErrorMessage = errorMessage
	}
	return nil
}

func (s *fakeStore) SetWebhookError(ctx context.Context, logID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lg, ok := s.logs[logID]
	if !ok {
		return fmt.Errorf("unknown webhook log %s", logID)
	}
	lg.ErrorMessage = errorMessage
	return nil
}

func (s *fakeStore) AddRefund(ctx context.Context, refund *models.Refund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *refund
	s.refunds = append(s.refunds, &c)
	return nil
}

func (s *fakeStore) SumRefunds(ctx context.Context, transactionID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, r := range s.refunds {
		if r.TransactionID == transactionID {
			total += r.Amount
		}
	}
	return total, nil
}

// fakeGateway returns canned verify/refund outcomes and counts calls.
type fakeGateway struct {
	mu          sync.Mutex
	verifyData  *paystack.VerifyData
	verifyErr   error
	refundData  *paystack.RefundData
	refundErr   error
	verifyCalls int
	refundCalls int
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyData, []byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, nil, g.verifyErr
	}
	return g.verifyData, []byte(`{"status":true}`), nil
}

func (g *fakeGateway) Refund(ctx context.Context, transactionRef string, amount float64, currency, customerNote, merchantNote string) (*paystack.RefundData, []byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundCalls++
	if g.refundErr != nil {
		return nil, nil, g.refundErr
	}
	if g.refundData != nil {
		return g.refundData, []byte(`{"status":true}`), nil
	}
	data := &paystack.RefundData{
		Amount:   paystack.ToKobo(amount),
		Currency: currency,
		Status:   "processed",
	}
	data.Transaction.Reference = transactionRef
	return data, []byte(`{"status":true}`), nil
}

type historyEntry struct {
	OrderID string
	Status  string
	Comment string
	Notify  bool
}

// fakeHistory records appended order-history entries.
type fakeHistory struct {
	mu      sync.Mutex
	err     error
	entries []historyEntry
}

func (h *fakeHistory) AddHistory(ctx context.Context, orderID, status, comment string, notify bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, historyEntry{OrderID: orderID, Status: status, Comment: comment, Notify: notify})
	return nil
}

func (h *fakeHistory) all() []historyEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]historyEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
