package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Amivian/paystack-gobackend/internal/config"
	"github.com/Amivian/paystack-gobackend/internal/models"
	"github.com/Amivian/paystack-gobackend/internal/paystack"
	"github.com/Amivian/paystack-gobackend/internal/services"
)

const testSecret = "sk_test_secret"

func testConfig() *config.Config {
	return &config.Config{
		TestMode:           true,
		TestSecretKey:      testSecret,
		CallbackURL:        "https://shop.example.com/api/payment/callback",
		SuccessRedirectURL: "/checkout/success",
		FailureRedirectURL: "/checkout/failure",
		PendingOrderStatus: "pending",
	}
}

type fakeEngine struct {
	callbackResult services.CallbackResult
	callbackErr    error
	webhookErr     error

	gotReference string
	gotEvent     paystack.WebhookEvent
	gotLogID     string
	webhookCalls int
}

func (e *fakeEngine) HandleCallback(ctx context.Context, reference string) (services.CallbackResult, error) {
	e.gotReference = reference
	return e.callbackResult, e.callbackErr
}

func (e *fakeEngine) HandleWebhookEvent(ctx context.Context, event paystack.WebhookEvent, logID string) error {
	e.webhookCalls++
	e.gotEvent = event
	e.gotLogID = logID
	return e.webhookErr
}

type fakeRefunder struct {
	result    services.RefundResult
	err       error
	gotID     string
	gotAmount *float64
	gotReason string
}

func (f *fakeRefunder) ProcessRefund(ctx context.Context, transactionID string, amount *float64, reason string) (services.RefundResult, error) {
	f.gotID = transactionID
	f.gotAmount = amount
	f.gotReason = reason
	return f.result, f.err
}

type fakeHandlerStore struct {
	created    *models.Transaction
	createErr  error
	logged     *models.WebhookLog
	logErr     error
	webhookErr string
}

func (s *fakeHandlerStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.created = tx
	return s.createErr
}

func (s *fakeHandlerStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return nil, services.ErrTransactionNotFound
}

func (s *fakeHandlerStore) ListTransactions(ctx context.Context, f services.ListFilter) ([]models.Transaction, int64, error) {
	return nil, 0, nil
}

func (s *fakeHandlerStore) GetPaymentStatistics(ctx context.Context) (*services.PaymentStatistics, error) {
	return &services.PaymentStatistics{}, nil
}

func (s *fakeHandlerStore) GetRefundsByTransaction(ctx context.Context, transactionID string) ([]models.Refund, error) {
	return nil, nil
}

func (s *fakeHandlerStore) LogWebhook(ctx context.Context, lg *models.WebhookLog) (string, error) {
	if s.logErr != nil {
		return "", s.logErr
	}
	s.logged = lg
	return "log-1", nil
}

func (s *fakeHandlerStore) SetWebhookError(ctx context.Context, logID, errorMessage string) error {
	s.webhookErr = errorMessage
	return nil
}

type fakeInitializer struct {
	data *paystack.InitializeData
	err  error
}

func (f *fakeInitializer) InitializeTransaction(ctx context.Context, email string, amount float64, currency, reference, callbackURL string, meta paystack.Metadata) (*paystack.InitializeData, []byte, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.data, []byte(`{"status":true}`), nil
}

type noopHistory struct{}

func (noopHistory) AddHistory(ctx context.Context, orderID, status, comment string, notify bool) error {
	return nil
}

func newTestHandler(store *fakeHandlerStore, engine *fakeEngine, refunds *fakeRefunder, gateway *fakeInitializer) *PaymentHandler {
	return NewPaymentHandler(testConfig(), store, engine, refunds, gateway, noopHistory{}, zap.NewNop())
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook_ValidSignature(t *testing.T) {
	store := &fakeHandlerStore{}
	engine := &fakeEngine{}
	h := newTestHandler(store, engine, &fakeRefunder{}, &fakeInitializer{})

	payload := []byte(`{"event":"charge.success","data":{"reference":"OC_1_abc"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, sign(payload, testSecret))
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())

	require.Equal(t, 1, engine.webhookCalls)
	require.Equal(t, "charge.success", engine.gotEvent.Event)
	require.Equal(t, "OC_1_abc", engine.gotEvent.Data.Reference)
	require.Equal(t, "log-1", engine.gotLogID)

	require.NotNil(t, store.logged)
	require.True(t, store.logged.Verified)
	require.Equal(t, string(payload), store.logged.Payload)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	store := &fakeHandlerStore{}
	engine := &fakeEngine{}
	h := newTestHandler(store, engine, &fakeRefunder{}, &fakeInitializer{})

	payload := []byte(`{"event":"charge.success","data":{"reference":"OC_1_abc"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, sign(payload, "sk_test_wrong"))
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, engine.webhookCalls)

	// The delivery is still logged, marked unverified.
	require.NotNil(t, store.logged)
	require.False(t, store.logged.Verified)
	require.Equal(t, "invalid webhook signature", store.webhookErr)
}

func TestWebhook_MissingSignatureOrBody(t *testing.T) {
	h := newTestHandler(&fakeHandlerStore{}, &fakeEngine{}, &fakeRefunder{}, &fakeInitializer{})

	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", strings.NewReader(`{"event":"charge.success"}`))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/payment/webhook", strings.NewReader(""))
	req.Header.Set(signatureHeader, "deadbeef")
	rec = httptest.NewRecorder()
	h.Webhook(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_EngineErrorReturns500(t *testing.T) {
	engine := &fakeEngine{webhookErr: errors.New("mongo unavailable")}
	h := newTestHandler(&fakeHandlerStore{}, engine, &fakeRefunder{}, &fakeInitializer{})

	payload := []byte(`{"event":"charge.success","data":{"reference":"OC_1_abc"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, sign(payload, testSecret))
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	// 5xx so the gateway retries the delivery.
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhook_LogFailureReturns500(t *testing.T) {
	store := &fakeHandlerStore{logErr: errors.New("write failed")}
	engine := &fakeEngine{}
	h := newTestHandler(store, engine, &fakeRefunder{}, &fakeInitializer{})

	payload := []byte(`{"event":"charge.success"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader(payload))
	req.Header.Set(signatureHeader, sign(payload, testSecret))
	rec := httptest.NewRecorder()

	h.Webhook(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Zero(t, engine.webhookCalls)
}

func TestCallback_Success(t *testing.T) {
	engine := &fakeEngine{callbackResult: services.CallbackResult{
		Status:  models.StatusSuccess,
		Success: true,
		Message: "Payment successful",
	}}
	h := newTestHandler(&fakeHandlerStore{}, engine, &fakeRefunder{}, &fakeInitializer{})

	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?reference=OC_1_abc", nil)
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "OC_1_abc", engine.gotReference)
	loc := rec.Header().Get("Location")
	require.Contains(t, loc, "/checkout/success")
	require.Contains(t, loc, "message=Payment+successful")
}

func TestCallback_MissingReference(t *testing.T) {
	engine := &fakeEngine{}
	h := newTestHandler(&fakeHandlerStore{}, engine, &fakeRefunder{}, &fakeInitializer{})

	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback", nil)
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "/checkout/failure")
	require.Empty(t, engine.gotReference)
}

func TestCallback_TransactionNotFound(t *testing.T) {
	engine := &fakeEngine{callbackErr: services.ErrTransactionNotFound}
	h := newTestHandler(&fakeHandlerStore{}, engine, &fakeRefunder{}, &fakeInitializer{})

	req := httptest.NewRequest(http.MethodGet, "/api/payment/callback?reference=OC_missing", nil)
	rec := httptest.NewRecorder()

	h.Callback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	require.Contains(t, loc, "/checkout/failure")
	require.Contains(t, loc, "message=Transaction+not+found")
}

func TestCheckout(t *testing.T) {
	store := &fakeHandlerStore{}
	gateway := &fakeInitializer{data: &paystack.InitializeData{
		AuthorizationURL: "https://checkout.paystack.com/abc123",
		AccessCode:       "abc123",
	}}
	h := newTestHandler(store, &fakeEngine{}, &fakeRefunder{}, gateway)

	body := `{"order_id":"42","email":"customer@example.com","amount":1000,"currency":"NGN"}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Checkout(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "abc123", resp["access_code"])
	require.Equal(t, "https://checkout.paystack.com/abc123", resp["authorization_url"])
	require.Regexp(t, `^OC_\d+_[0-9a-f]{12}$`, resp["reference"])

	require.NotNil(t, store.created)
	require.Equal(t, "42", store.created.OrderID)
	require.Equal(t, models.StatusPending, store.created.Status)
	require.Equal(t, resp["reference"], store.created.Reference)
}

func TestCheckout_Validation(t *testing.T) {
	h := newTestHandler(&fakeHandlerStore{}, &fakeEngine{}, &fakeRefunder{}, &fakeInitializer{})

	cases := []string{
		`not json`,
		`{"email":"a@b.com","amount":100}`,
		`{"order_id":"42","email":"not-an-email","amount":100}`,
		`{"order_id":"42","email":"a@b.com","amount":0}`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Checkout(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
}

func TestCheckout_GatewayError(t *testing.T) {
	gateway := &fakeInitializer{err: &paystack.APIError{StatusCode: 401, Message: "Invalid key"}}
	h := newTestHandler(&fakeHandlerStore{}, &fakeEngine{}, &fakeRefunder{}, gateway)

	body := `{"order_id":"42","email":"customer@example.com","amount":1000}`
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Checkout(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid key")
}

func TestRefundEndpoint(t *testing.T) {
	refunds := &fakeRefunder{result: services.RefundResult{
		Status:  true,
		Message: "Refund processed successfully",
	}}
	h := newTestHandler(&fakeHandlerStore{}, &fakeEngine{}, refunds, &fakeInitializer{})

	body := `{"amount":400,"reason":"customer request"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions/abc123/refund", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"transactionID": "abc123"})
	rec := httptest.NewRecorder()

	h.Refund(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "abc123", refunds.gotID)
	require.NotNil(t, refunds.gotAmount)
	require.Equal(t, 400.00, *refunds.gotAmount)
	require.Equal(t, "customer request", refunds.gotReason)
}

func TestRefundEndpoint_Rejected(t *testing.T) {
	refunds := &fakeRefunder{result: services.RefundResult{
		Message: "amount exceeds refundable balance",
	}}
	h := newTestHandler(&fakeHandlerStore{}, &fakeEngine{}, refunds, &fakeInitializer{})

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/abc123/refund", strings.NewReader(`{"amount":9999}`))
	req = mux.SetURLVars(req, map[string]string{"transactionID": "abc123"})
	rec := httptest.NewRecorder()

	h.Refund(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result services.RefundResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.False(t, result.Status)
	require.Equal(t, "amount exceeds refundable balance", result.Message)
}
