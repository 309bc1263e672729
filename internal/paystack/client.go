package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the Paystack API host for both test and live keys.
	DefaultBaseURL = "https://api.paystack.co"

	// requestTimeout bounds every outbound call. There is no retry; webhook
	// redelivery is the gateway's job.
	requestTimeout = 30 * time.Second
)

// Client talks to the Paystack REST API. All amounts cross the wire in
// integer minor units (kobo); callers work in major units.
type Client struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

func NewClient(secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		secretKey: secretKey,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: requestTimeout},
	}
}

// APIError is a failure reported by the gateway: a non-2xx response or an
// envelope with status=false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return "paystack: " + e.Message
	}
	return fmt.Sprintf("paystack: HTTP error %d", e.StatusCode)
}

// apiEnvelope is the outer shape of every Paystack response.
type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Metadata is attached to a charge at initialization and echoed back by the
// gateway on verification and in webhooks.
type Metadata struct {
	OrderID       string `json:"order_id,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

type initializeRequest struct {
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"`
	Currency    string   `json:"currency,omitempty"`
	Reference   string   `json:"reference"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// InitializeData is the useful part of a transaction-initialize response.
type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Authorization carries the settled card authorization details.
type Authorization struct {
	AuthorizationCode string `json:"authorization_code"`
}

// VerifyData is the gateway's view of a transaction on verification.
// Amount is in kobo.
type VerifyData struct {
	Status          string        `json:"status"`
	Reference       string        `json:"reference"`
	Amount          int64         `json:"amount"`
	Currency        string        `json:"currency"`
	Channel         string        `json:"channel"`
	GatewayResponse string        `json:"gateway_response"`
	PaidAt          string        `json:"paid_at"`
	Authorization   Authorization `json:"authorization"`
	Customer        struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// RefundData is the gateway's record of an accepted refund. Amount is in kobo.
type RefundData struct {
	Transaction struct {
		Reference string `json:"reference"`
	} `json:"transaction"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type refundRequest struct {
	Transaction  string `json:"transaction"`
	Amount       int64  `json:"amount,omitempty"`
	Currency     string `json:"currency"`
	CustomerNote string `json:"customer_note,omitempty"`
	MerchantNote string `json:"merchant_note,omitempty"`
}

// Bank is one entry from the supported-banks listing.
type Bank struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Code     string `json:"code"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

// ResolvedAccount is the owner of a bank account number.
type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// InitializeTransaction starts a hosted charge. amount is in major currency
// units. The raw response body is returned alongside the parsed data so the
// caller can persist it verbatim.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount float64, currency, reference, callbackURL string, meta Metadata) (*InitializeData, []byte, error) {
	if email == "" {
		return nil, nil, fmt.Errorf("paystack: email is required")
	}
	if amount <= 0 {
		return nil, nil, fmt.Errorf("paystack: amount must be positive")
	}
	if reference == "" {
		return nil, nil, fmt.Errorf("paystack: reference is required")
	}

	req := initializeRequest{
		Email:       email,
		Amount:      ToKobo(amount),
		Currency:    currency,
		Reference:   reference,
		CallbackURL: callbackURL,
		Metadata:    meta,
	}

	env, raw, err := c.do(ctx, http.MethodPost, "/transaction/initialize", req)
	if err != nil {
		return nil, raw, err
	}

	var data InitializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, raw, fmt.Errorf("paystack: decode initialize data: %w", err)
	}
	return &data, raw, nil
}

// VerifyTransaction fetches the gateway's settled view of a charge.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyData, []byte, error) {
	if reference == "" {
		return nil, nil, fmt.Errorf("paystack: transaction reference is required")
	}

	env, raw, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, raw, err
	}

	var data VerifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, raw, fmt.Errorf("paystack: decode verify data: %w", err)
	}
	return &data, raw, nil
}

// Refund asks the gateway to refund part or all of a settled charge. amount
// is in major currency units.
func (c *Client) Refund(ctx context.Context, transactionRef string, amount float64, currency, customerNote, merchantNote string) (*RefundData, []byte, error) {
	if transactionRef == "" {
		return nil, nil, fmt.Errorf("paystack: transaction reference is required")
	}

	req := refundRequest{
		Transaction:  transactionRef,
		Amount:       ToKobo(amount),
		Currency:     currency,
		CustomerNote: customerNote,
		MerchantNote: merchantNote,
	}

	env, raw, err := c.do(ctx, http.MethodPost, "/refund", req)
	if err != nil {
		return nil, raw, err
	}

	var data RefundData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, raw, fmt.Errorf("paystack: decode refund data: %w", err)
	}
	return &data, raw, nil
}

// ListBanks returns the supported banks for a country code (NG, GH, ZA, KE).
func (c *Client) ListBanks(ctx context.Context, country string, perPage int) ([]Bank, error) {
	if country == "" {
		country = "NG"
	}
	if perPage <= 0 {
		perPage = 50
	}

	q := url.Values{}
	q.Set("country", country)
	q.Set("perPage", strconv.Itoa(perPage))

	env, _, err := c.do(ctx, http.MethodGet, "/bank?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var banks []Bank
	if err := json.Unmarshal(env.Data, &banks); err != nil {
		return nil, fmt.Errorf("paystack: decode bank list: %w", err)
	}
	return banks, nil
}

// ResolveAccountNumber looks up the account name behind an account number.
func (c *Client) ResolveAccountNumber(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	if accountNumber == "" || bankCode == "" {
		return nil, fmt.Errorf("paystack: account number and bank code are required")
	}

	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)

	env, _, err := c.do(ctx, http.MethodGet, "/bank/resolve?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var account ResolvedAccount
	if err := json.Unmarshal(env.Data, &account); err != nil {
		return nil, fmt.Errorf("paystack: decode resolved account: %w", err)
	}
	return &account, nil
}

// do issues one API call and decodes the response envelope. The raw body is
// returned even on gateway-reported failure so callers can log it.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*apiEnvelope, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("paystack: encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "paystack-gobackend/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("paystack: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("paystack: read response: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, raw, fmt.Errorf("paystack: invalid JSON response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, raw, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if !env.Status {
		return nil, raw, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	return &env, raw, nil
}

// ToKobo converts a major-unit amount to integer minor units.
func ToKobo(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromKobo converts integer minor units back to a major-unit amount.
func FromKobo(kobo int64) float64 {
	return float64(kobo) / 100
}
