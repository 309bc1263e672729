package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Amivian/paystack-gobackend/internal/paystack"
)

// BankDirectory is the bank-listing surface of the gateway.
type BankDirectory interface {
	ListBanks(ctx context.Context, country string, perPage int) ([]paystack.Bank, error)
	ResolveAccountNumber(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error)
}

type BankHandler struct {
	gateway BankDirectory
	logger  *zap.Logger
}

func NewBankHandler(gateway BankDirectory, logger *zap.Logger) *BankHandler {
	return &BankHandler{gateway: gateway, logger: logger}
}

// ListBanks proxies the gateway's supported-banks listing.
func (h *BankHandler) ListBanks(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	banks, err := h.gateway.ListBanks(r.Context(), country, perPage)
	if err != nil {
		h.gatewayError(w, "failed to list banks", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"banks": banks})
}

// ResolveAccount resolves an account number to its owner's name.
func (h *BankHandler) ResolveAccount(w http.ResponseWriter, r *http.Request) {
	accountNumber := r.URL.Query().Get("account_number")
	bankCode := r.URL.Query().Get("bank_code")
	if accountNumber == "" || bankCode == "" {
		http.Error(w, `{"error":"account_number and bank_code are required"}`, http.StatusBadRequest)
		return
	}

	account, err := h.gateway.ResolveAccountNumber(r.Context(), accountNumber, bankCode)
	if err != nil {
		h.gatewayError(w, "failed to resolve account", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

func (h *BankHandler) gatewayError(w http.ResponseWriter, msg string, err error) {
	h.logger.Warn(msg, zap.Error(err))
	var apiErr *paystack.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, apiErr.Message), http.StatusBadGateway)
		return
	}
	http.Error(w, `{"error":"Gateway request failed"}`, http.StatusBadGateway)
}
