package services

import "errors"

var (
	// ErrTransactionNotFound means no transaction matches the given id or
	// reference.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNotRefundable means a refund was requested against a transaction
	// that is not in the success state.
	ErrNotRefundable = errors.New("only successful transactions are refundable")

	// ErrRefundExceedsBalance means the requested amount is larger than the
	// remaining refundable balance.
	ErrRefundExceedsBalance = errors.New("amount exceeds refundable balance")
)
