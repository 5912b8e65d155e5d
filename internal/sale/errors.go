package sale

import (
	"context"
	"errors"

	"solana-token-sale/internal/ledger"
	"solana-token-sale/internal/token"
)

var (
	// ErrInvalidAmount is returned for a zero price or payment.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrNotEnoughSol is returned when the buyer cannot cover the payment.
	ErrNotEnoughSol = errors.New("not enough sol on account")

	// ErrUnauthorized is returned when the signer is not the required identity.
	ErrUnauthorized = errors.New("signer is not authorized")

	// ErrAccountMismatch is returned when a supplied or stored account does not
	// match the sale configuration.
	ErrAccountMismatch = errors.New("account does not match sale configuration")

	// ErrArithmeticOverflow is returned when token arithmetic exceeds u64.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrAlreadyInitialized is returned when the sale configuration exists.
	ErrAlreadyInitialized = errors.New("sale already initialized")

	// ErrNotInitialized is returned before Initialize has committed.
	ErrNotInitialized = errors.New("sale not initialized")

	// ErrBuyerNotFound is returned when reading a buyer that never bought.
	ErrBuyerNotFound = errors.New("buyer record not found")
)

// Result codes reported by Code.
const (
	CodeOK                 = "OK"
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeNotEnoughSol       = "NOT_ENOUGH_SOL"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeAccountMismatch    = "ACCOUNT_MISMATCH"
	CodeArithmeticOverflow = "ARITHMETIC_OVERFLOW"
	CodeAlreadyInitialized = "ALREADY_INITIALIZED"
	CodeNotInitialized     = "NOT_INITIALIZED"
	CodeBuyerNotFound      = "BUYER_NOT_FOUND"
	CodePoolExhausted      = "POOL_EXHAUSTED"
	CodeConflict           = "CONFLICT"
	CodeCancelled          = "CANCELLED"
	CodeInternal           = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrNotEnoughSol, CodeNotEnoughSol},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrAccountMismatch, CodeAccountMismatch},
	{ErrArithmeticOverflow, CodeArithmeticOverflow},
	{ErrAlreadyInitialized, CodeAlreadyInitialized},
	{ErrNotInitialized, CodeNotInitialized},
	{ErrBuyerNotFound, CodeBuyerNotFound},
	{token.ErrInsufficientFunds, CodePoolExhausted},
	{ledger.ErrConflict, CodeConflict},
	{context.Canceled, CodeCancelled},
	{context.DeadlineExceeded, CodeCancelled},
}

// Code maps an error returned by Program to a stable result code.
func Code(err error) string {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}
