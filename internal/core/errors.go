package core

import "errors"

// Sentinel errors returned by the payment verifier and the record store.
var (
	ErrPaymentNotFound         = errors.New("payment: transaction not found")
	ErrWrongRecipient          = errors.New("payment: reward address mismatch")
	ErrAmountMismatch          = errors.New("payment: amount below quoted cost")
	ErrQuoteExpired            = errors.New("payment: quote expired")
	ErrRPCUnavailable          = errors.New("payment: rpc endpoint unavailable")
	ErrRecordExists            = errors.New("record store: record already exists")
	ErrRegisterRecordNotFound  = errors.New("record store: register record not found")
	ErrReplicatedRecordNotFound = errors.New("record store: replicated record not found")
)
