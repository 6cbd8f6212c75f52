package engine

import "errors"

var (
	// ErrClosed indicates the engine has been closed.
	ErrClosed = errors.New("engine: closed")

	// ErrSaleNotFound indicates no sale is deployed at the address.
	ErrSaleNotFound = errors.New("engine: sale not found")

	// ErrSaleHoldsTokens indicates a sale still holds tokens and cannot be removed.
	ErrSaleHoldsTokens = errors.New("engine: sale still holds tokens")

	// ErrNilCallback indicates a nil operation was passed.
	ErrNilCallback = errors.New("engine: nil callback")

	// ErrOperatorMismatch indicates the operator key does not belong to the configured signer.
	ErrOperatorMismatch = errors.New("engine: operator key is not the configured signer")

	// ErrNoOperator indicates an authorization was requested without an operator key.
	ErrNoOperator = errors.New("engine: no operator key")
)
