package entities

import "errors"

var (
	// ErrValidation marks malformed input: a bad row, timestamp or payload.
	ErrValidation = errors.New("validation error")

	// ErrTransport marks a failed forward of a flag to the processing stage.
	ErrTransport = errors.New("transport error")

	// ErrPersistence marks a failed read or write against a store.
	ErrPersistence = errors.New("persistence error")

	ErrQueueFull   = errors.New("dispatch queue is full")
	ErrQueueClosed = errors.New("dispatch queue is closed")

	ErrTransactionNotFound = errors.New("transaction not found")
)
