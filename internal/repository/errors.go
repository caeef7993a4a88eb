package repository

import "errors"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDeliveryLogNotFound = errors.New("delivery log not found")
	// ErrInvalidTransition is returned when a delivery status would move backwards.
	ErrInvalidTransition = errors.New("invalid delivery status transition")
)
