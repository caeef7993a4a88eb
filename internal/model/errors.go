package model

import (
	"fmt"
	"strings"
)

// ValidationError is a bad caller input. Maps to HTTP 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError maps to HTTP 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError is returned when another run already holds the receipt
// claim of a transaction.
type ConflictError struct {
	TransactionID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("receipt for transaction %s is already being processed", e.TransactionID)
}

// ConfigurationError reports credentials or settings that are not set.
type ConfigurationError struct {
	Component string
	Missing   []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured: missing %s", e.Component, strings.Join(e.Missing, ", "))
}

// ConversionError is a failed HTML to PDF conversion.
type ConversionError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return "pdf conversion failed: " + e.Err.Error()
	}
	return fmt.Sprintf("pdf conversion failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// StorageError is a failed object store operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DeliveryError is a failed email submission.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("email delivery to %s failed: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
