package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptStatus is the receipt lifecycle stored on a transaction.
type ReceiptStatus string

const (
	ReceiptStatusNone      ReceiptStatus = ""
	ReceiptStatusPending   ReceiptStatus = "pending"
	ReceiptStatusGenerated ReceiptStatus = "generated"
	ReceiptStatusSent      ReceiptStatus = "sent"
	ReceiptStatusFailed    ReceiptStatus = "failed"
)

const (
	PaymentCash     = "cash"
	PaymentCheck    = "check"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

// Transaction is a single calendar donation. Only the Receipt* fields are
// written by this service.
type Transaction struct {
	ID             string          `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	CalendarsGiven int             `json:"calendars_given"`
	PaymentMethod  string          `json:"payment_method"`
	DonatorName    string          `json:"donator_name,omitempty"`
	DonatorEmail   string          `json:"donator_email,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	TeamID         string          `json:"team_id,omitempty"`
	CollectorName  string          `json:"collector_name,omitempty"`
	TeamName       string          `json:"team_name,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	ReceiptNumber      *string       `json:"receipt_number,omitempty"`
	ReceiptStatus      ReceiptStatus `json:"receipt_status,omitempty"`
	ReceiptRequestedAt *time.Time    `json:"receipt_requested_at,omitempty"`
	ReceiptGeneratedAt *time.Time    `json:"receipt_generated_at,omitempty"`
	ReceiptPDFURL      *string       `json:"receipt_pdf_url,omitempty"`
}

// ReceiptClaim describes the conditional transition of a transaction into
// the pending receipt state.
type ReceiptClaim struct {
	TransactionID string
	ReceiptNumber string
	Resend        bool
	RequestedAt   time.Time
	// pending claims older than this are considered abandoned
	StaleBefore time.Time
}

// ReceiptUpdate is the terminal write of a pipeline run.
type ReceiptUpdate struct {
	Status      ReceiptStatus
	GeneratedAt *time.Time
	PDFURL      *string
}

// EligibleFilter selects transactions for the batch run.
type EligibleFilter struct {
	MinAmount decimal.Decimal
	Limit     int
}
