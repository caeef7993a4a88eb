package model

import "time"

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusOpened    DeliveryStatus = "opened"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusBounced   DeliveryStatus = "bounced"
	// receipt generated for a request that asked for no email
	DeliveryStatusSkipped DeliveryStatus = "skipped"
)

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending:   {DeliveryStatusSent, DeliveryStatusDelivered, DeliveryStatusOpened, DeliveryStatusFailed, DeliveryStatusSkipped},
	DeliveryStatusSent:      {DeliveryStatusDelivered, DeliveryStatusOpened, DeliveryStatusBounced},
	DeliveryStatusDelivered: {DeliveryStatusOpened, DeliveryStatusBounced},
}

// CanTransitionTo reports whether a log entry may move from s to next.
// Statuses only move forward. Failed, bounced, opened and skipped are terminal.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, allowed := range deliveryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Delivered reports whether the status proves the receipt reached the donor.
func (s DeliveryStatus) Delivered() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusDelivered || s == DeliveryStatusOpened
}

// DeliveryLog is one attempt to deliver a receipt email.
type DeliveryLog struct {
	ID             int64          `json:"id"`
	TransactionID  string         `json:"transaction_id"`
	RecipientEmail string         `json:"recipient_email"`
	Subject        string         `json:"subject"`
	Status         DeliveryStatus `json:"status"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	ReceiptNumber  string         `json:"receipt_number"`
	EmailProvider  string         `json:"email_provider"`
	UserAgent      string         `json:"user_agent,omitempty"`
	TrackingToken  string         `json:"-"`
	PDFObjectKey   string         `json:"pdf_object_key,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	OpenedAt       *time.Time     `json:"opened_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DeliveryLogPatch holds the fields that can change after creation.
type DeliveryLogPatch struct {
	Status       *DeliveryStatus
	ErrorMessage *string
	PDFObjectKey *string
	Metadata     map[string]any
	At           time.Time
}

// ExistingDelivery is the answer to "was a receipt already delivered".
type ExistingDelivery struct {
	Exists        bool           `json:"exists"`
	ReceiptNumber string         `json:"receipt_number,omitempty"`
	LastSent      *time.Time     `json:"last_sent,omitempty"`
	Status        DeliveryStatus `json:"status,omitempty"`
	PDFObjectKey  string         `json:"-"`
}

type DeliveryStats struct {
	Total    int64                    `json:"total"`
	ByStatus map[DeliveryStatus]int64 `json:"by_status"`
}
