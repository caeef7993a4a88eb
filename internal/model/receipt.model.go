package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Quality string

const (
	QualityDraft    Quality = "draft"
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

// Normalize maps unknown or empty values to standard.
func (q Quality) Normalize() Quality {
	switch q {
	case QualityDraft, QualityHigh:
		return q
	default:
		return QualityStandard
	}
}

// ReceiptRecord is the immutable view a receipt document is rendered from.
type ReceiptRecord struct {
	ReceiptNumber      string
	DonationDate       time.Time
	DonatorName        string
	DonatorEmail       string
	Amount             decimal.Decimal
	CalendarsGiven     int
	PaymentMethod      string
	CollectorName      string
	TeamName           string
	AssociationName    string
	AssociationAddress string
	AssociationSIREN   string
	AssociationRNA     string
	LegalText          string
	TrackingEnabled    bool
	TrackingURL        string
	TemplateVersion    string
}

// ReceiptRequest is a single generate-and-send call.
type ReceiptRequest struct {
	TransactionID string
	DonatorEmail  string
	DonatorName   string
	CollectorName string
	// nil means true
	SendEmail *bool
	Resend    bool
	Quality   Quality
	UserAgent string
}

func (r ReceiptRequest) ShouldSendEmail() bool {
	return r.SendEmail == nil || *r.SendEmail
}

// Pipeline stages reported in failed results.
const (
	StageValidation = "validation"
	StageLookup     = "lookup"
	StageClaim      = "claim"
	StageRender     = "render"
	StageConversion = "conversion"
	StageStorage    = "storage"
	StageDelivery   = "delivery"
	StageFinalize   = "finalize"
	StageInternal   = "internal"
)

// ReceiptResult is what the caller of a pipeline run receives, on success
// and on failure.
type ReceiptResult struct {
	Success       bool       `json:"success"`
	TransactionID string     `json:"transactionId"`
	ReceiptNumber string     `json:"receiptNumber,omitempty"`
	EmailTo       string     `json:"emailTo,omitempty"`
	PDFURL        string     `json:"pdfUrl,omitempty"`
	PDFGenerated  bool       `json:"pdfGenerated"`
	PDFStored     bool       `json:"pdfStored"`
	EmailSent     bool       `json:"emailSent"`
	IsExisting    bool       `json:"isExisting,omitempty"`
	FromCache     bool       `json:"fromCache,omitempty"`
	LastSent      *time.Time `json:"lastSent,omitempty"`
	Message       string     `json:"message,omitempty"`
	Stage         string     `json:"stage,omitempty"`
	Error         string     `json:"error,omitempty"`
	Details       string     `json:"details,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

type BatchItem struct {
	TransactionID string `json:"transactionId"`
	Success       bool   `json:"success"`
	ReceiptNumber string `json:"receiptNumber,omitempty"`
	Error         string `json:"error,omitempty"`
}

type BatchResult struct {
	Processed   int         `json:"processed"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	Interrupted bool        `json:"interrupted,omitempty"`
	Details     []BatchItem `json:"details"`
}

const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthError    = "error"
)

type CheckResult struct {
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type CacheStats struct {
	Size        int     `json:"size"`
	MaxSize     int     `json:"maxSize"`
	Utilization float64 `json:"utilization"`
}

type HealthReport struct {
	Status        string                 `json:"status"`
	Checks        map[string]CheckResult `json:"checks"`
	Cache         CacheStats             `json:"cache"`
	Deliveries24h *DeliveryStats         `json:"deliveries24h,omitempty"`
	Configuration map[string]bool        `json:"configuration"`
	Error         string                 `json:"error,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

type CacheClearResult struct {
	Success        bool `json:"success"`
	ItemsCleared   int  `json:"itemsCleared"`
	RemainingItems int  `json:"remainingItems"`
}

type ReceiptLink struct {
	TransactionID string    `json:"transactionId"`
	ReceiptNumber string    `json:"receiptNumber"`
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mail is an outgoing receipt email.
type Mail struct {
	To         string
	ToName     string
	Subject    string
	HTML       string
	Text       string
	Attachment *Attachment
}
