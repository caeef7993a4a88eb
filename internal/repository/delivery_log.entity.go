package repository

import (
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"gorm.io/datatypes"
)

type DeliveryLogEntity struct {
	ID             int64             `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	TransactionID  string            `db:"transaction_id"  gorm:"column:transaction_id;not null;index"`
	RecipientEmail string            `db:"recipient_email" gorm:"column:recipient_email;not null"`
	Subject        string            `db:"subject"         gorm:"column:subject;not null"`
	Status         string            `db:"status"          gorm:"column:status;not null;index"`
	ErrorMessage   *string           `db:"error_message"   gorm:"column:error_message"`
	ReceiptNumber  string            `db:"receipt_number"  gorm:"column:receipt_number;index"`
	EmailProvider  string            `db:"email_provider"  gorm:"column:email_provider"`
	UserAgent      *string           `db:"user_agent"      gorm:"column:user_agent"`
	TrackingToken  *string           `db:"tracking_token"  gorm:"column:tracking_token;uniqueIndex"`
	PDFObjectKey   *string           `db:"pdf_object_key"  gorm:"column:pdf_object_key"`
	Metadata       datatypes.JSONMap `db:"metadata"        gorm:"column:metadata"`
	SentAt         *time.Time        `db:"sent_at"         gorm:"column:sent_at"`
	DeliveredAt    *time.Time        `db:"delivered_at"    gorm:"column:delivered_at"`
	OpenedAt       *time.Time        `db:"opened_at"       gorm:"column:opened_at"`
	CreatedAt      time.Time         `db:"created_at"      gorm:"column:created_at;index"`
	UpdatedAt      time.Time         `db:"updated_at"      gorm:"column:updated_at"`
}

func (DeliveryLogEntity) TableName() string {
	return "email_delivery_logs"
}

func toDeliveryLogEntity(m *model.DeliveryLog) *DeliveryLogEntity {
	if m == nil {
		return nil
	}
	return &DeliveryLogEntity{
		ID:             m.ID,
		TransactionID:  m.TransactionID,
		RecipientEmail: m.RecipientEmail,
		Subject:        m.Subject,
		Status:         string(m.Status),
		ErrorMessage:   nullable(m.ErrorMessage),
		ReceiptNumber:  m.ReceiptNumber,
		EmailProvider:  m.EmailProvider,
		UserAgent:      nullable(m.UserAgent),
		TrackingToken:  nullable(m.TrackingToken),
		PDFObjectKey:   nullable(m.PDFObjectKey),
		Metadata:       datatypes.JSONMap(m.Metadata),
		SentAt:         m.SentAt,
		DeliveredAt:    m.DeliveredAt,
		OpenedAt:       m.OpenedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toDeliveryLogModel(e *DeliveryLogEntity) *model.DeliveryLog {
	if e == nil {
		return nil
	}
	return &model.DeliveryLog{
		ID:             e.ID,
		TransactionID:  e.TransactionID,
		RecipientEmail: e.RecipientEmail,
		Subject:        e.Subject,
		Status:         model.DeliveryStatus(e.Status),
		ErrorMessage:   deref(e.ErrorMessage),
		ReceiptNumber:  e.ReceiptNumber,
		EmailProvider:  e.EmailProvider,
		UserAgent:      deref(e.UserAgent),
		TrackingToken:  deref(e.TrackingToken),
		PDFObjectKey:   deref(e.PDFObjectKey),
		Metadata:       map[string]any(e.Metadata),
		SentAt:         e.SentAt,
		DeliveredAt:    e.DeliveredAt,
		OpenedAt:       e.OpenedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toDeliveryLogModels(entities []*DeliveryLogEntity) []*model.DeliveryLog {
	if entities == nil {
		return nil
	}
	models := make([]*model.DeliveryLog, len(entities))
	for i, e := range entities {
		models[i] = toDeliveryLogModel(e)
	}
	return models
}
