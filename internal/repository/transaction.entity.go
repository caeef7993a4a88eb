package repository

import (
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type ProfileEntity struct {
	ID       string `db:"id"        gorm:"primaryKey;column:id"`
	FullName string `db:"full_name" gorm:"column:full_name"`
}

func (ProfileEntity) TableName() string {
	return "profiles"
}

type TeamEntity struct {
	ID   string `db:"id"   gorm:"primaryKey;column:id"`
	Name string `db:"name" gorm:"column:name"`
}

func (TeamEntity) TableName() string {
	return "teams"
}

type TransactionEntity struct {
	ID                 string          `db:"id"                   gorm:"primaryKey;column:id"`
	Amount             decimal.Decimal `db:"amount"               gorm:"column:amount;type:decimal(10,2);not null"`
	CalendarsGiven     int             `db:"calendars_given"      gorm:"column:calendars_given;not null;default:0"`
	PaymentMethod      string          `db:"payment_method"       gorm:"column:payment_method;not null"`
	DonatorName        *string         `db:"donator_name"         gorm:"column:donator_name"`
	DonatorEmail       *string         `db:"donator_email"        gorm:"column:donator_email"`
	UserID             *string         `db:"user_id"              gorm:"column:user_id;index"`
	User               *ProfileEntity  `gorm:"foreignKey:UserID;references:ID"`
	TeamID             *string         `db:"team_id"              gorm:"column:team_id;index"`
	Team               *TeamEntity     `gorm:"foreignKey:TeamID;references:ID"`
	CreatedAt          time.Time       `db:"created_at"           gorm:"column:created_at;index"`
	ReceiptNumber      *string         `db:"receipt_number"       gorm:"column:receipt_number;index"`
	ReceiptStatus      *string         `db:"receipt_status"       gorm:"column:receipt_status;index"`
	ReceiptRequestedAt *time.Time      `db:"receipt_requested_at" gorm:"column:receipt_requested_at"`
	ReceiptGeneratedAt *time.Time      `db:"receipt_generated_at" gorm:"column:receipt_generated_at"`
	ReceiptPDFURL      *string         `db:"receipt_pdf_url"      gorm:"column:receipt_pdf_url"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	e := &TransactionEntity{
		ID:                 m.ID,
		Amount:             m.Amount,
		CalendarsGiven:     m.CalendarsGiven,
		PaymentMethod:      m.PaymentMethod,
		DonatorName:        nullable(m.DonatorName),
		DonatorEmail:       nullable(m.DonatorEmail),
		UserID:             nullable(m.UserID),
		TeamID:             nullable(m.TeamID),
		CreatedAt:          m.CreatedAt,
		ReceiptNumber:      m.ReceiptNumber,
		ReceiptRequestedAt: m.ReceiptRequestedAt,
		ReceiptGeneratedAt: m.ReceiptGeneratedAt,
		ReceiptPDFURL:      m.ReceiptPDFURL,
	}
	if m.ReceiptStatus != model.ReceiptStatusNone {
		s := string(m.ReceiptStatus)
		e.ReceiptStatus = &s
	}
	return e
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	m := &model.Transaction{
		ID:                 e.ID,
		Amount:             e.Amount,
		CalendarsGiven:     e.CalendarsGiven,
		PaymentMethod:      e.PaymentMethod,
		DonatorName:        deref(e.DonatorName),
		DonatorEmail:       deref(e.DonatorEmail),
		UserID:             deref(e.UserID),
		TeamID:             deref(e.TeamID),
		CreatedAt:          e.CreatedAt,
		ReceiptNumber:      e.ReceiptNumber,
		ReceiptStatus:      model.ReceiptStatus(deref(e.ReceiptStatus)),
		ReceiptRequestedAt: e.ReceiptRequestedAt,
		ReceiptGeneratedAt: e.ReceiptGeneratedAt,
		ReceiptPDFURL:      e.ReceiptPDFURL,
	}
	if e.User != nil {
		m.CollectorName = e.User.FullName
	}
	if e.Team != nil {
		m.TeamName = e.Team.Name
	}
	return m
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
