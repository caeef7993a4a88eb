package repository

import (
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
)

type SettingsEntity struct {
	ID                 int64     `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	AssociationName    *string   `db:"association_name"    gorm:"column:association_name"`
	AssociationAddress *string   `db:"association_address" gorm:"column:association_address"`
	AssociationSIREN   *string   `db:"association_siren"   gorm:"column:association_siren"`
	AssociationRNA     *string   `db:"association_rna"     gorm:"column:association_rna"`
	LegalText          *string   `db:"legal_text"          gorm:"column:legal_text"`
	SMTPHost           *string   `db:"smtp_host"           gorm:"column:smtp_host"`
	SMTPPort           *int      `db:"smtp_port"           gorm:"column:smtp_port"`
	SMTPUser           *string   `db:"smtp_user"           gorm:"column:smtp_user"`
	SMTPPassword       *string   `db:"smtp_password"       gorm:"column:smtp_password"`
	SMTPSecure         *bool     `db:"smtp_secure"         gorm:"column:smtp_secure"`
	SMTPFromEmail      *string   `db:"smtp_from_email"     gorm:"column:smtp_from_email"`
	SMTPFromName       *string   `db:"smtp_from_name"      gorm:"column:smtp_from_name"`
	EnableTracking     *bool     `db:"enable_tracking"     gorm:"column:enable_tracking"`
	TemplateVersion    *string   `db:"template_version"    gorm:"column:template_version"`
	UpdatedAt          time.Time `db:"updated_at"          gorm:"column:updated_at"`
}

func (SettingsEntity) TableName() string {
	return "association_settings"
}

func toSettingsRow(e *SettingsEntity) *model.SettingsRow {
	if e == nil {
		return nil
	}
	return &model.SettingsRow{
		AssociationName:    e.AssociationName,
		AssociationAddress: e.AssociationAddress,
		AssociationSIREN:   e.AssociationSIREN,
		AssociationRNA:     e.AssociationRNA,
		LegalText:          e.LegalText,
		SMTPHost:           e.SMTPHost,
		SMTPPort:           e.SMTPPort,
		SMTPUser:           e.SMTPUser,
		SMTPPassword:       e.SMTPPassword,
		SMTPSecure:         e.SMTPSecure,
		SMTPFromEmail:      e.SMTPFromEmail,
		SMTPFromName:       e.SMTPFromName,
		EnableTracking:     e.EnableTracking,
		TemplateVersion:    e.TemplateVersion,
	}
}
