package model

import (
	"strconv"
	"strings"
)

const (
	SettingAssociationName    = "association_name"
	SettingAssociationAddress = "association_address"
	SettingAssociationSIREN   = "association_siren"
	SettingAssociationRNA     = "association_rna"
	SettingLegalText          = "legal_text"
	SettingSMTPHost           = "smtp_host"
	SettingSMTPPort           = "smtp_port"
	SettingSMTPUser           = "smtp_user"
	SettingSMTPPassword       = "smtp_password"
	SettingSMTPSecure         = "smtp_secure"
	SettingSMTPFromEmail      = "smtp_from_email"
	SettingSMTPFromName       = "smtp_from_name"
	SettingEnableTracking     = "enable_tracking"
	SettingTemplateVersion    = "template_version"
)

// settingsDefaults is the only place a setting falls back to a value when the
// stored row leaves it empty.
var settingsDefaults = map[string]string{
	SettingAssociationName:    "Amicale des Sapeurs-Pompiers",
	SettingAssociationAddress: "",
	SettingAssociationSIREN:   "",
	SettingAssociationRNA:     "",
	SettingLegalText:          "Ce reçu atteste de la remise d'un calendrier en contrepartie de votre don. Merci pour votre soutien aux sapeurs-pompiers.",
	SettingSMTPHost:           "",
	SettingSMTPPort:           "587",
	SettingSMTPUser:           "",
	SettingSMTPPassword:       "",
	SettingSMTPSecure:         "false",
	SettingSMTPFromEmail:      "",
	SettingSMTPFromName:       "Amicale des Sapeurs-Pompiers",
	SettingEnableTracking:     "true",
	SettingTemplateVersion:    "v1",
}

// SettingsRow is the raw association_settings row, every column nullable.
type SettingsRow struct {
	AssociationName    *string
	AssociationAddress *string
	AssociationSIREN   *string
	AssociationRNA     *string
	LegalText          *string
	SMTPHost           *string
	SMTPPort           *int
	SMTPUser           *string
	SMTPPassword       *string
	SMTPSecure         *bool
	SMTPFromEmail      *string
	SMTPFromName       *string
	EnableTracking     *bool
	TemplateVersion    *string
}

// AssociationSettings is the resolved configuration used by the receipt
// pipeline. It is read fresh on every use.
type AssociationSettings struct {
	AssociationName    string
	AssociationAddress string
	AssociationSIREN   string
	AssociationRNA     string
	LegalText          string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPSecure         bool
	SMTPFromEmail      string
	SMTPFromName       string
	EnableTracking     bool
	TemplateVersion    string
}

// MissingSMTP lists the SMTP settings that are required but empty.
func (s *AssociationSettings) MissingSMTP() []string {
	var missing []string
	if s.SMTPHost == "" {
		missing = append(missing, SettingSMTPHost)
	}
	if s.SMTPUser == "" {
		missing = append(missing, SettingSMTPUser)
	}
	if s.SMTPPassword == "" {
		missing = append(missing, SettingSMTPPassword)
	}
	return missing
}

// ResolveSettings applies the defaults table to a stored row. A nil row
// yields the defaults.
func ResolveSettings(row *SettingsRow) *AssociationSettings {
	if row == nil {
		row = &SettingsRow{}
	}
	s := &AssociationSettings{
		AssociationName:    pickString(SettingAssociationName, row.AssociationName),
		AssociationAddress: pickString(SettingAssociationAddress, row.AssociationAddress),
		AssociationSIREN:   pickString(SettingAssociationSIREN, row.AssociationSIREN),
		AssociationRNA:     pickString(SettingAssociationRNA, row.AssociationRNA),
		LegalText:          pickString(SettingLegalText, row.LegalText),
		SMTPHost:           pickString(SettingSMTPHost, row.SMTPHost),
		SMTPPort:           pickInt(SettingSMTPPort, row.SMTPPort),
		SMTPUser:           pickString(SettingSMTPUser, row.SMTPUser),
		SMTPPassword:       pickString(SettingSMTPPassword, row.SMTPPassword),
		SMTPSecure:         pickBool(SettingSMTPSecure, row.SMTPSecure),
		SMTPFromEmail:      pickString(SettingSMTPFromEmail, row.SMTPFromEmail),
		SMTPFromName:       pickString(SettingSMTPFromName, row.SMTPFromName),
		EnableTracking:     pickBool(SettingEnableTracking, row.EnableTracking),
		TemplateVersion:    pickString(SettingTemplateVersion, row.TemplateVersion),
	}
	if s.SMTPFromEmail == "" {
		s.SMTPFromEmail = s.SMTPUser
	}
	return s
}

func pickString(key string, v *string) string {
	if v != nil {
		if t := strings.TrimSpace(*v); t != "" {
			return t
		}
	}
	return settingsDefaults[key]
}

func pickInt(key string, v *int) int {
	if v != nil && *v > 0 {
		return *v
	}
	n, _ := strconv.Atoi(settingsDefaults[key])
	return n
}

func pickBool(key string, v *bool) bool {
	if v != nil {
		return *v
	}
	b, _ := strconv.ParseBool(settingsDefaults[key])
	return b
}
