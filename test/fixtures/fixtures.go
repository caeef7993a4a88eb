package fixtures

import (
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/internal/repository"
	"github.com/shopspring/decimal"
)

var DonationDate = time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

var (
	TestCollector = repository.ProfileEntity{
		ID:       "profile-1",
		FullName: "Marie Martin",
	}

	TestTeam = repository.TeamEntity{
		ID:   "team-1",
		Name: "Équipe Nord",
	}
)

func strPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(i int) *int {
	return &i
}

// TestSettings is a fully configured association row.
func TestSettings() *repository.SettingsEntity {
	return &repository.SettingsEntity{
		AssociationName:    strPtr("Amicale des Sapeurs-Pompiers de Test"),
		AssociationAddress: strPtr("1 rue de la Caserne, 75001 Paris"),
		AssociationSIREN:   strPtr("123456789"),
		SMTPHost:           strPtr("smtp.test"),
		SMTPPort:           intPtr(587),
		SMTPUser:           strPtr("calendriers@amicale.test"),
		SMTPPassword:       strPtr("secret"),
		SMTPSecure:         boolPtr(false),
		SMTPFromEmail:      strPtr("calendriers@amicale.test"),
		SMTPFromName:       strPtr("Amicale SP"),
		EnableTracking:     boolPtr(true),
		UpdatedAt:          DonationDate,
	}
}

func NewTestTransaction(id string, amount int64, calendars int, paymentMethod, email string) *model.Transaction {
	return &model.Transaction{
		ID:             id,
		Amount:         decimal.NewFromInt(amount),
		CalendarsGiven: calendars,
		PaymentMethod:  paymentMethod,
		DonatorName:    "Jean Dupont",
		DonatorEmail:   email,
		UserID:         TestCollector.ID,
		TeamID:         TestTeam.ID,
		CreatedAt:      DonationDate,
	}
}

func CashDonation(id string) *model.Transaction {
	return NewTestTransaction(id, 25, 2, model.PaymentCash, "jean.dupont@gmail.com")
}

func CheckDonation(id string) *model.Transaction {
	return NewTestTransaction(id, 40, 3, model.PaymentCheck, "jean.dupont@gmail.com")
}

func AnonymousDonation(id string) *model.Transaction {
	tx := NewTestTransaction(id, 10, 1, model.PaymentCard, "")
	tx.DonatorName = ""
	return tx
}

var (
	ValidEmails = []string{
		"jean.dupont@gmail.com",
		"marie+calendrier@orange.fr",
		"a@b",
	}

	InvalidEmails = []string{
		"jean.dupont",
		"@gmail.com",
		"Jean <jean@gmail.com>",
	}
)
