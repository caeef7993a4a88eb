package template

import (
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/shopspring/decimal"
)

const genericGreeting = "Madame, Monsieur,"

var paymentLabels = map[string]string{
	model.PaymentCash:     "💵 Espèces",
	"especes":             "💵 Espèces",
	model.PaymentCheck:    "📝 Chèque",
	"cheque":              "📝 Chèque",
	model.PaymentCard:     "💳 Carte bancaire",
	"carte":               "💳 Carte bancaire",
	model.PaymentTransfer: "🏦 Virement",
	"virement":            "🏦 Virement",
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// PaymentLabel returns the display label of a payment method code. Unknown
// codes are returned unchanged.
func PaymentLabel(code string) string {
	if label, ok := paymentLabels[strings.ToLower(strings.TrimSpace(code))]; ok {
		return label
	}
	return code
}

// FormatAmount renders an amount in euros the French way: "25€", "25,50€".
func FormatAmount(amount decimal.Decimal) string {
	amount = amount.Round(2)
	if amount.IsInteger() {
		return amount.StringFixed(0) + "€"
	}
	return strings.Replace(amount.StringFixed(2), ".", ",", 1) + "€"
}

// Calendars renders the calendar count with the right plural.
func Calendars(n int) string {
	if n == 1 {
		return "1 calendrier"
	}
	return fmt.Sprintf("%d calendriers", n)
}

// Greeting addresses the donor by name, or generically when the name is
// unknown.
func Greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return genericGreeting
	}
	return "Bonjour " + name + ","
}

// FormatDate renders a date as "1 décembre 2024".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}

func formatTimestamp(t time.Time) string {
	return t.Format("02/01/2006 à 15:04")
}
