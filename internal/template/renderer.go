package template

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/pkg/errors"
)

var (
	htmlReceipt = htmltemplate.Must(htmltemplate.New("receipt.html").Parse(receiptHTML))
	textReceipt = texttemplate.Must(texttemplate.New("receipt.txt").Parse(receiptText))
)

type view struct {
	*model.ReceiptRecord
	Greeting     string
	DonorName    string
	Amount       string
	Calendars    string
	Payment      string
	DonationDate string
	GeneratedAt  string
	Tracking     bool
}

// Renderer turns a receipt record into the HTML document converted to PDF
// and the plain-text email body. The only non-deterministic output is the
// generation footer, driven by Now.
type Renderer struct {
	Now      func() time.Time
	Location *time.Location
}

func NewRenderer() *Renderer {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.UTC
	}
	return &Renderer{
		Now:      time.Now,
		Location: loc,
	}
}

func (r *Renderer) RenderHTML(rec *model.ReceiptRecord) (string, error) {
	var buf bytes.Buffer
	if err := htmlReceipt.Execute(&buf, r.view(rec)); err != nil {
		return "", errors.Wrap(err, "render receipt html")
	}
	return buf.String(), nil
}

func (r *Renderer) RenderText(rec *model.ReceiptRecord) (string, error) {
	var buf bytes.Buffer
	if err := textReceipt.Execute(&buf, r.view(rec)); err != nil {
		return "", errors.Wrap(err, "render receipt text")
	}
	return buf.String(), nil
}

// Subject is the email subject line of a receipt.
func (r *Renderer) Subject(rec *model.ReceiptRecord) string {
	return "Votre reçu " + rec.ReceiptNumber + " - " + rec.AssociationName
}

func (r *Renderer) view(rec *model.ReceiptRecord) view {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	donor := strings.TrimSpace(rec.DonatorName)
	if donor == "" {
		donor = "Donateur anonyme"
	}
	return view{
		ReceiptRecord: rec,
		Greeting:      Greeting(rec.DonatorName),
		DonorName:     donor,
		Amount:        FormatAmount(rec.Amount),
		Calendars:     Calendars(rec.CalendarsGiven),
		Payment:       PaymentLabel(rec.PaymentMethod),
		DonationDate:  FormatDate(rec.DonationDate.In(loc)),
		GeneratedAt:   formatTimestamp(now().In(loc)),
		Tracking:      rec.TrackingEnabled && rec.TrackingURL != "",
	}
}
