package template

const receiptHTML = `<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>Reçu {{.ReceiptNumber}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #222; font-size: 12pt; }
  header { border-bottom: 3px solid #c8102e; padding-bottom: 12px; margin-bottom: 24px; }
  header h1 { color: #c8102e; margin: 0; font-size: 20pt; }
  .identity { font-size: 9pt; color: #555; }
  table { width: 100%; border-collapse: collapse; margin: 16px 0; }
  td { padding: 6px 8px; border-bottom: 1px solid #eee; }
  td.label { color: #555; width: 40%; }
  .amount { font-size: 16pt; font-weight: bold; }
  .legal { font-size: 9pt; color: #555; margin-top: 32px; }
  footer { font-size: 8pt; color: #888; margin-top: 24px; }
</style>
</head>
<body>
<header>
  <h1>{{.AssociationName}}</h1>
  <div class="identity">
    {{- if .AssociationAddress}}<div>{{.AssociationAddress}}</div>{{end}}
    {{- if .AssociationSIREN}}<div>SIREN: {{.AssociationSIREN}}</div>{{end}}
    {{- if .AssociationRNA}}<div>N° RNA: {{.AssociationRNA}}</div>{{end}}
  </div>
</header>

<h2>Reçu n° {{.ReceiptNumber}}</h2>

<p>{{.Greeting}}</p>
<p>Nous vous remercions chaleureusement pour votre soutien lors de notre tournée de fin d'année.</p>

<table>
  <tr><td class="label">Donateur</td><td>{{.DonorName}}</td></tr>
  <tr><td class="label">Date du don</td><td>{{.DonationDate}}</td></tr>
  <tr><td class="label">Montant</td><td class="amount">{{.Amount}}</td></tr>
  <tr><td class="label">Contrepartie</td><td>{{.Calendars}}</td></tr>
  <tr><td class="label">Mode de paiement</td><td>{{.Payment}}</td></tr>
  {{- if .CollectorName}}
  <tr><td class="label">Collecté par</td><td>{{.CollectorName}}</td></tr>
  {{- end}}
  {{- if .TeamName}}
  <tr><td class="label">Équipe</td><td>{{.TeamName}}</td></tr>
  {{- end}}
</table>

<p class="legal">{{.LegalText}}</p>

<footer>Document généré le {{.GeneratedAt}} · modèle {{.TemplateVersion}}</footer>
{{- if .Tracking}}
<img src="{{.TrackingURL}}" width="1" height="1" alt="" style="display:none">
{{- end}}
</body>
</html>
`

const receiptText = `{{.AssociationName}}
{{- if .AssociationAddress}}
{{.AssociationAddress}}
{{- end}}
{{- if .AssociationSIREN}}
SIREN: {{.AssociationSIREN}}
{{- end}}
{{- if .AssociationRNA}}
N° RNA: {{.AssociationRNA}}
{{- end}}

Reçu n° {{.ReceiptNumber}}

{{.Greeting}}

Nous vous remercions chaleureusement pour votre soutien lors de notre tournée de fin d'année.

Donateur : {{.DonorName}}
Date du don : {{.DonationDate}}
Montant : {{.Amount}}
Contrepartie : {{.Calendars}}
Mode de paiement : {{.Payment}}
{{- if .CollectorName}}
Collecté par : {{.CollectorName}}
{{- end}}
{{- if .TeamName}}
Équipe : {{.TeamName}}
{{- end}}

Votre reçu est joint à ce message au format PDF.

{{.LegalText}}

Document généré le {{.GeneratedAt}}
`
