package repository

import "strings"

const unknownProvider = "unknown"

var emailProviders = map[string]string{
	"gmail.com":      "Gmail",
	"googlemail.com": "Gmail",
	"outlook.com":    "Outlook",
	"outlook.fr":     "Outlook",
	"hotmail.com":    "Outlook",
	"hotmail.fr":     "Outlook",
	"live.com":       "Outlook",
	"live.fr":        "Outlook",
	"msn.com":        "Outlook",
	"yahoo.com":      "Yahoo",
	"yahoo.fr":       "Yahoo",
	"ymail.com":      "Yahoo",
	"icloud.com":     "iCloud",
	"me.com":         "iCloud",
	"mac.com":        "iCloud",
	"orange.fr":      "Orange",
	"wanadoo.fr":     "Orange",
	"free.fr":        "Free",
	"sfr.fr":         "SFR",
	"neuf.fr":        "SFR",
	"laposte.net":    "La Poste",
	"bbox.fr":        "Bouygues Telecom",
	"gmx.fr":         "GMX",
	"gmx.com":        "GMX",
}

// DetectEmailProvider names the mailbox provider of an address. Unknown
// domains are returned as is; addresses without a domain yield "unknown".
func DetectEmailProvider(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return unknownProvider
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" {
		return unknownProvider
	}
	if name, ok := emailProviders[domain]; ok {
		return name
	}
	return domain
}
