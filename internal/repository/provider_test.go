package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectEmailProvider(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jean@gmail.com", "Gmail"},
		{"Jean@GMAIL.com", "Gmail"},
		{"marie@hotmail.fr", "Outlook"},
		{"paul@orange.fr", "Orange"},
		{"luc@wanadoo.fr", "Orange"},
		{"anne@free.fr", "Free"},
		{"contact@mairie-exemple.fr", "mairie-exemple.fr"},
		{"no-domain", "unknown"},
		{"trailing@", "unknown"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectEmailProvider(tt.email))
		})
	}
}
