package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("missing row resolves to defaults", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t).DB)
		s, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Amicale des Sapeurs-Pompiers", s.AssociationName)
		assert.Equal(t, 587, s.SMTPPort)
		assert.True(t, s.EnableTracking)
		assert.ElementsMatch(t, []string{"smtp_host", "smtp_user", "smtp_password"}, s.MissingSMTP())
	})

	t.Run("stored values override defaults", func(t *testing.T) {
		tdb := setupTestDB(t)
		port := 465
		secure := true
		tracking := false
		require.NoError(t, tdb.rawDB.Create(&SettingsEntity{
			AssociationName:  strPtr("Amicale SP de Lyon"),
			AssociationSIREN: strPtr("123456789"),
			SMTPHost:         strPtr("smtp.gmail.com"),
			SMTPPort:         &port,
			SMTPUser:         strPtr("amicale@gmail.com"),
			SMTPPassword:     strPtr("secret"),
			SMTPSecure:       &secure,
			EnableTracking:   &tracking,
			LegalText:        strPtr("   "),
		}).Error)

		s, err := NewSettingsRepository(tdb.DB).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Amicale SP de Lyon", s.AssociationName)
		assert.Equal(t, "123456789", s.AssociationSIREN)
		assert.Equal(t, 465, s.SMTPPort)
		assert.True(t, s.SMTPSecure)
		assert.False(t, s.EnableTracking)
		assert.Equal(t, "amicale@gmail.com", s.SMTPFromEmail)
		assert.NotEmpty(t, s.LegalText)
		assert.Empty(t, s.MissingSMTP())
	})
}
