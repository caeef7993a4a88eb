package repository

import (
	"testing"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&ProfileEntity{}, &TeamEntity{}, &TransactionEntity{}, &SettingsEntity{}, &DeliveryLogEntity{})
	require.NoError(t, err)

	return &testDB{
		DB:    pg.NewFromGorm(db, db),
		rawDB: db,
	}
}

func newTestTransaction(id string, amount int64) *model.Transaction {
	return &model.Transaction{
		ID:             id,
		Amount:         decimal.NewFromInt(amount),
		CalendarsGiven: 1,
		PaymentMethod:  model.PaymentCash,
		DonatorName:    "Jean Dupont",
		DonatorEmail:   "jean.dupont@gmail.com",
		CreatedAt:      time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC),
	}
}

func strPtr(s string) *string {
	return &s
}
