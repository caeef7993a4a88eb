package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/pkg/pg"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Omit("User", "Team").Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("User").
		Preload("Team").
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// ClaimReceipt moves the transaction into the pending receipt state with a
// single conditional update. It returns false when another run holds the
// claim or the receipt is already sent and this is not a resend. The stored
// receipt number is kept if one exists.
func (r *TransactionRepository) ClaimReceipt(ctx context.Context, c model.ReceiptClaim) (bool, error) {
	claimable := []string{string(model.ReceiptStatusGenerated), string(model.ReceiptStatusFailed)}
	if c.Resend {
		claimable = append(claimable, string(model.ReceiptStatusSent))
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", c.TransactionID).
		Where("(receipt_status IS NULL OR receipt_status = '' OR receipt_status IN ? OR (receipt_status = ? AND (receipt_requested_at IS NULL OR receipt_requested_at < ?)))",
			claimable, string(model.ReceiptStatusPending), c.StaleBefore).
		Updates(map[string]any{
			"receipt_status":       string(model.ReceiptStatusPending),
			"receipt_requested_at": c.RequestedAt,
			"receipt_number":       gorm.Expr("COALESCE(receipt_number, ?)", c.ReceiptNumber),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TransactionRepository) UpdateReceipt(ctx context.Context, id string, u model.ReceiptUpdate) error {
	updates := map[string]any{
		"receipt_status": string(u.Status),
	}
	if u.GeneratedAt != nil {
		updates["receipt_generated_at"] = *u.GeneratedAt
	}
	if u.PDFURL != nil {
		updates["receipt_pdf_url"] = *u.PDFURL
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// ListEligible returns transactions that never had a receipt attempt nor a
// receipt number, have a donor email and reach the minimum amount, oldest
// first.
func (r *TransactionRepository) ListEligible(ctx context.Context, f model.EligibleFilter) ([]*model.Transaction, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Preload("User").
		Preload("Team").
		Where("receipt_status IS NULL OR receipt_status = ''").
		Where("receipt_number IS NULL OR receipt_number = ''").
		Where("donator_email IS NOT NULL AND donator_email <> ''").
		Where("amount >= ?", f.MinAmount).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}
