package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/receipt-gateway/internal/model"
	"github.com/nimasrn/receipt-gateway/pkg/pg"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var allDeliveryStatuses = []model.DeliveryStatus{
	model.DeliveryStatusPending,
	model.DeliveryStatusSent,
	model.DeliveryStatusDelivered,
	model.DeliveryStatusOpened,
	model.DeliveryStatusFailed,
	model.DeliveryStatusBounced,
	model.DeliveryStatusSkipped,
}

type DeliveryLogRepository struct {
	*pg.DB
}

func NewDeliveryLogRepository(db *pg.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{
		db,
	}
}

func (r *DeliveryLogRepository) Create(ctx context.Context, l *model.DeliveryLog) (*model.DeliveryLog, error) {
	entity := toDeliveryLogEntity(l)
	if entity.Status == "" {
		entity.Status = string(model.DeliveryStatusPending)
	}
	if entity.EmailProvider == "" {
		entity.EmailProvider = DetectEmailProvider(l.RecipientEmail)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDeliveryLogModel(entity), nil
}

// Update applies a patch to one log entry. A status change only succeeds when
// it moves forward from the stored status; repeating the stored status is a
// no-op. Metadata keys are merged into the stored ones.
func (r *DeliveryLogRepository) Update(ctx context.Context, id int64, p model.DeliveryLogPatch) (*model.DeliveryLog, error) {
	if p.Metadata == nil {
		return r.update(ctx, id, p)
	}

	var updated *model.DeliveryLog
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity DeliveryLogEntity
		err := r.Write(ctx).
			Select("metadata").
			Where("id = ?", id).
			First(&entity).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDeliveryLogNotFound
			}
			return err
		}
		p.Metadata = lo.Assign(map[string]any(entity.Metadata), p.Metadata)

		updated, err = r.update(ctx, id, p)
		return err
	})
	return updated, err
}

func (r *DeliveryLogRepository) update(ctx context.Context, id int64, p model.DeliveryLogPatch) (*model.DeliveryLog, error) {
	at := p.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	updates := map[string]any{"updated_at": at}
	if p.ErrorMessage != nil {
		updates["error_message"] = *p.ErrorMessage
	}
	if p.PDFObjectKey != nil {
		updates["pdf_object_key"] = *p.PDFObjectKey
	}
	if p.Metadata != nil {
		updates["metadata"] = datatypes.JSONMap(p.Metadata)
	}

	q := r.Write(ctx).WithContext(ctx).Model(&DeliveryLogEntity{}).Where("id = ?", id)

	if p.Status != nil {
		next := *p.Status
		updates["status"] = string(next)
		switch next {
		case model.DeliveryStatusSent:
			updates["sent_at"] = at
		case model.DeliveryStatusDelivered:
			updates["delivered_at"] = at
		case model.DeliveryStatusOpened:
			updates["opened_at"] = at
		}
		from := lo.Filter(allDeliveryStatuses, func(s model.DeliveryStatus, _ int) bool {
			return s.CanTransitionTo(next)
		})
		q = q.Where("status IN ?", lo.Map(from, func(s model.DeliveryStatus, _ int) string { return string(s) }))
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}

	current, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && p.Status != nil && current.Status != *p.Status {
		return current, ErrInvalidTransition
	}
	return current, nil
}

// MarkOpened records an open of the email carrying the tracking token.
func (r *DeliveryLogRepository) MarkOpened(ctx context.Context, token string, at time.Time) (*model.DeliveryLog, error) {
	var entity DeliveryLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("tracking_token = ?", token).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryLogNotFound
		}
		return nil, err
	}
	opened := model.DeliveryStatusOpened
	return r.Update(ctx, entity.ID, model.DeliveryLogPatch{Status: &opened, At: at})
}

func (r *DeliveryLogRepository) ListForTransaction(ctx context.Context, transactionID string) ([]*model.DeliveryLog, error) {
	var entities []*DeliveryLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toDeliveryLogModels(entities), nil
}

// CheckExists reports the newest entry proving the receipt reached the donor.
func (r *DeliveryLogRepository) CheckExists(ctx context.Context, transactionID string) (*model.ExistingDelivery, error) {
	delivered := lo.FilterMap(allDeliveryStatuses, func(s model.DeliveryStatus, _ int) (string, bool) {
		return string(s), s.Delivered()
	})

	var entity DeliveryLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Where("status IN ?", delivered).
		Order("created_at DESC").
		Order("id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.ExistingDelivery{Exists: false}, nil
		}
		return nil, err
	}

	lastSent := entity.SentAt
	if lastSent == nil {
		lastSent = &entity.CreatedAt
	}
	return &model.ExistingDelivery{
		Exists:        true,
		ReceiptNumber: entity.ReceiptNumber,
		LastSent:      lastSent,
		Status:        model.DeliveryStatus(entity.Status),
		PDFObjectKey:  deref(entity.PDFObjectKey),
	}, nil
}

// LatestObjectKey returns the stored PDF path of the newest entry that has
// one, or "" when none is known.
func (r *DeliveryLogRepository) LatestObjectKey(ctx context.Context, transactionID string) (string, string, error) {
	var entity DeliveryLogEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Where("pdf_object_key IS NOT NULL AND pdf_object_key <> ''").
		Order("created_at DESC").
		Order("id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil
		}
		return "", "", err
	}
	return entity.ReceiptNumber, deref(entity.PDFObjectKey), nil
}

type statusCount struct {
	Status string
	Count  int64
}

func (r *DeliveryLogRepository) Stats(ctx context.Context, since time.Time) (*model.DeliveryStats, error) {
	var rows []statusCount
	err := r.Read(ctx).WithContext(ctx).
		Model(&DeliveryLogEntity{}).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}

	stats := &model.DeliveryStats{ByStatus: make(map[model.DeliveryStatus]int64, len(rows))}
	for _, row := range rows {
		stats.ByStatus[model.DeliveryStatus(row.Status)] = row.Count
	}
	stats.Total = lo.SumBy(rows, func(row statusCount) int64 { return row.Count })
	return stats, nil
}

// DeleteOlderThan removes entries created before the cutoff.
func (r *DeliveryLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res := r.Write(ctx).WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&DeliveryLogEntity{})
	return res.RowsAffected, res.Error
}

func (r *DeliveryLogRepository) get(ctx context.Context, id int64) (*model.DeliveryLog, error) {
	var entity DeliveryLogEntity
	err := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryLogNotFound
		}
		return nil, err
	}
	return toDeliveryLogModel(&entity), nil
}
