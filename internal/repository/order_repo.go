package repository

import (
	"context"
	"errors"
	"time"

	"github.com/storefront/order-intake/internal/domain"
	"gorm.io/gorm"
)

const defaultCandidateLimit = 50

type ListParams struct {
	EmailSent *bool
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// DeliveryStatusUpdate is the single mutation contract for notification
// state. Success resets the retry bookkeeping; failure advances it.
type DeliveryStatusUpdate struct {
	Sent        bool
	Error       *string
	RetryCount  int
	NextRetryAt *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, params ListParams) ([]domain.Order, int64, error)

	// UpdateDeliveryStatus applies upd only if the row is still unsent and
	// its retry count matches observedRetryCount, so two triggers racing on
	// one order cannot both commit an outcome.
	UpdateDeliveryStatus(ctx context.Context, id string, observedRetryCount int, upd DeliveryStatusUpdate) error

	// SelectRetryCandidates returns unsent orders below the retry bound whose
	// backoff window has elapsed (or was never scheduled), oldest first.
	SelectRetryCandidates(ctx context.Context, maxRetries, limit int) ([]domain.Order, error)

	// SelectFailed returns currently-failed orders regardless of backoff
	// window, oldest first. Used by the manual bulk retry.
	SelectFailed(ctx context.Context, limit int) ([]domain.Order, error)
}

type GormOrderRepo struct {
	db *gorm.DB
}

func NewGormOrderRepo(db *gorm.DB) *GormOrderRepo {
	return &GormOrderRepo{db: db}
}

func (r *GormOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	model := orderModelFromDomain(o)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if o != nil {
		*o = *orderModelToDomain(model)
	}
	return nil
}

func (r *GormOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return orderModelToDomain(&model), nil
}

func (r *GormOrderRepo) List(ctx context.Context, params ListParams) ([]domain.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&OrderModel{})

	if params.EmailSent != nil {
		query = query.Where("email_sent = ?", *params.EmailSent)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []OrderModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *orderModelToDomain(&models[i]))
	}

	return orders, total, nil
}

func (r *GormOrderRepo) UpdateDeliveryStatus(
	ctx context.Context,
	id string,
	observedRetryCount int,
	upd DeliveryStatusUpdate,
) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND email_sent = ? AND email_retry_count = ?", id, false, observedRetryCount).
		Updates(map[string]any{
			"email_sent":        upd.Sent,
			"email_error":       upd.Error,
			"email_retry_count": upd.RetryCount,
			"next_retry_at":     upd.NextRetryAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the row is gone or another trigger already committed an
		// outcome for this attempt window.
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&OrderModel{}).
			Where("id = ?", id).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *GormOrderRepo) SelectRetryCandidates(ctx context.Context, maxRetries, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where(
			"email_sent = ? AND email_retry_count < ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			false, maxRetries, time.Now(),
		).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *orderModelToDomain(&models[i]))
	}

	return orders, nil
}

func (r *GormOrderRepo) SelectFailed(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	var models []OrderModel
	err := r.db.WithContext(ctx).
		Where("email_sent = ? AND email_error IS NOT NULL", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *orderModelToDomain(&models[i]))
	}

	return orders, nil
}
