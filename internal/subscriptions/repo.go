package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
)

// Repository handles subscription and charge persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	FindOpenByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.Subscription, error)
	ListBlockable(ctx context.Context, now time.Time) ([]models.Subscription, error)
	MarkPendingPayment(ctx context.Context, id uuid.UUID, observedEnd time.Time, paymentID string, graceEndsAt time.Time) (bool, error)
	MarkBlocked(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	UpdateFromStatus(ctx context.Context, sub *models.Subscription, from enums.SubscriptionStatus) (bool, error)
	SetBillingCustomer(ctx context.Context, id uuid.UUID, customerID string) error
	FindChargeByReference(ctx context.Context, ref string) (*models.Charge, error)
	CreateCharge(ctx context.Context, charge *models.Charge) error
	ReplaceChargePayment(ctx context.Context, chargeID uuid.UUID, paymentID string, status enums.ChargeStatus, dueDate string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// FindOpenByUser returns the user's subscription that is not cancelled, if any.
func (r *repository) FindOpenByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, enums.SubscriptionStatusCancelled).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListExpired(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", enums.SubscriptionStatusActive, now).
		Order("end_date ASC").
		Order("id ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListBlockable(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("status = ? AND grace_period_ends_at IS NOT NULL AND grace_period_ends_at <= ?", enums.SubscriptionStatusPendingPayment, now).
		Order("grace_period_ends_at ASC").
		Order("id ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// MarkPendingPayment moves an expired active row to pending_payment. It only
// matches the row while it still has the end date the caller billed for, so a
// concurrent run or admin action turns it into a no-op.
func (r *repository) MarkPendingPayment(ctx context.Context, id uuid.UUID, observedEnd time.Time, paymentID string, graceEndsAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND end_date = ?", id, enums.SubscriptionStatusActive, observedEnd).
		Updates(map[string]any{
			"status":               enums.SubscriptionStatusPendingPayment,
			"asaas_payment_id":     paymentID,
			"grace_period_ends_at": graceEndsAt,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkBlocked(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ? AND grace_period_ends_at <= ?", id, enums.SubscriptionStatusPendingPayment, now).
		Updates(map[string]any{
			"status":     enums.SubscriptionStatusBlocked,
			"blocked_at": now,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateFromStatus saves the lifecycle columns of sub only if the stored row
// is still in status from.
func (r *repository) UpdateFromStatus(ctx context.Context, sub *models.Subscription, from enums.SubscriptionStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", sub.ID, from).
		Updates(map[string]any{
			"status":               sub.Status,
			"start_date":           sub.StartDate,
			"end_date":             sub.EndDate,
			"grace_period_ends_at": sub.GracePeriodEndsAt,
			"blocked_at":           sub.BlockedAt,
			"cancelled_at":         sub.CancelledAt,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetBillingCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"asaas_customer_id": customerID,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *repository) FindChargeByReference(ctx context.Context, ref string) (*models.Charge, error) {
	var charge models.Charge
	if err := r.db.WithContext(ctx).Where("external_reference = ?", ref).First(&charge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &charge, nil
}

func (r *repository) CreateCharge(ctx context.Context, charge *models.Charge) error {
	return r.db.WithContext(ctx).Create(charge).Error
}

// ReplaceChargePayment points a recorded charge at a new provider payment,
// keeping its external reference.
func (r *repository) ReplaceChargePayment(ctx context.Context, chargeID uuid.UUID, paymentID string, status enums.ChargeStatus, dueDate string) error {
	return r.db.WithContext(ctx).
		Model(&models.Charge{}).
		Where("id = ?", chargeID).
		Updates(map[string]any{
			"asaas_payment_id": paymentID,
			"status":           status,
			"due_date":         dueDate,
		}).Error
}
