package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/motorhub/marketplace-backend/internal/plans"
	"github.com/motorhub/marketplace-backend/pkg/db"
	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/motorhub/marketplace-backend/pkg/errors"
	"github.com/motorhub/marketplace-backend/pkg/logger"
	"github.com/motorhub/marketplace-backend/pkg/outbox"
)

const (
	actorRoleUser  = "user"
	actorRoleAdmin = "admin"
)

// Service defines the user and admin facing subscription operations.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateSubscriptionInput) (*models.Subscription, error)
	GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	SetBillingCustomer(ctx context.Context, userID uuid.UUID, customerID string) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	CancelByID(ctx context.Context, actorID, subscriptionID uuid.UUID) (*models.Subscription, error)
	Reactivate(ctx context.Context, actorID, subscriptionID uuid.UUID) (*models.Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Outbox            *outbox.Service
	Catalog           *plans.Catalog
	Logger            *logger.Logger
	Now               func() time.Time
}

// CreateSubscriptionInput captures the data required to start a subscription.
type CreateSubscriptionInput struct {
	PlanType        enums.PlanType
	AsaasCustomerID *string
}

type service struct {
	repo     Repository
	txRunner txRunner
	outbox   *outbox.Service
	catalog  *plans.Catalog
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	catalog := params.Catalog
	if catalog == nil {
		catalog = plans.Default()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		txRunner: params.TransactionRunner,
		outbox:   params.Outbox,
		catalog:  catalog,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateSubscriptionInput) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	plan, err := s.catalog.Lookup(input.PlanType)
	if err != nil {
		return nil, err
	}
	customerID := normalizeOptional(input.AsaasCustomerID)

	now := s.now()
	sub := &models.Subscription{
		ID:              uuid.New(),
		UserID:          userID,
		PlanType:        plan.Type,
		PlanValue:       plan.Price,
		AsaasCustomerID: customerID,
		Status:          enums.SubscriptionStatusActive,
		StartDate:       now,
		EndDate:         now.Add(plan.Duration()),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		open, err := repo.FindOpenByUser(ctx, userID)
		if err != nil {
			return err
		}
		if open != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user already has an open subscription").
				WithDetails(map[string]any{"subscriptionId": open.ID, "status": open.Status})
		}
		if err := repo.Create(ctx, sub); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "user already has an open subscription")
			}
			return err
		}
		return s.emit(ctx, tx, enums.EventSubscriptionCreated, userActor(userID), sub, "")
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID.String(),
		"user_id":         userID.String(),
		"plan_type":       string(sub.PlanType),
	})
	s.logg.Info(logCtx, "subscription created")
	return sub, nil
}

func (s *service) GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.repo.FindLatestByUser(ctx, userID)
}

func (s *service) SetBillingCustomer(ctx context.Context, userID uuid.UUID, customerID string) (*models.Subscription, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "billing customer id required")
	}
	sub, err := s.repo.FindOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if err := s.repo.SetBillingCustomer(ctx, sub.ID, customerID); err != nil {
		return nil, err
	}
	sub.AsaasCustomerID = &customerID
	return sub, nil
}

func (s *service) Cancel(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return s.cancel(ctx, sub, userActor(userID))
}

func (s *service) CancelByID(ctx context.Context, actorID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return s.cancel(ctx, sub, adminActor(actorID))
}

func (s *service) cancel(ctx context.Context, sub *models.Subscription, actor *outbox.ActorRef) (*models.Subscription, error) {
	from := sub.Status
	if !CanTransition(from, enums.SubscriptionStatusCancelled) {
		return nil, transitionError(from, enums.SubscriptionStatusCancelled)
	}
	now := s.now()
	sub.Status = enums.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	if err := s.applyTransition(ctx, sub, from, enums.EventSubscriptionCancelled, actor); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithSubscriptionID(ctx, sub.ID.String()), "subscription cancelled")
	return sub, nil
}

// Reactivate restores access after payment was confirmed out of band. The
// subscription starts a fresh period from now.
func (s *service) Reactivate(ctx context.Context, actorID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	from := sub.Status
	if !CanTransition(from, enums.SubscriptionStatusActive) {
		return nil, transitionError(from, enums.SubscriptionStatusActive)
	}
	plan, err := s.catalog.Lookup(sub.PlanType)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sub.Status = enums.SubscriptionStatusActive
	sub.StartDate = now
	sub.EndDate = now.Add(plan.Duration())
	sub.GracePeriodEndsAt = nil
	sub.BlockedAt = nil
	if err := s.applyTransition(ctx, sub, from, enums.EventSubscriptionReactivated, adminActor(actorID)); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithSubscriptionID(ctx, sub.ID.String()), "subscription reactivated")
	return sub, nil
}

func (s *service) applyTransition(ctx context.Context, sub *models.Subscription, from enums.SubscriptionStatus, eventType enums.OutboxEventType, actor *outbox.ActorRef) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).UpdateFromStatus(ctx, sub, from)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription changed concurrently")
		}
		return s.emit(ctx, tx, eventType, actor, sub, from)
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor *outbox.ActorRef, sub *models.Subscription, from enums.SubscriptionStatus) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Actor:         actor,
		OccurredAt:    s.now(),
		Data: outbox.SubscriptionEvent{
			SubscriptionID:    sub.ID,
			UserID:            sub.UserID,
			PlanType:          sub.PlanType,
			PlanValue:         sub.PlanValue,
			PreviousStatus:    from,
			Status:            sub.Status,
			EndDate:           sub.EndDate,
			GracePeriodEndsAt: sub.GracePeriodEndsAt,
			AsaasPaymentID:    sub.AsaasPaymentID,
		},
	})
}

func transitionError(from, to enums.SubscriptionStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription status does not allow this action").
		WithDetails(map[string]any{
			"from":    from,
			"to":      to,
			"allowed": ValidTransitionsFrom(from),
		})
}

func userActor(userID uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: &userID, Role: actorRoleUser}
}

func adminActor(actorID uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: &actorID, Role: actorRoleAdmin}
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
