package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/motorhub/marketplace-backend/pkg/db"
	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
	"github.com/motorhub/marketplace-backend/pkg/logger"
	"github.com/motorhub/marketplace-backend/pkg/outbox"
)

const (
	billingNotificationConsumer = "billing-notifications"
	subscriptionLink            = "/account/subscription"
	dateLayout                  = "02/01/2006"
)

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns subscription lifecycle events into user notifications.
type Consumer struct {
	repo         creator
	subscription receiver
	idempotency  idempotencyGuard
	location     *time.Location
	logg         *logger.Logger
}

// ConsumerParams groups dependencies for the billing notification consumer.
type ConsumerParams struct {
	Repo         creator
	Subscription receiver
	Idempotency  idempotencyGuard
	Location     *time.Location
	Logger       *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("pubsub subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Consumer{
		repo:         params.Repo,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		location:     loc,
		logg:         params.Logger,
	}, nil
}

// Run receives messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	var payload outbox.SubscriptionEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}
	if payload.UserID == uuid.Nil {
		c.logg.Warn(logCtx, "event has no user")
		return processResult{ack: true}
	}
	logCtx = c.logg.WithSubscriptionID(logCtx, payload.SubscriptionID.String())

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, billingNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification := c.build(eventType, payload)
	notification.EventID = &eventID
	if err := c.repo.Create(ctx, notification); err != nil {
		if db.IsUniqueViolation(err, "") {
			c.logg.Info(logCtx, "notification already stored")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "failed to store notification", err)
		_ = c.idempotency.Delete(ctx, billingNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "user notified")
	return processResult{ack: true}
}

func (c *Consumer) build(eventType enums.OutboxEventType, payload outbox.SubscriptionEvent) *models.Notification {
	n := &models.Notification{
		UserID: payload.UserID,
		Type:   enums.NotificationTypeSubscriptionUpdate,
		Link:   stringPtr(subscriptionLink),
	}
	plan := string(payload.PlanType)

	switch eventType {
	case enums.EventSubscriptionCreated:
		n.Title = "Subscription started"
		n.Message = fmt.Sprintf("Your %s plan is active until %s.", plan, c.date(payload.EndDate))
	case enums.EventSubscriptionPendingPayment:
		n.Type = enums.NotificationTypePaymentDue
		n.Title = "Payment pending"
		n.Message = fmt.Sprintf("A PIX charge of %s was issued to renew your %s plan.", brl(payload), plan)
		if payload.GracePeriodEndsAt != nil {
			n.Message += fmt.Sprintf(" Pay by %s to keep your listings online.", c.date(*payload.GracePeriodEndsAt))
		}
	case enums.EventSubscriptionBlocked:
		n.Type = enums.NotificationTypeAccountBlocked
		n.Title = "Subscription blocked"
		n.Message = fmt.Sprintf("We did not receive the renewal payment for your %s plan. Your listings are hidden until it is paid.", plan)
	case enums.EventSubscriptionReactivated:
		n.Title = "Subscription reactivated"
		n.Message = fmt.Sprintf("Your %s plan is active again until %s.", plan, c.date(payload.EndDate))
	case enums.EventSubscriptionCancelled:
		n.Title = "Subscription cancelled"
		n.Message = fmt.Sprintf("Your %s plan was cancelled.", plan)
	}
	n.Message = strings.TrimSpace(n.Message)
	return n
}

func (c *Consumer) date(t time.Time) string {
	return t.In(c.location).Format(dateLayout)
}

func brl(payload outbox.SubscriptionEvent) string {
	return "R$ " + strings.Replace(payload.PlanValue.StringFixed(2), ".", ",", 1)
}

func stringPtr(value string) *string {
	return &value
}
