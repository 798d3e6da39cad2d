package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/motorhub/marketplace-backend/pkg/asaas"
	"github.com/motorhub/marketplace-backend/pkg/db/models"
	"github.com/motorhub/marketplace-backend/pkg/enums"
	"github.com/motorhub/marketplace-backend/pkg/logger"
	"github.com/motorhub/marketplace-backend/pkg/metrics"
	"github.com/motorhub/marketplace-backend/pkg/outbox"
)

// Per-item failure steps reported in a run.
const (
	StepMissingCustomer = "missing_customer"
	StepGateway         = "gateway"
	StepPersist         = "persist"
	StepClaim           = "claim"
	StepLookup          = "lookup"
)

// Trigger names the caller of a lifecycle run.
type Trigger string

const (
	TriggerHTTP Trigger = "http"
	TriggerCron Trigger = "cron"
)

// Gateway is the part of the payment provider the lifecycle needs.
type Gateway interface {
	CreateCharge(ctx context.Context, req asaas.ChargeRequest) (*asaas.Payment, error)
	FindByExternalReference(ctx context.Context, ref string) (*asaas.Payment, error)
	GetPayment(ctx context.Context, id string) (*asaas.Payment, error)
}

// RunRecorder remembers when the last lifecycle run finished.
type RunRecorder interface {
	RecordLastRun(ctx context.Context, at time.Time) error
	LastRun(ctx context.Context) (*time.Time, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EngineParams groups dependencies for the lifecycle engine.
type EngineParams struct {
	Repo        Repository
	TxRunner    txRunner
	Outbox      *outbox.Service
	Gateway     Gateway
	Claimer     Claimer
	Metrics     *metrics.LifecycleMetrics
	Logger      *logger.Logger
	GracePeriod time.Duration
	Location    *time.Location
	Runs        RunRecorder
}

// Engine applies the renewal and blocking policy to due subscriptions.
type Engine struct {
	repo    Repository
	tx      txRunner
	outbox  *outbox.Service
	gateway Gateway
	claimer Claimer
	metrics *metrics.LifecycleMetrics
	logg    *logger.Logger
	grace   time.Duration
	loc     *time.Location
	runs    RunRecorder
}

// NewEngine validates params and builds the engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("billing gateway required")
	}
	if params.Claimer == nil {
		return nil, fmt.Errorf("claimer required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.GracePeriod < 0 {
		return nil, fmt.Errorf("grace period must not be negative")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		repo:    params.Repo,
		tx:      params.TxRunner,
		outbox:  params.Outbox,
		gateway: params.Gateway,
		claimer: params.Claimer,
		metrics: params.Metrics,
		logg:    params.Logger,
		grace:   params.GracePeriod,
		loc:     loc,
		runs:    params.Runs,
	}, nil
}

// CollectExpired lists active subscriptions whose paid period has lapsed.
func (e *Engine) CollectExpired(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	return e.repo.ListExpired(ctx, now)
}

// CollectBlockable lists pending_payment subscriptions past their grace period.
func (e *Engine) CollectBlockable(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	return e.repo.ListBlockable(ctx, now)
}

// Run bills every expired subscription and then blocks every overdue one.
// Item failures land in the report; only failing to list candidates aborts.
func (e *Engine) Run(ctx context.Context, now time.Time, trigger Trigger) (*Report, error) {
	logCtx := e.logg.WithFields(ctx, map[string]any{
		"event":   "autobilling.run",
		"trigger": string(trigger),
	})
	e.metrics.IncRun(string(trigger))

	report := &Report{Errors: []ItemError{}}

	// Both lists are taken before any transition: a row billed in this run
	// cannot show up as blockable, whatever the grace period.
	expired, err := e.CollectExpired(logCtx, now)
	if err != nil {
		return nil, fmt.Errorf("collect expired subscriptions: %w", err)
	}
	blockable, err := e.CollectBlockable(logCtx, now)
	if err != nil {
		return nil, fmt.Errorf("collect blockable subscriptions: %w", err)
	}

	report.TotalExpired = len(expired)
	for i := range expired {
		done, itemErr := e.RenewAndBill(logCtx, expired[i], now)
		if itemErr != nil {
			report.addError(*itemErr)
			e.metrics.IncItemError(itemErr.Step)
			continue
		}
		if done {
			report.ProcessedExpired++
		}
	}

	report.TotalBlocked = len(blockable)
	for i := range blockable {
		done, itemErr := e.BlockOverdue(logCtx, blockable[i], now)
		if itemErr != nil {
			report.addError(*itemErr)
			e.metrics.IncItemError(itemErr.Step)
			continue
		}
		if done {
			report.ProcessedBlocked++
		}
	}

	if e.runs != nil {
		if err := e.runs.RecordLastRun(logCtx, now); err != nil {
			e.logg.Warn(e.logg.WithField(logCtx, "error", err.Error()), "failed to record last run")
		}
	}

	e.logg.Info(e.logg.WithFields(logCtx, map[string]any{
		"total_expired":     report.TotalExpired,
		"processed_expired": report.ProcessedExpired,
		"total_blocked":     report.TotalBlocked,
		"processed_blocked": report.ProcessedBlocked,
		"errors":            len(report.Errors),
	}), "autobilling run complete")
	return report, nil
}

// RenewAndBill issues the renewal charge for sub and moves it to
// pending_payment. It reports false without an error when the row was
// already handled by someone else.
func (e *Engine) RenewAndBill(ctx context.Context, sub models.Subscription, now time.Time) (bool, *ItemError) {
	logCtx := e.logg.WithSubscriptionID(ctx, sub.ID.String())
	if !sub.HasBillingCustomer() {
		e.logg.Warn(logCtx, "subscription has no billing customer; skipping")
		return false, newItemError(sub.ID, StepMissingCustomer, "subscription has no billing customer")
	}

	release, err := e.claimer.Claim(logCtx, sub.ID)
	if err != nil {
		return false, e.claimFailure(logCtx, sub.ID, err)
	}
	defer release()

	fresh, err := e.repo.FindByID(logCtx, sub.ID)
	if err != nil {
		e.logg.Error(logCtx, "failed to reload subscription", err)
		return false, newItemError(sub.ID, StepLookup, err.Error())
	}
	if fresh == nil || !IsExpired(*fresh, now) {
		e.logg.Info(logCtx, "subscription no longer due; skipping")
		return false, nil
	}
	if !fresh.HasBillingCustomer() {
		return false, newItemError(sub.ID, StepMissingCustomer, "subscription has no billing customer")
	}
	if !CanTransition(fresh.Status, enums.SubscriptionStatusPendingPayment) {
		return false, nil
	}

	ref := ExternalReference(*fresh, e.loc)
	logCtx = e.logg.WithField(logCtx, "external_reference", ref)

	existing, err := e.repo.FindChargeByReference(logCtx, ref)
	if err != nil {
		e.logg.Error(logCtx, "failed to look up local charge", err)
		return false, newItemError(sub.ID, StepLookup, err.Error())
	}

	var charge *models.Charge
	replaced := false
	if existing != nil {
		live, itemErr := e.checkRecordedCharge(logCtx, *fresh, *existing)
		if itemErr != nil {
			return false, itemErr
		}
		charge = existing
		if live {
			e.logg.Info(logCtx, "reusing recorded charge for billing period")
		} else {
			replacement, itemErr := e.replacePayment(logCtx, *fresh, ref, existing.AsaasPaymentID, now)
			if itemErr != nil {
				return false, itemErr
			}
			e.logg.Info(e.logg.WithFields(logCtx, map[string]any{
				"stale_payment_id": existing.AsaasPaymentID,
				"asaas_payment_id": replacement.ID,
			}), "recorded charge is gone at the gateway; replaced")
			charge.AsaasPaymentID = replacement.ID
			charge.Status = replacement.ChargeStatus()
			if replacement.DueDate != "" {
				charge.DueDate = replacement.DueDate
			}
			replaced = true
		}
	} else {
		payment, itemErr := e.obtainPayment(logCtx, *fresh, ref, now)
		if itemErr != nil {
			return false, itemErr
		}
		charge = &models.Charge{
			ID:                uuid.New(),
			SubscriptionID:    fresh.ID,
			AsaasCustomerID:   *fresh.AsaasCustomerID,
			AsaasPaymentID:    payment.ID,
			ExternalReference: ref,
			BillingPeriod:     fresh.EndDate,
			Amount:            fresh.PlanValue,
			BillingType:       enums.BillingTypePix,
			DueDate:           payment.DueDate,
			Description:       payment.Description,
			Status:            payment.ChargeStatus(),
			CreatedAt:         now,
		}
		if charge.DueDate == "" {
			charge.DueDate = now.In(e.loc).Format("2006-01-02")
		}
		if charge.Description == "" {
			charge.Description = ChargeDescription(fresh.PlanType, now, e.loc)
		}
	}

	graceEnds := now.Add(e.grace)
	moved := false
	err = e.tx.WithTx(logCtx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		if existing == nil {
			if err := repo.CreateCharge(logCtx, charge); err != nil {
				return fmt.Errorf("record charge: %w", err)
			}
		}
		if replaced {
			if err := repo.ReplaceChargePayment(logCtx, charge.ID, charge.AsaasPaymentID, charge.Status, charge.DueDate); err != nil {
				return fmt.Errorf("replace charge payment: %w", err)
			}
		}
		ok, err := repo.MarkPendingPayment(logCtx, fresh.ID, fresh.EndDate, charge.AsaasPaymentID, graceEnds)
		if err != nil {
			return fmt.Errorf("mark pending payment: %w", err)
		}
		if !ok {
			return nil
		}
		moved = true
		paymentID := charge.AsaasPaymentID
		return e.outbox.Emit(logCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionPendingPayment,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   fresh.ID,
			Actor:         outbox.SystemActor,
			OccurredAt:    now,
			Data: outbox.SubscriptionEvent{
				SubscriptionID:    fresh.ID,
				UserID:            fresh.UserID,
				PlanType:          fresh.PlanType,
				PlanValue:         fresh.PlanValue,
				PreviousStatus:    fresh.Status,
				Status:            enums.SubscriptionStatusPendingPayment,
				EndDate:           fresh.EndDate,
				GracePeriodEndsAt: &graceEnds,
				AsaasPaymentID:    &paymentID,
				ExternalReference: ref,
			},
		})
	})
	if err != nil {
		e.logg.Error(e.logg.WithField(logCtx, "asaas_payment_id", charge.AsaasPaymentID), "failed to persist renewal charge", err)
		return false, newItemError(sub.ID, StepPersist, err.Error())
	}
	if !moved {
		e.logg.Info(logCtx, "subscription changed while billing; charge recorded without transition")
		return false, nil
	}
	e.logg.Info(e.logg.WithField(logCtx, "asaas_payment_id", charge.AsaasPaymentID), "subscription moved to pending payment")
	return true, nil
}

// obtainPayment returns the provider payment for ref, creating it only when
// the provider does not already know the reference.
func (e *Engine) obtainPayment(ctx context.Context, sub models.Subscription, ref string, now time.Time) (*asaas.Payment, *ItemError) {
	found, err := e.gateway.FindByExternalReference(ctx, ref)
	if err != nil {
		e.logg.Error(ctx, "failed to query gateway for existing charge", err)
		return nil, newItemError(sub.ID, StepGateway, err.Error())
	}
	if found != nil {
		e.logg.Info(e.logg.WithField(ctx, "asaas_payment_id", found.ID), "gateway already holds charge for billing period")
		return found, nil
	}
	return e.createPayment(ctx, sub, ref, now)
}

func (e *Engine) createPayment(ctx context.Context, sub models.Subscription, ref string, now time.Time) (*asaas.Payment, *ItemError) {
	payment, err := e.gateway.CreateCharge(ctx, asaas.ChargeRequest{
		Customer:          *sub.AsaasCustomerID,
		Value:             sub.PlanValue,
		Description:       ChargeDescription(sub.PlanType, now, e.loc),
		ExternalReference: ref,
	})
	if err != nil {
		msg := "failed to create charge"
		if errors.Is(err, asaas.ErrChargeRejected) {
			msg = "gateway rejected charge"
		}
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), msg)
		return nil, newItemError(sub.ID, StepGateway, err.Error())
	}
	if payment == nil || payment.ID == "" {
		return nil, newItemError(sub.ID, StepGateway, "gateway returned no charge")
	}
	e.metrics.IncChargeCreated()
	return payment, nil
}

// checkRecordedCharge asks the gateway whether a locally recorded charge can
// still be collected. Deleted, unknown and refunded payments are not live.
func (e *Engine) checkRecordedCharge(ctx context.Context, sub models.Subscription, charge models.Charge) (bool, *ItemError) {
	payment, err := e.gateway.GetPayment(ctx, charge.AsaasPaymentID)
	switch {
	case errors.Is(err, asaas.ErrPaymentNotFound):
		return false, nil
	case err != nil:
		e.logg.Error(e.logg.WithField(ctx, "asaas_payment_id", charge.AsaasPaymentID), "failed to verify recorded charge", err)
		return false, newItemError(sub.ID, StepGateway, err.Error())
	case payment == nil || payment.Deleted || payment.ChargeStatus() == enums.ChargeStatusCancelled:
		return false, nil
	}
	return true, nil
}

// replacePayment finds or creates a live payment for ref other than stale.
func (e *Engine) replacePayment(ctx context.Context, sub models.Subscription, ref, stale string, now time.Time) (*asaas.Payment, *ItemError) {
	found, err := e.gateway.FindByExternalReference(ctx, ref)
	if err != nil {
		e.logg.Error(ctx, "failed to query gateway for existing charge", err)
		return nil, newItemError(sub.ID, StepGateway, err.Error())
	}
	if found != nil && found.ID != stale && found.ChargeStatus() != enums.ChargeStatusCancelled {
		return found, nil
	}
	return e.createPayment(ctx, sub, ref, now)
}

// BlockOverdue blocks sub once its grace period is over. Rows that already
// left pending_payment are left untouched.
func (e *Engine) BlockOverdue(ctx context.Context, sub models.Subscription, now time.Time) (bool, *ItemError) {
	logCtx := e.logg.WithSubscriptionID(ctx, sub.ID.String())

	release, err := e.claimer.Claim(logCtx, sub.ID)
	if err != nil {
		return false, e.claimFailure(logCtx, sub.ID, err)
	}
	defer release()

	fresh, err := e.repo.FindByID(logCtx, sub.ID)
	if err != nil {
		e.logg.Error(logCtx, "failed to reload subscription", err)
		return false, newItemError(sub.ID, StepLookup, err.Error())
	}
	if fresh == nil || !IsBlockable(*fresh, now) || !CanTransition(fresh.Status, enums.SubscriptionStatusBlocked) {
		e.logg.Info(logCtx, "subscription no longer blockable; skipping")
		return false, nil
	}

	moved := false
	err = e.tx.WithTx(logCtx, func(tx *gorm.DB) error {
		ok, err := e.repo.WithTx(tx).MarkBlocked(logCtx, fresh.ID, now)
		if err != nil {
			return fmt.Errorf("mark blocked: %w", err)
		}
		if !ok {
			return nil
		}
		moved = true
		return e.outbox.Emit(logCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionBlocked,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   fresh.ID,
			Actor:         outbox.SystemActor,
			OccurredAt:    now,
			Data: outbox.SubscriptionEvent{
				SubscriptionID:    fresh.ID,
				UserID:            fresh.UserID,
				PlanType:          fresh.PlanType,
				PlanValue:         fresh.PlanValue,
				PreviousStatus:    fresh.Status,
				Status:            enums.SubscriptionStatusBlocked,
				EndDate:           fresh.EndDate,
				GracePeriodEndsAt: fresh.GracePeriodEndsAt,
				AsaasPaymentID:    fresh.AsaasPaymentID,
			},
		})
	})
	if err != nil {
		e.logg.Error(logCtx, "failed to block subscription", err)
		return false, newItemError(sub.ID, StepPersist, err.Error())
	}
	if !moved {
		return false, nil
	}
	e.metrics.IncBlocked()
	e.logg.Info(logCtx, "subscription blocked after grace period")
	return true, nil
}

// Status reports what the next run would touch without changing anything.
func (e *Engine) Status(ctx context.Context, now time.Time) (*StatusReport, error) {
	expired, err := e.CollectExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("collect expired subscriptions: %w", err)
	}
	blockable, err := e.CollectBlockable(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("collect blockable subscriptions: %w", err)
	}
	report := &StatusReport{
		Status: "ok",
		Statistics: StatusStatistics{
			ExpiredSubscriptions:   len(expired),
			BlockableSubscriptions: len(blockable),
			LastCheck:              now,
		},
		Expired:   summarize(expired),
		Blockable: summarize(blockable),
	}
	if e.runs != nil {
		last, err := e.runs.LastRun(ctx)
		if err != nil {
			e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "failed to read last run")
		} else {
			report.Statistics.LastRun = last
		}
	}
	return report, nil
}

func (e *Engine) claimFailure(ctx context.Context, id uuid.UUID, err error) *ItemError {
	if errors.Is(err, ErrClaimBusy) {
		e.logg.Warn(ctx, "subscription claimed by another run; skipping")
		return newItemError(id, StepClaim, err.Error())
	}
	e.logg.Error(ctx, "failed to claim subscription", err)
	return newItemError(id, StepClaim, err.Error())
}
