package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/motorhub/marketplace-backend/internal/subscriptions"
	"github.com/motorhub/marketplace-backend/pkg/logger"
)

type lifecycleRunner interface {
	Run(ctx context.Context, now time.Time, trigger subscriptions.Trigger) (*subscriptions.Report, error)
}

// AutoBillingJobParams configures the daily subscription lifecycle job.
type AutoBillingJobParams struct {
	Logger *logger.Logger
	Engine lifecycleRunner
	Now    func() time.Time
}

// NewAutoBillingJob builds the job that renews and blocks subscriptions.
func NewAutoBillingJob(params AutoBillingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("lifecycle engine required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &autoBillingJob{logg: params.Logger, engine: params.Engine, now: now}, nil
}

type autoBillingJob struct {
	logg   *logger.Logger
	engine lifecycleRunner
	now    func() time.Time
}

func (j *autoBillingJob) Name() string { return "subscription-autobilling" }

// Run fails the cycle when an item failed for a reason a later run can clear.
// Subscriptions without a billing customer need manual setup; they are logged
// and left to the item error counter instead of failing every cycle.
func (j *autoBillingJob) Run(ctx context.Context) error {
	report, err := j.engine.Run(ctx, j.now(), subscriptions.TriggerCron)
	if err != nil {
		return fmt.Errorf("autobilling run: %w", err)
	}
	var errs error
	missingCustomer := 0
	for _, itemErr := range report.Errors {
		if itemErr.Step == subscriptions.StepMissingCustomer {
			missingCustomer++
			continue
		}
		errs = multierr.Append(errs, itemErr)
	}
	if missingCustomer > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "count", missingCustomer), "subscriptions awaiting billing customer")
	}
	return errs
}
