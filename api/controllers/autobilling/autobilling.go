package autobilling

import (
	"context"
	"net/http"
	"time"

	"github.com/motorhub/marketplace-backend/api/responses"
	subsvc "github.com/motorhub/marketplace-backend/internal/subscriptions"
	"github.com/motorhub/marketplace-backend/pkg/logger"
)

const completedMessage = "Auto-billing process completed"

// Engine is the lifecycle surface the trigger endpoint drives.
type Engine interface {
	Run(ctx context.Context, now time.Time, trigger subsvc.Trigger) (*subsvc.Report, error)
	Status(ctx context.Context, now time.Time) (*subsvc.StatusReport, error)
}

type runResponse struct {
	Message string         `json:"message"`
	Results *subsvc.Report `json:"results"`
}

// Run executes one lifecycle pass. Per-item failures are reported in the body
// with a 200; only a failure of the run itself is a 500.
func Run(engine Engine, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if engine == nil {
			responses.WriteTriggerError(w, http.StatusInternalServerError, "Internal server error", "lifecycle engine unavailable")
			return
		}

		report, err := engine.Run(ctx, now(), subsvc.TriggerHTTP)
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "autobilling.run_failed", err)
			}
			responses.WriteTriggerError(w, http.StatusInternalServerError, "Internal server error", err.Error())
			return
		}

		responses.WriteJSON(w, http.StatusOK, runResponse{Message: completedMessage, Results: report})
	}
}

// Status reports the subscriptions the next run would process.
func Status(engine Engine, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if engine == nil {
			responses.WriteTriggerError(w, http.StatusInternalServerError, "Internal server error", "lifecycle engine unavailable")
			return
		}

		report, err := engine.Status(ctx, now())
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "autobilling.status_failed", err)
			}
			responses.WriteTriggerError(w, http.StatusInternalServerError, "Internal server error", err.Error())
			return
		}

		responses.WriteJSON(w, http.StatusOK, report)
	}
}
