package subscriptions

import (
	"net/http"

	"github.com/motorhub/marketplace-backend/api/responses"
	subsvc "github.com/motorhub/marketplace-backend/internal/subscriptions"
	pkgerrors "github.com/motorhub/marketplace-backend/pkg/errors"
	"github.com/motorhub/marketplace-backend/pkg/logger"
)

// AdminReactivate restores a blocked or pending subscription once payment was
// confirmed outside the automated flow.
func AdminReactivate(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		actorID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		subscriptionID, err := subscriptionIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.Reactivate(ctx, actorID, subscriptionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, subsvc.ToDTO(sub))
	}
}

func AdminCancel(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		actorID, err := resolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		subscriptionID, err := subscriptionIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sub, err := svc.CancelByID(ctx, actorID, subscriptionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, subsvc.ToDTO(sub))
	}
}
