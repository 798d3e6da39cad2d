package subscriptions

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/motorhub/marketplace-backend/pkg/asaas"
	"github.com/motorhub/marketplace-backend/pkg/config"
	"github.com/motorhub/marketplace-backend/pkg/db"
	"github.com/motorhub/marketplace-backend/pkg/logger"
	"github.com/motorhub/marketplace-backend/pkg/metrics"
	"github.com/motorhub/marketplace-backend/pkg/outbox"
	pkgredis "github.com/motorhub/marketplace-backend/pkg/redis"
)

// NewEngineFromConfig wires the lifecycle engine the same way for the HTTP
// trigger and the cron worker.
func NewEngineFromConfig(cfg *config.Config, dbClient *db.Client, redisClient *pkgredis.Client, reg prometheus.Registerer, logg *logger.Logger) (*Engine, error) {
	loc, err := cfg.Billing.Location()
	if err != nil {
		return nil, err
	}
	gateway, err := asaas.NewClient(cfg.Asaas.APIURL, cfg.Asaas.APIKey,
		asaas.WithPixKey(cfg.Asaas.PixKey),
		asaas.WithLocation(loc),
		asaas.WithHTTPClient(&http.Client{Timeout: cfg.Asaas.Timeout}),
		asaas.WithLogger(logg),
	)
	if err != nil {
		return nil, fmt.Errorf("asaas client: %w", err)
	}
	claimer, err := NewRedisClaimer(redisClient, cfg.Billing.ClaimTTL, logg)
	if err != nil {
		return nil, err
	}
	return NewEngine(EngineParams{
		Repo:        NewRepository(dbClient.DB()),
		TxRunner:    dbClient,
		Outbox:      outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Gateway:     gateway,
		Claimer:     claimer,
		Metrics:     metrics.NewLifecycleMetrics(reg),
		Logger:      logg,
		GracePeriod: cfg.Billing.GracePeriod(),
		Location:    loc,
		Runs:        redisClient,
	})
}
