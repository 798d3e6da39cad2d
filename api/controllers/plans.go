package controllers

import (
	"net/http"

	"github.com/motorhub/marketplace-backend/api/responses"
	"github.com/motorhub/marketplace-backend/internal/plans"
)

type planResponse struct {
	Type             string `json:"type"`
	Name             string `json:"name"`
	Price            string `json:"price"`
	PriceCents       int64  `json:"priceCents"`
	Currency         string `json:"currency"`
	PeriodDays       int    `json:"periodDays"`
	MaxListings      int    `json:"maxListings"`
	FeaturedListings int    `json:"featuredListings"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

// PlansList serves the public plan catalog.
func PlansList(catalog *plans.Catalog) http.HandlerFunc {
	if catalog == nil {
		catalog = plans.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		list := catalog.List()
		out := make([]planResponse, 0, len(list))
		for _, p := range list {
			out = append(out, planResponse{
				Type:             string(p.Type),
				Name:             p.Name,
				Price:            p.Price.StringFixed(2),
				PriceCents:       p.Price.Shift(2).IntPart(),
				Currency:         p.Currency,
				PeriodDays:       p.PeriodDays,
				MaxListings:      p.MaxListings,
				FeaturedListings: p.Featured,
			})
		}
		responses.WriteSuccess(w, planListResponse{Plans: out})
	}
}
