package plans

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/motorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/motorhub/marketplace-backend/pkg/errors"
)

// Period is the length of one paid cycle for every plan.
const Period = 30 * 24 * time.Hour

// Plan describes a recurring tier offered to dealerships and agencies.
type Plan struct {
	Type        enums.PlanType  `json:"type"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	PeriodDays  int             `json:"periodDays"`
	MaxListings int             `json:"maxListings"`
	Featured    int             `json:"featuredListings"`
}

// Catalog is a read-only lookup over the offered plans.
type Catalog struct {
	plans map[enums.PlanType]Plan
}

// Default returns the catalog shipped with the marketplace. MaxListings of 0 means unlimited.
func Default() *Catalog {
	return NewCatalog([]Plan{
		{Type: enums.PlanTypeBasic, Name: "Básico", Price: decimal.RequireFromString("49.90"), MaxListings: 5},
		{Type: enums.PlanTypeProfessional, Name: "Profissional", Price: decimal.RequireFromString("99.90"), MaxListings: 20, Featured: 2},
		{Type: enums.PlanTypeEnterprise, Name: "Empresarial", Price: decimal.RequireFromString("199.90"), MaxListings: 50, Featured: 5},
		{Type: enums.PlanTypeUnlimited, Name: "Ilimitado", Price: decimal.RequireFromString("399.90"), Featured: 10},
	})
}

func NewCatalog(items []Plan) *Catalog {
	plans := make(map[enums.PlanType]Plan, len(items))
	for _, p := range items {
		if p.Currency == "" {
			p.Currency = "BRL"
		}
		if p.PeriodDays == 0 {
			p.PeriodDays = int(Period / (24 * time.Hour))
		}
		plans[p.Type] = p
	}
	return &Catalog{plans: plans}
}

// Lookup returns the plan for t or a validation error.
func (c *Catalog) Lookup(t enums.PlanType) (Plan, error) {
	plan, ok := c.plans[t]
	if !ok {
		return Plan{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown plan type").WithDetails(map[string]any{"planType": string(t)})
	}
	return plan, nil
}

// List returns every plan ordered by price.
func (c *Catalog) List() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// Duration is the paid cycle length of a plan.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.PeriodDays) * 24 * time.Hour
}
