package enums

import (
	"fmt"
	"strings"
)

// PlanType names a marketplace plan tier.
type PlanType string

const (
	PlanTypeBasic        PlanType = "basic"
	PlanTypeProfessional PlanType = "professional"
	PlanTypeEnterprise   PlanType = "enterprise"
	PlanTypeUnlimited    PlanType = "unlimited"
)

var validPlanTypes = []PlanType{
	PlanTypeBasic,
	PlanTypeProfessional,
	PlanTypeEnterprise,
	PlanTypeUnlimited,
}

func (p PlanType) String() string {
	return string(p)
}

// Label is the uppercase form used in charge descriptions.
func (p PlanType) Label() string {
	return strings.ToUpper(string(p))
}

func (p PlanType) IsValid() bool {
	for _, candidate := range validPlanTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanType accepts any casing ("PROFESSIONAL", "professional").
func ParsePlanType(value string) (PlanType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPlanTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan type %q", value)
}
