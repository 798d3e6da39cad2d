package asaas

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/motorhub/marketplace-backend/pkg/enums"
)

// ChargeRequest is what callers supply; billing type, due date and payout key
// are filled in by the client.
type ChargeRequest struct {
	Customer          string
	Value             decimal.Decimal
	Description       string
	ExternalReference string
}

type createPaymentBody struct {
	Customer          string            `json:"customer"`
	BillingType       enums.BillingType `json:"billingType"`
	Value             json.Number       `json:"value"`
	DueDate           string            `json:"dueDate"`
	Description       string            `json:"description"`
	ExternalReference string            `json:"externalReference"`
	PixAddressKey     string            `json:"pixAddressKey,omitempty"`
}

// Payment mirrors the subset of the provider's payment object we rely on.
type Payment struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	BillingType       enums.BillingType `json:"billingType"`
	Value             decimal.Decimal   `json:"value"`
	DueDate           string            `json:"dueDate"`
	Description       string            `json:"description"`
	ExternalReference string            `json:"externalReference"`
	InvoiceURL        string            `json:"invoiceUrl"`
	Deleted           bool              `json:"deleted"`
}

// ChargeStatus maps the provider's payment status onto the local charge status.
func (p Payment) ChargeStatus() enums.ChargeStatus {
	switch strings.ToUpper(p.Status) {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return enums.ChargeStatusConfirmed
	case "OVERDUE":
		return enums.ChargeStatusOverdue
	case "REFUNDED", "REFUND_REQUESTED", "CHARGEBACK_REQUESTED":
		return enums.ChargeStatusCancelled
	default:
		return enums.ChargeStatusPending
	}
}

type paymentList struct {
	Data       []Payment `json:"data"`
	HasMore    bool      `json:"hasMore"`
	TotalCount int       `json:"totalCount"`
}

type errorBody struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}
