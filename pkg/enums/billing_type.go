package enums

// BillingType is the payment method requested from the provider.
type BillingType string

const (
	BillingTypePix        BillingType = "PIX"
	BillingTypeBoleto     BillingType = "BOLETO"
	BillingTypeCreditCard BillingType = "CREDIT_CARD"
)

func (b BillingType) String() string {
	return string(b)
}
