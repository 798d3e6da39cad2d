package types

// SuccessEnvelope wraps every successful JSON body served by the API.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// TriggerError is the flat error body returned by the lifecycle trigger endpoint,
// which scheduler clients parse without the envelope.
type TriggerError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
