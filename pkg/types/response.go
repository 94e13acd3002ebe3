package types

// SuccessEnvelope wraps every successful API payload under a data key so
// list and object responses share one shape.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body; Details is only populated for codes
// whose metadata allows exposing field-level information.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
