package types

// SuccessEnvelope wraps every successful response body under "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorEnvelope wraps every error response body under "error".
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// APIError is the wire shape of a failed request: a stable machine
// code, a human message, and optional structured details.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
