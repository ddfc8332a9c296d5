// Package types holds the JSON envelopes shared by every API response.
package types

// RequestIDHeader carries the per-request correlation id on both directions.
const RequestIDHeader = "X-Request-Id"

// SuccessEnvelope wraps a single resource.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// PageEnvelope wraps one cursor page; NextCursor is empty on the last page.
type PageEnvelope struct {
	Data       any    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// APIError is the public face of a failure. RequestID lets support find the
// matching log lines.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
