package enums

import "slices"

// OutboxDLQErrorReason records why an outbox row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonNoRoute      OutboxDLQErrorReason = "no_route"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonNoRoute,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	return slices.Contains(validOutboxDLQErrorReasons, r)
}

// Requeueable reports whether replaying the row can succeed without a code or
// config change. Undecodable payloads never will.
func (r OutboxDLQErrorReason) Requeueable() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNoRoute
}
