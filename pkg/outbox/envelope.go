package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// ErrEmptyPayload is returned when a stored envelope carries no data.
var ErrEmptyPayload = errors.New("envelope has no data")

// Envelope is the JSON document stored in outbox_events.payload and published
// verbatim. EventID is what downstream consumers deduplicate on.
type Envelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"eventId"`
	EventType  enums.OutboxEventType `json:"eventType,omitempty"`
	TenantID   uuid.UUID             `json:"tenantId"`
	OccurredAt time.Time             `json:"occurredAt"`
	Data       json.RawMessage       `json:"data"`
}

func encodeEnvelope(event DomainEvent) (Envelope, []byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	env := Envelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		EventType:  event.EventType,
		TenantID:   event.TenantID,
		OccurredAt: event.OccurredAt,
		Data:       data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("encode envelope: %w", err)
	}
	return env, raw, nil
}

// DecodeEnvelope parses a stored payload. A missing or null data field is
// reported as ErrEmptyPayload.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Envelope{}, ErrEmptyPayload
	}
	return env, nil
}
