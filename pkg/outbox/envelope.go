package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// ActorRef names the staff member whose action produced the event.
type ActorRef struct {
	UserID uuid.UUID       `json:"userId"`
	Role   enums.ActorRole `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and forwarded
// verbatim as the Pub/Sub message body. Consumers switch on Version before
// decoding Data into the matching payloads type.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeData unmarshals the envelope's data into dst.
func (e PayloadEnvelope) DecodeData(dst any) error {
	return json.Unmarshal(e.Data, dst)
}
