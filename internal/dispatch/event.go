package dispatch

import (
	"encoding/json"
	"time"
)

// EventType tags a ChangeEvent.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one entity change destined for a collaborator channel. The
// key is the partition key: the product id for products and the parent
// product id for recommendations and reviews. Events are immutable.
type ChangeEvent struct {
	eventType EventType
	key       int
	data      any
	createdAt time.Time
}

// NewCreated builds a CREATE event carrying data.
func NewCreated(key int, data any) ChangeEvent {
	return ChangeEvent{eventType: EventCreate, key: key, data: data, createdAt: time.Now().UTC()}
}

// NewDeleted builds a DELETE event. Deleted events carry no payload.
func NewDeleted(key int) ChangeEvent {
	return ChangeEvent{eventType: EventDelete, key: key, createdAt: time.Now().UTC()}
}

func (e ChangeEvent) Type() EventType      { return e.eventType }
func (e ChangeEvent) Key() int             { return e.key }
func (e ChangeEvent) Data() any            { return e.data }
func (e ChangeEvent) CreatedAt() time.Time { return e.createdAt }

type envelope struct {
	EventType      EventType `json:"eventType"`
	Key            int       `json:"key"`
	Data           any       `json:"data"`
	EventCreatedAt time.Time `json:"eventCreatedAt"`
}

// MarshalJSON writes the wire envelope. data is null for DELETE events.
func (e ChangeEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{
		EventType:      e.eventType,
		Key:            e.key,
		Data:           e.data,
		EventCreatedAt: e.createdAt,
	})
}
