package invalidation

import (
	"time"

	"github.com/google/uuid"
)

// Event tells cache instances to drop one flag, or every flag when All is set.
type Event struct {
	ID     string    `json:"id"`
	Origin string    `json:"origin"`
	Key    string    `json:"key,omitempty"`
	All    bool      `json:"all,omitempty"`
	At     time.Time `json:"at"`
}

// NewEvent returns an event invalidating key, published by origin.
func NewEvent(origin, key string) Event {
	return Event{ID: uuid.NewString(), Origin: origin, Key: key, At: time.Now().UTC()}
}

// NewResetEvent returns an event invalidating every flag.
func NewResetEvent(origin string) Event {
	return Event{ID: uuid.NewString(), Origin: origin, All: true, At: time.Now().UTC()}
}

// NewInstanceID returns a random identifier for a process.
// Receivers compare it with Event.Origin to skip their own events.
func NewInstanceID() string {
	return uuid.NewString()
}

// Validate reports whether the event can be applied.
func (e Event) Validate() error {
	if !e.All && e.Key == "" {
		return ErrInvalidEvent
	}
	return nil
}
