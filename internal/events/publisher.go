// Package events forwards navigation events to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dpup/trailguide/server/internal/lib/geo"
	"github.com/dpup/trailguide/server/internal/lib/navigation"
)

// Publisher delivers the events produced by one location update
type Publisher interface {
	Publish(ctx context.Context, sessionID string, location geo.Point, events []navigation.Event) error
	Close() error
}

// Message is the wire form of a single navigation event
type Message struct {
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Location  messageLocation `json:"location"`
	Event     json.RawMessage `json:"event"`
	Timestamp int64           `json:"timestamp"`
}

type messageLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Encode renders each event as a JSON message body
func Encode(sessionID string, location geo.Point, events []navigation.Event, at time.Time) ([][]byte, error) {
	bodies := make([][]byte, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal %s event: %w", ev.Type(), err)
		}
		body, err := json.Marshal(Message{
			SessionID: sessionID,
			Type:      string(ev.Type()),
			Location:  messageLocation{Latitude: location.Latitude, Longitude: location.Longitude},
			Event:     payload,
			Timestamp: at.Unix(),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal message: %w", err)
		}
		bodies = append(bodies, body)
	}
	return bodies, nil
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, string, geo.Point, []navigation.Event) error { return nil }
func (Nop) Close() error                                                         { return nil }
