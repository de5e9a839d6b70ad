package service

import (
	"context"
	"log"

	"bapmate/internal/queue"
)

// RoomSignaler tells live room sessions that a room view changed.
type RoomSignaler interface {
	SignalRoom(ctx context.Context, roomID, topic string) error
}

// publishEvent adds a committed change to the events stream. The write it
// describes is already durable, so a failure is only logged.
func publishEvent(ctx context.Context, publisher queue.Publisher, component string, event queue.Event) {
	if publisher == nil {
		return
	}
	msgID, err := publisher.Publish(ctx, queue.StreamEvents, event)
	if err != nil {
		log.Printf("[%s] Failed to publish %s event: %v", component, event.Type, err)
		return
	}
	log.Printf("[%s] Published %s: msgID=%s", component, event.Type, msgID)
}

func signalRoom(ctx context.Context, signaler RoomSignaler, component, roomID, topic string) {
	if signaler == nil {
		return
	}
	if err := signaler.SignalRoom(ctx, roomID, topic); err != nil {
		log.Printf("[%s] Failed to signal room=%s topic=%s: %v", component, roomID, topic, err)
	}
}
