package notify

import "context"

// Broadcaster pushes a message to every connected staff client.
type Broadcaster interface {
	Publish(ctx context.Context, msg []byte) error
}

// HubSink forwards events to the live dashboard feed.
type HubSink struct {
	hub Broadcaster
}

func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "websocket" }

func (s *HubSink) Send(ctx context.Context, event Event, p Payload) error {
	body, err := Envelope(event, p)
	if err != nil {
		return err
	}
	return s.hub.Publish(ctx, body)
}
