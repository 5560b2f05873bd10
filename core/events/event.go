package events

// Event represents a structured state change emitted by the router.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. the service
// surface, audit sinks).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines whose caller did not wire a subscriber.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
