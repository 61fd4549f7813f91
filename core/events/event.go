package events

// Event is a structured state change emitted by the ledger services.
type Event interface {
	EventType() string
}

// Emitter forwards events to downstream consumers such as the log or a test
// recorder.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}
