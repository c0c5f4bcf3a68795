package bridge

// Event is anything a broker callback hands to the Dispatcher.
type Event interface {
	source() string
}

type Connected struct {
	Source string
}

type Disconnected struct {
	Source string
	Err    error
}

// TelemetryReceived carries a raw device measurement from the local broker.
type TelemetryReceived struct {
	Source  string
	Topic   string
	Payload []byte
}

// CommandReceived carries a device command from the cloud broker.
type CommandReceived struct {
	Source  string
	Topic   string
	Payload []byte
}

func (e Connected) source() string         { return e.Source }
func (e Disconnected) source() string      { return e.Source }
func (e TelemetryReceived) source() string { return e.Source }
func (e CommandReceived) source() string   { return e.Source }

// TelemetryEvent converts a message from a telemetry subscription.
func TelemetryEvent(source, topic string, payload []byte) Event {
	return TelemetryReceived{Source: source, Topic: topic, Payload: payload}
}

// CommandEvent converts a message from a command subscription.
func CommandEvent(source, topic string, payload []byte) Event {
	return CommandReceived{Source: source, Topic: topic, Payload: payload}
}
