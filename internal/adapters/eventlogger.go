package adapters

import (
	"ritual/internal/core/ports"
)

// EventLogger turns ports.Logger calls into ports.Event sends, letting the
// CLI's event consumer render progress the same way for log lines coming
// out of the core as for the StartEvent/FinishEvent pairs the caller emits
// around a whole run.
type EventLogger struct {
	operation string
	events    chan<- ports.Event
}

var _ ports.Logger = (*EventLogger)(nil)

func NewEventLogger(operation string, events chan<- ports.Event) *EventLogger {
	return &EventLogger{operation: operation, events: events}
}

func (l *EventLogger) Info(msg string, args ...any) {
	ports.SendEvent(l.events, ports.UpdateEvent{Operation: l.operation, Message: msg, Data: toData(args)})
}

func (l *EventLogger) Warn(msg string, args ...any) {
	ports.SendEvent(l.events, ports.UpdateEvent{Operation: l.operation, Message: "warning: " + msg, Data: toData(args)})
}

func (l *EventLogger) Error(msg string, args ...any) {
	ports.SendEvent(l.events, ports.UpdateEvent{Operation: l.operation, Message: "error: " + msg, Data: toData(args)})
}

func (l *EventLogger) Debug(msg string, args ...any) {}

func toData(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	data := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		data[key] = args[i+1]
	}
	return data
}

// MultiLogger fans every call out to all of its targets, letting the CLI
// log to a rotating file and narrate to the terminal from the same call
// sites.
type MultiLogger struct {
	targets []ports.Logger
}

var _ ports.Logger = (*MultiLogger)(nil)

func NewMultiLogger(targets ...ports.Logger) *MultiLogger {
	return &MultiLogger{targets: targets}
}

func (l *MultiLogger) Info(msg string, args ...any) {
	for _, t := range l.targets {
		t.Info(msg, args...)
	}
}

func (l *MultiLogger) Warn(msg string, args ...any) {
	for _, t := range l.targets {
		t.Warn(msg, args...)
	}
}

func (l *MultiLogger) Error(msg string, args ...any) {
	for _, t := range l.targets {
		t.Error(msg, args...)
	}
}

func (l *MultiLogger) Debug(msg string, args ...any) {
	for _, t := range l.targets {
		t.Debug(msg, args...)
	}
}
