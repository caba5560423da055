package sim

import (
	"log"
	"reflect"
)

// LogHookBase carries the logger that the logging hooks write to.
type LogHookBase struct {
	*log.Logger
}

// EventLogger is an hook that prints the event information
type EventLogger struct {
	LogHookBase
}

// NewEventLogger returns a new EventLogger which will write in to the logger
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	named, ok := evt.Handler().(Named)
	if ok {
		h.Printf("%d, %s -> %s", evt.Time(), reflect.TypeOf(evt), named.Name())
	} else {
		h.Printf("%d, %s", evt.Time(), reflect.TypeOf(evt))
	}
}
