package ai

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

const (
	stateIdle             = "idle"
	stateCallingPrimary   = "calling_primary"
	stateCallingSecondary = "calling_secondary"
	stateSucceeded        = "succeeded"
	stateFailed           = "failed"
)

const (
	eventCall        = "call"
	eventRateLimited = "rate_limited"
	eventSucceeded   = "succeeded"
	eventFailed      = "failed"
)

type attemptContext struct{}

// fallbackMachine tracks one analysis through the primary/secondary chain.
// Only a rate limit on the primary moves to the secondary.
type fallbackMachine struct {
	interpreter *statekit.Interpreter[attemptContext]
}

func newFallbackMachine() (*fallbackMachine, error) {
	builder := statekit.NewMachine[attemptContext]("provider-fallback").
		WithInitial(statekit.StateID(stateIdle)).
		WithContext(attemptContext{})

	builder.State(stateIdle).
		On(eventCall).Target(stateCallingPrimary).
		Done()

	builder.State(stateCallingPrimary).
		On(eventSucceeded).Target(stateSucceeded).
		On(eventRateLimited).Target(stateCallingSecondary).
		On(eventFailed).Target(stateFailed).
		Done()

	builder.State(stateCallingSecondary).
		On(eventSucceeded).Target(stateSucceeded).
		On(eventRateLimited).Target(stateFailed).
		On(eventFailed).Target(stateFailed).
		Done()

	builder.State(stateSucceeded).Done()
	builder.State(stateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build fallback machine: %w", err)
	}
	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &fallbackMachine{interpreter: interpreter}, nil
}

func (m *fallbackMachine) send(event string) string {
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	return m.current()
}

func (m *fallbackMachine) current() string {
	return string(m.interpreter.State().Value)
}
