// Package fsm models the responder server lifecycle.
package fsm

import "fmt"

type State string

type Event string

const (
	StateStarting  State = "starting"
	StateListening State = "listening"
	StateDraining  State = "draining"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

const (
	EventListen Event = "listen"
	EventDrain  Event = "drain"
	EventStop   Event = "stop"
	EventFail   Event = "fail"
)

func Transition(current State, event Event) (State, error) {
	if event == EventFail && current != StateStopped {
		return StateFailed, nil
	}

	switch current {
	case StateStarting:
		switch event {
		case EventListen:
			return StateListening, nil
		case EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventDrain:
			return StateDraining, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDraining:
		switch event {
		case EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFailed:
		switch event {
		case EventStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopped:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
