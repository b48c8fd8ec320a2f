// Package btcp implements the bTCP connection engine: the state machine,
// sender and receiver engines, and the Connector/Accepter application
// facade layered over a segment transport.
package btcp

import "fmt"

// State is a connection's position in the bTCP handshake/transfer/teardown
// lifecycle.
type State int

const (
	// StateClosed is a connection that doesn't exist yet, or has fully
	// torn down.
	StateClosed State = iota

	// StateSynSent is the connector, waiting for a SYN+ACK after sending
	// its own SYN.
	StateSynSent

	// StateAccepting is the accepter, waiting for a first SYN.
	StateAccepting

	// StateSynRcvd is the accepter, waiting for the final ACK of the
	// handshake after replying to a SYN with SYN+ACK.
	StateSynRcvd

	// StateEstablished is an open connection; the connector may send data
	// and the accepter may receive it.
	StateEstablished

	// StateFinSent is the connector, waiting for the accepter's FIN+ACK
	// after requesting shutdown.
	StateFinSent

	// StateClosing is the accepter, having answered the connector's FIN
	// with its own FIN+ACK, waiting for the connector's final ACK of it.
	StateClosing
)

// String returns the textual name used in log output.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateSynSent:
		return "SYN_SENT"
	case StateAccepting:
		return "ACCEPTING"
	case StateSynRcvd:
		return "SYN_RCVD"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinSent:
		return "FIN_SENT"
	case StateClosing:
		return "CLOSING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Event drives a state transition.
type Event int

const (
	// EventConnect is the connector's application-level connect call.
	EventConnect Event = iota

	// EventListen is the accepter's application-level accept call.
	EventListen

	// EventRecvSyn is a received SYN (no ACK).
	EventRecvSyn

	// EventRecvSynAck is a received SYN+ACK.
	EventRecvSynAck

	// EventRecvAck is a received bare ACK (the handshake's third leg, or
	// the termination's final ACK).
	EventRecvAck

	// EventRecvFin is a received FIN+ACK.
	EventRecvFin

	// EventShutdown is the connector's application-level shutdown call.
	EventShutdown

	// EventTimeout is a retry-budget-bounded timer expiry during
	// handshake or termination.
	EventTimeout
)

// String returns the textual name used in log output.
func (e Event) String() string {
	switch e {
	case EventConnect:
		return "CONNECT"
	case EventListen:
		return "LISTEN"
	case EventRecvSyn:
		return "RECV_SYN"
	case EventRecvSynAck:
		return "RECV_SYN_ACK"
	case EventRecvAck:
		return "RECV_ACK"
	case EventRecvFin:
		return "RECV_FIN"
	case EventShutdown:
		return "SHUTDOWN"
	case EventTimeout:
		return "TIMEOUT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(e))
	}
}

// StateMachine tracks one connection's lifecycle state. It holds no
// knowledge of segments or timers; callers drive it with Events derived
// from what they observe.
type StateMachine struct {
	state State
}

// NewStateMachine returns a state machine starting at StateClosed.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateClosed}
}

// State returns the current state.
func (sm *StateMachine) State() State {
	return sm.state
}

// Transition attempts to move to the state event implies from the current
// state, returning an error if the transition is not valid.
func (sm *StateMachine) Transition(event Event) error {
	next, err := sm.nextState(event)
	if err != nil {
		return err
	}
	sm.state = next
	return nil
}

// Set directly assigns the state, bypassing transition validation. The
// engine uses it to force StateClosed when the final-ACK wait in
// StateClosing runs out; tests use it to seed an initial state.
func (sm *StateMachine) Set(state State) {
	sm.state = state
}

func (sm *StateMachine) nextState(event Event) (State, error) {
	switch sm.state {
	case StateClosed:
		switch event {
		case EventConnect:
			return StateSynSent, nil
		case EventListen:
			return StateAccepting, nil
		default:
			return sm.state, fmt.Errorf("btcp: invalid event %s for state %s", event, sm.state)
		}

	case StateAccepting:
		switch event {
		case EventRecvSyn:
			return StateSynRcvd, nil
		default:
			return sm.state, fmt.Errorf("btcp: invalid event %s for state %s", event, sm.state)
		}

	case StateSynSent:
		switch event {
		case EventRecvSynAck:
			return StateEstablished, nil
		case EventTimeout:
			return StateClosed, nil
		default:
			return sm.state, fmt.Errorf("btcp: invalid event %s for state %s", event, sm.state)
		}

	case StateSynRcvd:
		switch event {
		case EventRecvAck:
			return StateEstablished, nil
		case EventTimeout:
			return StateClosed, nil
		default:
			return sm.state, fmt.Errorf("btcp: invalid event %s for state %s", event, sm.state)
		}

	case StateEstablished:
		switch event {
		case EventShutdown:
			return StateFinSent, nil
		case EventRecvFin:
			return StateClosing, nil
		default:
			return sm.state, fmt.Errorf("btcp: invalid event %s for state %s", event, sm.state)
		}

	case StateFinSent:
		switch event {
		case EventRecvFin:
			return StateClosed, nil
		case EventTimeout:
			return StateClosed, nil
		default:
			return sm.state, fmt.Errorf("btcp: invalid event %s for state %s", event, sm.state)
		}

	case StateClosing:
		switch event {
		case EventRecvAck:
			return StateClosed, nil
		case EventTimeout:
			return StateClosed, nil
		default:
			return sm.state, fmt.Errorf("btcp: invalid event %s for state %s", event, sm.state)
		}

	default:
		return sm.state, fmt.Errorf("btcp: unknown state %s", sm.state)
	}
}
