package btcp

import "testing"

func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name          string
		initialState  State
		event         Event
		expectedState State
		expectError   bool
	}{
		{
			name:          "CLOSED -> SYN_SENT (connect)",
			initialState:  StateClosed,
			event:         EventConnect,
			expectedState: StateSynSent,
		},
		{
			name:          "CLOSED -> ACCEPTING (listen)",
			initialState:  StateClosed,
			event:         EventListen,
			expectedState: StateAccepting,
		},
		{
			name:          "ACCEPTING -> SYN_RCVD (receive SYN)",
			initialState:  StateAccepting,
			event:         EventRecvSyn,
			expectedState: StateSynRcvd,
		},
		{
			name:          "SYN_SENT -> ESTABLISHED (receive SYN+ACK)",
			initialState:  StateSynSent,
			event:         EventRecvSynAck,
			expectedState: StateEstablished,
		},
		{
			name:          "SYN_SENT -> CLOSED (timeout)",
			initialState:  StateSynSent,
			event:         EventTimeout,
			expectedState: StateClosed,
		},
		{
			name:          "SYN_RCVD -> ESTABLISHED (receive ACK)",
			initialState:  StateSynRcvd,
			event:         EventRecvAck,
			expectedState: StateEstablished,
		},
		{
			name:          "ESTABLISHED -> FIN_SENT (shutdown)",
			initialState:  StateEstablished,
			event:         EventShutdown,
			expectedState: StateFinSent,
		},
		{
			name:          "ESTABLISHED -> CLOSING (receive FIN)",
			initialState:  StateEstablished,
			event:         EventRecvFin,
			expectedState: StateClosing,
		},
		{
			name:          "FIN_SENT -> CLOSED (receive FIN+ACK)",
			initialState:  StateFinSent,
			event:         EventRecvFin,
			expectedState: StateClosed,
		},
		{
			name:          "FIN_SENT -> CLOSED (timeout)",
			initialState:  StateFinSent,
			event:         EventTimeout,
			expectedState: StateClosed,
		},
		{
			name:          "CLOSING -> CLOSED (receive ACK)",
			initialState:  StateClosing,
			event:         EventRecvAck,
			expectedState: StateClosed,
		},
		{
			name:         "CLOSED -> invalid event",
			initialState: StateClosed,
			event:        EventRecvFin,
			expectError:  true,
		},
		{
			name:         "ESTABLISHED -> invalid event",
			initialState: StateEstablished,
			event:        EventRecvSyn,
			expectError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			sm.Set(tt.initialState)

			err := sm.Transition(tt.event)

			if (err != nil) != tt.expectError {
				t.Fatalf("Transition() error = %v, expectError %v", err, tt.expectError)
			}
			if !tt.expectError && sm.State() != tt.expectedState {
				t.Errorf("State() = %s, want %s", sm.State(), tt.expectedState)
			}
		})
	}
}

func TestStateMachineStartsClosed(t *testing.T) {
	sm := NewStateMachine()
	if sm.State() != StateClosed {
		t.Errorf("new state machine State() = %s, want %s", sm.State(), StateClosed)
	}
}

func TestStateStrings(t *testing.T) {
	states := []State{StateClosed, StateSynSent, StateAccepting, StateSynRcvd, StateEstablished, StateFinSent, StateClosing}
	seen := make(map[string]bool)
	for _, s := range states {
		str := s.String()
		if str == "" || seen[str] {
			t.Errorf("State(%d).String() = %q, want a unique non-empty name", int(s), str)
		}
		seen[str] = true
	}
}
