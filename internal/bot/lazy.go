package bot

import (
	"errors"
	"sync"
)

type assistantState int

const (
	stateUninitialized assistantState = iota
	stateReady
	stateFailedLastAttempt
)

func (s assistantState) String() string {
	switch s {
	case stateReady:
		return "ready"
	case stateFailedLastAttempt:
		return "failed"
	default:
		return "not initialised"
	}
}

// lazyAssistant builds the Decider on first use. A failed build is retried
// on the next call.
type lazyAssistant struct {
	mu      sync.Mutex
	factory AssistantFactory
	state   assistantState
	decider Decider
	lastErr error
}

func newLazyAssistant(f AssistantFactory) *lazyAssistant {
	return &lazyAssistant{factory: f}
}

func (l *lazyAssistant) get() (Decider, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == stateReady {
		return l.decider, nil
	}
	if l.factory == nil {
		l.state = stateFailedLastAttempt
		l.lastErr = errors.New("no assistant configured")
		return nil, l.lastErr
	}
	d, err := l.factory()
	if err != nil {
		l.state = stateFailedLastAttempt
		l.lastErr = err
		return nil, err
	}
	l.decider = d
	l.state = stateReady
	l.lastErr = nil
	return d, nil
}

// State returns the current state.
func (l *lazyAssistant) State() assistantState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
