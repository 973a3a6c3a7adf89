package session

import (
	"sync"

	"github.com/enjoys-in/airsend-calc/internal/calc"
)

// ErrorMessage is what every attached client receives for a rejected command.
const ErrorMessage = "ERROR"

// Result is the outcome of one committed command.
type Result struct {
	Accepted bool
	// Message is the rendered session on success and ErrorMessage otherwise.
	Message string
	// Vars is the session state right after the command.
	Vars calc.Variables
	// Err carries the rejection reason for logging.
	Err error
}

// Session is one registry entry: an id and the variable table it owns.
//
// Two locks guard it. turn serializes whole commands, including whatever the
// caller does to publish the result, so the next command cannot start before
// the previous one has been broadcast and saved. state guards the variables
// themselves and is only held while interpreting and rendering.
type Session struct {
	ID int

	turn  sync.Mutex
	state sync.RWMutex
	vars  calc.Variables
}

func newSession(id int, vars calc.Variables) *Session {
	return &Session{ID: id, vars: vars}
}

// Commit runs one command line against the session and hands the result to
// publish before releasing the session to the next command. publish runs
// without the state lock, so readers are not held up by slow I/O in it.
func (s *Session) Commit(line string, publish func(Result) error) (Result, error) {
	s.turn.Lock()
	defer s.turn.Unlock()

	res := s.apply(line)
	if publish == nil {
		return res, nil
	}
	return res, publish(res)
}

// Reject publishes an ErrorMessage result in command order without touching
// the variables. It is used for commands refused before interpretation.
func (s *Session) Reject(reason error, publish func(Result) error) error {
	s.turn.Lock()
	defer s.turn.Unlock()

	res := Result{Message: ErrorMessage, Vars: s.Snapshot(), Err: reason}
	if publish == nil {
		return nil
	}
	return publish(res)
}

// Persist hands the current variables to save in command order, so a save
// taken here can never land on top of a later commit.
func (s *Session) Persist(save func(calc.Variables) error) error {
	s.turn.Lock()
	defer s.turn.Unlock()
	return save(s.Snapshot())
}

func (s *Session) apply(line string) Result {
	s.state.Lock()
	defer s.state.Unlock()

	if err := calc.Interpret(&s.vars, line); err != nil {
		return Result{Message: ErrorMessage, Vars: s.vars, Err: err}
	}
	return Result{Accepted: true, Message: calc.Render(&s.vars), Vars: s.vars}
}

// Snapshot returns a copy of the current variables.
func (s *Session) Snapshot() calc.Variables {
	s.state.RLock()
	defer s.state.RUnlock()
	return s.vars
}

// Render returns the wire rendering of the current variables.
func (s *Session) Render() string {
	s.state.RLock()
	defer s.state.RUnlock()
	return calc.Render(&s.vars)
}
