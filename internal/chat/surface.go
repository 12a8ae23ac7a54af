// Package chat implements the conversation side of alx: the prompt dispatcher and the chat surface
// state machine that records one page session's messages.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/alx/internal/models"
	"github.com/google/uuid"
)

// State is the interaction state of a Surface.
type State int

const (
	// StateIdle accepts a new submission.
	StateIdle State = iota
	// StateSubmitting has a dispatch in flight and rejects new submissions.
	StateSubmitting
)

// FallbackReply is appended as the assistant turn when a dispatch fails.
const FallbackReply = "Sorry, I encountered an error. Please try again."

const errLoggerKey = "error"

var (
	// ErrBusy is returned by Submit while a previous submission is still in flight.
	ErrBusy = errors.New("surface is busy with another submission")
	// ErrNotSubmitting is returned by Succeed and Fail when no submission is in flight.
	ErrNotSubmitting = errors.New("surface has no submission in flight")
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Surface holds the ordered, append-only message sequence of one chat page session. All transitions go
// through Submit, Succeed and Fail, so at most one dispatch is in flight per surface.
type Surface struct {
	id string

	mu         sync.Mutex
	state      State
	messages   []models.Message
	lastActive time.Time
}

// NewSurface creates an idle surface with an empty history.
func NewSurface() *Surface {
	return &Surface{
		id:         uuid.New().String(),
		lastActive: time.Now(),
	}
}

// ID returns the identifier the browser uses to address this surface.
func (s *Surface) ID() string {
	return s.id
}

// State returns the current interaction state.
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the message sequence.
func (s *Surface) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Snapshot returns the state and a copy of the message sequence as of the same instant.
func (s *Surface) Snapshot() (State, []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, slices.Clone(s.messages)
}

// LastActive returns the time of the last transition.
func (s *Surface) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Submit appends input as a user message and enters StateSubmitting. The input is not validated; an
// empty string is a valid submission. While a submission is in flight it returns ErrBusy and leaves the
// sequence untouched.
func (s *Surface) Submit(input string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSubmitting {
		return models.Message{}, ErrBusy
	}

	msg := models.NewMessage(models.RoleUser, input)
	s.messages = append(s.messages, msg)
	s.state = StateSubmitting
	s.lastActive = msg.Timestamp
	return msg, nil
}

// Succeed appends the provider's text as an assistant message and returns to StateIdle.
func (s *Surface) Succeed(text string) (models.Message, error) {
	return s.resolve(text)
}

// Fail appends FallbackReply as an assistant message and returns to StateIdle. The cause is not
// recorded in the sequence.
func (s *Surface) Fail(error) (models.Message, error) {
	return s.resolve(FallbackReply)
}

func (s *Surface) resolve(content string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSubmitting {
		return models.Message{}, ErrNotSubmitting
	}

	msg := models.NewMessage(models.RoleAssistant, content)
	s.messages = append(s.messages, msg)
	s.state = StateIdle
	s.lastActive = msg.Timestamp
	return msg, nil
}

// Exchange runs one full submit cycle: it submits input, dispatches it through d and appends either the
// response or the fallback reply. Dispatch errors are logged and never returned; the only errors are
// from Submit.
func (s *Surface) Exchange(ctx context.Context, d Dispatcher, input string, logger *slog.Logger) (models.Message, error) {
	if _, err := s.Submit(input); err != nil {
		return models.Message{}, err
	}

	text, err := d.Dispatch(ctx, input)
	if err != nil {
		logger.Error("Error generating response",
			slog.String("surfaceID", s.id),
			slog.String(errLoggerKey, err.Error()))
		return s.Fail(err)
	}
	return s.Succeed(text)
}
