package dialogue

import (
	"context"
	"fmt"
)

// Role tags one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message. History is an ordered, append-only
// sequence of turns scoped to a single dialogue session; it is the only
// state shared between Ask calls and serializes to the flat transcript
// format via FormatHistory/ParseHistory.
type Turn struct {
	Role Role
	Text string
}

type History []Turn

// Mode selects the conversational flow.
type Mode int

const (
	// FixedFlow walks the four-question ticket intake and terminates with
	// the closing sentence once all four answers are in.
	FixedFlow Mode = iota
	// OpenEnded never terminates; every Ask is a plain model exchange.
	OpenEnded
)

// State of the fixed-flow intake. Each user turn advances exactly one
// state forward regardless of answer content; the engine never re-asks.
type State int

const (
	StateQ1Location State = iota
	StateQ2Issue
	StateQ3Detail
	StateQ4Additional
	StateComplete
	// StateOpen is the single state of the open-ended flow.
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateQ1Location:
		return "q1-location"
	case StateQ2Issue:
		return "q2-issue"
	case StateQ3Detail:
		return "q3-detail"
	case StateQ4Additional:
		return "q4-additional"
	case StateComplete:
		return "complete"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// ClosingSentence is the literal reply that ends the fixed-flow intake.
const ClosingSentence = "Thank you for the information, I am creating a ticket for you."

const systemInstruction = "You are a ticket generator for a company. " +
	"You are given a description of the issue and you need to generate a ticket for it. " +
	"In order to generate the ticket, you need to ask the user for the following information: " +
	"1. Where is the issue located? " +
	"2. What is the issue? " +
	"3. Can you describe it in detail? " +
	"4. Do you want to add something else? " +
	"If all of the questions have been answered say: " + ClosingSentence

const contextPreamble = "I am currently an employee from a company and I want to report a maintenance issue."

// InferenceError wraps a model call failure. Transient: history is left
// untouched and the caller decides whether to retry.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("dialogue inference: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Model is the stateless language-model backend: an ordered turn list plus
// a system instruction in, one reply text out. Sampling parameters are
// fixed by the implementation.
type Model interface {
	Generate(ctx context.Context, system string, turns History) (string, error)
}

// Engine drives one conversation flow over a Model. It holds no history
// itself; callers thread History through Ask, so a session survives a
// process restart as long as the transcript is reconstructed.
type Engine struct {
	model Model
	mode  Mode
}

func NewEngine(model Model, mode Mode) *Engine {
	return &Engine{model: model, mode: mode}
}

// StateOf derives the fixed-flow state from the user-turn count alone.
func StateOf(history History) State {
	users := 0
	for _, t := range history {
		if t.Role == RoleUser {
			users++
		}
	}
	if users > int(StateComplete) {
		return StateComplete
	}
	return State(users)
}

// State reports where the flow stands after the given history.
func (e *Engine) State(history History) State {
	if e.mode == OpenEnded {
		return StateOpen
	}
	return StateOf(history)
}

// Ask appends the user turn, runs one model call, and appends the reply.
// On success the returned history is exactly two turns longer than the
// input; on failure the input history is returned unchanged and the error
// is an *InferenceError. The input slice is never mutated.
//
// In fixed-flow mode the fourth user turn completes the intake: the reply
// is the literal closing sentence and no model call is made.
func (e *Engine) Ask(ctx context.Context, history History, userText string) (string, History, error) {
	next := make(History, len(history), len(history)+2)
	copy(next, history)
	next = append(next, Turn{Role: RoleUser, Text: userText})

	if e.mode == FixedFlow && StateOf(next) == StateComplete {
		next = append(next, Turn{Role: RoleAssistant, Text: ClosingSentence})
		return ClosingSentence, next, nil
	}

	reply, err := e.model.Generate(ctx, systemInstruction+" "+contextPreamble, next)
	if err != nil {
		return "", history, &InferenceError{Err: err}
	}

	next = append(next, Turn{Role: RoleAssistant, Text: reply})
	return reply, next, nil
}
