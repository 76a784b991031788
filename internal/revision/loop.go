// Package revision drives a generated draft through human review until it is
// approved or cancelled.
package revision

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCancelled is returned by Result after the draft was discarded.
	ErrCancelled = errors.New("revision: draft cancelled")
	// ErrNotFinished is returned by Result before a terminal state is reached.
	ErrNotFinished = errors.New("revision: review not finished")
)

// State is a step of the review.
type State int

const (
	Drafting State = iota
	AwaitingFeedback
	Revising
	Approved
	Cancelled
)

func (s State) String() string {
	switch s {
	case Drafting:
		return "drafting"
	case AwaitingFeedback:
		return "awaiting_feedback"
	case Revising:
		return "revising"
	case Approved:
		return "approved"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further input is accepted.
func (s State) Terminal() bool { return s == Approved || s == Cancelled }

// Draft is the artifact under review.
type Draft struct {
	Content       string
	RevisionCount int
}

// Reviser regenerates a draft from feedback.
type Reviser interface {
	Revise(ctx context.Context, feedback, current string) (string, error)
}

// ReviserFunc adapts a function to the Reviser interface.
type ReviserFunc func(ctx context.Context, feedback, current string) (string, error)

// Revise calls f(ctx, feedback, current).
func (f ReviserFunc) Revise(ctx context.Context, feedback, current string) (string, error) {
	return f(ctx, feedback, current)
}

// Outcome describes the effect of one line of input.
type Outcome struct {
	State State
	Draft Draft
	// Message is a user-facing note, e.g. a failed regeneration.
	Message string
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxRevisions caps the number of regenerations. Feedback beyond the cap
// cancels the draft. Zero means unbounded.
func WithMaxRevisions(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxRevisions = n
		}
	}
}

var (
	affirmative = map[string]struct{}{"y": {}, "yes": {}}
	cancel      = map[string]struct{}{"n": {}, "no": {}, "c": {}, "cancel": {}, "abort": {}, "discard": {}}
)

// IsAffirmative reports whether input approves.
func IsAffirmative(input string) bool {
	_, ok := affirmative[normalize(input)]
	return ok
}

// IsCancel reports whether input discards.
func IsCancel(input string) bool {
	_, ok := cancel[normalize(input)]
	return ok
}

func normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// Loop is the review state machine. It is not safe for concurrent use.
type Loop struct {
	state        State
	draft        Draft
	reviser      Reviser
	maxRevisions int
}

// New starts a review of a first draft in the Drafting state.
func New(first string, reviser Reviser, opts ...Option) *Loop {
	l := &Loop{state: Drafting, draft: Draft{Content: first}, reviser: reviser}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current state.
func (l *Loop) State() State { return l.state }

// Draft returns the current draft.
func (l *Loop) Draft() Draft { return l.draft }

// Present shows the draft to the reviewer and waits for feedback.
func (l *Loop) Present() Outcome {
	if l.state == Drafting {
		l.state = AwaitingFeedback
	}
	return l.outcome("")
}

// Handle applies one line of input.
func (l *Loop) Handle(ctx context.Context, input string) Outcome {
	if l.state == Drafting {
		l.Present()
	}
	if l.state != AwaitingFeedback {
		return l.outcome("")
	}
	line := strings.TrimSpace(input)
	switch {
	case line == "":
		return l.outcome("")
	case IsAffirmative(line):
		l.state = Approved
		return l.outcome("")
	case IsCancel(line):
		l.state = Cancelled
		return l.outcome("Draft discarded.")
	case l.maxRevisions > 0 && l.draft.RevisionCount >= l.maxRevisions:
		l.state = Cancelled
		return l.outcome(fmt.Sprintf("Revision limit of %d reached, draft discarded.", l.maxRevisions))
	}

	l.state = Revising
	revised, err := l.reviser.Revise(ctx, line, l.draft.Content)
	l.state = AwaitingFeedback
	if err != nil {
		return l.outcome(fmt.Sprintf("Revision failed, keeping the previous draft: %v", err))
	}
	l.draft = Draft{Content: revised, RevisionCount: l.draft.RevisionCount + 1}
	return l.outcome("")
}

// Result returns the approved draft.
func (l *Loop) Result() (Draft, error) {
	switch l.state {
	case Approved:
		return l.draft, nil
	case Cancelled:
		return Draft{}, ErrCancelled
	default:
		return Draft{}, ErrNotFinished
	}
}

func (l *Loop) outcome(msg string) Outcome {
	return Outcome{State: l.state, Draft: l.draft, Message: msg}
}

// Prompter is the interactive channel used by Run.
type Prompter interface {
	// Show presents an outcome to the reviewer.
	Show(o Outcome) error
	// ReadLine blocks for the next line of input.
	ReadLine(ctx context.Context) (string, error)
}

// Run presents the draft and feeds it lines from p until the review ends.
func (l *Loop) Run(ctx context.Context, p Prompter) (Draft, error) {
	if err := p.Show(l.Present()); err != nil {
		return Draft{}, err
	}
	for !l.state.Terminal() {
		line, err := p.ReadLine(ctx)
		if err != nil {
			return Draft{}, fmt.Errorf("revision: read input: %w", err)
		}
		o := l.Handle(ctx, line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := p.Show(o); err != nil {
			return Draft{}, err
		}
	}
	return l.Result()
}
