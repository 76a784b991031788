package revision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReviser struct {
	calls []string
	fail  bool
}

func (r *recordingReviser) Revise(_ context.Context, feedback, current string) (string, error) {
	r.calls = append(r.calls, feedback)
	if r.fail {
		return "", errors.New("model unavailable")
	}
	return current + " | " + feedback, nil
}

type scriptedPrompter struct {
	lines []string
	shown []Outcome
}

func (p *scriptedPrompter) Show(o Outcome) error {
	p.shown = append(p.shown, o)
	return nil
}

func (p *scriptedPrompter) ReadLine(context.Context) (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func TestLoop_FeedbackThenApproval(t *testing.T) {
	r := &recordingReviser{}
	l := New("draft", r)
	assert.Equal(t, Drafting, l.State())
	assert.Equal(t, AwaitingFeedback, l.Present().State)

	o := l.Handle(context.Background(), "make it shorter")
	assert.Equal(t, AwaitingFeedback, o.State)
	assert.Equal(t, 1, o.Draft.RevisionCount)

	l.Handle(context.Background(), "add a conclusion")
	o = l.Handle(context.Background(), "yes")

	assert.Equal(t, Approved, o.State)
	assert.Equal(t, []string{"make it shorter", "add a conclusion"}, r.calls)
	d, err := l.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, d.RevisionCount)
	assert.Equal(t, "draft | make it shorter | add a conclusion", d.Content)
}

func TestLoop_RevisionCountMatchesFeedback(t *testing.T) {
	for n := 0; n <= 5; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			l := New("d", &recordingReviser{})
			l.Present()
			for i := 0; i < n; i++ {
				l.Handle(context.Background(), fmt.Sprintf("change %d", i))
			}
			assert.Equal(t, Approved, l.Handle(context.Background(), "Y").State)
			d, err := l.Result()
			require.NoError(t, err)
			assert.Equal(t, n, d.RevisionCount)
		})
	}
}

func TestLoop_ApprovalReturnsDraftUnchanged(t *testing.T) {
	r := &recordingReviser{}
	l := New("first draft", r)
	l.Present()
	l.Handle(context.Background(), "  YES ")

	d, err := l.Result()
	require.NoError(t, err)
	assert.Equal(t, Draft{Content: "first draft"}, d)
	assert.Empty(t, r.calls)
}

func TestLoop_CancelTokens(t *testing.T) {
	for _, tok := range []string{"n", "No", "c", "cancel", "ABORT", "discard"} {
		t.Run(tok, func(t *testing.T) {
			l := New("draft", &recordingReviser{})
			l.Present()
			l.Handle(context.Background(), "tweak it")
			o := l.Handle(context.Background(), tok)

			assert.Equal(t, Cancelled, o.State)
			d, err := l.Result()
			assert.ErrorIs(t, err, ErrCancelled)
			assert.Equal(t, Draft{}, d)
		})
	}
}

func TestLoop_EmptyLineIsIgnored(t *testing.T) {
	r := &recordingReviser{}
	l := New("draft", r)
	l.Present()

	o := l.Handle(context.Background(), "   ")

	assert.Equal(t, AwaitingFeedback, o.State)
	assert.Equal(t, 0, o.Draft.RevisionCount)
	assert.Empty(t, r.calls)
}

func TestLoop_FailedRevisionKeepsDraft(t *testing.T) {
	r := &recordingReviser{fail: true}
	l := New("draft", r)
	l.Present()

	o := l.Handle(context.Background(), "rewrite")

	assert.Equal(t, AwaitingFeedback, o.State)
	assert.Equal(t, Draft{Content: "draft"}, o.Draft)
	assert.Contains(t, o.Message, "model unavailable")

	r.fail = false
	o = l.Handle(context.Background(), "rewrite")
	assert.Equal(t, 1, o.Draft.RevisionCount)
}

func TestLoop_MaxRevisionsCancels(t *testing.T) {
	r := &recordingReviser{}
	l := New("draft", r, WithMaxRevisions(2))
	l.Present()

	l.Handle(context.Background(), "one")
	l.Handle(context.Background(), "two")
	o := l.Handle(context.Background(), "three")

	assert.Equal(t, Cancelled, o.State)
	assert.Len(t, r.calls, 2)
	assert.NotEmpty(t, o.Message)
	_, err := l.Result()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestLoop_MaxRevisionsStillAllowsApproval(t *testing.T) {
	l := New("draft", &recordingReviser{}, WithMaxRevisions(1))
	l.Present()
	l.Handle(context.Background(), "one")

	assert.Equal(t, Approved, l.Handle(context.Background(), "y").State)
}

func TestLoop_ResultBeforeFinish(t *testing.T) {
	l := New("draft", &recordingReviser{})
	_, err := l.Result()
	assert.ErrorIs(t, err, ErrNotFinished)
}

func TestLoop_TerminalStateIgnoresInput(t *testing.T) {
	r := &recordingReviser{}
	l := New("draft", r)
	l.Present()
	l.Handle(context.Background(), "y")

	o := l.Handle(context.Background(), "more changes")

	assert.Equal(t, Approved, o.State)
	assert.Empty(t, r.calls)
}

func TestRun_DrivesLoopFromPrompter(t *testing.T) {
	p := &scriptedPrompter{lines: []string{"make it shorter", "", "add a conclusion", "yes"}}
	l := New("draft", &recordingReviser{})

	d, err := l.Run(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, 2, d.RevisionCount)
	require.Len(t, p.shown, 4)
	assert.Equal(t, AwaitingFeedback, p.shown[0].State)
	assert.Equal(t, Approved, p.shown[3].State)
}

func TestRun_InputEndsEarly(t *testing.T) {
	p := &scriptedPrompter{lines: []string{"tweak"}}
	_, err := New("draft", &recordingReviser{}).Run(context.Background(), p)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_feedback", AwaitingFeedback.String())
	assert.Equal(t, "State(9)", State(9).String())
}
