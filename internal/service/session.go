// Package service runs an interactive RAGsody session: vault questions, note
// drafting with review, and placement of approved notes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"ragsody/internal/answer"
	"ragsody/internal/placement"
	"ragsody/internal/request"
	"ragsody/internal/revision"
)

// Mode is what the session expects the next line to be.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRevising
	ModePlacing
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRevising:
		return "revising"
	case ModePlacing:
		return "placing"
	default:
		return "unknown"
	}
}

const (
	idlePrompt     = "ragsody> "
	revisingPrompt = "Save this draft? [y]es / [n]o, or type feedback: "
)

// Answerer answers vault questions.
type Answerer interface {
	Answer(ctx context.Context, question string) answer.Answer
}

// Drafter writes and revises notes from web sources.
type Drafter interface {
	FirstDraft(ctx context.Context, request string, urls []string) (string, error)
	revision.Reviser
}

// Placer suggests where an approved note belongs and prepares the folder.
type Placer interface {
	Suggest(ctx context.Context, content string) placement.Suggestion
	Root() string
	EnsureDir(dir string) error
}

// NoteWriter stores a note in an existing directory and returns its path.
type NoteWriter interface {
	Write(dir, content string) (string, error)
}

// IndexState reports on the cached index and drops it so new notes are
// picked up.
type IndexState interface {
	Built() bool
	Invalidate()
}

// Deps are the collaborators of a Session.
type Deps struct {
	Answerer     Answerer
	Drafter      Drafter
	Placer       Placer
	Writer       NoteWriter
	// Index is optional. It is invalidated after a note is written.
	Index        IndexState
	// Documents is the number of notes indexed at startup.
	Documents    int
	MaxRevisions int
	Logger       *slog.Logger
}

// Reply is the session's response to one line.
type Reply struct {
	Text   string
	Prompt string
	// Mode is the session mode after the line was handled.
	Mode   Mode
	Quit   bool
}

// Session holds the state of one interactive user. It is not safe for
// concurrent use.
type Session struct {
	deps       Deps
	mode       Mode
	loop       *revision.Loop
	suggestion placement.Suggestion
	approved   revision.Draft
}

func New(deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Session{deps: deps}
}

// Mode returns the current mode.
func (s *Session) Mode() Mode { return s.mode }

// Prompt returns the prompt for the current mode.
func (s *Session) Prompt() string {
	switch s.mode {
	case ModeRevising:
		return revisingPrompt
	case ModePlacing:
		return s.placingPrompt()
	default:
		return idlePrompt
	}
}

// Greeting introduces the session.
func (s *Session) Greeting() string {
	var b strings.Builder
	b.WriteString("Welcome to RAGsody!\n")
	switch {
	case s.deps.Index != nil && !s.deps.Index.Built():
		fmt.Fprintf(&b, "The index for %s is not built yet; it will be retried with your next request.\n", s.deps.Placer.Root())
	case s.deps.Documents == 0:
		fmt.Fprintf(&b, "Loaded 0 documents from %s.\n", s.deps.Placer.Root())
		b.WriteString("WARNING: No documents loaded! Check your vault path.\n")
	default:
		fmt.Fprintf(&b, "Loaded %d documents from %s.\n", s.deps.Documents, s.deps.Placer.Root())
	}
	b.WriteString("Type 'help' for commands, 'quit' or 'exit' to leave.")
	return b.String()
}

// Handle processes one line of input.
func (s *Session) Handle(ctx context.Context, line string) Reply {
	switch s.mode {
	case ModeRevising:
		return s.handleRevision(ctx, line)
	case ModePlacing:
		return s.handlePlacement(line)
	default:
		return s.handleIdle(ctx, line)
	}
}

func (s *Session) handleIdle(ctx context.Context, line string) Reply {
	if strings.TrimSpace(line) == "" {
		return s.reply("")
	}
	switch request.ParseCommand(line) {
	case request.CommandQuit:
		return Reply{Text: "Bye!", Mode: s.mode, Quit: true}
	case request.CommandHelp:
		return s.reply(request.HelpText)
	}

	req := request.Interpret(line)
	s.deps.Logger.Debug("request interpreted", "kind", req.Kind, "urls", len(req.URLs))
	switch req.Kind {
	case request.KindGenerateFromSources:
		return s.startDraft(ctx, req)
	default:
		return s.reply(renderAnswer(s.deps.Answerer.Answer(ctx, req.Prompt)))
	}
}

func (s *Session) startDraft(ctx context.Context, req request.Request) Reply {
	draft, err := s.deps.Drafter.FirstDraft(ctx, req.Prompt, req.URLs)
	if err != nil {
		s.deps.Logger.Error("draft generation failed", "error", err)
		return s.reply("Failed to generate note: " + err.Error())
	}
	s.loop = revision.New(draft, s.deps.Drafter, revision.WithMaxRevisions(s.deps.MaxRevisions))
	s.mode = ModeRevising
	return s.reply(s.loop.Present().Draft.Content)
}

func (s *Session) handleRevision(ctx context.Context, line string) Reply {
	o := s.loop.Handle(ctx, line)
	switch o.State {
	case revision.Approved:
		draft, _ := s.loop.Result()
		s.loop = nil
		s.approved = draft
		s.suggestion = s.deps.Placer.Suggest(ctx, draft.Content)
		s.mode = ModePlacing
		s.deps.Logger.Info("draft approved", "revisions", draft.RevisionCount, "suggested", s.suggestion.Path)
		return s.reply(fmt.Sprintf("Draft approved after %d revision(s).", draft.RevisionCount))
	case revision.Cancelled:
		s.loop = nil
		s.mode = ModeIdle
		return s.reply(o.Message)
	}
	if o.Message != "" {
		return s.reply(o.Message)
	}
	if strings.TrimSpace(line) == "" {
		return s.reply("")
	}
	return s.reply(o.Draft.Content)
}

func (s *Session) handlePlacement(line string) Reply {
	decision := placement.Approve(line, s.suggestion, s.deps.Placer.Root())
	content := s.approved.Content
	s.mode = ModeIdle
	s.approved = revision.Draft{}
	s.suggestion = placement.Suggestion{}

	if err := s.deps.Placer.EnsureDir(decision.Confirmed); err != nil {
		s.deps.Logger.Error("creating folder failed", "dir", decision.Confirmed, "error", err)
		return s.reply("Failed to save note: " + err.Error())
	}
	path, err := s.deps.Writer.Write(decision.Confirmed, content)
	if err != nil {
		s.deps.Logger.Error("saving note failed", "dir", decision.Confirmed, "error", err)
		return s.reply("Failed to save note: " + err.Error())
	}
	if s.deps.Index != nil {
		s.deps.Index.Invalidate()
	}
	return s.reply("Created note: " + path)
}

func (s *Session) placingPrompt() string {
	return fmt.Sprintf("Save to %s? [y]es, anything else saves to the vault root: ", s.relative(s.suggestion.Path))
}

func (s *Session) relative(dir string) string {
	root := s.deps.Placer.Root()
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return root
	}
	return filepath.ToSlash(rel)
}

func (s *Session) reply(text string) Reply {
	return Reply{Text: text, Prompt: s.Prompt(), Mode: s.mode}
}

func renderAnswer(a answer.Answer) string {
	if len(a.Sources) == 0 {
		return a.Text
	}
	var b strings.Builder
	b.WriteString(a.Text)
	b.WriteString("\n\nSources:")
	for _, src := range a.Sources {
		fmt.Fprintf(&b, "\n- %s (%.3f)", src.RelPath, src.Score)
		if src.Preview != "" {
			b.WriteString(": ")
			b.WriteString(src.Preview)
		}
	}
	return b.String()
}
