// Package answer turns vault retrieval results into a natural-language answer.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"ragsody/internal/domain"
	"ragsody/internal/llm"
)

// NoAnswerMessage is shown when the vault holds nothing relevant.
const NoAnswerMessage = "No relevant information found in the vault for your query."

const defaultTopK = 5

// sentinels are model replies that mean "nothing to say".
var sentinels = map[string]struct{}{
	"empty response": {},
	"none":           {},
	"null":           {},
	"no answer":      {},
}

// Retriever finds the documents nearest to a text.
type Retriever interface {
	NearestText(ctx context.Context, text string, k int) (domain.RetrievalResult, error)
}

// Source is a retrieved note shown alongside an answer.
type Source struct {
	domain.SearchResult
	// RelPath is the note path relative to the vault root.
	RelPath string
	// Preview is a one-sentence extract of the note.
	Preview string
}

// Answer is the outcome of a question. Text is always set.
type Answer struct {
	Text    string
	Sources []Source
}

// Options tune an Answerer. Zero values select defaults.
type Options struct {
	Root             string
	TopK             int
	MaxContextTokens int
	Tokens           llm.TokenCounter
	Summarizer       domain.Summarizer
	Logger           *slog.Logger
}

// Answerer answers questions from the vault.
type Answerer struct {
	retriever Retriever
	generator domain.Generator
	opts      Options
}

func New(retriever Retriever, generator domain.Generator, opts Options) *Answerer {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.Tokens == nil {
		opts.Tokens = llm.ApproxCounter{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Answerer{retriever: retriever, generator: generator, opts: opts}
}

// Answer retrieves context for question and asks the generator to answer from
// it. Failures are reported in Answer.Text rather than returned.
func (a *Answerer) Answer(ctx context.Context, question string) Answer {
	hits, err := a.retriever.NearestText(ctx, question, a.opts.TopK)
	if err != nil {
		a.opts.Logger.Error("retrieval failed", "error", err)
		return Answer{Text: errorText(err)}
	}
	if len(hits) == 0 {
		return Answer{Text: NoAnswerMessage}
	}

	sources := a.sources(hits)
	prompt := buildPrompt(a.contextText(sources), question)
	a.opts.Logger.Debug("answering question", "sources", len(sources), "prompt_tokens", a.opts.Tokens.Count(prompt))

	out, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		a.opts.Logger.Error("generation failed", "error", err)
		return Answer{Text: errorText(err), Sources: sources}
	}
	if isEmptyAnswer(out) {
		return Answer{Text: NoAnswerMessage, Sources: sources}
	}
	return Answer{Text: strings.TrimSpace(out), Sources: sources}
}

func (a *Answerer) sources(hits domain.RetrievalResult) []Source {
	out := make([]Source, 0, len(hits))
	for _, h := range hits {
		src := Source{SearchResult: h, RelPath: a.relPath(h.Document.Path)}
		if a.opts.Summarizer != nil {
			if preview, err := a.opts.Summarizer.Summarize(h.Document.Content, 1); err == nil {
				src.Preview = preview
			}
		}
		out = append(out, src)
	}
	return out
}

// contextText concatenates the source contents and trims them to the token budget.
func (a *Answerer) contextText(sources []Source) string {
	var b strings.Builder
	for _, s := range sources {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", s.RelPath, strings.TrimSpace(s.Document.Content))
	}
	text := b.String()
	if limit := a.opts.MaxContextTokens; limit > 0 && a.opts.Tokens.Count(text) > limit {
		a.opts.Logger.Debug("truncating answer context", "max_tokens", limit)
		text = a.opts.Tokens.Truncate(text, limit)
	}
	return text
}

func (a *Answerer) relPath(path string) string {
	if a.opts.Root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(a.opts.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func buildPrompt(notes, question string) string {
	return "You answer questions about the user's personal notes.\n" +
		"Use only the context below. If it does not contain the answer, reply with exactly: no answer\n" +
		"Format the answer with markdown (headers, lists, bold text) for readability.\n\n" +
		"Context:\n" + notes +
		"Question: " + question + "\n"
}

func isEmptyAnswer(out string) bool {
	s := strings.ToLower(strings.TrimSpace(out))
	if s == "" {
		return true
	}
	_, ok := sentinels[strings.TrimRight(s, ".")]
	return ok
}

func errorText(err error) string {
	return "Error querying vault: " + err.Error()
}
