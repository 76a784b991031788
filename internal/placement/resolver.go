// Package placement decides where a new note goes in the vault and writes it.
package placement

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ragsody/internal/domain"
)

// DefaultFolder receives notes that have no better home.
const DefaultFolder = "RAGsody_created"

const defaultTopK = 3

// Retriever finds the documents nearest to a text.
type Retriever interface {
	NearestText(ctx context.Context, text string, k int) (domain.RetrievalResult, error)
}

// Suggestion is a proposed destination directory for new content.
type Suggestion struct {
	Path string
	// FromMatch is the note the suggestion was derived from, if any.
	FromMatch string
	// Fallback is set when Path is the default folder.
	Fallback bool
}

// Resolver suggests destinations next to the most similar existing note.
type Resolver struct {
	retriever Retriever
	root      string
	fallback  string
	topK      int
	logger    *slog.Logger
}

// NewResolver returns a Resolver for the vault at root. An empty folder selects
// DefaultFolder; topK below 1 selects 3.
func NewResolver(retriever Retriever, root, folder string, topK int, logger *slog.Logger) *Resolver {
	if folder == "" {
		folder = DefaultFolder
	}
	if topK < 1 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	root = filepath.Clean(root)
	return &Resolver{
		retriever: retriever,
		root:      root,
		fallback:  filepath.Join(root, folder),
		topK:      topK,
		logger:    logger,
	}
}

// Root returns the vault root.
func (r *Resolver) Root() string { return r.root }

// Suggest returns the directory of the note most similar to content. It falls
// back to the default folder when nothing matches or the match lies outside
// the vault.
func (r *Resolver) Suggest(ctx context.Context, content string) Suggestion {
	hits, err := r.retriever.NearestText(ctx, content, r.topK)
	if err != nil {
		r.logger.Debug("placement retrieval failed, using default folder", "error", err)
		return r.fallbackSuggestion()
	}
	if len(hits) == 0 {
		r.logger.Debug("no similar notes, using default folder")
		return r.fallbackSuggestion()
	}
	top := hits[0].Document.Path
	dir := filepath.Dir(filepath.Clean(top))
	if !within(r.root, dir) {
		r.logger.Debug("nearest note is outside the vault, using default folder", "path", top)
		return r.fallbackSuggestion()
	}
	return Suggestion{Path: dir, FromMatch: top}
}

func (r *Resolver) fallbackSuggestion() Suggestion {
	return Suggestion{Path: r.fallback, Fallback: true}
}

// EnsureDir creates dir and its parents if missing.
func (r *Resolver) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("placement: create %s: %w", dir, err)
	}
	return nil
}

// within reports whether dir is root or one of its descendants.
func within(root, dir string) bool {
	if !filepath.IsAbs(dir) && filepath.IsAbs(root) {
		return false
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
