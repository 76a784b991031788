// Package index builds the semantic index over a vault exactly once per
// process and hands the finished index to its readers.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"ragsody/internal/domain"
	"ragsody/internal/embedding"
	"ragsody/internal/vectorstore"
)

// DocumentSource supplies the corpus snapshot to index.
type DocumentSource interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// StoreFactory returns a fresh storage for one build.
type StoreFactory func(ctx context.Context) (vectorstore.Storage, error)

// BuildError reports a failed build. Nothing is cached when it is returned.
type BuildError struct {
	Stage string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("index build failed during %s: %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() []error { return []error{domain.ErrIndexBuild, e.Err} }

// Index is a fully built, read-only view over the embedded corpus.
type Index struct {
	store    vectorstore.Storage
	embedder embedding.Embedder
	docs     []domain.Document
}

// Len returns the number of indexed documents.
func (i *Index) Len() int { return len(i.docs) }

// Documents returns the indexed documents in load order.
func (i *Index) Documents() []domain.Document {
	out := make([]domain.Document, len(i.docs))
	copy(out, i.docs)
	return out
}

// Embed embeds a query with the embedder the index was built with.
func (i *Index) Embed(ctx context.Context, text string) ([]float64, error) {
	return i.embedder.Embed(ctx, text)
}

// Search returns up to topK documents nearest to vector.
func (i *Index) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if len(i.docs) == 0 {
		return nil, nil
	}
	return i.store.Search(ctx, vector, topK)
}

// Builder lazily constructs the Index and caches it for the process lifetime.
type Builder struct {
	source   DocumentSource
	embedder embedding.Embedder
	newStore StoreFactory
	logger   *slog.Logger

	mu    sync.Mutex
	index *Index
}

func NewBuilder(source DocumentSource, embedder embedding.Embedder, newStore StoreFactory, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{source: source, embedder: embedder, newStore: newStore, logger: logger}
}

// EnsureBuilt returns the cached index, building it on first use.
func (b *Builder) EnsureBuilt(ctx context.Context) (*Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index != nil {
		return b.index, nil
	}
	idx, err := b.build(ctx)
	if err != nil {
		return nil, err
	}
	b.index = idx
	return idx, nil
}

// Built reports whether an index is cached.
func (b *Builder) Built() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index != nil
}

// Invalidate drops the cached index so the next EnsureBuilt rebuilds it.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.index = nil
}

func (b *Builder) build(ctx context.Context) (*Index, error) {
	docs, err := b.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	b.logger.Info("loaded documents", "count", len(docs))
	if len(docs) == 0 {
		b.logger.Warn("no documents loaded, check the vault path")
	}

	if len(docs) > 0 {
		texts := make([]string, len(docs))
		for i := range docs {
			texts[i] = docs[i].Content
		}
		if err := b.embedder.Prepare(ctx, texts); err != nil {
			return nil, &BuildError{Stage: "prepare", Err: err}
		}
	}

	embedded := make([]domain.Document, len(docs))
	var blank []int
	dim := -1
	for i, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			blank = append(blank, i)
			embedded[i] = d
			continue
		}
		vec, err := b.embedder.Embed(ctx, d.Content)
		if err != nil {
			return nil, &BuildError{Stage: "embed", Err: fmt.Errorf("%s: %w", d.Path, err)}
		}
		if dim < 0 {
			dim = len(vec)
		}
		d.Vector = vec
		embedded[i] = d
	}
	if dim < 0 {
		dim = max(b.embedder.Dimension(), 0)
	}
	// Blank notes stay retrievable with a zero vector.
	for _, i := range blank {
		embedded[i].Vector = make([]float64, dim)
	}

	store, err := b.newStore(ctx)
	if err != nil {
		return nil, &BuildError{Stage: "store", Err: err}
	}
	if err := store.Init(ctx, dim); err != nil {
		return nil, &BuildError{Stage: "store", Err: err}
	}
	if err := store.Upsert(ctx, embedded); err != nil {
		return nil, &BuildError{Stage: "store", Err: err}
	}
	b.logger.Debug("index ready", "documents", len(embedded), "dimension", dim, "embedder", b.embedder.Name())
	return &Index{store: store, embedder: b.embedder, docs: embedded}, nil
}
