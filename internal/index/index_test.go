package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragsody/internal/domain"
	"ragsody/internal/vectorstore"
	"ragsody/internal/vectorstore/memory"
)

type staticSource struct {
	docs  []domain.Document
	err   error
	loads int
}

func (s *staticSource) Load(context.Context) ([]domain.Document, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Document, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

type countingEmbedder struct {
	calls    int
	prepares int
	failAt   int
}

func (e *countingEmbedder) Name() string { return "counting" }
func (e *countingEmbedder) Prepare(context.Context, []string) error {
	e.prepares++
	return nil
}
func (e *countingEmbedder) Dimension() int { return 2 }
func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls++
	if e.failAt > 0 && e.calls == e.failAt {
		return nil, errors.New("network unreachable")
	}
	return []float64{float64(len(text)), 1}, nil
}

func memoryStores(ctx context.Context) (vectorstore.Storage, error) {
	return memory.NewStorage(), nil
}

func corpus(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{ID: string(rune('a' + i)), Path: string(rune('a'+i)) + ".md", Content: "note", Seq: i}
	}
	return docs
}

func TestEnsureBuilt_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{docs: corpus(3)}
	emb := &countingEmbedder{}
	b := NewBuilder(src, emb, memoryStores, nil)

	first, err := b.EnsureBuilt(ctx)
	require.NoError(t, err)
	second, err := b.EnsureBuilt(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 3, emb.calls)
	assert.Equal(t, 1, emb.prepares)
	assert.Equal(t, 1, src.loads)
	assert.Equal(t, 3, first.Len())
	assert.True(t, b.Built())
}

func TestEnsureBuilt_EveryDocumentOnce(t *testing.T) {
	b := NewBuilder(&staticSource{docs: corpus(4)}, &countingEmbedder{}, memoryStores, nil)
	idx, err := b.EnsureBuilt(context.Background())
	require.NoError(t, err)

	seen := map[string]int{}
	for _, d := range idx.Documents() {
		seen[d.ID]++
		assert.Len(t, d.Vector, 2)
	}
	assert.Len(t, seen, 4)
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestEnsureBuilt_EmptyCorpus(t *testing.T) {
	emb := &countingEmbedder{}
	b := NewBuilder(&staticSource{}, emb, memoryStores, nil)

	idx, err := b.EnsureBuilt(context.Background())
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
	assert.Zero(t, emb.prepares)

	res, err := idx.Search(context.Background(), []float64{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestEnsureBuilt_BlankNotesGetZeroVectors(t *testing.T) {
	docs := corpus(3)
	docs[1].Content = "  \n"
	emb := &countingEmbedder{}
	b := NewBuilder(&staticSource{docs: docs}, emb, memoryStores, nil)

	idx, err := b.EnsureBuilt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls)
	require.Equal(t, 3, idx.Len())
	got := idx.Documents()
	assert.Equal(t, []float64{0, 0}, got[1].Vector)
	assert.Equal(t, []float64{4, 1}, got[0].Vector)
}

func TestEnsureBuilt_AllNotesBlank(t *testing.T) {
	docs := corpus(2)
	for i := range docs {
		docs[i].Content = ""
	}
	emb := &countingEmbedder{}
	b := NewBuilder(&staticSource{docs: docs}, emb, memoryStores, nil)

	idx, err := b.EnsureBuilt(context.Background())
	require.NoError(t, err)
	assert.Zero(t, emb.calls)
	assert.Equal(t, 2, idx.Len())
	for _, d := range idx.Documents() {
		assert.Len(t, d.Vector, 2)
	}
}

func TestEnsureBuilt_FailureIsAtomicAndRetryable(t *testing.T) {
	ctx := context.Background()
	emb := &countingEmbedder{failAt: 2}
	b := NewBuilder(&staticSource{docs: corpus(3)}, emb, memoryStores, nil)

	_, err := b.EnsureBuilt(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexBuild)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "embed", be.Stage)
	assert.False(t, b.Built())

	idx, err := b.EnsureBuilt(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
}

func TestEnsureBuilt_CorpusUnavailable(t *testing.T) {
	src := &staticSource{err: domain.ErrCorpusUnavailable}
	b := NewBuilder(src, &countingEmbedder{}, memoryStores, nil)

	_, err := b.EnsureBuilt(context.Background())
	assert.ErrorIs(t, err, domain.ErrCorpusUnavailable)
	assert.NotErrorIs(t, err, domain.ErrIndexBuild)
}

func TestEnsureBuilt_StoreFailure(t *testing.T) {
	failing := func(context.Context) (vectorstore.Storage, error) {
		return nil, errors.New("connection refused")
	}
	b := NewBuilder(&staticSource{docs: corpus(1)}, &countingEmbedder{}, failing, nil)

	_, err := b.EnsureBuilt(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexBuild)
	assert.False(t, b.Built())
}

func TestInvalidate_Rebuilds(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{docs: corpus(2)}
	emb := &countingEmbedder{}
	b := NewBuilder(src, emb, memoryStores, nil)

	first, err := b.EnsureBuilt(ctx)
	require.NoError(t, err)
	src.docs = corpus(3)
	b.Invalidate()
	second, err := b.EnsureBuilt(ctx)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 3, second.Len())
	assert.Equal(t, 5, emb.calls)
}
