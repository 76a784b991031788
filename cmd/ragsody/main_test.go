package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragsody/internal/corpus"
	"ragsody/internal/domain"
	"ragsody/internal/embedding/tfidf"
	"ragsody/internal/index"
	"ragsody/internal/vectorstore"
	"ragsody/internal/vectorstore/memory"
)

type failingIndexes struct{ err error }

func (f failingIndexes) EnsureBuilt(context.Context) (*index.Index, error) { return nil, f.err }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildIndex_CountsDocuments(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("tomatoes need sun"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.md"), []byte("bread needs flour"), 0o644))
	stores := func(context.Context) (vectorstore.Storage, error) { return memory.NewStorage(), nil }
	b := index.NewBuilder(corpus.NewLoader(root, nil, nil), tfidf.NewEmbedder(), stores, nil)

	n, err := buildIndex(context.Background(), b, discard())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, b.Built())
}

func TestBuildIndex_BuildFailureIsNotFatal(t *testing.T) {
	err := &index.BuildError{Stage: "embed", Err: errors.New("network unreachable")}

	n, gotErr := buildIndex(context.Background(), failingIndexes{err: err}, discard())

	require.NoError(t, gotErr)
	assert.Zero(t, n)
}

type unreachableEmbedder struct{}

func (unreachableEmbedder) Name() string                            { return "unreachable" }
func (unreachableEmbedder) Prepare(context.Context, []string) error { return nil }
func (unreachableEmbedder) Dimension() int                          { return 0 }
func (unreachableEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestBuildIndex_FailedBuildLeavesIndexUnbuilt(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("tomatoes need sun"), 0o644))
	stores := func(context.Context) (vectorstore.Storage, error) { return memory.NewStorage(), nil }
	b := index.NewBuilder(corpus.NewLoader(root, nil, nil), unreachableEmbedder{}, stores, nil)

	_, err := buildIndex(context.Background(), b, discard())

	require.NoError(t, err)
	assert.False(t, b.Built())
}

func TestBuildIndex_UnreadableVaultIsFatal(t *testing.T) {
	err := fmt.Errorf("load corpus: %w", domain.ErrCorpusUnavailable)

	_, gotErr := buildIndex(context.Background(), failingIndexes{err: err}, discard())

	assert.ErrorIs(t, gotErr, domain.ErrCorpusUnavailable)
}
