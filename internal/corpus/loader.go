// Package corpus reads the notes of a vault into memory.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ragsody/internal/domain"
)

// DefaultExtensions lists the file extensions loaded when none are configured.
var DefaultExtensions = []string{".md"}

// Loader discovers eligible notes under a root directory.
type Loader struct {
	root       string
	extensions map[string]struct{}
	logger     *slog.Logger
}

// NewLoader creates a loader for root. Extensions are matched case-insensitively.
func NewLoader(root string, extensions []string, logger *slog.Logger) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if logger == nil {
		logger = slog.Default()
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	return &Loader{root: root, extensions: exts, logger: logger}
}

// Root returns the directory the loader reads from.
func (l *Loader) Root() string { return l.root }

// Load returns every eligible document in lexical path order. An existing root
// without eligible files yields an empty slice and no error.
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrCorpusUnavailable, l.root)
	}
	if _, err := os.ReadDir(l.root); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusUnavailable, err)
	}

	var docs []domain.Document
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == l.root {
				return walkErr
			}
			l.logger.Warn("skipping unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != l.root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.eligible(d.Name()) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("skipping unreadable note", "path", path, "error", err)
			return nil
		}
		docs = append(docs, domain.Document{
			ID:      documentID(l.root, path),
			Path:    path,
			Content: string(data),
			Seq:     len(docs),
		})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCorpusUnavailable, err)
	}
	return docs, nil
}

func (l *Loader) eligible(name string) bool {
	_, ok := l.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// documentID is stable for a path relative to the vault root.
func documentID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("vault:"+filepath.ToSlash(rel))).String()
}
