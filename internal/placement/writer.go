package placement

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const maxCollisions = 1000

// Writer stores new notes without ever replacing an existing file.
type Writer struct {
	logger *slog.Logger
}

// NewWriter returns a Writer. The target directory must already exist;
// see Resolver.EnsureDir.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// Write saves content in dir under a name derived from its leading line and
// returns the path written. Taken names get a _2, _3, ... suffix.
func (w *Writer) Write(dir, content string) (string, error) {
	base := Filename(content)
	stem := strings.TrimSuffix(base, ".md")
	for n := 1; n <= maxCollisions; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d.md", stem, n)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("placement: create %s: %w", path, err)
		}
		_, werr := f.WriteString(content)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return "", fmt.Errorf("placement: write %s: %w", path, err)
		}
		w.logger.Info("note written", "path", path)
		return path, nil
	}
	return "", fmt.Errorf("placement: no free name for %s in %s", base, dir)
}

// Filename derives a note file name from the first line of content.
func Filename(content string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	title := strings.TrimSpace(first)
	if strings.HasPrefix(title, "#") {
		title = strings.TrimSpace(strings.TrimLeft(title, "#"))
	}
	title = strings.ReplaceAll(strings.ToLower(title), " ", "_")
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = "untitled"
	}
	return name + ".md"
}
