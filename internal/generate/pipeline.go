// Package generate drafts new notes from web sources and revises them.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ragsody/internal/domain"
	"ragsody/internal/scraper"
)

// PageFetcher downloads the readable content of a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, link string) (scraper.Page, error)
}

// Source is the scraped content of one requested URL.
type Source struct {
	URL     string
	Content string
	Err     error
}

// Pipeline turns a request and its URLs into markdown drafts.
type Pipeline struct {
	fetcher   PageFetcher
	generator domain.Generator
	logger    *slog.Logger
}

func NewPipeline(fetcher PageFetcher, generator domain.Generator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{fetcher: fetcher, generator: generator, logger: logger}
}

// Scrape fetches every URL in order. A failed fetch is kept as an error text
// so the draft still accounts for each requested source.
func (p *Pipeline) Scrape(ctx context.Context, urls []string) []Source {
	out := make([]Source, 0, len(urls))
	for _, u := range urls {
		page, err := p.fetcher.Fetch(ctx, u)
		if err != nil {
			p.logger.Warn("scrape failed", "url", u, "error", err)
			out = append(out, Source{URL: u, Content: fmt.Sprintf("Error scraping %s: %v", u, err), Err: err})
			continue
		}
		p.logger.Debug("scraped source", "url", u, "chars", len(page.Body))
		out = append(out, Source{URL: u, Content: page.Text()})
	}
	return out
}

// FirstDraft scrapes urls and generates a markdown note answering request.
func (p *Pipeline) FirstDraft(ctx context.Context, request string, urls []string) (string, error) {
	sources := p.Scrape(ctx, urls)
	out, err := p.generator.Generate(ctx, draftPrompt(sources, request))
	if err != nil {
		return "", fmt.Errorf("generate draft: %w", err)
	}
	return ExtractMarkdown(out), nil
}

// Revise regenerates current according to feedback.
func (p *Pipeline) Revise(ctx context.Context, feedback, current string) (string, error) {
	out, err := p.generator.Generate(ctx, revisionPrompt(feedback, current))
	if err != nil {
		return "", fmt.Errorf("revise draft: %w", err)
	}
	return ExtractMarkdown(out), nil
}

func draftPrompt(sources []Source, request string) string {
	var b strings.Builder
	b.WriteString("I have fetched content from the given URLs. The content can be found below.\n\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "=== Source %d: %s ===\n%s\n\n", i+1, s.URL, s.Content)
	}
	fmt.Fprintf(&b, "Based on this content and the following request: %q\n", request)
	b.WriteString("Create a markdown document. Start with a single top-level heading for the title. ")
	b.WriteString("Use proper markdown formatting including headers, lists, bold text and links. ")
	b.WriteString("Return ONLY the markdown content without any introduction or explanation.")
	return b.String()
}

func revisionPrompt(feedback, current string) string {
	var b strings.Builder
	b.WriteString("Revise the markdown document below according to the feedback.\n\n")
	b.WriteString("Feedback:\n")
	b.WriteString(feedback)
	b.WriteString("\n\nCurrent document:\n")
	b.WriteString(current)
	b.WriteString("\n\nReturn the complete revised document as markdown only, keeping a single top-level heading for the title.")
	return b.String()
}

// ExtractMarkdown unwraps model output from a surrounding ```markdown or ```
// fence.
func ExtractMarkdown(out string) string {
	s := strings.TrimSpace(out)
	const mdFence = "```markdown"
	if i := strings.Index(s, mdFence); i >= 0 {
		rest := s[i+len(mdFence):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
	}
	if strings.HasPrefix(s, "```") {
		if j := strings.LastIndex(s, "```"); j > 3 {
			inner := s[3:j]
			// drop a language tag on the opening fence line
			if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], " \t") {
				inner = inner[nl+1:]
			}
			return strings.TrimSpace(inner)
		}
	}
	return s
}
