// Package request classifies a line of user input.
package request

import (
	"regexp"
	"strings"
)

// Kind tags what a request asks for.
type Kind int

const (
	// KindQuery asks a question about the vault.
	KindQuery Kind = iota
	// KindGenerateFromSources asks for a new note built from web pages.
	KindGenerateFromSources
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindGenerateFromSources:
		return "generate_from_sources"
	default:
		return "unknown"
	}
}

// Request is an interpreted user request. URLs is set only for
// KindGenerateFromSources.
type Request struct {
	Kind   Kind
	Prompt string
	URLs   []string
}

var urlRe = regexp.MustCompile(`https?://[^\s<>"'()\[\]{}]+`)

// ExtractURLs returns the http(s) URLs in text in order of appearance.
// Trailing sentence punctuation is not part of a URL.
func ExtractURLs(text string) []string {
	found := urlRe.FindAllString(text, -1)
	out := found[:0]
	for _, u := range found {
		u = strings.TrimRight(u, ".,;:!?")
		if _, host, _ := strings.Cut(u, "://"); host != "" {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Interpret classifies input. Any URL makes it a generation request.
func Interpret(input string) Request {
	prompt := strings.TrimSpace(input)
	if urls := ExtractURLs(prompt); len(urls) > 0 {
		return Request{Kind: KindGenerateFromSources, Prompt: prompt, URLs: urls}
	}
	return Request{Kind: KindQuery, Prompt: prompt}
}

// Command is a built-in session command.
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandHelp
)

// ParseCommand recognises quit/exit and help/?.
func ParseCommand(input string) Command {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "quit", "exit":
		return CommandQuit
	case "help", "?":
		return CommandHelp
	default:
		return CommandNone
	}
}

// HelpText lists the commands available in a session.
const HelpText = `Commands
  help, ?       show this help
  quit, exit    leave

Ask a question about your vault, or include one or more URLs to
generate a new note from those pages.`
