package placement

import "strings"

// Decision records the suggested and the confirmed destination.
type Decision struct {
	Suggested string
	Confirmed string
}

// Approve settles a suggestion with one line of input. An affirmative answer
// keeps the suggestion; anything else places the note at the vault root.
func Approve(input string, s Suggestion, root string) Decision {
	d := Decision{Suggested: s.Path, Confirmed: root}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		d.Confirmed = s.Path
	}
	return d
}
