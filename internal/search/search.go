package search

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/baaaaaaaka/claude_code_reader/internal/display"
)

type Mode int

const (
	ModeInsensitive Mode = iota
	ModeCaseSensitive
	ModeWholeWord
	ModeRegex
)

func (m Mode) String() string {
	switch m {
	case ModeCaseSensitive:
		return "case-sensitive"
	case ModeWholeWord:
		return "whole-word"
	case ModeRegex:
		return "regex"
	default:
		return "insensitive"
	}
}

// Query describes one search. When more than one flag is set, Regex wins
// over WholeWord, which wins over CaseSensitive. CaseSensitive still applies
// inside whole-word and regex searches.
type Query struct {
	Text          string `json:"text"`
	CaseSensitive bool   `json:"caseSensitive"`
	WholeWord     bool   `json:"wholeWord"`
	Regex         bool   `json:"regex"`
}

func (q Query) Mode() Mode {
	switch {
	case q.Regex:
		return ModeRegex
	case q.WholeWord:
		return ModeWholeWord
	case q.CaseSensitive:
		return ModeCaseSensitive
	default:
		return ModeInsensitive
	}
}

// Empty reports whether the query has nothing to search for. Whitespace is
// a real pattern in regex mode; literal queries are trimmed.
func (q Query) Empty() bool {
	if q.Regex {
		return q.Text == ""
	}
	return strings.TrimSpace(q.Text) == ""
}

// Key is the normalized cache key of the query.
func (q Query) Key() string {
	text := q.Text
	if !q.CaseSensitive && !q.Regex {
		text = strings.ToLower(text)
	}
	return fmt.Sprintf("%s|cs=%t|ww=%t|re=%t", text, q.CaseSensitive, q.WholeWord, q.Regex)
}

// PatternError reports a regular expression that does not compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid search pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// Matcher is a compiled query. It is safe for concurrent use.
type Matcher struct {
	query  Query
	mode   Mode
	needle string
	re     *regexp.Regexp
}

func Compile(q Query) (*Matcher, error) {
	m := &Matcher{query: q, mode: q.Mode()}
	switch m.mode {
	case ModeRegex:
		pattern := q.Text
		if !q.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &PatternError{Pattern: q.Text, Err: err}
		}
		m.re = re
	case ModeInsensitive:
		m.needle = strings.ToLower(q.Text)
	case ModeWholeWord:
		m.needle = q.Text
		if !q.CaseSensitive {
			m.needle = strings.ToLower(q.Text)
		}
	default:
		m.needle = q.Text
	}
	return m, nil
}

// Find returns the ids of the units whose text matches, in display order.
func (m *Matcher) Find(b *display.Bundle) []string {
	out := []string{}
	if b == nil || m.query.Empty() {
		return out
	}
	for i, u := range b.Units {
		if m.matchUnit(b, i) {
			out = append(out, u.ID)
		}
	}
	return out
}

// MatchString reports whether a single piece of text matches the query.
func (m *Matcher) MatchString(text string) bool {
	if m.query.Empty() {
		return false
	}
	return m.match(text, "")
}

func (m *Matcher) matchUnit(b *display.Bundle, i int) bool {
	return m.match(unitText(b.SearchText, i), unitText(b.SearchLower, i))
}

// match tests text; lower is its lowercase form when already known.
func (m *Matcher) match(text, lower string) bool {
	switch m.mode {
	case ModeRegex:
		return m.re.MatchString(text)
	case ModeInsensitive:
		if lower == "" && text != "" {
			lower = strings.ToLower(text)
		}
		return strings.Contains(lower, m.needle)
	case ModeWholeWord:
		if m.query.CaseSensitive {
			return containsWord(text, m.needle)
		}
		if lower == "" && text != "" {
			lower = strings.ToLower(text)
		}
		return containsWord(lower, m.needle)
	default:
		return strings.Contains(text, m.needle)
	}
}

func unitText(texts []string, i int) string {
	if i < len(texts) {
		return texts[i]
	}
	return ""
}

// containsWord reports whether needle occurs in text with no word character
// directly before or after it.
func containsWord(text, needle string) bool {
	if needle == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(needle); {
		idx := strings.Index(text[offset:], needle)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(needle)
		if !wordBefore(text, start) && !wordAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func wordBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return isWordRune(r)
}

func wordAfter(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
