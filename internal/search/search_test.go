package search

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/baaaaaaaka/claude_code_reader/internal/display"
)

func bundle(texts ...string) *display.Bundle {
	b := &display.Bundle{}
	for i, text := range texts {
		b.Units = append(b.Units, display.Unit{ID: string(rune('a' + i))})
		b.SearchText = append(b.SearchText, text)
		b.SearchLower = append(b.SearchLower, strings.ToLower(text))
	}
	return b
}

func find(t *testing.T, q Query, b *display.Bundle) []string {
	t.Helper()
	m, err := Compile(q)
	if err != nil {
		t.Fatalf("Compile(%+v): %v", q, err)
	}
	return m.Find(b)
}

func TestFindModes(t *testing.T) {
	b := bundle("alpha Beta\n", "alphabet soup\n", "BETA_max\n", "über beta\n")

	cases := []struct {
		name string
		q    Query
		want []string
	}{
		{"insensitive", Query{Text: "beta"}, []string{"a", "c", "d"}},
		{"case sensitive", Query{Text: "beta", CaseSensitive: true}, []string{"d"}},
		{"case sensitive upper", Query{Text: "Beta", CaseSensitive: true}, []string{"a"}},
		{"whole word", Query{Text: "alpha", WholeWord: true}, []string{"a"}},
		{"whole word underscore", Query{Text: "beta", WholeWord: true}, []string{"a", "d"}},
		{"whole word case sensitive", Query{Text: "beta", WholeWord: true, CaseSensitive: true}, []string{"d"}},
		{"regex", Query{Text: `^alpha\s`, Regex: true}, []string{"a"}},
		{"regex insensitive", Query{Text: `beta_\w+`, Regex: true}, []string{"c"}},
		{"regex case sensitive", Query{Text: `BETA`, Regex: true, CaseSensitive: true}, []string{"c"}},
		{"regex wins over whole word", Query{Text: "alph", Regex: true, WholeWord: true}, []string{"a", "b"}},
		{"no match", Query{Text: "gamma"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := find(t, tc.q, b); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Find=%v want %v", got, tc.want)
			}
		})
	}
}

func TestCaseBehaviour(t *testing.T) {
	b := bundle("alpha Beta\n")
	if got := find(t, Query{Text: "beta"}, b); len(got) != 1 {
		t.Fatalf("expected insensitive match, got %v", got)
	}
	if got := find(t, Query{Text: "beta", CaseSensitive: true}, b); len(got) != 0 {
		t.Fatalf("expected no sensitive match, got %v", got)
	}
}

func TestEmptyQueryMatchesNothing(t *testing.T) {
	b := bundle("anything\n")
	for _, text := range []string{"", "   ", "\t\n"} {
		if got := find(t, Query{Text: text}, b); len(got) != 0 {
			t.Fatalf("expected no matches for %q, got %v", text, got)
		}
	}
}

func TestWhitespaceRegexIsAPattern(t *testing.T) {
	b := bundle("alpha Beta\n", "BETA_max\n", "über beta\n")
	if (Query{Text: "", Regex: true}).Empty() != true {
		t.Fatalf("expected empty regex to be empty")
	}
	got := find(t, Query{Text: " ", Regex: true}, b)
	if !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("expected space regex to match spaced units, got %v", got)
	}
	if got := find(t, Query{Text: " ", WholeWord: true}, b); len(got) != 0 {
		t.Fatalf("expected trimmed whole-word query to match nothing, got %v", got)
	}
}

func TestInvalidRegex(t *testing.T) {
	_, err := Compile(Query{Text: "(unclosed", Regex: true})
	var perr *PatternError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PatternError, got %v", err)
	}
	if perr.Pattern != "(unclosed" {
		t.Fatalf("unexpected pattern %q", perr.Pattern)
	}
}

func TestFallsBackToLoweringWhenLowerMissing(t *testing.T) {
	b := &display.Bundle{
		Units:      []display.Unit{{ID: "x"}},
		SearchText: []string{"Hello World"},
	}
	if got := find(t, Query{Text: "world"}, b); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("unexpected matches %v", got)
	}
}

func TestContainsWord(t *testing.T) {
	cases := []struct {
		text, needle string
		want         bool
	}{
		{"foo bar", "bar", true},
		{"foobar bar", "bar", true},
		{"foobar", "bar", false},
		{"bar_1", "bar", false},
		{"(bar)", "bar", true},
		{"ébar", "bar", false},
		{"bar", "", false},
	}
	for _, tc := range cases {
		if got := containsWord(tc.text, tc.needle); got != tc.want {
			t.Fatalf("containsWord(%q, %q)=%v want %v", tc.text, tc.needle, got, tc.want)
		}
	}
}

func TestQueryKey(t *testing.T) {
	a := Query{Text: "Foo"}.Key()
	b := Query{Text: "foo"}.Key()
	if a != b {
		t.Fatalf("expected insensitive keys to match: %q vs %q", a, b)
	}
	if (Query{Text: "Foo", CaseSensitive: true}).Key() == (Query{Text: "foo", CaseSensitive: true}).Key() {
		t.Fatalf("expected sensitive keys to differ")
	}
	if (Query{Text: "foo", WholeWord: true}).Key() == b {
		t.Fatalf("expected whole-word key to differ")
	}
}

func TestMatchString(t *testing.T) {
	cases := []struct {
		q    Query
		text string
		want bool
	}{
		{Query{Text: "beta"}, "Alpha BETA", true},
		{Query{Text: "beta", CaseSensitive: true}, "Alpha BETA", false},
		{Query{Text: "alpha", WholeWord: true}, "alphabet", false},
		{Query{Text: `b\w+a`, Regex: true}, "x BETA y", true},
		{Query{Text: " "}, "a b", false},
	}
	for _, tc := range cases {
		m, err := Compile(tc.q)
		if err != nil {
			t.Fatalf("Compile(%+v): %v", tc.q, err)
		}
		if got := m.MatchString(tc.text); got != tc.want {
			t.Fatalf("MatchString(%+v, %q)=%v want %v", tc.q, tc.text, got, tc.want)
		}
	}
}
