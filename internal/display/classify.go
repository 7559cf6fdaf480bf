package display

import (
	"regexp"
	"strings"

	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

type Class int

const (
	ClassSkip Class = iota
	ClassAssistant
	ClassCompactSummary
	ClassSlashCommand
	ClassSystem
	ClassUser
)

const (
	LabelSystem = "system"
	LabelSkill  = "skill"
	LabelPlan   = "plan"
)

type Classification struct {
	Class          Class
	Label          string
	PlanSourcePath string
	Command        string
}

const (
	continuationMarker = "This session is being continued from a previous conversation"
	skillMarker        = "Base directory for this skill:"
	planMarker         = "Implement the following plan:\n\n#"
)

var systemTags = []string{
	"local-command-stdout",
	"local-command-caveat",
	"system-reminder",
	"user-prompt-submit-hook",
	"task-notification",
}

var (
	planTranscriptRe = regexp.MustCompile(`read the full transcript at:\s*(.+?\.jsonl)`)
	planHeadingRe    = regexp.MustCompile(`(?m)^#{1,2}\s`)
)

// Classify assigns a display class to a record. Records other than user and
// assistant turns are skipped. Markers are matched by prefix; anything that
// does not match cleanly falls through to a plain user turn.
func Classify(rec *transcript.Record) Classification {
	switch rec.Type() {
	case "assistant":
		return Classification{Class: ClassAssistant}
	case "user":
	default:
		return Classification{Class: ClassSkip}
	}

	if rec.IsCompactSummary() {
		return Classification{Class: ClassCompactSummary}
	}

	text := rec.Text()
	if strings.HasPrefix(text, continuationMarker) {
		return Classification{Class: ClassCompactSummary}
	}
	if cmd, ok := slashCommand(text); ok {
		return Classification{Class: ClassSlashCommand, Command: cmd}
	}
	if rec.IsMeta() {
		if strings.HasPrefix(text, skillMarker) {
			return system(LabelSkill, "")
		}
		return system(LabelSystem, "")
	}
	if rec.Has("sourceToolUseID") {
		return system(LabelSkill, "")
	}
	if rec.Has("caller") {
		return system(LabelSystem, "")
	}
	if path, ok := planExecution(text); ok {
		return system(LabelPlan, path)
	}
	for _, tag := range systemTags {
		if hasTagPair(text, tag) {
			return system(LabelSystem, "")
		}
	}
	return Classification{Class: ClassUser}
}

func system(label, planPath string) Classification {
	return Classification{Class: ClassSystem, Label: label, PlanSourcePath: planPath}
}

func slashCommand(text string) (string, bool) {
	rest, ok := strings.CutPrefix(text, "<command-name>")
	if !ok {
		return "", false
	}
	cmd, _, ok := strings.Cut(rest, "</command-name>")
	if !ok || !strings.HasPrefix(cmd, "/") {
		return "", false
	}
	return cmd, true
}

func planExecution(text string) (string, bool) {
	if !strings.HasPrefix(text, planMarker) {
		return "", false
	}
	m := planTranscriptRe.FindStringSubmatch(text)
	if m == nil || !planHeadingRe.MatchString(text) {
		return "", false
	}
	return m[1], true
}

func hasTagPair(text, tag string) bool {
	rest, ok := strings.CutPrefix(text, "<"+tag+">")
	return ok && strings.Contains(rest, "</"+tag+">")
}
