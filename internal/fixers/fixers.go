package fixers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/baaaaaaaka/claude_code_reader/internal/guard"
	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

// Tier is how much filesystem access a fixer gets. Record and content
// fixers never touch the file themselves; the registry reads the session,
// runs them and writes the result through the guard.
type Tier string

const (
	TierRecord       Tier = "record"
	TierContent      Tier = "content"
	TierFile         Tier = "file"
	TierUnrestricted Tier = "unrestricted"
)

type Definition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	FixMethod   string   `json:"fixMethod"`
	Tags        []string `json:"tags"`
	Tier        Tier     `json:"tier"`
}

type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Affected int    `json:"affected"`
}

// Exec is one of RecordFunc, ContentFunc, FileFunc or UnrestrictedFunc.
type Exec interface {
	tier() Tier
}

// RecordFunc edits the decoded records in place.
type RecordFunc func(records *[]*transcript.Record) (Result, error)

// ContentFunc rewrites the raw file content.
type ContentFunc func(content string) (Result, string, error)

// FileFunc gets a path already checked to be inside the data directory.
type FileFunc func(ctx context.Context, path string, w *guard.Writer) (Result, error)

// UnrestrictedFunc gets the path as given.
type UnrestrictedFunc func(ctx context.Context, path string, w *guard.Writer) (Result, error)

func (RecordFunc) tier() Tier       { return TierRecord }
func (ContentFunc) tier() Tier      { return TierContent }
func (FileFunc) tier() Tier         { return TierFile }
func (UnrestrictedFunc) tier() Tier { return TierUnrestricted }

type Fixer struct {
	Definition Definition
	Exec       Exec
}

var ErrUnknownFixer = errors.New("unknown fixer")

type Registry struct {
	fixers []Fixer
}

func NewRegistry(fixers ...Fixer) (*Registry, error) {
	r := &Registry{}
	seen := map[string]bool{}
	for _, f := range fixers {
		if f.Exec == nil {
			return nil, fmt.Errorf("fixer %q has no exec", f.Definition.ID)
		}
		if f.Definition.Tier != f.Exec.tier() {
			return nil, fmt.Errorf("fixer %q declares tier %s but runs as %s", f.Definition.ID, f.Definition.Tier, f.Exec.tier())
		}
		if seen[f.Definition.ID] {
			return nil, fmt.Errorf("duplicate fixer %q", f.Definition.ID)
		}
		seen[f.Definition.ID] = true
		r.fixers = append(r.fixers, f)
	}
	return r, nil
}

// Default holds the shipped fixers.
func Default() *Registry {
	r, err := NewRegistry(
		stripThinking(),
		stripOrphanToolResults(),
		repairUUIDs(),
		dropInvalidLines(),
		restoreLatestBackup(),
		pruneSiblingBackups(),
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.fixers))
	for _, f := range r.fixers {
		out = append(out, f.Definition)
	}
	return out
}

func (r *Registry) Lookup(id string) (Fixer, bool) {
	for _, f := range r.fixers {
		if f.Definition.ID == id {
			return f, true
		}
	}
	return Fixer{}, false
}

// Run executes fixer id against the session at path. Record and content
// fixers only cause a write when they report affected records.
func (r *Registry) Run(ctx context.Context, id, path string, w *guard.Writer) (Result, error) {
	f, ok := r.Lookup(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFixer, id)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	op := "fixer_" + id

	switch exec := f.Exec.(type) {
	case RecordFunc:
		records, _, err := transcript.ReadFile(path)
		if err != nil {
			return Result{}, err
		}
		res, err := exec(&records)
		if err != nil {
			return Result{}, fmt.Errorf("run %s: %w", id, err)
		}
		if res.Affected > 0 {
			if err := w.WriteFile(path, transcript.Encode(records), op); err != nil {
				return Result{}, err
			}
		}
		return res, nil

	case ContentFunc:
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("read %s: %w", path, err)
		}
		res, content, err := exec(string(data))
		if err != nil {
			return Result{}, fmt.Errorf("run %s: %w", id, err)
		}
		if res.Affected > 0 {
			if err := w.WriteFile(path, []byte(content), op); err != nil {
				return Result{}, err
			}
		}
		return res, nil

	case FileFunc:
		resolved, err := w.Validate(path)
		if err != nil {
			return Result{}, err
		}
		return exec(ctx, resolved, w)

	case UnrestrictedFunc:
		return exec(ctx, path, w)
	}
	return Result{}, fmt.Errorf("fixer %q has unsupported tier %s", id, f.Definition.Tier)
}
