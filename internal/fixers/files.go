package fixers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/baaaaaaaka/claude_code_reader/internal/guard"
)

const keepSiblingBackups = 3

func dropInvalidLines() Fixer {
	return Fixer{
		Definition: Definition{
			ID:          "drop_invalid_lines",
			Name:        "Corrupted lines",
			Description: "Lines that are not valid JSON, for example a record cut short by a crash, are hidden by the reader but can break other tools that read the session.",
			FixMethod:   "Remove lines that do not parse as JSON. Every other line is kept byte for byte.",
			Tags:        []string{"json", "corrupt", "truncated", "parse"},
			Tier:        TierContent,
		},
		Exec: ContentFunc(func(content string) (Result, string, error) {
			lines := strings.Split(content, "\n")
			kept := make([]string, 0, len(lines))
			dropped := 0
			for _, line := range lines {
				trimmed := strings.TrimSpace(line)
				if trimmed != "" && !json.Valid([]byte(trimmed)) {
					dropped++
					continue
				}
				kept = append(kept, line)
			}
			if dropped == 0 {
				return Result{Success: true, Message: "all lines are valid JSON, nothing to fix"}, content, nil
			}
			return Result{
				Success:  true,
				Message:  fmt.Sprintf("removed %d invalid lines", dropped),
				Affected: dropped,
			}, strings.Join(kept, "\n"), nil
		}),
	}
}

func restoreLatestBackup() Fixer {
	return Fixer{
		Definition: Definition{
			ID:          "restore_latest_backup",
			Name:        "Undo the last change",
			Description: "A session was changed by mistake and the previous version is still available as a backup.",
			FixMethod:   "Write the newest backup of the session back over it. The current version is backed up first.",
			Tags:        []string{"backup", "restore", "undo"},
			Tier:        TierFile,
		},
		Exec: FileFunc(func(ctx context.Context, path string, w *guard.Writer) (Result, error) {
			latest, err := w.LatestBackup(path)
			if errors.Is(err, guard.ErrNoBackup) {
				return Result{Success: false, Message: "no backup of this session was found"}, nil
			}
			if err != nil {
				return Result{}, err
			}
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			if _, err := w.Restore(latest.Path, path); err != nil {
				return Result{}, err
			}
			return Result{
				Success:  true,
				Message:  fmt.Sprintf("restored backup from %s", latest.CreatedAt.Format("2006-01-02 15:04:05")),
				Affected: 1,
			}, nil
		}),
	}
}

func pruneSiblingBackups() Fixer {
	return Fixer{
		Definition: Definition{
			ID:          "prune_sibling_backups",
			Name:        "Too many persistent backups",
			Description: "With persistent backups enabled every change leaves a .ccbak copy next to the session, which adds up for long sessions.",
			FixMethod:   fmt.Sprintf("Delete all but the newest %d .ccbak copies of the session.", keepSiblingBackups),
			Tags:        []string{"backup", "ccbak", "disk"},
			Tier:        TierUnrestricted,
		},
		Exec: UnrestrictedFunc(func(ctx context.Context, path string, _ *guard.Writer) (Result, error) {
			backups, err := guard.SiblingBackups(path)
			if err != nil {
				return Result{}, err
			}
			if len(backups) <= keepSiblingBackups {
				return Result{Success: true, Message: fmt.Sprintf("%d backups present, nothing to prune", len(backups))}, nil
			}
			removed := 0
			for _, b := range backups[keepSiblingBackups:] {
				if err := ctx.Err(); err != nil {
					return Result{}, err
				}
				if err := os.Remove(b.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
					return Result{}, fmt.Errorf("remove backup %s: %w", b.Path, err)
				}
				removed++
			}
			return Result{
				Success:  true,
				Message:  fmt.Sprintf("removed %d old backups", removed),
				Affected: removed,
			}, nil
		}),
	}
}
