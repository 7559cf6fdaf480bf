package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/baaaaaaaka/claude_code_reader/internal/fsutil"
)

// PathError reports a write outside the guarded root.
type PathError struct {
	Path   string
	Root   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("refusing to modify %s: %s (root %s)", e.Path, e.Reason, e.Root)
}

// Writer mediates every change to files under Root. Each write or delete
// first copies the current file to a compressed backup under TempDir and,
// when Persistent reports true, to a sibling <file>.ccbak<unix> copy.
type Writer struct {
	Root string
	// TempDir holds transient backups and lock files. Defaults to
	// os.TempDir().
	TempDir    string
	Persistent func() bool
	Log        io.Writer

	now func() time.Time

	mu      sync.Mutex
	backups []Backup
}

// Validate resolves path and checks that it lies strictly inside Root. The
// file itself may not exist yet; its directory must.
func (w *Writer) Validate(path string) (string, error) {
	if strings.TrimSpace(w.Root) == "" {
		return "", &PathError{Path: path, Reason: "no data root configured"}
	}
	root, err := canonical(w.Root)
	if err != nil {
		return "", &PathError{Path: path, Root: w.Root, Reason: fmt.Sprintf("resolve root: %v", err)}
	}
	resolved, err := canonical(path)
	if errors.Is(err, os.ErrNotExist) {
		var dir string
		dir, err = canonical(filepath.Dir(path))
		resolved = filepath.Join(dir, filepath.Base(path))
	}
	if err != nil {
		return "", &PathError{Path: path, Root: root, Reason: fmt.Sprintf("resolve path: %v", err)}
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PathError{Path: path, Root: root, Reason: "outside data directory"}
	}
	return resolved, nil
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// WriteFile replaces path with data. The target is either fully replaced or
// left untouched.
func (w *Writer) WriteFile(path string, data []byte, op string) error {
	resolved, err := w.Validate(path)
	if err != nil {
		return err
	}
	unlock, err := w.lock(resolved)
	if err != nil {
		return err
	}
	defer unlock()

	perm := os.FileMode(0o644)
	if info, err := os.Stat(resolved); err == nil {
		perm = info.Mode().Perm()
		if err := w.backup(resolved, op); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", resolved, err)
	}

	if err := fsutil.AtomicWriteFile(resolved, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", resolved, err)
	}
	w.logf("guard: %s wrote %s (%d bytes)", op, resolved, len(data))
	return nil
}

// Remove backs up path and deletes it.
func (w *Writer) Remove(path, op string) error {
	resolved, err := w.Validate(path)
	if err != nil {
		return err
	}
	unlock, err := w.lock(resolved)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := os.Stat(resolved); err != nil {
		return fmt.Errorf("stat %s: %w", resolved, err)
	}
	if err := w.backup(resolved, op); err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil {
		return fmt.Errorf("remove %s: %w", resolved, err)
	}
	w.logf("guard: %s removed %s", op, resolved)
	return nil
}

func (w *Writer) tempDir() string {
	if w.TempDir != "" {
		return w.TempDir
	}
	return os.TempDir()
}

func (w *Writer) lock(path string) (func(), error) {
	dir := filepath.Join(w.tempDir(), "locks")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	sum := sha256.Sum256([]byte(path))
	lock := flock.New(filepath.Join(dir, hex.EncodeToString(sum[:8])+".lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return func() { _ = lock.Unlock() }, nil
}

func (w *Writer) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}

func (w *Writer) logf(format string, args ...any) {
	if w.Log == nil {
		return
	}
	_, _ = fmt.Fprintf(w.Log, format+"\n", args...)
}

