package guard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

const (
	backupDirName = "ccr-backups"
	siblingMarker = ".ccbak"
	compressedExt = ".bak.xz"
	restoreOp     = "restore_backup"
	maxNameTries  = 100
)

// Backup is one saved copy of a file taken before it was modified.
type Backup struct {
	Path       string    `json:"path"`
	Original   string    `json:"originalPath"`
	Op         string    `json:"operation"`
	CreatedAt  time.Time `json:"createdAt"`
	Persistent bool      `json:"persistent"`
}

var ErrNoBackup = errors.New("no backup found")

func (w *Writer) backup(path, op string) error {
	now := w.clock()
	dir := filepath.Join(w.tempDir(), backupDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	var dst string
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s_%d%s", filepath.Base(path), now.UnixNano(), compressedExt)
		if i > 0 {
			name = fmt.Sprintf("%s_%d-%d%s", filepath.Base(path), now.UnixNano(), i, compressedExt)
		}
		dst = filepath.Join(dir, name)
		err := compressFile(path, dst)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || i >= maxNameTries {
			return fmt.Errorf("backup %s: %w", path, err)
		}
	}
	w.register(Backup{Path: dst, Original: path, Op: op, CreatedAt: now})

	if w.Persistent != nil && w.Persistent() {
		sibling, err := copySibling(path, now)
		if err != nil {
			return fmt.Errorf("persistent backup %s: %w", path, err)
		}
		w.logf("guard: saved %s", sibling)
	}
	return nil
}

func (w *Writer) register(b Backup) {
	w.mu.Lock()
	w.backups = append(w.backups, b)
	w.mu.Unlock()
}

// Backups lists the transient backups taken by this writer, newest first.
func (w *Writer) Backups() []Backup {
	w.mu.Lock()
	out := make([]Backup, len(w.backups))
	copy(out, w.backups)
	w.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// SiblingBackups lists the <path>.ccbak<unix> copies next to path, newest
// first.
func SiblingBackups(path string) ([]Backup, error) {
	matches, err := filepath.Glob(globEscape(path) + siblingMarker + "*")
	if err != nil {
		return nil, err
	}
	var out []Backup
	for _, m := range matches {
		ts, ok := siblingTime(path, m)
		if !ok {
			continue
		}
		out = append(out, Backup{Path: m, Original: path, CreatedAt: ts, Persistent: true})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Path > out[j].Path
	})
	return out, nil
}

// LatestBackup returns the newest transient or sibling backup of path.
func (w *Writer) LatestBackup(path string) (Backup, error) {
	resolved, err := w.Validate(path)
	if err != nil {
		return Backup{}, err
	}
	var best Backup
	found := false
	for _, b := range w.Backups() {
		if b.Original == resolved {
			best, found = b, true
			break
		}
	}
	siblings, err := SiblingBackups(resolved)
	if err != nil {
		return Backup{}, err
	}
	if len(siblings) > 0 && (!found || siblings[0].CreatedAt.After(best.CreatedAt)) {
		best, found = siblings[0], true
	}
	if !found {
		return Backup{}, fmt.Errorf("%s: %w", resolved, ErrNoBackup)
	}
	return best, nil
}

// Restore writes a backup's content back over its original file. The
// original is looked up in the registry or derived from a sibling backup
// name unless target is given. The restore is itself backed up.
func (w *Writer) Restore(backupPath, target string) (Backup, error) {
	b, ok := w.lookup(backupPath)
	if !ok {
		b = Backup{Path: backupPath}
		if original, ok := siblingOriginal(backupPath); ok {
			b.Original = original
			b.Persistent = true
		}
	}
	if target != "" {
		b.Original = target
	}
	if b.Original == "" {
		return Backup{}, fmt.Errorf("restore %s: unknown original file", backupPath)
	}
	data, err := readBackup(b.Path)
	if err != nil {
		return Backup{}, fmt.Errorf("read backup %s: %w", b.Path, err)
	}
	if err := w.WriteFile(b.Original, data, restoreOp); err != nil {
		return Backup{}, err
	}
	return b, nil
}

func (w *Writer) lookup(backupPath string) (Backup, bool) {
	clean := filepath.Clean(backupPath)
	for _, b := range w.Backups() {
		if b.Path == clean {
			return b, true
		}
	}
	return Backup{}, false
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	zw, err := xz.NewWriter(out)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func readBackup(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if !strings.HasSuffix(path, ".xz") {
		return io.ReadAll(f)
	}
	zr, err := xz.NewReader(f)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(zr)
}

func copySibling(path string, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	ts := now.Unix()
	for i := 0; i < maxNameTries; i++ {
		dst := path + siblingMarker + strconv.FormatInt(ts+int64(i), 10)
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(dst)
			return "", err
		}
		return dst, f.Close()
	}
	return "", fmt.Errorf("no free backup name for %s", path)
}

func siblingTime(original, candidate string) (time.Time, bool) {
	suffix, ok := strings.CutPrefix(candidate, original+siblingMarker)
	if !ok || suffix == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

func siblingOriginal(path string) (string, bool) {
	i := strings.LastIndex(path, siblingMarker)
	if i <= 0 {
		return "", false
	}
	if _, ok := siblingTime(path[:i], path); !ok {
		return "", false
	}
	return path[:i], true
}

func globEscape(path string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	if filepath.Separator == '\\' {
		return path
	}
	return r.Replace(path)
}
