package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/baaaaaaaka/claude_code_reader/internal/cache"
	"github.com/baaaaaaaka/claude_code_reader/internal/claudehistory"
	"github.com/baaaaaaaka/claude_code_reader/internal/display"
	"github.com/baaaaaaaka/claude_code_reader/internal/export"
	"github.com/baaaaaaaka/claude_code_reader/internal/fixers"
	"github.com/baaaaaaaka/claude_code_reader/internal/guard"
	"github.com/baaaaaaaka/claude_code_reader/internal/search"
	"github.com/baaaaaaaka/claude_code_reader/internal/transcript"
)

var (
	ErrRecordNotFound    = errors.New("message not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidEdit       = errors.New("invalid edit")
	ErrUnsupportedFormat = export.ErrUnsupportedFormat
)

type Options struct {
	// ClaudeDir is the Claude data dir; empty means $CLAUDE_DIR or ~/.claude.
	ClaudeDir string
	// TempDir holds transient backups and write locks.
	TempDir          string
	PersistentBackup func() bool
	ProjectTTL       time.Duration
	SessionCacheSize int
	ScanWorkers      int
	Fixers           *fixers.Registry
	Log              io.Writer
	Now              func() time.Time
}

// Service is the single entry point for reading and changing sessions. All
// methods are safe for concurrent use; changes to one session are
// serialized.
type Service struct {
	claudeDir string
	workers   int
	log       io.Writer
	now       func() time.Time

	projects *cache.ProjectCache
	sessions *cache.SessionCache
	searches *cache.SearchCache
	guard    *guard.Writer
	fixers   *fixers.Registry
}

func New(opts Options) (*Service, error) {
	dir, err := claudehistory.ResolveClaudeDir(opts.ClaudeDir)
	if err != nil {
		return nil, fmt.Errorf("resolve claude dir: %w", err)
	}
	if opts.Fixers == nil {
		opts.Fixers = fixers.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{
		claudeDir: dir,
		workers:   opts.ScanWorkers,
		log:       opts.Log,
		now:       opts.Now,
		projects:  cache.NewProjectCache(opts.ProjectTTL),
		sessions:  cache.NewSessionCache(opts.SessionCacheSize),
		searches:  cache.NewSearchCache(),
		guard: &guard.Writer{
			Root:       dir,
			TempDir:    opts.TempDir,
			Persistent: opts.PersistentBackup,
			Log:        opts.Log,
		},
		fixers: opts.Fixers,
	}
	s.sessions.OnEvict(s.searches.InvalidatePath)
	return s, nil
}

func (s *Service) ClaudeDir() string { return s.claudeDir }

func (s *Service) ScanProjects(ctx context.Context) ([]claudehistory.Project, error) {
	return s.projects.Load(ctx, func(ctx context.Context) ([]claudehistory.Project, error) {
		return claudehistory.DiscoverProjects(ctx, s.claudeDir, claudehistory.ScanOptions{
			Workers: s.workers,
			Log:     s.log,
		})
	})
}

// ResolveSession finds a session by id, id prefix or file path. A path to
// a transcript outside the scanned projects is still accepted.
func (s *Service) ResolveSession(ctx context.Context, ref string) (claudehistory.Session, claudehistory.Project, error) {
	projects, err := s.ScanProjects(ctx)
	if err != nil {
		return claudehistory.Session{}, claudehistory.Project{}, err
	}
	if sess, project, ok := claudehistory.FindSession(projects, ref); ok {
		return sess, project, nil
	}
	if info, err := os.Stat(ref); err == nil && info.Mode().IsRegular() {
		abs, _ := filepath.Abs(ref)
		key := filepath.Base(filepath.Dir(abs))
		sess := claudehistory.Session{
			SessionID:  claudehistory.SessionIDFromPath(abs),
			FilePath:   abs,
			ProjectKey: key,
			ModifiedAt: info.ModTime(),
			Size:       info.Size(),
		}
		project := claudehistory.Project{
			Key:      key,
			Path:     claudehistory.DecodeProjectPath(key),
			Dir:      filepath.Dir(abs),
			Sessions: []claudehistory.Session{sess},
		}
		return sess, project, nil
	}
	return claudehistory.Session{}, claudehistory.Project{}, fmt.Errorf("%w: %s", ErrSessionNotFound, ref)
}

func (s *Service) LoadSession(ctx context.Context, path string) (*display.Bundle, error) {
	entry, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return entry.Bundle, nil
}

// Records returns the decoded records of a session. They are shared with
// the cache and must not be modified.
func (s *Service) Records(ctx context.Context, path string) ([]*transcript.Record, error) {
	entry, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return entry.Records, nil
}

func (s *Service) load(ctx context.Context, path string) (cache.SessionEntry, error) {
	key, err := sessionKey(path)
	if err != nil {
		return cache.SessionEntry{}, err
	}
	if entry, ok := s.sessions.Get(key); ok {
		return entry, nil
	}
	unlock := s.sessions.Lock(key)
	defer unlock()
	return s.loadLocked(ctx, key)
}

// loadLocked must be called with the session's key lock held.
func (s *Service) loadLocked(ctx context.Context, key string) (cache.SessionEntry, error) {
	if entry, ok := s.sessions.Get(key); ok {
		return entry, nil
	}
	if err := ctx.Err(); err != nil {
		return cache.SessionEntry{}, err
	}
	info, statErr := os.Stat(key)
	records, stats, err := transcript.ReadFile(key)
	if err != nil {
		return cache.SessionEntry{}, err
	}
	if stats.Dropped > 0 {
		s.logf("load: %s: skipped %d invalid lines", key, stats.Dropped)
	}
	entry := cache.SessionEntry{Records: records, Bundle: display.Transform(records)}
	if statErr == nil {
		entry.ModTime = info.ModTime()
		entry.Size = info.Size()
		s.sessions.Put(key, entry)
	}
	return entry, nil
}

// mutate reads the session fresh from disk, applies fn and writes the
// result through the guard when fn reports a change. Caches are only
// touched after a successful write.
func (s *Service) mutate(ctx context.Context, path, op string, fn func([]*transcript.Record) ([]*transcript.Record, bool, error)) (*display.Bundle, error) {
	key, err := sessionKey(path)
	if err != nil {
		return nil, err
	}
	unlock := s.sessions.Lock(key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, _, err := transcript.ReadFile(key)
	if err != nil {
		return nil, err
	}
	updated, changed, err := fn(records)
	if err != nil {
		return nil, err
	}
	if !changed {
		entry, err := s.loadLocked(ctx, key)
		if err != nil {
			return nil, err
		}
		return entry.Bundle, nil
	}

	if err := s.guard.WriteFile(key, transcript.Encode(updated), op); err != nil {
		return nil, err
	}
	s.sessions.Evict(key)
	s.projects.Invalidate()

	entry := cache.SessionEntry{Records: updated, Bundle: display.Transform(updated)}
	if info, err := os.Stat(key); err == nil {
		entry.ModTime = info.ModTime()
		entry.Size = info.Size()
		s.sessions.Put(key, entry)
	}
	return entry.Bundle, nil
}

func (s *Service) DeleteSession(ctx context.Context, path string) error {
	key, err := sessionKey(path)
	if err != nil {
		return err
	}
	unlock := s.sessions.Lock(key)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.guard.Remove(key, "delete_session"); err != nil {
		return err
	}
	s.sessions.Evict(key)
	s.projects.Invalidate()
	return nil
}

func (s *Service) SearchSession(ctx context.Context, path string, q search.Query) ([]string, error) {
	if q.Empty() {
		return []string{}, nil
	}
	key, err := sessionKey(path)
	if err != nil {
		return nil, err
	}
	matcher, err := search.Compile(q)
	if err != nil {
		return nil, err
	}
	// Held until Put so a concurrent write cannot evict between the load and
	// storing ids computed from the old content.
	unlock := s.sessions.Lock(key)
	defer unlock()
	entry, err := s.loadLocked(ctx, key)
	if err != nil {
		return nil, err
	}
	// The entry lookup above also drops stale search results for the path.
	if ids, ok := s.searches.Get(key, q); ok {
		return ids, nil
	}
	ids := matcher.Find(entry.Bundle)
	s.searches.Put(key, q, ids)
	return ids, nil
}

func (s *Service) ExportSession(ctx context.Context, path, format, title string) (string, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", err
	}
	records, err := s.Records(ctx, path)
	if err != nil {
		return "", err
	}
	return export.Render(f, records, title, s.now())
}

func (s *Service) ListFixers() []fixers.Definition {
	return s.fixers.Definitions()
}

func (s *Service) RunFixer(ctx context.Context, id, path string) (fixers.Result, error) {
	key, err := sessionKey(path)
	if err != nil {
		return fixers.Result{}, err
	}
	unlock := s.sessions.Lock(key)
	defer unlock()
	res, err := s.fixers.Run(ctx, id, key, s.guard)
	if err != nil {
		return fixers.Result{}, err
	}
	if res.Affected > 0 {
		s.sessions.Evict(key)
		s.projects.Invalidate()
	}
	return res, nil
}

func (s *Service) Backups() []guard.Backup {
	return s.guard.Backups()
}

// SessionBackups lists every known backup of one session, newest first.
func (s *Service) SessionBackups(path string) ([]guard.Backup, error) {
	key, err := sessionKey(path)
	if err != nil {
		return nil, err
	}
	var out []guard.Backup
	for _, b := range s.guard.Backups() {
		if b.Original == key {
			out = append(out, b)
		}
	}
	siblings, err := guard.SiblingBackups(key)
	if err != nil {
		return nil, err
	}
	return append(out, siblings...), nil
}

// RestoreBackup writes a backup back over its original session, or over
// target when given.
func (s *Service) RestoreBackup(ctx context.Context, backupPath, target string) (guard.Backup, error) {
	if err := ctx.Err(); err != nil {
		return guard.Backup{}, err
	}
	b, err := s.guard.Restore(backupPath, target)
	if err != nil {
		return guard.Backup{}, err
	}
	if key, err := sessionKey(b.Original); err == nil {
		s.sessions.Evict(key)
	}
	s.projects.Invalidate()
	return b, nil
}

// InvalidateSession drops a session and its search results from the cache.
func (s *Service) InvalidateSession(path string) {
	if key, err := sessionKey(path); err == nil {
		s.sessions.Evict(key)
	}
}

func (s *Service) InvalidateProjects() {
	s.projects.Invalidate()
}

// Watch keeps the caches in sync with changes made by other programs until
// ctx is done.
func (s *Service) Watch(ctx context.Context) error {
	w, err := cache.NewWatcher(claudehistory.ProjectsDir(s.claudeDir), cache.WatcherOptions{
		OnSession:  s.InvalidateSession,
		OnProjects: s.InvalidateProjects,
		Log:        s.log,
	})
	if err != nil {
		return err
	}
	defer w.Close()
	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func sessionKey(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrSessionNotFound)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return abs, nil
}

func (s *Service) logf(format string, args ...any) {
	if s.log == nil {
		return
	}
	_, _ = fmt.Fprintf(s.log, format+"\n", args...)
}
