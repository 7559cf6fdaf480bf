package claudehistory

import (
	"path/filepath"
	"strings"
)

// SessionIDFromPath returns the session id encoded in a transcript file name.
func SessionIDFromPath(filePath string) string {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return ""
	}
	name := filepath.Base(filePath)
	name = strings.TrimSuffix(name, sessionFileExt)
	return strings.TrimSpace(name)
}

// FindSession resolves ref as a session id, an id prefix, or a transcript
// file path. A prefix must be unambiguous.
func FindSession(projects []Project, ref string) (Session, Project, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Session{}, Project{}, false
	}
	if strings.HasSuffix(ref, sessionFileExt) {
		abs, err := filepath.Abs(ref)
		if err == nil {
			for _, project := range projects {
				for _, sess := range project.Sessions {
					if sess.FilePath == abs || sess.FilePath == ref {
						return sess, project, true
					}
				}
			}
		}
		ref = SessionIDFromPath(ref)
	}

	var (
		match    Session
		matchPrj Project
		matches  int
	)
	for _, project := range projects {
		for _, sess := range project.Sessions {
			if sess.SessionID == ref {
				return sess, project, true
			}
			if strings.HasPrefix(sess.SessionID, ref) {
				match, matchPrj = sess, project
				matches++
			}
		}
	}
	if matches == 1 {
		return match, matchPrj, true
	}
	return Session{}, Project{}, false
}
