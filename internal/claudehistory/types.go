package claudehistory

import "time"

// Project is one directory under <claude-dir>/projects. Key is the encoded
// directory name, Path its decoded filesystem path.
type Project struct {
	Key      string    `json:"key"`
	Path     string    `json:"path"`
	Dir      string    `json:"dir"`
	Sessions []Session `json:"sessions"`
}

type Session struct {
	SessionID  string    `json:"sessionId"`
	FilePath   string    `json:"filePath"`
	ProjectKey string    `json:"projectKey"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Size       int64     `json:"size"`
}

// LastActivity is the modification time of the newest session, or the zero
// time for a project without sessions.
func (p Project) LastActivity() time.Time {
	if len(p.Sessions) == 0 {
		return time.Time{}
	}
	return p.Sessions[0].ModifiedAt
}

func (p Project) DisplayName() string {
	if p.Path != "" {
		return p.Path
	}
	if p.Key != "" {
		return p.Key
	}
	return "Unknown project"
}
