package claudehistory

import (
	"path/filepath"
	"strings"
)

// DecodeProjectPath restores a filesystem path from a project directory name:
// a leading "<letter>--" becomes a Windows drive ("C:\"), then every "--" and
// every remaining "-" becomes a path separator.
//
// The encoding is lossy. A path segment that contains a literal hyphen is
// indistinguishable from two segments, so "my-app" decodes as "my/app".
func DecodeProjectPath(name string) string {
	if name == "" {
		return ""
	}
	sep := string(filepath.Separator)
	prefix := ""
	rest := name
	if isDriveLetter(name) {
		sep = `\`
		prefix = name[:1] + `:\`
		rest = name[3:]
	}
	rest = strings.ReplaceAll(rest, "--", sep)
	rest = strings.ReplaceAll(rest, "-", sep)
	return prefix + rest
}

// EncodeProjectPath mirrors how the Claude CLI names project directories:
// every rune that is not an ASCII letter or digit becomes "-".
func EncodeProjectPath(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func isDriveLetter(name string) bool {
	if len(name) < 3 || name[1:3] != "--" {
		return false
	}
	c := name[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
