package normalize

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

// ImageResolver maps an image reference found in a document to something the
// quiz client can load. Lookup order:
//
//  1. http(s):// and data: references are returned unchanged.
//  2. Dir/<base name of ref>, query and fragment stripped.
//  3. Dir/<ref> taken as a relative path; it must stay under Root.
//
// Local hits are returned relative to Root with forward slashes.
type ImageResolver struct {
	Root string // storage root on disk
	Dir  string // course/level directory, relative to Root
}

// Candidates lists the local paths Resolve tries, in order, relative to Root.
func (r ImageResolver) Candidates(ref string) []string {
	if ref == "" || quiz.IsExternalRef(ref) {
		return nil
	}
	ref = strings.ReplaceAll(ref, "\\", "/")
	dir := strings.Trim(filepath.ToSlash(r.Dir), "/")

	var out []string
	name := path.Base(stripQuery(ref))
	if name != "." && name != "/" && name != ".." {
		out = append(out, path.Join(dir, name))
	}
	full := path.Join(dir, ref)
	if full != ".." && !strings.HasPrefix(full, "../") && !strings.HasPrefix(ref, "/") && (len(out) == 0 || full != out[0]) {
		out = append(out, full)
	}
	return out
}

// Resolve walks the lookup order and reports whether anything matched.
func (r ImageResolver) Resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if quiz.IsExternalRef(ref) {
		return ref, true
	}
	for _, c := range r.Candidates(ref) {
		fi, err := os.Stat(filepath.Join(r.Root, filepath.FromSlash(c)))
		if err == nil && fi.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}
