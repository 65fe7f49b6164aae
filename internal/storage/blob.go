package storage

import (
	"errors"
	"io"
	"os"
	"strings"
)

// ArtifactStore keeps uploaded documents and question images. Keys are
// relative to the store root and use forward slashes.
type ArtifactStore interface {
	// Stage writes an incoming upload to the staging area, refusing more
	// than limit bytes.
	Stage(name string, r io.Reader, limit int64) (Staged, error)
	// Promote moves a staged file into dir and returns its key.
	Promote(s Staged, dir string) (string, error)
	// Discard drops a staged file that will not be promoted.
	Discard(s Staged)
	Put(key string, r io.Reader, limit int64) (int64, error)
	Path(key string) (string, error)
	Exists(key string) bool
	// Remove deletes a key; a missing file is not an error.
	Remove(key string) error
	OpenImage(courseID, level, name string) (*os.File, error)
}

type Staged struct {
	Key  string
	Name string // original base name
	Size int64
}

var (
	ErrTooLarge   = errors.New("file exceeds size limit")
	ErrInvalidKey = errors.New("invalid storage key")
)

// ValidSegment reports whether s can be used as a single directory name.
func ValidSegment(s string) bool {
	if s == "" || s == "." || s == ".." || len(s) > 128 {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

// CourseLevelDir is the directory key for a course and level.
func CourseLevelDir(courseID, level string) string {
	return courseID + "/" + level
}
