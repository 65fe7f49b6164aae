package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quizdocs/internal/archive"
)

const incomingDir = "_incoming"

type FSStore struct {
	base string
	now  func() time.Time
}

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./storage/quiz-docs"
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, incomingDir), 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: abs, now: time.Now}, nil
}

func (s *FSStore) Root() string { return s.base }

// Path maps a key to a file path, refusing keys that leave the root.
func (s *FSStore) Path(key string) (string, error) {
	k := strings.ReplaceAll(key, "\\", "/")
	clean := path.Clean(k)
	if k == "" || path.IsAbs(k) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return filepath.Join(s.base, filepath.FromSlash(clean)), nil
}

func (s *FSStore) Stage(name string, r io.Reader, limit int64) (Staged, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if !ValidSegment(base) {
		return Staged{}, fmt.Errorf("file name %q: %w", name, ErrInvalidKey)
	}
	key := fmt.Sprintf("%s/%d-%s", incomingDir, s.now().UnixNano(), base)
	n, err := s.Put(key, r, limit)
	if err != nil {
		return Staged{}, err
	}
	return Staged{Key: key, Name: base, Size: n}, nil
}

func (s *FSStore) Promote(st Staged, dir string) (string, error) {
	src, err := s.Path(st.Key)
	if err != nil {
		return "", err
	}
	key := path.Join(dir, path.Base(st.Key))
	dst, err := s.Path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSStore) Discard(st Staged) { _ = s.Remove(st.Key) }

// Put writes r under key. Nothing is left behind when the write fails or
// the limit is exceeded.
func (s *FSStore) Put(key string, r io.Reader, limit int64) (int64, error) {
	dst, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	cerr := f.Close()
	if err == nil && limit > 0 && n > limit {
		err = ErrTooLarge
	}
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return 0, err
	}
	return n, nil
}

func (s *FSStore) Exists(key string) bool {
	p, err := s.Path(key)
	if err != nil {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func (s *FSStore) Remove(key string) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// OpenImage looks in the course/level directory first and then at the root,
// where images were kept before per-course directories existed. Only
// allow-listed image names are served; stored documents never are.
func (s *FSStore) OpenImage(courseID, level, name string) (*os.File, error) {
	if !ValidSegment(courseID) || !ValidSegment(level) || !ValidSegment(name) || !archive.IsImageName(name) {
		return nil, fs.ErrNotExist
	}
	for _, key := range []string{CourseLevelDir(courseID, level) + "/" + name, name} {
		p, err := s.Path(key)
		if err != nil {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		if fi, err := f.Stat(); err != nil || !fi.Mode().IsRegular() {
			_ = f.Close()
			continue
		}
		return f, nil
	}
	return nil, fs.ErrNotExist
}
