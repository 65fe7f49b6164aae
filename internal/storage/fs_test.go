package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.Unix(0, 42) }
	return s
}

func TestStageAndPromote(t *testing.T) {
	s := newStore(t)
	st, err := s.Stage(`C:\Users\me\quiz.docx`, strings.NewReader("hello"), 100)
	if err != nil {
		t.Fatal(err)
	}
	if st.Key != "_incoming/42-quiz.docx" || st.Name != "quiz.docx" || st.Size != 5 {
		t.Fatalf("staged %+v", st)
	}

	key, err := s.Promote(st, CourseLevelDir("algebra1", "Easy"))
	if err != nil {
		t.Fatal(err)
	}
	if key != "algebra1/Easy/42-quiz.docx" {
		t.Fatalf("key %s", key)
	}
	if s.Exists(st.Key) || !s.Exists(key) {
		t.Fatal("file not moved")
	}
	p, _ := s.Path(key)
	if b, _ := os.ReadFile(p); string(b) != "hello" {
		t.Fatalf("content %q", b)
	}
}

func TestStageRejectsOversize(t *testing.T) {
	s := newStore(t)
	_, err := s.Stage("big.pdf", strings.NewReader(strings.Repeat("x", 11)), 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("want ErrTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(s.Root(), incomingDir))
	if len(entries) != 0 {
		t.Fatal("partial file left in staging")
	}
}

func TestPathRejectsEscapes(t *testing.T) {
	s := newStore(t)
	for _, k := range []string{"", ".", "..", "../x", "a/../../x", "/etc/passwd", `..\x`} {
		if _, err := s.Path(k); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("%q: want ErrInvalidKey, got %v", k, err)
		}
	}
	p, err := s.Path("a/./b/../c.png")
	if err != nil || p != filepath.Join(s.Root(), "a", "c.png") {
		t.Fatalf("got %q %v", p, err)
	}
}

func TestRemoveIsBestEffort(t *testing.T) {
	s := newStore(t)
	if _, err := s.Put("c/Easy/x.txt", strings.NewReader("x"), 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("c/Easy/x.txt"); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("c/Easy/x.txt"); err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
}

func TestOpenImageLegacyFallback(t *testing.T) {
	s := newStore(t)
	if _, err := s.Put("bio/Hard/cell.png", strings.NewReader("scoped"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put("old.png", strings.NewReader("flat"), 0); err != nil {
		t.Fatal(err)
	}

	read := func(course, level, name string) (string, error) {
		f, err := s.OpenImage(course, level, name)
		if err != nil {
			return "", err
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		return string(b), err
	}
	if got, err := read("bio", "Hard", "cell.png"); err != nil || got != "scoped" {
		t.Fatalf("scoped: %q %v", got, err)
	}
	if got, err := read("bio", "Hard", "old.png"); err != nil || got != "flat" {
		t.Fatalf("legacy: %q %v", got, err)
	}
	if _, err := read("bio", "Hard", "none.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("want not exist, got %v", err)
	}
	if _, err := read("bio", "..", "cell.png"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("traversal must miss, got %v", err)
	}
	if _, err := read("bio", "Hard", "_incoming"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("directories are not images")
	}
}

func TestOpenImageRefusesDocuments(t *testing.T) {
	s := newStore(t)
	for _, key := range []string{"bio/Hard/1700000000-quiz.docx", "bio/Hard/notes.txt", "root.pdf"} {
		if _, err := s.Put(key, strings.NewReader("answer key"), 0); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range []string{"1700000000-quiz.docx", "notes.txt", "root.pdf"} {
		if f, err := s.OpenImage("bio", "Hard", name); !errors.Is(err, fs.ErrNotExist) {
			if f != nil {
				_ = f.Close()
			}
			t.Fatalf("%s served: %v", name, err)
		}
	}
}

func TestValidSegment(t *testing.T) {
	for s, want := range map[string]bool{
		"algebra1": true, "BIO 101": true, "": false, "..": false, "a/b": false, `a\b`: false,
	} {
		if ValidSegment(s) != want {
			t.Errorf("%q", s)
		}
	}
}
