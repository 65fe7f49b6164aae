package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

// Registry dispatches on the document's file extension.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]Extractor
}

type Option func(*ZipExtractor)

// WithMaxMemberBytes caps the document member inflated out of a zip bundle.
func WithMaxMemberBytes(n int64) Option {
	return func(z *ZipExtractor) { z.MaxMemberBytes = n }
}

// NewRegistry returns a registry with the bundled txt, docx, pdf and zip
// extractors.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{byExt: map[string]Extractor{}}
	zx := &ZipExtractor{Inner: r}
	for _, o := range opts {
		o(zx)
	}
	r.Register(".txt", TextExtractor{})
	r.Register(".docx", DocxExtractor{})
	r.Register(".pdf", PDFExtractor{})
	r.Register(".zip", zx)
	return r
}

// Register installs or replaces the extractor for an extension (".docx").
func (r *Registry) Register(ext string, e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExt[strings.ToLower(ext)] = e
}

func (r *Registry) Lookup(ext string) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byExt[strings.ToLower(ext)]
	return e, ok
}

func (r *Registry) Extract(ctx context.Context, path, courseID string, level quiz.Level) ([]Draft, error) {
	ext := filepath.Ext(path)
	e, ok := r.Lookup(ext)
	if !ok {
		return nil, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
	drafts, err := e.Extract(ctx, path, courseID, level)
	if err != nil {
		return nil, err
	}
	if drafts == nil {
		drafts = []Draft{}
	}
	return drafts, nil
}
