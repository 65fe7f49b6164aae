package extract

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

// primaryOrder is the preference for the document member of a bundle.
var primaryOrder = []string{".docx", ".pdf", ".txt"}

// DefaultMaxMemberBytes caps the inflated size of a bundle's document member.
const DefaultMaxMemberBytes int64 = 50 << 20

var (
	ErrNoDocumentInArchive = errors.New("archive holds no .docx, .pdf or .txt document")
	ErrMemberTooLarge      = errors.New("archive document member too large")
)

// ZipExtractor handles bundles of one document plus its images. The images
// are unpacked elsewhere; this only reads the primary document member.
type ZipExtractor struct {
	Inner Extractor
	// MaxMemberBytes <= 0 means DefaultMaxMemberBytes.
	MaxMemberBytes int64
}

func (z *ZipExtractor) Extract(ctx context.Context, p, courseID string, level quiz.Level) ([]Draft, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	member := primaryMember(zr.File)
	if member == nil {
		return nil, ErrNoDocumentInArchive
	}

	tmp, err := os.MkdirTemp("", "quizzip-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	dst := filepath.Join(tmp, "document"+strings.ToLower(path.Ext(member.Name)))
	if err := copyMember(member, dst, z.limit()); err != nil {
		return nil, fmt.Errorf("zip member %s: %w", member.Name, err)
	}
	return z.Inner.Extract(ctx, dst, courseID, level)
}

func (z *ZipExtractor) limit() int64 {
	if z.MaxMemberBytes > 0 {
		return z.MaxMemberBytes
	}
	return DefaultMaxMemberBytes
}

func primaryMember(files []*zip.File) *zip.File {
	for _, ext := range primaryOrder {
		for _, f := range files {
			if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
				continue
			}
			base := path.Base(f.Name)
			if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, "._") {
				continue
			}
			if strings.EqualFold(path.Ext(base), ext) {
				return f
			}
		}
	}
	return nil
}

// copyMember inflates f into dst, refusing members over maxBytes by header or
// by actual length.
func copyMember(f *zip.File, dst string, maxBytes int64) error {
	if f.UncompressedSize64 > uint64(maxBytes) {
		return ErrMemberTooLarge
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxBytes {
		err = ErrMemberTooLarge
	}
	return err
}
