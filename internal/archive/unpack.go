// Package archive pulls embedded images out of uploaded zip artifacts.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mind-engage/mindengage-quizdocs/internal/logger"
)

// DefaultMaxEntryBytes caps a single extracted image.
const DefaultMaxEntryBytes int64 = 20 << 20

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".svg": true, ".webp": true, ".bmp": true,
}

// IsImageName reports whether name carries an allow-listed image extension.
func IsImageName(name string) bool {
	return imageExts[strings.ToLower(path.Ext(name))]
}

type Result struct {
	Images  []string // base names written to the destination dir
	Skipped []string // entries that matched the allow-list but were not written
}

type Unpacker struct {
	MaxEntryBytes int64
	log           *logger.Logger
}

func NewUnpacker(maxEntryBytes int64, log *logger.Logger) *Unpacker {
	if maxEntryBytes <= 0 {
		maxEntryBytes = DefaultMaxEntryBytes
	}
	return &Unpacker{MaxEntryBytes: maxEntryBytes, log: log.With("component", "Unpacker")}
}

var errEntryTooLarge = errors.New("entry exceeds size cap")

// Unpack writes every image entry of archivePath to destDir/basename(entry).
// Other members are left in the archive. Entries with a later duplicate base
// name overwrite earlier ones.
func (u *Unpacker) Unpack(archivePath, destDir string) (Result, error) {
	var res Result
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return res, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return res, err
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
		if name == "" || name == "." || name == ".." || name == "/" {
			continue
		}
		if !IsImageName(name) {
			continue
		}
		if f.UncompressedSize64 > uint64(u.MaxEntryBytes) {
			u.log.Warn("skipping oversized archive entry", "entry", f.Name, "size", f.UncompressedSize64)
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if err := u.writeEntry(f, filepath.Join(destDir, name)); err != nil {
			u.log.Warn("skipping archive entry", "entry", f.Name, "err", err)
			res.Skipped = append(res.Skipped, name)
			continue
		}
		res.Images = append(res.Images, name)
	}
	return res, nil
}

func (u *Unpacker) writeEntry(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	// the header size can lie; count what is actually inflated
	n, err := io.Copy(out, io.LimitReader(rc, u.MaxEntryBytes+1))
	cerr := out.Close()
	if err == nil && n > u.MaxEntryBytes {
		err = errEntryTooLarge
	}
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
	}
	return err
}
