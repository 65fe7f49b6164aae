package http

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quizdocs/internal/logger"
	"github.com/mind-engage/mindengage-quizdocs/internal/storage"
)

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// GET /api/images/{courseID}/{level}/{name}
//
// Looks in the course/level directory, then at the storage root for images
// stored before per-course directories.
func ImageHandler(files storage.ArtifactStore, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, level, name := urlParam(r, "courseID"), urlParam(r, "level"), urlParam(r, "name")
		f, err := files.OpenImage(courseID, level, name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn("image not found", "course_id", courseID, "level", level, "name", name)
				writeJSON(w, http.StatusNotFound, errorBody{Error: "image not found"})
				return
			}
			writeError(w, log, err)
			return
		}
		defer f.Close()
		fi, err := f.Stat()
		if err != nil {
			writeError(w, log, err)
			return
		}
		ct, ok := imageContentTypes[strings.ToLower(path.Ext(name))]
		if !ok {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeContent(w, r, name, fi.ModTime(), f)
	}
}
