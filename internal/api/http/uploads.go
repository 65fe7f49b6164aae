package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quizdocs/internal/ingest"
	"github.com/mind-engage/mindengage-quizdocs/internal/logger"
	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
	"github.com/mind-engage/mindengage-quizdocs/internal/rbac"
)

// multipart parts above this size spill to temp files
const formMemory = 8 << 20

// slack for the non-file multipart fields
const formOverhead = 1 << 20

type uploadForm struct {
	CourseID string `form:"course_id" validate:"required,max=128,excludesall=/\\"`
	Level    string `form:"level" validate:"required,oneof=Easy Medium Hard"`
}

func readUploadForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return uploadForm{}, err
		}
		return uploadForm{}, &quiz.ValidationError{Field: "file", Reason: "malformed multipart form"}
	}
	f := uploadForm{
		CourseID: strings.TrimSpace(r.FormValue("course_id")),
		Level:    r.FormValue("level"),
	}
	if err := validate.Struct(f); err != nil {
		return f, validationError(err)
	}
	return f, nil
}

func submitter(r *http.Request) string {
	if s := rbac.SubjectFromContext(r.Context()); s != "" {
		return s
	}
	return "anonymous"
}

// POST /api/upload (multipart: file, course_id, level)
func UploadHandler(svc *ingest.Service, log *logger.Logger, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readUploadForm(w, r, maxBytes)
		if err != nil {
			writeError(w, log, err)
			return
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "file required", Field: "file"})
			return
		}
		defer file.Close()

		u, err := svc.Ingest(r.Context(), ingest.FileInput{
			Name:        hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Size:        hdr.Size,
			Body:        file,
		}, form.CourseID, form.Level, submitter(r))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// GET /api/upload?course_id=
func ListUploadsHandler(store quiz.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(r.URL.Query().Get("course_id"))
		if courseID == "" {
			badRequest(w, "course_id required")
			return
		}
		ups, err := store.ListUploads(r.Context(), courseID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if ups == nil {
			ups = []quiz.Upload{}
		}
		writeJSON(w, http.StatusOK, ups)
	}
}

// DELETE /api/upload/{id}
func DeleteUploadHandler(svc *ingest.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteUpload(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// POST /api/upload/{id}/reparse
func ReparseHandler(svc *ingest.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.Reparse(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// DELETE /api/courses/{courseID}/uploads
func DeleteCourseUploadsHandler(svc *ingest.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.DeleteCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
	}
}

type imageUploadResp struct {
	Success bool `json:"success"`
	ingest.ImageRef
}

// POST /api/upload-question-image (multipart: image, course_id, level)
func UploadQuestionImageHandler(svc *ingest.Service, log *logger.Logger, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readUploadForm(w, r, maxBytes)
		if err != nil {
			writeError(w, log, err)
			return
		}
		file, hdr, err := r.FormFile("image")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "no image file provided", Field: "image"})
			return
		}
		defer file.Close()

		ref, err := svc.StoreQuestionImage(r.Context(), ingest.FileInput{
			Name:        hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Size:        hdr.Size,
			Body:        file,
		}, form.CourseID, form.Level)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, imageUploadResp{Success: true, ImageRef: ref})
	}
}
