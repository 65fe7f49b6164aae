// Package ingest owns the upload lifecycle: validate, store, unpack, extract,
// normalize, persist and mark the terminal status.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quizdocs/internal/archive"
	"github.com/mind-engage/mindengage-quizdocs/internal/extract"
	"github.com/mind-engage/mindengage-quizdocs/internal/logger"
	"github.com/mind-engage/mindengage-quizdocs/internal/normalize"
	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
	"github.com/mind-engage/mindengage-quizdocs/internal/storage"
)

const (
	MediaDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaPDF  = "application/pdf"
	MediaText = "text/plain"
	MediaZip  = "application/zip"

	DefaultMaxUploadBytes int64 = 50 << 20
	DefaultMaxImageBytes  int64 = 20 << 20
)

// extension the extractor registry dispatches on, per accepted media type
var mediaExt = map[string]string{
	MediaDocx:                      ".docx",
	MediaPDF:                       ".pdf",
	MediaText:                      ".txt",
	MediaZip:                       ".zip",
	"application/x-zip-compressed": ".zip",
}

var ErrArtifactMissing = errors.New("stored document is missing")

// FileInput is one submitted file. Size is the declared size, or -1.
type FileInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ImageRef struct {
	Path string `json:"imagePath"`
	URL  string `json:"imageUrl"`
}

type Deps struct {
	Store      quiz.Store
	Files      storage.ArtifactStore
	Extractor  extract.Extractor
	Unpacker   *archive.Unpacker
	Normalizer *normalize.Normalizer
	IDs        quiz.IDIssuer
	Metrics    *Metrics
	Log        *logger.Logger

	MaxUploadBytes int64
	MaxImageBytes  int64
	Now            func() time.Time
}

type Service struct {
	store     quiz.Store
	files     storage.ArtifactStore
	extractor extract.Extractor
	unpacker  *archive.Unpacker
	norm      *normalize.Normalizer
	ids       quiz.IDIssuer
	metrics   *Metrics
	log       *logger.Logger
	maxUpload int64
	maxImage  int64
	now       func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		files:     d.Files,
		extractor: d.Extractor,
		unpacker:  d.Unpacker,
		norm:      d.Normalizer,
		ids:       d.IDs,
		metrics:   d.Metrics,
		log:       d.Log.With("component", "IngestService"),
		maxUpload: d.MaxUploadBytes,
		maxImage:  d.MaxImageBytes,
		now:       d.Now,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	if s.maxImage <= 0 {
		s.maxImage = DefaultMaxImageBytes
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ids == nil {
		s.ids = quiz.UUIDIssuer{}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.unpacker == nil {
		s.unpacker = archive.NewUnpacker(0, d.Log)
	}
	return s
}

// Ingest validates and stores f, then runs the pipeline to a terminal status.
// The returned Upload carries that status even when an error is returned.
// The caller's cancellation is not propagated: once the upload row exists
// the run always ends in processed or error.
func (s *Service) Ingest(ctx context.Context, f FileInput, courseID, level, submitter string) (quiz.Upload, error) {
	ctx = context.WithoutCancel(ctx)

	courseID = strings.TrimSpace(courseID)
	if !storage.ValidSegment(courseID) {
		return quiz.Upload{}, &quiz.ValidationError{Field: "course_id", Reason: "required, and must not contain path separators"}
	}
	lvl, err := quiz.ParseLevel(level)
	if err != nil {
		return quiz.Upload{}, err
	}
	if f.Body == nil || f.Name == "" {
		return quiz.Upload{}, &quiz.ValidationError{Field: "file", Reason: "required"}
	}
	media, ext, err := acceptMedia(f.ContentType)
	if err != nil {
		return quiz.Upload{}, err
	}
	if f.Size > s.maxUpload {
		return quiz.Upload{}, s.tooLarge(s.maxUpload)
	}

	origName := path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	name := origName
	if !strings.EqualFold(path.Ext(name), ext) {
		name += ext
	}
	staged, err := s.files.Stage(name, f.Body, s.maxUpload)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return quiz.Upload{}, s.tooLarge(s.maxUpload)
		}
		if errors.Is(err, storage.ErrInvalidKey) {
			return quiz.Upload{}, &quiz.ValidationError{Field: "file", Reason: "invalid file name"}
		}
		return quiz.Upload{}, fmt.Errorf("stage upload: %w", err)
	}
	dir := storage.CourseLevelDir(courseID, string(lvl))
	key, err := s.files.Promote(staged, dir)
	if err != nil {
		s.files.Discard(staged)
		return quiz.Upload{}, fmt.Errorf("store upload: %w", err)
	}

	if ext == ".zip" {
		s.unpack(key, dir)
	}

	u := quiz.Upload{
		ID:         s.ids.NewID(),
		CourseID:   courseID,
		Level:      lvl,
		FileName:   origName,
		FilePath:   key,
		FileSize:   staged.Size,
		FileType:   media,
		UploadedBy: submitter,
		UploadedAt: s.now().UTC(),
		Status:     quiz.StatusUploaded,
	}
	if err := s.store.CreateUpload(ctx, u); err != nil {
		_ = s.files.Remove(key)
		return quiz.Upload{}, &quiz.PersistenceError{UploadID: u.ID, Err: err}
	}
	if err := s.store.UpdateStatus(ctx, u.ID, quiz.StatusProcessing, nil); err != nil {
		// uploaded only leads to processing; undo the admission
		if derr := s.store.DeleteUpload(ctx, u.ID); derr != nil {
			s.log.Error("could not undo upload admission", "upload_id", u.ID, "err", derr)
		}
		_ = s.files.Remove(key)
		s.metrics.Runs.WithLabelValues("ingest", "persistence_error").Inc()
		return quiz.Upload{}, &quiz.PersistenceError{Err: err}
	}
	u.Status = quiz.StatusProcessing

	s.log.Info("upload stored", "upload_id", u.ID, "course_id", courseID, "level", lvl, "file", u.FileName, "size", u.FileSize)
	return s.run(ctx, "ingest", u)
}

// Reparse re-runs extraction on the stored artifact of an existing upload,
// replacing its questions. Allowed from any status.
func (s *Service) Reparse(ctx context.Context, uploadID string) (quiz.Upload, error) {
	ctx = context.WithoutCancel(ctx)

	u, err := s.store.GetUpload(ctx, uploadID)
	if err != nil {
		return quiz.Upload{}, err
	}
	if err := s.store.UpdateStatus(ctx, u.ID, quiz.StatusProcessing, nil); err != nil {
		return u, &quiz.PersistenceError{UploadID: u.ID, Err: err}
	}
	u.Status, u.ProcessedAt = quiz.StatusProcessing, nil

	if !s.files.Exists(u.FilePath) {
		s.metrics.Runs.WithLabelValues("reparse", "error").Inc()
		return s.fail(ctx, u, &quiz.ExtractionError{UploadID: u.ID, Err: ErrArtifactMissing})
	}
	if err := s.store.DeleteQuestionsByUpload(ctx, u.ID); err != nil {
		s.metrics.Runs.WithLabelValues("reparse", "error").Inc()
		return s.fail(ctx, u, &quiz.PersistenceError{UploadID: u.ID, Err: err})
	}
	if strings.EqualFold(path.Ext(u.FilePath), ".zip") {
		s.unpack(u.FilePath, storage.CourseLevelDir(u.CourseID, string(u.Level)))
	}

	s.log.Info("reparse started", "upload_id", u.ID)
	return s.run(ctx, "reparse", u)
}

// DeleteUpload removes the artifact (best effort) and the upload with its
// questions.
func (s *Service) DeleteUpload(ctx context.Context, uploadID string) error {
	u, err := s.store.GetUpload(ctx, uploadID)
	if err != nil {
		return err
	}
	if err := s.files.Remove(u.FilePath); err != nil {
		s.log.Warn("artifact cleanup failed", "upload_id", u.ID, "path", u.FilePath, "err", err)
	}
	if err := s.store.DeleteUpload(ctx, u.ID); err != nil {
		return err
	}
	s.log.Info("upload deleted", "upload_id", u.ID)
	return nil
}

// DeleteCourse removes every upload of a course and returns how many there
// were.
func (s *Service) DeleteCourse(ctx context.Context, courseID string) (int, error) {
	if strings.TrimSpace(courseID) == "" {
		return 0, &quiz.ValidationError{Field: "course_id", Reason: "required"}
	}
	ups, err := s.store.ListUploads(ctx, courseID)
	if err != nil {
		return 0, err
	}
	for _, u := range ups {
		if err := s.files.Remove(u.FilePath); err != nil {
			s.log.Warn("artifact cleanup failed", "upload_id", u.ID, "path", u.FilePath, "err", err)
		}
	}
	n, err := s.store.DeleteCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	s.log.Info("course uploads deleted", "course_id", courseID, "count", n)
	return n, nil
}

// StoreQuestionImage saves an image for manual question editing into the
// course/level directory.
func (s *Service) StoreQuestionImage(_ context.Context, f FileInput, courseID, level string) (ImageRef, error) {
	courseID = strings.TrimSpace(courseID)
	if !storage.ValidSegment(courseID) {
		return ImageRef{}, &quiz.ValidationError{Field: "course_id", Reason: "required, and must not contain path separators"}
	}
	lvl, err := quiz.ParseLevel(level)
	if err != nil {
		return ImageRef{}, err
	}
	if f.Body == nil {
		return ImageRef{}, &quiz.ValidationError{Field: "image", Reason: "required"}
	}
	ext := strings.ToLower(path.Ext(f.Name))
	if !archive.IsImageName(f.Name) {
		return ImageRef{}, &quiz.ValidationError{Field: "image", Reason: "unsupported image type " + ext}
	}
	if f.Size > s.maxImage {
		return ImageRef{}, s.tooLarge(s.maxImage)
	}
	key := fmt.Sprintf("%s/question_%d%s", storage.CourseLevelDir(courseID, string(lvl)), s.now().UnixNano(), ext)
	if _, err := s.files.Put(key, f.Body, s.maxImage); err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return ImageRef{}, s.tooLarge(s.maxImage)
		}
		return ImageRef{}, fmt.Errorf("store image: %w", err)
	}
	return ImageRef{Path: key, URL: quiz.PublicImageURL(key, courseID, lvl)}, nil
}

// run extracts, normalizes and commits. u must be in processing.
func (s *Service) run(ctx context.Context, op string, u quiz.Upload) (quiz.Upload, error) {
	start := time.Now()
	defer func() { s.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds()) }()

	abs, err := s.files.Path(u.FilePath)
	if err != nil {
		s.metrics.Runs.WithLabelValues(op, "error").Inc()
		return s.fail(ctx, u, &quiz.ExtractionError{UploadID: u.ID, Err: err})
	}
	drafts, err := s.extractor.Extract(ctx, abs, u.CourseID, u.Level)
	if err == nil && len(drafts) == 0 {
		err = quiz.ErrNoQuestions
	}
	if err != nil {
		s.metrics.Runs.WithLabelValues(op, "extraction_error").Inc()
		return s.fail(ctx, u, &quiz.ExtractionError{UploadID: u.ID, Err: err})
	}

	scope := normalize.Scope{
		UploadID: u.ID,
		CourseID: u.CourseID,
		Level:    u.Level,
		Dir:      storage.CourseLevelDir(u.CourseID, string(u.Level)),
	}
	qs := make([]quiz.Question, 0, len(drafts))
	seen := make(map[int]bool, len(drafts))
	next := 1
	for _, d := range drafts {
		if d.Number <= 0 || seen[d.Number] {
			d.Number = next
		}
		seen[d.Number] = true
		if d.Number >= next {
			next = d.Number + 1
		}
		q, warns := s.norm.Normalize(d, scope)
		for _, w := range warns {
			s.metrics.Warnings.WithLabelValues(string(w.Kind)).Inc()
			s.log.Warn("question normalized with default", "upload_id", u.ID, "question_number", w.Number, "kind", w.Kind, "detail", w.Detail)
		}
		qs = append(qs, q)
	}

	done := s.now().UTC()
	if err := s.store.CommitQuestions(ctx, u.ID, qs, done); err != nil {
		s.metrics.Runs.WithLabelValues(op, "persistence_error").Inc()
		return s.fail(ctx, u, &quiz.PersistenceError{UploadID: u.ID, Err: err})
	}
	u.Status, u.ProcessedAt = quiz.StatusProcessed, &done

	s.metrics.Runs.WithLabelValues(op, "processed").Inc()
	s.metrics.Questions.Add(float64(len(qs)))
	s.log.Info("upload processed", "op", op, "upload_id", u.ID, "questions", len(qs))
	return u, nil
}

// fail moves u to error and returns cause unchanged.
func (s *Service) fail(ctx context.Context, u quiz.Upload, cause error) (quiz.Upload, error) {
	if err := s.store.UpdateStatus(ctx, u.ID, quiz.StatusError, nil); err != nil {
		s.log.Error("could not record upload failure", "upload_id", u.ID, "err", err)
	}
	u.Status, u.ProcessedAt = quiz.StatusError, nil
	s.log.Error("upload failed", "upload_id", u.ID, "err", cause)
	return u, cause
}

func (s *Service) unpack(key, dir string) {
	abs, err := s.files.Path(key)
	if err != nil {
		return
	}
	dest, err := s.files.Path(dir)
	if err != nil {
		return
	}
	res, err := s.unpacker.Unpack(abs, dest)
	if err != nil {
		s.log.Warn("archive unpack failed, continuing without images", "path", key, "err", err)
		return
	}
	s.metrics.Images.Add(float64(len(res.Images)))
	s.log.Debug("archive images unpacked", "path", key, "images", len(res.Images))
}

func (s *Service) tooLarge(limit int64) error {
	return &quiz.ValidationError{Field: "file", Reason: fmt.Sprintf("exceeds the %d byte limit", limit)}
}

func acceptMedia(contentType string) (string, string, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		if ext, ok := mediaExt[strings.ToLower(mt)]; ok {
			return strings.ToLower(mt), ext, nil
		}
	}
	return "", "", &quiz.ValidationError{Field: "file", Reason: "only .docx, .pdf, .txt and .zip files are allowed, got " + strconv.Quote(contentType)}
}
