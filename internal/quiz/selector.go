package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/mind-engage/mindengage-quizdocs/internal/logger"
)

// QuestionView is the client-facing shape of a stored question.
type QuestionView struct {
	ID              string          `json:"id"`
	UploadID        string          `json:"quiz_upload_id"`
	Number          int             `json:"question_number"`
	Text            string          `json:"question_text"`
	Options         []string        `json:"options"`
	Correct         Correct         `json:"correct_answer"`
	Explanation     string          `json:"explanation"`
	Type            Type            `json:"question_type"`
	ImageURL        *string         `json:"image_url"`
	Tables          json.RawMessage `json:"tables"`
	MathExpressions json.RawMessage `json:"math_expressions"`
	DocumentName    string          `json:"documentName"`
	DocumentSize    int64           `json:"documentSize"`
}

// Selector picks the question set a quiz client should see for a course and
// level: the newest processed upload wins.
type Selector struct {
	store          Store
	log            *logger.Logger
	legacyFallback bool
}

// NewSelector builds a Selector. With legacyFallback set, a course/level that
// has no processed upload returns the union of every stored question instead
// of nothing. Deprecated behavior kept for data that predates per-upload
// selection.
func NewSelector(store Store, log *logger.Logger, legacyFallback bool) *Selector {
	return &Selector{store: store, log: log.With("component", "Selector"), legacyFallback: legacyFallback}
}

func (s *Selector) Questions(ctx context.Context, courseID string, level Level) ([]QuestionView, error) {
	var rows []SourcedQuestion
	u, err := s.store.LatestProcessedUpload(ctx, courseID, level)
	switch {
	case err == nil:
		rows, err = s.store.QuestionsByUpload(ctx, u.ID)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotFound):
		if !s.legacyFallback {
			return []QuestionView{}, nil
		}
		rows, err = s.store.QuestionsByCourseLevel(ctx, courseID, level)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			s.log.Warn("serving legacy cross-upload question union", "course_id", courseID, "level", level, "count", len(rows))
		}
	default:
		return nil, err
	}

	out := make([]QuestionView, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.view(r, courseID, level))
	}
	return out, nil
}

func (s *Selector) view(r SourcedQuestion, courseID string, level Level) QuestionView {
	v := QuestionView{
		ID:              r.ID,
		UploadID:        r.UploadID,
		Number:          r.Number,
		Text:            r.Text,
		Options:         r.Options,
		Correct:         r.Correct,
		Explanation:     r.Explanation,
		Type:            r.Type,
		Tables:          s.rawJSON(r.ID, "tables", r.TablesJSON),
		MathExpressions: s.rawJSON(r.ID, "math_expressions", r.MathJSON),
		DocumentName:    r.DocumentName,
		DocumentSize:    r.DocumentSize,
	}
	if v.Options == nil {
		v.Options = []string{}
	}
	if r.ImageURL != nil && *r.ImageURL != "" {
		u := PublicImageURL(*r.ImageURL, courseID, level)
		v.ImageURL = &u
	}
	return v
}

func (s *Selector) rawJSON(id, field string, stored *string) json.RawMessage {
	if stored == nil {
		return nil
	}
	if !json.Valid([]byte(*stored)) {
		s.log.Warn("dropping unparseable stored payload", "question_id", id, "field", field)
		return nil
	}
	return json.RawMessage(*stored)
}

// IsExternalRef reports whether an image reference is already usable by a
// browser as is.
func IsExternalRef(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "data:")
}

// PublicImageURL rewrites a stored reference into the image endpoint path.
func PublicImageURL(ref, courseID string, level Level) string {
	if IsExternalRef(ref) {
		return ref
	}
	name := path.Base(strings.ReplaceAll(ref, "\\", "/"))
	return "/api/images/" + url.PathEscape(courseID) + "/" + url.PathEscape(string(level)) + "/" + url.PathEscape(name)
}
