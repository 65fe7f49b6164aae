package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-quizdocs/internal/grading"
	"github.com/mind-engage/mindengage-quizdocs/internal/ingest"
	"github.com/mind-engage/mindengage-quizdocs/internal/logger"
	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

var validate = newValidator()

// newValidator reports fields by their json or form name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

type errorBody struct {
	Error    string `json:"error"`
	Field    string `json:"field,omitempty"`
	UploadID string `json:"upload_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps the error taxonomy onto status codes. Anything unknown is
// logged and reported as a 500 without details.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	var (
		ve  *quiz.ValidationError
		ee  *quiz.ExtractionError
		pe  *quiz.PersistenceError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.As(err, &mbe):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", Field: "file"})
	case errors.As(err, &ee) && errors.Is(err, ingest.ErrArtifactMissing):
		writeJSON(w, http.StatusNotFound, errorBody{Error: ee.Error(), UploadID: ee.UploadID})
	case errors.As(err, &ee):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: ee.Error(), UploadID: ee.UploadID})
	case errors.As(err, &pe):
		log.Error("persistence failure", "upload_id", pe.UploadID, "err", pe.Err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not save questions", UploadID: pe.UploadID})
	case errors.Is(err, quiz.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, grading.ErrBadResponse):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: "response"})
	default:
		log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// validationError turns the first validator failure into the domain error so
// it is reported like any other rejected field.
func validationError(err error) error {
	var fe validator.ValidationErrors
	if errors.As(err, &fe) && len(fe) > 0 {
		f := fe[0]
		return &quiz.ValidationError{Field: f.Field(), Reason: "failed " + f.Tag() + " check"}
	}
	return &quiz.ValidationError{Reason: err.Error()}
}
