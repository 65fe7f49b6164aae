package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quizdocs/internal/grading"
	"github.com/mind-engage/mindengage-quizdocs/internal/logger"
	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

// GET /api/questions?course_id=&level=
func ListQuestionsHandler(sel *quiz.Selector, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := strings.TrimSpace(r.URL.Query().Get("course_id"))
		if courseID == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "course_id required", Field: "course_id"})
			return
		}
		level, err := quiz.ParseLevel(r.URL.Query().Get("level"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		views, err := sel.Questions(r.Context(), courseID, level)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

type updateQuestionReq struct {
	QuestionText  string        `json:"question_text" validate:"required"`
	Options       []string      `json:"options" validate:"max=10"`
	CorrectAnswer *quiz.Correct `json:"correct_answer" validate:"required"`
	Explanation   string        `json:"explanation"`
	QuestionType  string        `json:"question_type" validate:"omitempty,oneof=mcq short_answer image_based"`
	ImageURL      *string       `json:"image_url"`
}

// PUT /api/questions/{id}
//
// Overwrites the editable fields as sent. A missing question_type is derived
// from the option count.
func UpdateQuestionHandler(store quiz.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateQuestionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json: "+err.Error())
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, log, validationError(err))
			return
		}

		q, err := store.GetQuestion(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		q.Text = req.QuestionText
		q.Options = req.Options
		if q.Options == nil {
			q.Options = []string{}
		}
		q.Correct = *req.CorrectAnswer
		q.Explanation = req.Explanation
		q.Type = quiz.Type(req.QuestionType)
		if q.Type == "" {
			q.Type = quiz.Classify(q.Options)
		}
		q.ImageURL = nil
		if req.ImageURL != nil && strings.TrimSpace(*req.ImageURL) != "" {
			q.ImageURL = req.ImageURL
		}

		if err := store.UpdateQuestion(r.Context(), q); err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("question updated", "question_id", q.ID, "upload_id", q.UploadID)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "question": q})
	}
}

// DELETE /api/questions/{id}
func DeleteQuestionHandler(store quiz.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuestion(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// POST /api/questions/{id}/check  { "response": 2 } or { "response": "text" }
func CheckAnswerHandler(store quiz.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Response any `json:"response"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		q, err := store.GetQuestion(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		res, err := grading.Check(q, req.Response)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
