package quiz

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-quizdocs/internal/db"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "quiz.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewSQLStore(sqlDB, string(db.DriverSQLite))
}

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func seedUpload(t *testing.T, s *SQLStore, id, course string, level Level, at time.Time, status Status) Upload {
	t.Helper()
	u := Upload{
		ID: id, CourseID: course, Level: level,
		FileName: id + ".docx", FilePath: course + "/" + string(level) + "/" + id + ".docx",
		FileSize: 1234, FileType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		UploadedBy: "inst-1", UploadedAt: at, Status: StatusUploaded,
	}
	if err := s.CreateUpload(context.Background(), u); err != nil {
		t.Fatalf("create upload: %v", err)
	}
	if status == StatusUploaded {
		return u
	}
	if err := s.UpdateStatus(context.Background(), id, StatusProcessing, nil); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	u.Status = StatusProcessing
	switch status {
	case StatusProcessed:
		if err := s.CommitQuestions(context.Background(), id, sampleQuestions(u, 2), at.Add(time.Second)); err != nil {
			t.Fatalf("commit: %v", err)
		}
		u.Status = StatusProcessed
	case StatusError:
		ts := at.Add(time.Second)
		if err := s.UpdateStatus(context.Background(), id, StatusError, &ts); err != nil {
			t.Fatalf("to error: %v", err)
		}
		u.Status = StatusError
	}
	return u
}

func sampleQuestions(u Upload, n int) []Question {
	out := make([]Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Question{
			ID:        fmt.Sprintf("%s-q%d", u.ID, i),
			UploadID:  u.ID,
			CourseID:  u.CourseID,
			Level:     u.Level,
			Number:    i,
			Text:      fmt.Sprintf("Question %d from %s", i, u.ID),
			Options:   []string{"a", "b", "c", "d"},
			Correct:   CorrectIndex(i % 4),
			Type:      TypeMCQ,
			CreatedAt: u.UploadedAt,
		})
	}
	return out
}

func TestUploadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUpload(t, s, "u1", "BIO101", LevelEasy, base, StatusUploaded)

	got, err := s.GetUpload(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FileName != u.FileName || got.FileSize != 1234 || got.Status != StatusUploaded || !got.UploadedAt.Equal(base) {
		t.Fatalf("unexpected upload: %+v", got)
	}
	if got.ProcessedAt != nil {
		t.Fatal("processed_at should be unset")
	}

	if _, err := s.GetUpload(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUpload(t, s, "u1", "BIO101", LevelEasy, base, StatusUploaded)

	ts := base.Add(time.Minute)
	if err := s.UpdateStatus(ctx, "u1", StatusProcessed, &ts); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("uploaded -> processed should be rejected, got %v", err)
	}
	if err := s.UpdateStatus(ctx, "u1", StatusProcessing, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateStatus(ctx, "u1", StatusError, &ts); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetUpload(ctx, "u1")
	if got.Status != StatusError || got.ProcessedAt == nil || !got.ProcessedAt.Equal(ts) {
		t.Fatalf("unexpected: %+v", got)
	}
	if err := s.UpdateStatus(ctx, "u1", StatusProcessed, &ts); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error -> processed should be rejected, got %v", err)
	}
	// reparse path
	if err := s.UpdateStatus(ctx, "u1", StatusProcessing, nil); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetUpload(ctx, "u1")
	if got.ProcessedAt != nil {
		t.Fatal("processing must clear processed_at")
	}
	if err := s.UpdateStatus(ctx, "missing", StatusProcessing, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCommitQuestionsIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUpload(t, s, "u1", "BIO101", LevelEasy, base, StatusProcessing)

	qs := sampleQuestions(u, 3)
	qs[2].ID = qs[0].ID // primary key clash on the last row
	if err := s.CommitQuestions(ctx, "u1", qs, base); err == nil {
		t.Fatal("expected insert failure")
	}
	rows, err := s.QuestionsByUpload(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("partial batch visible: %d rows", len(rows))
	}
	got, _ := s.GetUpload(ctx, "u1")
	if got.Status != StatusProcessing {
		t.Fatalf("status moved on failed commit: %s", got.Status)
	}

	if err := s.CommitQuestions(ctx, "u1", sampleQuestions(u, 3), base); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetUpload(ctx, "u1")
	if got.Status != StatusProcessed || got.ProcessedAt == nil {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestCommitRejectsForeignQuestion(t *testing.T) {
	s := newTestStore(t)
	u := seedUpload(t, s, "u1", "BIO101", LevelEasy, base, StatusProcessing)
	qs := sampleQuestions(u, 1)
	qs[0].UploadID = "other"
	if err := s.CommitQuestions(context.Background(), "u1", qs, base); err == nil {
		t.Fatal("expected ownership error")
	}
}

func TestQuestionColumnsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUpload(t, s, "u1", "BIO101", LevelHard, base, StatusProcessing)

	img := "diagram.png"
	tables := `[{"rows":[["a","b"]]}]`
	qs := []Question{
		{ID: "q1", UploadID: "u1", CourseID: "BIO101", Level: LevelHard, Number: 1, Text: "Pick",
			Options: []string{"w", "x", "y", "z"}, Correct: CorrectIndex(3), Type: TypeMCQ,
			ImageURL: &img, TablesJSON: &tables, CreatedAt: base},
		{ID: "q2", UploadID: "u1", CourseID: "BIO101", Level: LevelHard, Number: 2, Text: "Name it",
			Correct: CorrectText("mitochondria"), Type: TypeShortAnswer, CreatedAt: base},
	}
	if err := s.CommitQuestions(ctx, u.ID, qs, base); err != nil {
		t.Fatal(err)
	}

	q1, err := s.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatal(err)
	}
	if !q1.Correct.IsIndex() || q1.Correct.Index != 3 || q1.ImageURL == nil || *q1.ImageURL != img {
		t.Fatalf("q1: %+v", q1)
	}
	if q1.TablesJSON == nil || *q1.TablesJSON != tables || q1.MathJSON != nil {
		t.Fatal("q1 payload columns not preserved")
	}
	q2, err := s.GetQuestion(ctx, "q2")
	if err != nil {
		t.Fatal(err)
	}
	if q2.Correct.IsIndex() || q2.Correct.Text != "mitochondria" || len(q2.Options) != 0 || q2.ImageURL != nil {
		t.Fatalf("q2: %+v", q2)
	}
}

func TestUpdateAndDeleteQuestion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUpload(t, s, "u1", "BIO101", LevelEasy, base, StatusProcessed)

	q, err := s.GetQuestion(ctx, "u1-q1")
	if err != nil {
		t.Fatal(err)
	}
	q.Text = "edited"
	q.Correct = CorrectIndex(0)
	if err := s.UpdateQuestion(ctx, q); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetQuestion(ctx, "u1-q1")
	if got.Text != "edited" || got.Correct.Index != 0 {
		t.Fatalf("not updated: %+v", got)
	}
	if err := s.DeleteQuestion(ctx, "u1-q1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteQuestion(ctx, "u1-q1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteUploadCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUpload(t, s, "u1", "BIO101", LevelEasy, base, StatusProcessed)

	if err := s.DeleteUpload(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	rows, _ := s.QuestionsByCourseLevel(ctx, "BIO101", LevelEasy)
	if len(rows) != 0 {
		t.Fatalf("questions survived: %d", len(rows))
	}
	if err := s.DeleteUpload(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteCourseScopesToCourse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUpload(t, s, "a1", "BIO101", LevelEasy, base, StatusProcessed)
	seedUpload(t, s, "a2", "BIO101", LevelHard, base, StatusError)
	seedUpload(t, s, "b1", "CHEM200", LevelEasy, base, StatusProcessed)

	n, err := s.DeleteCourse(ctx, "BIO101")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("deleted %d uploads", n)
	}
	left, _ := s.ListUploads(ctx, "BIO101")
	if len(left) != 0 {
		t.Fatal("course uploads remain")
	}
	other, _ := s.QuestionsByCourseLevel(ctx, "CHEM200", LevelEasy)
	if len(other) != 2 {
		t.Fatalf("other course touched: %d", len(other))
	}
}

func TestLatestProcessedUpload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUpload(t, s, "old", "BIO101", LevelEasy, base, StatusProcessed)
	seedUpload(t, s, "new", "BIO101", LevelEasy, base.Add(time.Hour), StatusProcessed)
	seedUpload(t, s, "newest-failed", "BIO101", LevelEasy, base.Add(2*time.Hour), StatusError)
	seedUpload(t, s, "other-level", "BIO101", LevelHard, base.Add(3*time.Hour), StatusProcessed)

	u, err := s.LatestProcessedUpload(ctx, "BIO101", LevelEasy)
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "new" {
		t.Fatalf("picked %s", u.ID)
	}
	if _, err := s.LatestProcessedUpload(ctx, "BIO101", LevelMedium); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	list, _ := s.ListUploads(ctx, "BIO101")
	if len(list) != 4 || list[0].ID != "other-level" || list[3].ID != "old" {
		t.Fatalf("list order wrong: %v", list)
	}
}
