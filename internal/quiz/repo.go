package quiz

import (
	"context"
	"time"
)

// SourcedQuestion is a question joined with the name and size of the
// document it came from.
type SourcedQuestion struct {
	Question
	DocumentName string
	DocumentSize int64
}

type Store interface {
	CreateUpload(ctx context.Context, u Upload) error
	GetUpload(ctx context.Context, id string) (Upload, error)
	ListUploads(ctx context.Context, courseID string) ([]Upload, error) // newest first
	// UpdateStatus moves an upload along the state machine. Moving to
	// StatusProcessing is always allowed (initial start or reparse); the
	// terminal states are only reachable from StatusProcessing.
	UpdateStatus(ctx context.Context, id string, to Status, at *time.Time) error
	DeleteUpload(ctx context.Context, id string) error
	DeleteCourse(ctx context.Context, courseID string) (int, error)

	DeleteQuestionsByUpload(ctx context.Context, uploadID string) error
	// CommitQuestions inserts the whole batch and marks the upload processed
	// in one transaction.
	CommitQuestions(ctx context.Context, uploadID string, qs []Question, processedAt time.Time) error

	LatestProcessedUpload(ctx context.Context, courseID string, level Level) (Upload, error)
	QuestionsByUpload(ctx context.Context, uploadID string) ([]SourcedQuestion, error)
	// QuestionsByCourseLevel skips questions whose upload ended in error.
	QuestionsByCourseLevel(ctx context.Context, courseID string, level Level) ([]SourcedQuestion, error)

	GetQuestion(ctx context.Context, id string) (Question, error)
	UpdateQuestion(ctx context.Context, q Question) error
	DeleteQuestion(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}
