// Package extract turns stored quiz documents into draft questions.
package extract

import (
	"context"
	"errors"

	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

// Extractor reads a stored document and returns its draft questions. The
// result is fully materialized; callers may iterate it any number of times.
// A document that cannot be parsed at all is an error. Zero drafts is not.
type Extractor interface {
	Extract(ctx context.Context, path, courseID string, level quiz.Level) ([]Draft, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, path, courseID string, level quiz.Level) ([]Draft, error)

func (f ExtractorFunc) Extract(ctx context.Context, path, courseID string, level quiz.Level) ([]Draft, error) {
	return f(ctx, path, courseID, level)
}

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Draft is one loosely structured question as found in the document. Text may
// still carry [IMAGE:<ref>] and [TABLE:<n>] markers.
type Draft struct {
	Number      int
	Text        string
	Options     []any // strings or cell objects (map with value/text/content)
	Answer      Answer
	Explanation string
	Type        quiz.Type // optional preset; only image_based is honored
	ImageURL    string    // direct image field: data: URL or bare path
	Tables      []Table   // nil when the question has no tables
	Math        []string  // nil when the question has no math
}

type Table struct {
	Rows [][]string `json:"rows"`
}

type answerKind uint8

const (
	answerUnresolved answerKind = iota
	answerIndex
	answerText
)

// Answer is the raw correctness signal: an option index, a literal text or
// unresolved.
type Answer struct {
	kind  answerKind
	index int
	text  string
}

func AnswerIndex(i int) Answer    { return Answer{kind: answerIndex, index: i} }
func AnswerText(s string) Answer  { return Answer{kind: answerText, text: s} }
func Unresolved() Answer          { return Answer{} }
func (a Answer) Unresolved() bool { return a.kind == answerUnresolved }

// Index returns the option index when the answer is in index form.
func (a Answer) Index() (int, bool) { return a.index, a.kind == answerIndex }

// Text returns the literal answer when the answer is in text form.
func (a Answer) Text() (string, bool) { return a.text, a.kind == answerText }
