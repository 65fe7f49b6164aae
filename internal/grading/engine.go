// Package grading checks a learner's answer against a stored question.
package grading

import (
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

// Result is the outcome of checking a single response.
type Result struct {
	Correct  bool   `json:"correct"`
	Expected string `json:"expected"` // index or literal text, as stored
}

var ErrBadResponse = errors.New("response has the wrong shape for this question")

// strategy checks one kind of question.
type strategy interface {
	check(q quiz.Question, response any) (Result, error)
}

var strategies = map[quiz.Type]strategy{
	quiz.TypeMCQ:         indexStrategy{},
	quiz.TypeShortAnswer: textStrategy{},
}

// Check routes by question type. An image_based question is checked like a
// multiple choice question when it carries four options and like a short
// answer otherwise.
func Check(q quiz.Question, response any) (Result, error) {
	t := q.Type
	if t == quiz.TypeImageBased {
		t = quiz.Classify(q.Options)
	}
	s, ok := strategies[t]
	if !ok {
		return Result{}, fmt.Errorf("question type %q: %w", q.Type, ErrBadResponse)
	}
	return s.check(q, response)
}

type indexStrategy struct{}

func (indexStrategy) check(q quiz.Question, response any) (Result, error) {
	res := Result{Expected: q.Correct.String()}
	i, ok := toIndex(response)
	if !ok {
		return res, fmt.Errorf("want an option index: %w", ErrBadResponse)
	}
	// a text-form signal on a four-option question cannot match an index
	res.Correct = q.Correct.IsIndex() && i == q.Correct.Index
	return res, nil
}

type textStrategy struct{}

func (textStrategy) check(q quiz.Question, response any) (Result, error) {
	res := Result{Expected: q.Correct.String()}
	var resp string
	switch v := response.(type) {
	case string:
		resp = v
	case nil:
	default:
		// numbers typed into a short answer box arrive as JSON numbers
		n, ok := toIndex(v)
		if !ok {
			return res, fmt.Errorf("want text: %w", ErrBadResponse)
		}
		resp = fmt.Sprint(n)
	}
	res.Correct = matchText(q.Correct.String(), resp)
	return res, nil
}
