package grading

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

func mcq(idx int) quiz.Question {
	return quiz.Question{Type: quiz.TypeMCQ, Options: []string{"a", "b", "c", "d"}, Correct: quiz.CorrectIndex(idx)}
}

func short(answer string) quiz.Question {
	return quiz.Question{Type: quiz.TypeShortAnswer, Options: []string{}, Correct: quiz.CorrectText(answer)}
}

func TestCheck(t *testing.T) {
	img4 := mcq(2)
	img4.Type = quiz.TypeImageBased
	imgText := short("mitochondria")
	imgText.Type = quiz.TypeImageBased

	cases := []struct {
		name string
		q    quiz.Question
		resp any
		want bool
	}{
		{"mcq match", mcq(1), 1, true},
		{"mcq json float", mcq(1), float64(1), true},
		{"mcq json number", mcq(3), json.Number("3"), true},
		{"mcq string digit", mcq(0), " 0 ", true},
		{"mcq miss", mcq(1), 2, false},
		{"mcq text signal never matches", quiz.Question{Type: quiz.TypeMCQ, Options: []string{"a", "b", "c", "d"}, Correct: quiz.CorrectText("1")}, 1, false},
		{"short exact", short("Paris"), "paris", true},
		{"short padded", short(" Paris "), "  PARIS", true},
		{"short containment", short("paris"), "It is Paris, France", true},
		{"short miss", short("paris"), "lyon", false},
		{"short empty answer needs empty response", short(""), "", true},
		{"short empty answer rejects text", short(""), "anything", false},
		{"short numeric literal", short("4"), float64(4), true},
		{"short nil response", short("x"), nil, false},
		{"image with four options", img4, 2, true},
		{"image without options", imgText, "The Mitochondria", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Check(tc.q, tc.resp)
			if err != nil {
				t.Fatal(err)
			}
			if got.Correct != tc.want {
				t.Fatalf("Correct=%v want %v", got.Correct, tc.want)
			}
		})
	}
}

func TestCheckRejectsWrongShape(t *testing.T) {
	for _, tc := range []struct {
		q    quiz.Question
		resp any
	}{
		{mcq(1), "B"},
		{mcq(1), 1.5},
		{mcq(1), nil},
		{short("x"), []string{"x"}},
		{quiz.Question{Type: "essay"}, "x"},
	} {
		if _, err := Check(tc.q, tc.resp); !errors.Is(err, ErrBadResponse) {
			t.Errorf("%v / %#v: want ErrBadResponse, got %v", tc.q.Type, tc.resp, err)
		}
	}
}

func TestCheckReportsExpected(t *testing.T) {
	r, _ := Check(mcq(3), 0)
	if r.Expected != "3" {
		t.Fatalf("expected %q", r.Expected)
	}
	r, _ = Check(short("Paris"), "x")
	if r.Expected != "Paris" {
		t.Fatalf("expected %q", r.Expected)
	}
}
