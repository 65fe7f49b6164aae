// Package normalize reconciles extractor drafts into stored questions.
package normalize

import (
	"encoding/json"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quizdocs/internal/extract"
	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

type WarningKind string

const (
	WarnImageUnresolved WarningKind = "image_unresolved"
	WarnAnswerDefaulted WarningKind = "answer_defaulted"
)

// Warning is a recoverable problem that was replaced by a safe default.
type Warning struct {
	Kind   WarningKind
	Number int
	Detail string
}

// Scope is the upload a batch of drafts belongs to.
type Scope struct {
	UploadID string
	CourseID string
	Level    quiz.Level
	Dir      string // course/level directory relative to the storage root
}

type Normalizer struct {
	root string
	ids  quiz.IDIssuer
	now  func() time.Time
}

func New(storageRoot string, ids quiz.IDIssuer, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{root: storageRoot, ids: ids, now: now}
}

var (
	reImageMarker  = regexp.MustCompile(`(?i)\[IMAGE:([^\]]+)\]`)
	reAnswerLetter = regexp.MustCompile(`^\(?([A-Da-d])(?:[.):].*)?$`)
)

// Normalize never fails; every problem degrades to a default plus a warning.
func (n *Normalizer) Normalize(d extract.Draft, sc Scope) (quiz.Question, []Warning) {
	var warns []Warning
	warn := func(k WarningKind, detail string) {
		warns = append(warns, Warning{Kind: k, Number: d.Number, Detail: detail})
	}

	q := quiz.Question{
		ID:          n.ids.NewID(),
		UploadID:    sc.UploadID,
		CourseID:    sc.CourseID,
		Level:       sc.Level,
		Number:      d.Number,
		Explanation: strings.TrimSpace(html.UnescapeString(d.Explanation)),
		CreatedAt:   n.now().UTC(),
	}

	text, ref, hasMarker := takeImageMarker(d.Text)
	q.Text = strings.TrimSpace(html.UnescapeString(text))

	res := ImageResolver{Root: n.root, Dir: sc.Dir}
	var image string
	if hasMarker {
		image, _ = res.Resolve(ref)
	}
	if image == "" && d.ImageURL != "" {
		image = directImage(res, d.ImageURL)
	}
	switch {
	case image != "":
		q.ImageURL = &image
	case hasMarker:
		warn(WarnImageUnresolved, ref)
	}

	opts, pos := quiz.CleanOptionsIndexed(d.Options)
	q.Type = quiz.Classify(opts)
	if d.Type == quiz.TypeImageBased {
		q.Type = quiz.TypeImageBased
	}
	indexed := len(opts) == quiz.MCQOptionCount
	if indexed {
		q.Options = opts
	} else {
		q.Options = []string{}
	}

	if indexed {
		idx, ok := answerIndex(d.Answer, opts, pos)
		if !ok {
			warn(WarnAnswerDefaulted, describe(d.Answer))
			idx = 0
		}
		q.Correct = quiz.CorrectIndex(idx)
	} else {
		q.Correct = quiz.CorrectText(answerText(d.Answer))
	}

	q.TablesJSON = marshalOptional(d.Tables)
	q.MathJSON = marshalOptional(d.Math)
	return q, warns
}

// takeImageMarker removes every [IMAGE:...] marker and returns the reference
// of the first one. A trailing ":alt" on a local reference is dropped.
func takeImageMarker(text string) (string, string, bool) {
	m := reImageMarker.FindStringSubmatch(text)
	if m == nil {
		return text, "", false
	}
	ref := strings.TrimSpace(m[1])
	if !quiz.IsExternalRef(ref) {
		if i := strings.IndexByte(ref, ':'); i > 0 {
			ref = ref[:i]
		}
	}
	return reImageMarker.ReplaceAllString(text, ""), ref, true
}

// directImage uses the draft's own image field: data and remote URLs as they
// are, local names resolved when possible and kept verbatim otherwise.
func directImage(res ImageResolver, v string) string {
	v = strings.TrimSpace(v)
	if quiz.IsExternalRef(v) {
		return v
	}
	if p, ok := res.Resolve(v); ok {
		return p
	}
	return v
}

// answerIndex resolves the answer against the cleaned options. Extractor
// indices point into the raw list and are remapped through pos.
func answerIndex(a extract.Answer, opts []string, pos []int) (int, bool) {
	if i, ok := a.Index(); ok {
		if i < 0 || i >= len(pos) || pos[i] < 0 {
			return 0, false
		}
		return pos[i], true
	}
	s, ok := a.Text()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(html.UnescapeString(s))
	if m := reAnswerLetter.FindStringSubmatch(s); m != nil {
		return int(strings.ToUpper(m[1])[0] - 'A'), true
	}
	for i, o := range opts {
		if strings.EqualFold(o, s) {
			return i, true
		}
	}
	return 0, false
}

func answerText(a extract.Answer) string {
	if s, ok := a.Text(); ok {
		return s
	}
	if i, ok := a.Index(); ok {
		return strconv.Itoa(i)
	}
	return ""
}

func describe(a extract.Answer) string {
	if a.Unresolved() {
		return "unresolved"
	}
	if i, ok := a.Index(); ok {
		return "index " + strconv.Itoa(i) + " out of range"
	}
	s, _ := a.Text()
	return "unmatched answer " + strconv.Quote(s)
}

func marshalOptional[T any](v []T) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
