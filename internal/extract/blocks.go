package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// line is one unit of document flow fed to the block parser. A line carries
// either text or a table; text lines may bring math and an embedded image.
type line struct {
	text  string
	table *Table
	math  []string
	image string
}

var (
	// the delimiter must end the token so "3.14 is close" stays body text
	reQuestion    = regexp.MustCompile(`(?i)^\s*(?:Q\s*)?\d+\s*[.)](?:\s+(.*))?$`)
	reOption      = regexp.MustCompile(`^\s*\(?([A-Da-d])[.)]\s*(.*)$`)
	reAnswer      = regexp.MustCompile(`(?i)^\s*(?:correct\s+answer|answer|ans|correct)\s*[:\-]\s*(.*)$`)
	reExplanation = regexp.MustCompile(`(?i)^\s*explanation\s*[:\-]\s*(.*)$`)
	reLetter      = regexp.MustCompile(`^\(?([A-Da-d])(?:[.):].*)?$`)
)

type section uint8

const (
	inText section = iota
	inOptions
	inExplanation
)

type blockParser struct {
	out       []Draft
	cur       *Draft
	opts      []string
	rawAnswer *string
	sec       section
}

// parseBlocks splits the document flow into question blocks. Anything before
// the first question header is ignored.
func parseBlocks(lines []line) []Draft {
	p := &blockParser{out: []Draft{}}
	for _, ln := range lines {
		p.feed(ln)
	}
	p.flush()
	return p.out
}

func (p *blockParser) feed(ln line) {
	if ln.table != nil {
		if p.cur == nil {
			return
		}
		p.cur.Tables = append(p.cur.Tables, *ln.table)
		p.appendText(fmt.Sprintf("[TABLE:%d]", len(p.cur.Tables)))
		return
	}

	text := strings.TrimRight(ln.text, " \t")
	if m := reQuestion.FindStringSubmatch(text); m != nil {
		p.flush()
		p.cur = &Draft{Number: len(p.out) + 1, Text: strings.TrimSpace(m[1])}
		p.sec = inText
		p.attach(ln)
		return
	}
	if p.cur == nil {
		return
	}
	p.attach(ln)

	switch {
	case reAnswer.MatchString(text):
		a := strings.TrimSpace(reAnswer.FindStringSubmatch(text)[1])
		p.rawAnswer = &a
		p.sec = inText
	case reExplanation.MatchString(text):
		p.cur.Explanation = strings.TrimSpace(reExplanation.FindStringSubmatch(text)[1])
		p.sec = inExplanation
	case p.sec != inExplanation && reOption.MatchString(text):
		p.opts = append(p.opts, strings.TrimSpace(reOption.FindStringSubmatch(text)[2]))
		p.sec = inOptions
	case strings.TrimSpace(text) == "":
	default:
		p.appendText(strings.TrimSpace(text))
	}
}

func (p *blockParser) attach(ln line) {
	if len(ln.math) > 0 {
		p.cur.Math = append(p.cur.Math, ln.math...)
	}
	if ln.image != "" && p.cur.ImageURL == "" {
		p.cur.ImageURL = ln.image
	}
}

// appendText continues whichever part of the block is open.
func (p *blockParser) appendText(s string) {
	switch p.sec {
	case inOptions:
		last := len(p.opts) - 1
		p.opts[last] = joinLine(p.opts[last], s)
	case inExplanation:
		p.cur.Explanation = joinLine(p.cur.Explanation, s)
	default:
		p.cur.Text = joinLine(p.cur.Text, s)
	}
}

func joinLine(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}

func (p *blockParser) flush() {
	if p.cur == nil {
		return
	}
	d := p.cur
	if len(p.opts) > 0 {
		d.Options = make([]any, len(p.opts))
		for i, o := range p.opts {
			d.Options[i] = o
		}
	}
	d.Answer = resolveAnswer(p.rawAnswer, p.opts)
	p.out = append(p.out, *d)
	p.cur, p.opts, p.rawAnswer, p.sec = nil, nil, nil, inText
}

func resolveAnswer(raw *string, opts []string) Answer {
	if raw == nil || *raw == "" {
		return Unresolved()
	}
	s := *raw
	if len(opts) > 0 {
		if m := reLetter.FindStringSubmatch(s); m != nil {
			if i := int(strings.ToUpper(m[1])[0] - 'A'); i < len(opts) {
				return AnswerIndex(i)
			}
		}
		for i, o := range opts {
			if strings.EqualFold(strings.TrimSpace(o), s) {
				return AnswerIndex(i)
			}
		}
	}
	return AnswerText(s)
}
