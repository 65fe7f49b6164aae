package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

// PDFExtractor dumps page content streams with pdfcpu and recovers the text
// shown by the text operators. Fonts with custom encodings come out garbled;
// such documents are better uploaded as docx.
type PDFExtractor struct{}

var rePageNum = regexp.MustCompile(`(\d+)\.txt$`)

func (PDFExtractor) Extract(ctx context.Context, p, _ string, _ quiz.Level) ([]Draft, error) {
	outDir, err := os.MkdirTemp("", "quizpdf-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ExtractContentFile(p, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("pdf content: %w", err)
	}

	pages, err := filepath.Glob(filepath.Join(outDir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool { return pageNumber(pages[i]) < pageNumber(pages[j]) })

	var lines []line
	for _, pg := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(pg)
		if err != nil {
			return nil, err
		}
		for _, s := range contentText(string(b)) {
			lines = append(lines, line{text: s})
		}
	}
	return parseBlocks(lines), nil
}

func pageNumber(name string) int {
	m := rePageNum.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// contentText walks a content stream and returns the shown text, one entry
// per text line. Positioning operators end a line; large negative kerning
// inside TJ arrays becomes a space.
func contentText(stream string) []string {
	var (
		out      []string
		cur      strings.Builder
		operands []string // string operands since the last operator
		inArray  bool
	)
	endLine := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	i := 0
	for i < len(stream) {
		c := stream[i]
		switch {
		case c == '(':
			s, n := readLiteral(stream[i:])
			operands = append(operands, s)
			i += n
		case c == '<' && i+1 < len(stream) && stream[i+1] != '<':
			s, n := readHex(stream[i:])
			operands = append(operands, s)
			i += n
		case c == '[':
			inArray = true
			operands = operands[:0]
			i++
		case c == ']':
			inArray = false
			i++
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case isPDFSpace(c):
			i++
		default:
			j := i
			for j < len(stream) && !isPDFSpace(stream[j]) && !strings.ContainsRune("()<>[]/%", rune(stream[j])) {
				j++
			}
			if j == i {
				j++
			}
			tok := stream[i:j]
			i = j
			if inArray {
				if f, err := strconv.ParseFloat(tok, 64); err == nil && f < -200 {
					operands = append(operands, " ")
				}
				continue
			}
			switch tok {
			case "Tj", "TJ":
				cur.WriteString(strings.Join(operands, ""))
			case "'", `"`:
				endLine()
				if len(operands) > 0 {
					cur.WriteString(operands[len(operands)-1])
				}
			case "Td", "TD", "T*", "Tm", "ET":
				endLine()
			}
			if _, err := strconv.ParseFloat(tok, 64); err != nil {
				operands = operands[:0]
			}
		}
	}
	endLine()
	return out
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func readLiteral(s string) (string, int) {
	var b strings.Builder
	depth := 0
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
		case '\\':
			i++
			if i >= len(s) {
				break
			}
			switch e := s[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '\n':
			case '\r':
				if i+1 < len(s) && s[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					j := i
					for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
						j++
					}
					v, _ := strconv.ParseUint(s[i:j], 8, 8)
					b.WriteByte(byte(v))
					i = j - 1
				} else {
					b.WriteByte(e)
				}
			}
		default:
			b.WriteByte(c)
		}
		i++
	}
	return b.String(), len(s)
}

func readHex(s string) (string, int) {
	end := strings.IndexByte(s, '>')
	if end < 0 {
		end = len(s) - 1
	}
	var digits []byte
	for _, c := range []byte(s[1:end]) {
		if !isPDFSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var b strings.Builder
	for k := 0; k+1 < len(digits); k += 2 {
		v, err := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		if err != nil {
			continue
		}
		b.WriteByte(byte(v))
	}
	return b.String(), end + 1
}
