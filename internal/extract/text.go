package extract

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/mind-engage/mindengage-quizdocs/internal/quiz"
)

// TextExtractor parses plain-text quiz documents.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, path, _ string, _ quiz.Level) ([]Draft, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseBlocks(textLines(string(bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))))), nil
}

func textLines(s string) []line {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	parts := strings.Split(s, "\n")
	out := make([]line, 0, len(parts))
	for _, p := range parts {
		out = append(out, line{text: p})
	}
	return out
}
