package quiz

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// MCQOptionCount is the number of surviving options that makes a question
// multiple choice.
const MCQOptionCount = 4

// Classify derives the rendering type from the cleaned option list alone.
// Server-side tagging and every client must use this rule unchanged.
func Classify(options []string) Type {
	if len(options) == MCQOptionCount {
		return TypeMCQ
	}
	return TypeShortAnswer
}

// CleanOptions flattens raw extractor options into display strings.
//
// Structured cells are unwrapped through value, text, then content. Nil,
// empty and whitespace-only entries are dropped. A lone string holding
// several options separated by "|", ";" or newlines is split first.
func CleanOptions(raw []any) []string {
	out, _ := CleanOptionsIndexed(raw)
	return out
}

// CleanOptionsIndexed is CleanOptions plus the position each raw entry landed
// at in the cleaned list, -1 for dropped entries. After a delimited split the
// split parts count as the raw entries.
func CleanOptionsIndexed(raw []any) ([]string, []int) {
	if len(raw) == 1 {
		if s, ok := raw[0].(string); ok {
			if parts := splitDelimited(s); len(parts) > 1 {
				raw = make([]any, len(parts))
				for i, p := range parts {
					raw[i] = p
				}
			}
		}
	}
	out := make([]string, 0, len(raw))
	pos := make([]int, len(raw))
	for i, r := range raw {
		s := strings.TrimSpace(html.UnescapeString(optionString(r)))
		if s == "" {
			pos[i] = -1
			continue
		}
		pos[i] = len(out)
		out = append(out, s)
	}
	return out, pos
}

func splitDelimited(s string) []string {
	for _, sep := range []string{"|", ";", "\n"} {
		if !strings.Contains(s, sep) {
			continue
		}
		var out []string
		for _, p := range strings.Split(s, sep) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

func optionString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case map[string]any:
		for _, k := range []string{"value", "text", "content"} {
			if s := optionString(x[k]); strings.TrimSpace(s) != "" {
				return s
			}
		}
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return ""
	}
}
