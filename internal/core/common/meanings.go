package common

import (
	"encoding/json"
	"strings"
)

// Outcome records which parsing stage produced the meanings.
type Outcome int

const (
	OutcomeEmpty Outcome = iota
	OutcomeStructuredArray
	OutcomeEscapedString
	OutcomePlainLines
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStructuredArray:
		return "structured_array"
	case OutcomeEscapedString:
		return "escaped_string"
	case OutcomePlainLines:
		return "plain_lines"
	default:
		return "empty"
	}
}

type Parsed struct {
	Meanings []string
	Outcome  Outcome
}

// Degraded reports that a looser stage than the structured array had to be used.
func (p Parsed) Degraded() bool {
	return p.Outcome == OutcomeEscapedString || p.Outcome == OutcomePlainLines
}

type meaningObject struct {
	Meaning string `json:"meaning"`
}

// ParseMeanings extracts up to maxCount meaning strings from free-form LLM output.
// It tries a JSON array of {"meaning": ...} objects, then the same array wrapped
// in a JSON string, then plain non-blank lines. It never fails; exhausting every
// stage yields OutcomeEmpty.
func ParseMeanings(raw string, maxCount int) Parsed {
	if maxCount <= 0 {
		return Parsed{Outcome: OutcomeEmpty}
	}
	text := StripCodeFence(raw)

	if m := meaningsFromArray(text, maxCount); len(m) > 0 {
		return Parsed{Meanings: m, Outcome: OutcomeStructuredArray}
	}

	var unescaped string
	if err := json.Unmarshal([]byte(text), &unescaped); err == nil {
		if m := meaningsFromArray(strings.TrimSpace(unescaped), maxCount); len(m) > 0 {
			return Parsed{Meanings: m, Outcome: OutcomeEscapedString}
		}
	}

	if m := nonBlankLines(text, maxCount); len(m) > 0 {
		return Parsed{Meanings: m, Outcome: OutcomePlainLines}
	}
	return Parsed{Outcome: OutcomeEmpty}
}

// StripCodeFence removes one leading ``` line and one trailing ``` marker.
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i != -1 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func meaningsFromArray(text string, maxCount int) []string {
	var objs []meaningObject
	if err := json.Unmarshal([]byte(text), &objs); err != nil {
		return nil
	}
	var out []string
	for _, o := range objs {
		m := strings.TrimSpace(o.Meaning)
		if m == "" {
			continue
		}
		out = append(out, m)
		if len(out) == maxCount {
			break
		}
	}
	return out
}

func nonBlankLines(text string, maxCount int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxCount {
			break
		}
	}
	return out
}
