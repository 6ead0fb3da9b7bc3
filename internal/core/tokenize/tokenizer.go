package tokenize

import "strings"

// Token is one pill candidate cut out of the input text.
// Start and End are byte offsets into the input; the span covers any quote
// characters consumed inside the token but not a closing quote.
type Token struct {
	Text      string `json:"text"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Finalized bool   `json:"finalized"`
}

// Tokenize splits text into words and quoted phrases. A double quote toggles
// phrase mode; closing a phrase or hitting a space outside one ends a token.
// Every token but the last is finalized. The last one is finalized only when the
// text ends with a space or a quote, otherwise the user is still typing it.
func Tokenize(text string) []Token {
	var (
		tokens       []Token
		acc          strings.Builder
		insideQuotes bool
		start        = -1
	)

	flush := func(end int) {
		if acc.Len() == 0 {
			return
		}
		tokens = append(tokens, Token{Text: acc.String(), Start: start, End: end, Finalized: true})
		acc.Reset()
		start = -1
	}

	for i, r := range text {
		switch {
		case r == '"':
			if insideQuotes {
				flush(i)
			}
			insideQuotes = !insideQuotes
		case r == ' ' && !insideQuotes:
			flush(i)
		default:
			if start < 0 {
				start = i
			}
			acc.WriteRune(r)
		}
	}
	flush(len(text))

	if n := len(tokens); n > 0 && !strings.HasSuffix(text, " ") && !strings.HasSuffix(text, `"`) {
		tokens[n-1].Finalized = false
	}
	return tokens
}

// Finalized drops the provisional trailing token, if any.
func Finalized(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Finalized {
			out = append(out, t)
		}
	}
	return out
}

func Words(tokens []Token) []string {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
	}
	return words
}
