package commands

import "errors"

// errMalformed signals an unterminated quote in the command line.
var errMalformed = errors.New("malformed input")

// tokenize splits a command line on whitespace with shell-like double-quote
// grouping, so multi-word arguments can be quoted. Quotes are stripped from
// the resulting tokens. An unterminated quote is an error.
func tokenize(line string) ([]string, error) {
	var (
		tokens   []string
		current  []rune
		inQuote  bool
		hasToken bool
	)

	flush := func() {
		if hasToken {
			tokens = append(tokens, string(current))
			current = current[:0]
			hasToken = false
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			// An empty quoted pair still produces a token.
			hasToken = true
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			current = append(current, r)
			hasToken = true
		}
	}
	if inQuote {
		return nil, errMalformed
	}
	flush()
	return tokens, nil
}
