// Package call recovers structured function invocations from completion text.
//
// The model is prompted to answer with calls in the shape
// name(key=value, key2=value2), optionally several joined by ", " and
// wrapped in brackets. Extraction and parsing deliberately mirror that
// advertised grammar and nothing more: the splits on '(' ',' and '=' are
// naive, so nested parentheses, escaped quotes, and commas inside quoted
// values are not handled. Tightening the grammar here without changing the
// system prompt would break the contract with the model.
package call

import (
	"regexp"
	"strings"
)

// callPattern matches identifier(anything-but-close-paren).
var callPattern = regexp.MustCompile(`[A-Za-z_]\w*\([^)]*\)`)

// Call is the raw, untyped result of lexing one call expression. Argument
// values are always strings at this stage; no type coercion happens here.
type Call struct {
	Name      string
	Arguments map[string]string
}

// Extract scans content for call-shaped substrings and returns every
// non-overlapping match in order of appearance, still in raw textual form.
// Empty content yields nil.
func Extract(content string) []string {
	if content == "" {
		return nil
	}
	return callPattern.FindAllString(content, -1)
}

// Parse splits one raw call expression into a name and an argument map.
//
// Everything before the first '(' is the name; everything between it and the
// last ')' is the argument body. Argument pairs without an '=' are silently
// dropped, and a single matching pair of surrounding quotes is stripped from
// each value.
func Parse(raw string) Call {
	open := strings.Index(raw, "(")
	if open < 0 {
		return Call{Name: strings.TrimSpace(raw), Arguments: map[string]string{}}
	}

	name := strings.TrimSpace(raw[:open])
	body := raw[open+1:]
	if close := strings.LastIndex(body, ")"); close >= 0 {
		body = body[:close]
	}

	args := map[string]string{}
	if strings.TrimSpace(body) == "" {
		return Call{Name: name, Arguments: args}
	}

	for _, pair := range strings.Split(body, ",") {
		eq := strings.Index(pair, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(pair[:eq])
		value := stripQuotes(strings.TrimSpace(pair[eq+1:]))
		if key == "" {
			continue
		}
		args[key] = value
	}
	return Call{Name: name, Arguments: args}
}

// stripQuotes removes one matching pair of leading/trailing ' or " quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '\'' || first == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
